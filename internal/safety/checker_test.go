package safety

import (
	"strings"
	"testing"

	"suptia-engine/internal/catalog"
)

var (
	ginkgo = catalog.Ingredient{
		Slug:              "ginkgo",
		Name:              "Ginkgo",
		Contraindications: []catalog.ContraindicationTag{catalog.ConditionAnticoagulant, catalog.ConditionSurgery},
	}
	licorice = catalog.Ingredient{
		Slug:              "licorice",
		Name:              "Licorice",
		Contraindications: []catalog.ContraindicationTag{catalog.ConditionHypertension, catalog.ConditionPregnancy},
	}
	greenTea = catalog.Ingredient{
		Slug:              "green-tea",
		Name:              "Green Tea Extract",
		Contraindications: []catalog.ContraindicationTag{catalog.ConditionCaffeineSensitivity},
	}
	vitaminC = catalog.Ingredient{Slug: "vitamin-c", Name: "Vitamin C"}
)

func TestCheckRiskLevels(t *testing.T) {
	checker := NewChecker()
	tests := []struct {
		name        string
		ingredients []catalog.Ingredient
		conditions  []catalog.ContraindicationTag
		expectRisk  RiskLevel
		expectCount int
	}{
		{"no conditions", []catalog.Ingredient{ginkgo}, nil, RiskSafe, 0},
		{"no overlap", []catalog.Ingredient{vitaminC}, []catalog.ContraindicationTag{catalog.ConditionPregnancy}, RiskSafe, 0},
		{"info only", []catalog.Ingredient{greenTea}, []catalog.ContraindicationTag{catalog.ConditionCaffeineSensitivity}, RiskLow, 1},
		{"warning", []catalog.Ingredient{licorice}, []catalog.ContraindicationTag{catalog.ConditionHypertension}, RiskMedium, 1},
		{"critical and warning", []catalog.Ingredient{licorice, ginkgo}, []catalog.ContraindicationTag{catalog.ConditionHypertension, catalog.ConditionAnticoagulant}, RiskHigh, 2},
		{"pair per condition", []catalog.Ingredient{ginkgo}, []catalog.ContraindicationTag{catalog.ConditionAnticoagulant, catalog.ConditionSurgery}, RiskHigh, 2},
		{"duplicate ingredient checked once", []catalog.Ingredient{licorice, licorice}, []catalog.ContraindicationTag{catalog.ConditionHypertension, "Hypertension"}, RiskMedium, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := checker.Check(tc.ingredients, tc.conditions)
			if result.RiskLevel != tc.expectRisk {
				t.Fatalf("expected risk %s got %s", tc.expectRisk, result.RiskLevel)
			}
			if len(result.Alerts) != tc.expectCount {
				t.Fatalf("expected %d alerts got %d", tc.expectCount, len(result.Alerts))
			}
			if result.IsOverallSafe != (tc.expectCount == 0) {
				t.Fatalf("IsOverallSafe mismatch: %v", result.IsOverallSafe)
			}
		})
	}
}

func TestAlertsOrderedBySeverity(t *testing.T) {
	result := NewChecker().Check(
		[]catalog.Ingredient{greenTea, licorice, ginkgo},
		[]catalog.ContraindicationTag{catalog.ConditionCaffeineSensitivity, catalog.ConditionHypertension, catalog.ConditionAnticoagulant},
	)
	if len(result.Alerts) != 3 {
		t.Fatalf("expected 3 alerts got %d", len(result.Alerts))
	}
	expected := []Severity{SeverityCritical, SeverityWarning, SeverityInfo}
	for i, a := range result.Alerts {
		if a.Severity != expected[i] {
			t.Fatalf("alert %d: expected %s got %s", i, expected[i], a.Severity)
		}
	}
	if !strings.HasPrefix(result.Summary, "Critical: Ginkgo") {
		t.Fatalf("summary should describe the worst finding, got %q", result.Summary)
	}
}

func TestSafeSummaryDoesNotClaimProvenSafety(t *testing.T) {
	result := NewChecker().Check([]catalog.Ingredient{vitaminC}, []catalog.ContraindicationTag{catalog.ConditionPregnancy})
	if !strings.Contains(result.Summary, "not that the product is proven safe") {
		t.Fatalf("unexpected summary %q", result.Summary)
	}
	if result.Alerts == nil {
		t.Fatalf("alerts should be an empty slice, not nil")
	}
}

func TestUnknownConditionIsWarning(t *testing.T) {
	checker := NewChecker()
	if got := checker.SeverityFor("rare-enzyme-deficiency"); got != SeverityWarning {
		t.Fatalf("expected warning got %s", got)
	}
	if got := checker.SeverityFor(" Pregnancy "); got != SeverityCritical {
		t.Fatalf("expected critical got %s", got)
	}
}
