package scoring

import (
	"testing"

	"suptia-engine/internal/safety"
)

func TestCombineRecommendation(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		risk     safety.RiskLevel
		expected Level
	}{
		{"highly recommended", 85, safety.RiskSafe, LevelHighlyRecommended},
		{"recommended boundary", 65, safety.RiskLow, LevelRecommended},
		{"acceptable", 55, safety.RiskMedium, LevelAcceptable},
		{"not recommended", 30, safety.RiskSafe, LevelNotRecommended},
		{"high risk overrides score", 99, safety.RiskHigh, LevelNotRecommended},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CombineRecommendation(tc.score, tc.risk); got != tc.expected {
				t.Fatalf("expected %s got %s", tc.expected, got)
			}
		})
	}
}

func TestWeightedOverall(t *testing.T) {
	table := DefaultWeights()
	balanced := WeightedOverall(table.For("balanced"), 80, 60, 40, 20)
	if balanced != 50 {
		t.Fatalf("expected balanced 50 got %.2f", balanced)
	}
	cost := WeightedOverall(table.For("cost"), 80, 60, 100, 20)
	// 0.2*80 + 0.2*60 + 0.4*100 + 0.2*20
	if cost != 72 {
		t.Fatalf("expected cost-priority 72 got %.2f", cost)
	}
	if got := table.For("unknown"); got != table.For("balanced") {
		t.Fatalf("unknown priority should use balanced weights")
	}
}
