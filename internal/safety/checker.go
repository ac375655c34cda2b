package safety

import (
	"fmt"
	"sort"
	"strings"

	"suptia-engine/internal/catalog"
)

// Severity grades a single alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// RiskLevel is the aggregate verdict for a product and a user.
type RiskLevel string

const (
	RiskSafe   RiskLevel = "safe"
	RiskLow    RiskLevel = "low-risk"
	RiskMedium RiskLevel = "medium-risk"
	RiskHigh   RiskLevel = "high-risk"
)

// Alert is one (ingredient, condition) contraindication hit.
type Alert struct {
	Severity       Severity                    `json:"severity"`
	Ingredient     string                      `json:"ingredient"`
	IngredientSlug string                      `json:"ingredient_slug"`
	Condition      catalog.ContraindicationTag `json:"condition"`
	Message        string                      `json:"message"`
}

// CheckResult is the safety verdict for one product.
type CheckResult struct {
	IsOverallSafe bool      `json:"is_overall_safe"`
	Alerts        []Alert   `json:"alerts"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Summary       string    `json:"summary"`
}

// Count returns the number of alerts with the given severity.
func (r CheckResult) Count(severity Severity) int {
	n := 0
	for _, a := range r.Alerts {
		if a.Severity == severity {
			n++
		}
	}
	return n
}

var defaultSeverities = map[catalog.ContraindicationTag]Severity{
	catalog.ConditionPregnancy:           SeverityCritical,
	catalog.ConditionBreastfeeding:       SeverityCritical,
	catalog.ConditionAnticoagulant:       SeverityCritical,
	catalog.ConditionAntiplatelet:        SeverityCritical,
	catalog.ConditionSurgery:             SeverityCritical,
	catalog.ConditionImmunosuppressant:   SeverityCritical,
	catalog.ConditionHypertension:        SeverityWarning,
	catalog.ConditionDiabetes:            SeverityWarning,
	catalog.ConditionKidneyDisease:       SeverityWarning,
	catalog.ConditionLiverDisease:        SeverityWarning,
	catalog.ConditionHeartDisease:        SeverityWarning,
	catalog.ConditionThyroid:             SeverityWarning,
	catalog.ConditionAutoimmune:          SeverityWarning,
	catalog.ConditionHormoneSensitive:    SeverityWarning,
	catalog.ConditionAllergy:             SeverityWarning,
	catalog.ConditionChildren:            SeverityWarning,
	catalog.ConditionElderly:             SeverityWarning,
	catalog.ConditionPhotosensitivity:    SeverityWarning,
	catalog.ConditionCaffeineSensitivity: SeverityInfo,
	catalog.ConditionGISensitivity:       SeverityInfo,
	catalog.ConditionIodineSensitivity:   SeverityInfo,
}

// Checker matches user conditions against ingredient contraindications.
type Checker struct {
	severities map[catalog.ContraindicationTag]Severity
}

// NewChecker returns a checker using the built-in severity table.
func NewChecker() *Checker {
	return &Checker{severities: defaultSeverities}
}

// SeverityFor returns the severity class of a condition. Unrecognised tags
// are graded as warnings rather than dropped.
func (c *Checker) SeverityFor(condition catalog.ContraindicationTag) Severity {
	if c != nil {
		if s, ok := c.severities[normalizeTag(condition)]; ok {
			return s
		}
	}
	return SeverityWarning
}

// Check emits one alert per (ingredient, condition) pair.
func (c *Checker) Check(ingredients []catalog.Ingredient, conditions []catalog.ContraindicationTag) CheckResult {
	userConditions := dedupeConditions(conditions)
	var alerts []Alert
	if len(userConditions) > 0 {
		seen := make(map[string]struct{}, len(ingredients))
		for _, ing := range ingredients {
			key := ing.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			contra := make(map[catalog.ContraindicationTag]struct{}, len(ing.Contraindications))
			for _, tag := range ing.Contraindications {
				contra[normalizeTag(tag)] = struct{}{}
			}
			for _, cond := range userConditions {
				if _, ok := contra[cond]; !ok {
					continue
				}
				severity := c.SeverityFor(cond)
				alerts = append(alerts, Alert{
					Severity:       severity,
					Ingredient:     displayName(ing),
					IngredientSlug: ing.Slug,
					Condition:      cond,
					Message:        alertMessage(severity, displayName(ing), cond),
				})
			}
		}
	}
	SortAlerts(alerts)

	result := CheckResult{
		IsOverallSafe: len(alerts) == 0,
		Alerts:        alerts,
		RiskLevel:     riskLevel(alerts),
	}
	if result.Alerts == nil {
		result.Alerts = []Alert{}
	}
	result.Summary = summarize(result)
	return result
}

// SortAlerts orders alerts critical > warning > info, then by ingredient and
// condition.
func SortAlerts(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Ingredient != b.Ingredient {
			return a.Ingredient < b.Ingredient
		}
		return a.Condition < b.Condition
	})
}

func riskLevel(alerts []Alert) RiskLevel {
	worst := 0
	for _, a := range alerts {
		if r := a.Severity.Rank(); r > worst {
			worst = r
		}
	}
	switch {
	case len(alerts) == 0:
		return RiskSafe
	case worst >= SeverityCritical.Rank():
		return RiskHigh
	case worst == SeverityWarning.Rank():
		return RiskMedium
	default:
		return RiskLow
	}
}

func summarize(r CheckResult) string {
	if len(r.Alerts) == 0 {
		return "No listed contraindications match your conditions. This means no known risk was recorded, not that the product is proven safe."
	}
	worst := r.Alerts[0]
	others := len(r.Alerts) - 1
	suffix := ""
	if others == 1 {
		suffix = " (1 more alert)"
	} else if others > 1 {
		suffix = fmt.Sprintf(" (%d more alerts)", others)
	}
	switch worst.Severity {
	case SeverityCritical:
		return fmt.Sprintf("Critical: %s is contraindicated for %s%s.", worst.Ingredient, worst.Condition, suffix)
	case SeverityWarning:
		return fmt.Sprintf("Caution: %s may be unsuitable for %s%s.", worst.Ingredient, worst.Condition, suffix)
	default:
		return fmt.Sprintf("Note: %s may cause discomfort with %s%s.", worst.Ingredient, worst.Condition, suffix)
	}
}

func alertMessage(severity Severity, ingredient string, cond catalog.ContraindicationTag) string {
	switch severity {
	case SeverityCritical:
		return fmt.Sprintf("%s should be avoided with %s; consult a physician before use.", ingredient, cond)
	case SeverityWarning:
		return fmt.Sprintf("%s may interact with %s; check with a healthcare professional.", ingredient, cond)
	default:
		return fmt.Sprintf("%s may cause mild discomfort for people with %s.", ingredient, cond)
	}
}

func displayName(ing catalog.Ingredient) string {
	if name := strings.TrimSpace(ing.Name); name != "" {
		return name
	}
	return ing.Slug
}

func normalizeTag(tag catalog.ContraindicationTag) catalog.ContraindicationTag {
	return catalog.ContraindicationTag(strings.ToLower(strings.TrimSpace(string(tag))))
}

func dedupeConditions(in []catalog.ContraindicationTag) []catalog.ContraindicationTag {
	seen := make(map[catalog.ContraindicationTag]struct{}, len(in))
	out := make([]catalog.ContraindicationTag, 0, len(in))
	for _, tag := range in {
		tag = normalizeTag(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
