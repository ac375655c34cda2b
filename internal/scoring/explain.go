package scoring

import (
	"fmt"
	"strings"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/safety"
)

const (
	strongEvidence = 80.0
	weakEvidence   = 50.0
)

// explain turns score threshold crossings into short user-facing sentences.
func explain(p catalog.Product, profile catalog.Profile, b ScoreBreakdown) ([]string, []string) {
	reasons := []string{}
	warnings := []string{}

	if matched := b.EffectivenessDetails.MatchedGoals; len(matched) > 0 {
		reasons = append(reasons, fmt.Sprintf("Supports your goals: %s", joinGoals(matched)))
	}
	if matched := b.EffectivenessDetails.MatchedSecondaryGoals; len(matched) > 0 {
		reasons = append(reasons, fmt.Sprintf("Also helps with: %s", joinGoals(matched)))
	}

	cost := b.CostDetails
	switch {
	case !cost.Known:
		warnings = append(warnings, "Price or serving information is missing; cost score is neutral")
	case profile.HasBudget() && cost.OverBudget:
		warnings = append(warnings, fmt.Sprintf("Costs ¥%.0f/day, ¥%.0f over your budget", cost.CostPerDayJPY, cost.BudgetDelta))
	case profile.HasBudget():
		reasons = append(reasons, fmt.Sprintf("Within your budget at ¥%.0f/day", cost.CostPerDayJPY))
	case b.CostScore >= 90:
		reasons = append(reasons, fmt.Sprintf("Low daily cost at ¥%.0f/day", cost.CostPerDayJPY))
	}

	switch {
	case b.EvidenceScore >= strongEvidence:
		reasons = append(reasons, "Backed by strong scientific evidence")
	case b.EvidenceScore < weakEvidence:
		warnings = append(warnings, "Scientific evidence is limited")
	}
	if b.ScoreSource == SourceInferred {
		warnings = append(warnings, "Evidence and safety scores are estimated from the product name")
	}

	check := b.SafetyDetails.SafetyCheckResult
	if check.IsOverallSafe {
		if len(profile.HealthConditions) > 0 {
			reasons = append(reasons, "No listed contraindications for your health conditions")
		}
	} else {
		for _, alert := range check.Alerts {
			warnings = append(warnings, fmt.Sprintf("[%s] %s", alert.Severity, alert.Message))
		}
	}
	if check.RiskLevel == safety.RiskHigh {
		warnings = append(warnings, "Consult a doctor or pharmacist before taking this product")
	}

	if p.ThirdPartyTested {
		reasons = append(reasons, "Quality verified by third-party testing")
	}
	for _, w := range p.Warnings {
		if w = strings.TrimSpace(w); w != "" {
			warnings = append(warnings, w)
		}
	}
	return reasons, warnings
}

func joinGoals(goals []catalog.HealthGoal) string {
	parts := make([]string, len(goals))
	for i, g := range goals {
		parts[i] = string(g)
	}
	return strings.Join(parts, ", ")
}
