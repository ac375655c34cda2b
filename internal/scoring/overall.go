package scoring

import "suptia-engine/internal/safety"

// Level is the recommendation label attached to a scored product.
type Level string

const (
	LevelHighlyRecommended Level = "highly-recommended"
	LevelRecommended       Level = "recommended"
	LevelAcceptable        Level = "acceptable"
	LevelNotRecommended    Level = "not-recommended"
)

const (
	highlyRecommendedThreshold = 80.0
	recommendedThreshold       = 65.0
	acceptableThreshold        = 50.0
)

// CombineRecommendation maps the overall score to a level. A high-risk
// safety verdict forces not-recommended whatever the score.
func CombineRecommendation(overallScore float64, risk safety.RiskLevel) Level {
	if risk == safety.RiskHigh {
		return LevelNotRecommended
	}
	switch {
	case overallScore >= highlyRecommendedThreshold:
		return LevelHighlyRecommended
	case overallScore >= recommendedThreshold:
		return LevelRecommended
	case overallScore >= acceptableThreshold:
		return LevelAcceptable
	default:
		return LevelNotRecommended
	}
}

// WeightedOverall combines the four sub-scores.
func WeightedOverall(w Weights, effectiveness, safetyScore, cost, evidence float64) float64 {
	w = w.normalized()
	total := w.Effectiveness*effectiveness + w.Safety*safetyScore + w.Cost*cost + w.Evidence*evidence
	return round2(clamp(total))
}
