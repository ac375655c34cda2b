package scoring

import (
	"strings"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/safety"
)

const (
	secondaryGoalWeight = 0.5
	qualifierBoost      = 1.2

	criticalPenalty = 40.0
	warningPenalty  = 20.0
	infoPenalty     = 5.0
)

// SafetyDetails is the safety part of a ScoreBreakdown.
type SafetyDetails struct {
	HasContraindications bool               `json:"has_contraindications"`
	BaseScore            float64            `json:"base_score"`
	SafetyCheckResult    safety.CheckResult `json:"safety_check_result"`
}

// EffectivenessDetails lists which goals the product covers.
type EffectivenessDetails struct {
	MatchedGoals          []catalog.HealthGoal `json:"matched_goals"`
	MatchedSecondaryGoals []catalog.HealthGoal `json:"matched_secondary_goals,omitempty"`
	UnmatchedGoals        []catalog.HealthGoal `json:"unmatched_goals,omitempty"`
}

// ScoreBreakdown holds the four sub-scores, the overall score and the
// details behind them.
type ScoreBreakdown struct {
	EffectivenessScore   float64              `json:"effectiveness_score"`
	SafetyScore          float64              `json:"safety_score"`
	CostScore            float64              `json:"cost_score"`
	EvidenceScore        float64              `json:"evidence_score"`
	OverallScore         float64              `json:"overall_score"`
	ScoreSource          ScoreSource          `json:"score_source"`
	Weights              Weights              `json:"weights"`
	CostDetails          CostDetails          `json:"cost_details"`
	SafetyDetails        SafetyDetails        `json:"safety_details"`
	EffectivenessDetails EffectivenessDetails `json:"effectiveness_details"`
	Inference            *Inference           `json:"inference,omitempty"`
}

// Evaluation is the engine output for one product and one profile.
type Evaluation struct {
	Scores         ScoreBreakdown `json:"scores"`
	Recommendation Level          `json:"recommendation"`
	Reasons        []string       `json:"reasons"`
	Warnings       []string       `json:"warnings"`
}

// Engine scores products against a user profile. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	checker *safety.Checker
	auto    *AutoScorer
	weights WeightTable
}

// NewEngine wires the engine. A nil checker or weight table falls back to
// the defaults; a nil AutoScorer yields neutral inferred scores.
func NewEngine(checker *safety.Checker, auto *AutoScorer, weights WeightTable) *Engine {
	if checker == nil {
		checker = safety.NewChecker()
	}
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{checker: checker, auto: auto, weights: weights}
}

// Evaluate scores a product for the basic profile.
func (e *Engine) Evaluate(p catalog.Product, profile catalog.Profile) Evaluation {
	return e.evaluate(p, catalog.DetailedProfile{Profile: profile})
}

// EvaluateDetailed scores a product for the detailed profile. Secondary
// goals and qualifiers only affect the effectiveness score.
func (e *Engine) EvaluateDetailed(p catalog.Product, profile catalog.DetailedProfile) Evaluation {
	return e.evaluate(p, profile)
}

func (e *Engine) evaluate(p catalog.Product, profile catalog.DetailedProfile) Evaluation {
	var b ScoreBreakdown

	ingredients := p.ResolvedIngredients()
	b.EffectivenessScore, b.EffectivenessDetails = effectiveness(ingredients, profile)

	baseSafety, evidence, source, inference := e.baseScores(p)
	b.ScoreSource = source
	b.Inference = inference
	b.EvidenceScore = round2(clamp(evidence))

	check := e.checker.Check(ingredients, profile.HealthConditions)
	b.SafetyDetails = SafetyDetails{
		HasContraindications: !check.IsOverallSafe,
		BaseScore:            round2(baseSafety),
		SafetyCheckResult:    check,
	}
	b.SafetyScore = round2(penalize(baseSafety, check))

	b.CostDetails = ComputeCost(p)
	b.CostScore = round2(CostScore(&b.CostDetails, profile.BudgetPerDay))

	b.Weights = e.weights.For(profile.Priority)
	b.OverallScore = WeightedOverall(b.Weights, b.EffectivenessScore, b.SafetyScore, b.CostScore, b.EvidenceScore)

	level := CombineRecommendation(b.OverallScore, check.RiskLevel)
	reasons, warnings := explain(p, profile.Profile, b)
	return Evaluation{
		Scores:         b,
		Recommendation: level,
		Reasons:        reasons,
		Warnings:       warnings,
	}
}

// baseScores returns curated scores when they are present and valid,
// otherwise the AutoScorer inference. The two are never mixed.
func (e *Engine) baseScores(p catalog.Product) (safetyScore, evidence float64, source ScoreSource, inference *Inference) {
	if p.Scores.Valid() {
		return p.Scores.Safety, p.Scores.Evidence, SourceCurated, nil
	}
	inf := e.auto.Infer(p.Name)
	return inf.SafetyScore, inf.EvidenceScore, SourceInferred, &inf
}

func penalize(base float64, check safety.CheckResult) float64 {
	penalty := criticalPenalty*float64(check.Count(safety.SeverityCritical)) +
		warningPenalty*float64(check.Count(safety.SeverityWarning)) +
		infoPenalty*float64(check.Count(safety.SeverityInfo))
	return clamp(base - penalty)
}

func effectiveness(ingredients []catalog.Ingredient, profile catalog.DetailedProfile) (float64, EffectivenessDetails) {
	details := EffectivenessDetails{MatchedGoals: []catalog.HealthGoal{}}
	primary := uniqueGoals(profile.Goals)
	if len(primary) == 0 {
		return neutralScore, details
	}
	isPrimary := make(map[catalog.HealthGoal]bool, len(primary))
	for _, g := range primary {
		isPrimary[g] = true
	}
	var secondary []catalog.HealthGoal
	for _, g := range uniqueGoals(profile.SecondaryGoals) {
		if !isPrimary[g] {
			secondary = append(secondary, g)
		}
	}

	boosted := qualifierGoals(profile)
	weightOf := func(g catalog.HealthGoal, base float64) float64 {
		if boosted[g] {
			return base * qualifierBoost
		}
		return base
	}

	var total, matched float64
	for _, g := range primary {
		w := weightOf(g, 1)
		total += w
		if covers(ingredients, g) {
			matched += w
			details.MatchedGoals = append(details.MatchedGoals, g)
		} else {
			details.UnmatchedGoals = append(details.UnmatchedGoals, g)
		}
	}
	for _, g := range secondary {
		w := weightOf(g, secondaryGoalWeight)
		total += w
		if covers(ingredients, g) {
			matched += w
			details.MatchedSecondaryGoals = append(details.MatchedSecondaryGoals, g)
		}
	}
	return round2(clamp(100 * matched / total)), details
}

// qualifierGoals returns the goals whose weight the demographic and
// lifestyle answers raise.
func qualifierGoals(profile catalog.DetailedProfile) map[catalog.HealthGoal]bool {
	out := make(map[catalog.HealthGoal]bool)
	mark := func(goals ...catalog.HealthGoal) {
		for _, g := range goals {
			out[g] = true
		}
	}
	switch strings.ToLower(strings.TrimSpace(profile.AgeGroup)) {
	case "50s", "60s", "70+", "senior":
		mark(catalog.GoalBone, catalog.GoalJoint, catalog.GoalCognition, catalog.GoalEye, catalog.GoalHeart)
	case "40s":
		mark(catalog.GoalAntiAging, catalog.GoalHeart)
	case "10s", "20s":
		mark(catalog.GoalSkin, catalog.GoalEnergy)
	}
	switch strings.ToLower(strings.TrimSpace(profile.Gender)) {
	case "female":
		mark(catalog.GoalBone, catalog.GoalSkin)
	case "male":
		mark(catalog.GoalMuscle, catalog.GoalLiver)
	}
	switch strings.ToLower(strings.TrimSpace(profile.ActivityLevel)) {
	case "high", "athlete":
		mark(catalog.GoalMuscle, catalog.GoalEnergy, catalog.GoalJoint)
	case "sedentary", "low":
		mark(catalog.GoalWeight, catalog.GoalHeart)
	}
	for _, concern := range profile.Concerns {
		mark(catalog.HealthGoal(strings.ToLower(strings.TrimSpace(concern))))
	}
	return out
}

func covers(ingredients []catalog.Ingredient, goal catalog.HealthGoal) bool {
	for _, ing := range ingredients {
		if ing.HasGoal(goal) {
			return true
		}
	}
	return false
}

func uniqueGoals(in []catalog.HealthGoal) []catalog.HealthGoal {
	seen := make(map[catalog.HealthGoal]struct{}, len(in))
	out := make([]catalog.HealthGoal, 0, len(in))
	for _, g := range in {
		g = catalog.HealthGoal(strings.ToLower(strings.TrimSpace(string(g))))
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
