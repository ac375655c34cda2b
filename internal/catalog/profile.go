package catalog

import "strings"

// Priority selects how the overall score weights the sub-scores.
type Priority string

const (
	PriorityBalanced      Priority = "balanced"
	PriorityCost          Priority = "cost"
	PrioritySafety        Priority = "safety"
	PriorityEvidence      Priority = "evidence"
	PriorityEffectiveness Priority = "effectiveness"
)

// ParsePriority normalises user input; anything unknown is balanced.
func ParsePriority(raw string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(raw))) {
	case PriorityCost:
		return PriorityCost
	case PrioritySafety:
		return PrioritySafety
	case PriorityEvidence:
		return PriorityEvidence
	case PriorityEffectiveness:
		return PriorityEffectiveness
	default:
		return PriorityBalanced
	}
}

// Profile is the user's diagnosis answers.
type Profile struct {
	Goals            []HealthGoal          `json:"goals"`
	HealthConditions []ContraindicationTag `json:"health_conditions"`
	// BudgetPerDay is a JPY ceiling; zero or negative means no budget.
	BudgetPerDay float64  `json:"budget_per_day,omitempty"`
	Priority     Priority `json:"priority"`
}

// HasBudget reports whether a daily budget was supplied.
func (p Profile) HasBudget() bool {
	return p.BudgetPerDay > 0
}

// DetailedProfile extends Profile with qualifiers that only refine
// effectiveness weighting.
type DetailedProfile struct {
	Profile
	SecondaryGoals []HealthGoal `json:"secondary_goals,omitempty"`
	AgeGroup       string       `json:"age_group,omitempty"`
	Gender         string       `json:"gender,omitempty"`
	ActivityLevel  string       `json:"activity_level,omitempty"`
	Concerns       []string     `json:"concerns,omitempty"`
}

// Snapshot is an immutable view of the catalog for one computation.
type Snapshot struct {
	Ingredients []Ingredient `json:"ingredients"`
	Products    []Product    `json:"products"`
}
