package catalog

import "strings"

// HealthGoal is a user-selectable wellness objective.
type HealthGoal string

const (
	GoalImmuneSupport HealthGoal = "immune-support"
	GoalEnergy        HealthGoal = "energy"
	GoalSleep         HealthGoal = "sleep"
	GoalStress        HealthGoal = "stress"
	GoalSkin          HealthGoal = "skin"
	GoalBone          HealthGoal = "bone"
	GoalHeart         HealthGoal = "heart"
	GoalCognition     HealthGoal = "cognition"
	GoalMuscle        HealthGoal = "muscle"
	GoalJoint         HealthGoal = "joint"
	GoalEye           HealthGoal = "eye"
	GoalDigestion     HealthGoal = "digestion"
	GoalLiver         HealthGoal = "liver"
	GoalAntiAging     HealthGoal = "anti-aging"
	GoalWeight        HealthGoal = "weight"
)

// ContraindicationTag is a health condition or medication-use flag.
type ContraindicationTag string

const (
	ConditionPregnancy           ContraindicationTag = "pregnancy"
	ConditionBreastfeeding       ContraindicationTag = "breastfeeding"
	ConditionAnticoagulant       ContraindicationTag = "anticoagulant"
	ConditionAntiplatelet        ContraindicationTag = "antiplatelet"
	ConditionSurgery             ContraindicationTag = "surgery"
	ConditionImmunosuppressant   ContraindicationTag = "immunosuppressant"
	ConditionHypertension        ContraindicationTag = "hypertension"
	ConditionDiabetes            ContraindicationTag = "diabetes"
	ConditionKidneyDisease       ContraindicationTag = "kidney-disease"
	ConditionLiverDisease        ContraindicationTag = "liver-disease"
	ConditionHeartDisease        ContraindicationTag = "heart-disease"
	ConditionThyroid             ContraindicationTag = "thyroid"
	ConditionAutoimmune          ContraindicationTag = "autoimmune"
	ConditionHormoneSensitive    ContraindicationTag = "hormone-sensitive"
	ConditionAllergy             ContraindicationTag = "allergy"
	ConditionChildren            ContraindicationTag = "children"
	ConditionElderly             ContraindicationTag = "elderly"
	ConditionPhotosensitivity    ContraindicationTag = "photosensitivity"
	ConditionCaffeineSensitivity ContraindicationTag = "caffeine-sensitivity"
	ConditionGISensitivity       ContraindicationTag = "gi-sensitivity"
	ConditionIodineSensitivity   ContraindicationTag = "iodine-sensitivity"
)

// EvidenceLevel is the curated confidence rating of an ingredient's claims.
type EvidenceLevel string

const (
	EvidenceS EvidenceLevel = "S"
	EvidenceA EvidenceLevel = "A"
	EvidenceB EvidenceLevel = "B"
	EvidenceC EvidenceLevel = "C"
	EvidenceD EvidenceLevel = "D"
)

// ParseEvidenceLevel maps both the S-D scale and the coarser curated scale
// (high/moderate/low) onto an EvidenceLevel. Unknown input is treated as D.
func ParseEvidenceLevel(raw string) EvidenceLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s":
		return EvidenceS
	case "a", "high":
		return EvidenceA
	case "b", "moderate", "medium":
		return EvidenceB
	case "c", "low":
		return EvidenceC
	default:
		return EvidenceD
	}
}

// Score converts the level to a 0-100 evidence score.
func (e EvidenceLevel) Score() float64 {
	switch e {
	case EvidenceS:
		return 95
	case EvidenceA:
		return 85
	case EvidenceB:
		return 70
	case EvidenceC:
		return 55
	default:
		return 40
	}
}

// Ingredient is a catalog ingredient. Read-only to the engine.
type Ingredient struct {
	Slug              string                `json:"slug"`
	Name              string                `json:"name"`
	NameEn            string                `json:"name_en,omitempty"`
	Aliases           []string              `json:"aliases,omitempty"`
	Category          string                `json:"category,omitempty"`
	EvidenceLevel     EvidenceLevel         `json:"evidence_level"`
	RelatedGoals      []HealthGoal          `json:"related_goals,omitempty"`
	Contraindications []ContraindicationTag `json:"contraindications,omitempty"`
	SideEffects       []string              `json:"side_effects,omitempty"`
	Interactions      []string              `json:"interactions,omitempty"`
}

// Key returns the identity used for deduplication.
func (i Ingredient) Key() string {
	if slug := strings.TrimSpace(i.Slug); slug != "" {
		return strings.ToLower(slug)
	}
	return strings.ToLower(strings.TrimSpace(i.Name))
}

// HasGoal reports whether the ingredient is related to the goal.
func (i Ingredient) HasGoal(goal HealthGoal) bool {
	for _, g := range i.RelatedGoals {
		if g == goal {
			return true
		}
	}
	return false
}

// ProductIngredient is one dosed entry of a product's formula.
type ProductIngredient struct {
	Ingredient         Ingredient `json:"ingredient"`
	AmountMgPerServing float64    `json:"amount_mg_per_serving"`
}

// PriceOffer is a single vendor's listing for a product.
type PriceOffer struct {
	Source   string  `json:"source"`
	PriceJPY float64 `json:"price_jpy"`
	InStock  bool    `json:"in_stock"`
	URL      string  `json:"url,omitempty"`
}

// CuratedScores are editor-maintained scores stored with the product.
type CuratedScores struct {
	Evidence float64 `json:"evidence"`
	Safety   float64 `json:"safety"`
}

// Valid reports whether both scores fall in [0,100].
func (s *CuratedScores) Valid() bool {
	if s == nil {
		return false
	}
	return inRange(s.Evidence) && inRange(s.Safety)
}

func inRange(v float64) bool {
	return v >= 0 && v <= 100
}

// Product is a catalog product with its resolved ingredients.
type Product struct {
	ID                   string              `json:"id"`
	Slug                 string              `json:"slug,omitempty"`
	Name                 string              `json:"name"`
	Brand                string              `json:"brand,omitempty"`
	Category             string              `json:"category,omitempty"`
	PriceJPY             float64             `json:"price_jpy"`
	ServingsPerDay       float64             `json:"servings_per_day"`
	ServingsPerContainer float64             `json:"servings_per_container"`
	Ingredients          []ProductIngredient `json:"ingredients"`
	Scores               *CuratedScores      `json:"scores,omitempty"`
	TierRatings          *TierRatings        `json:"tier_ratings,omitempty"`
	PriceData            []PriceOffer        `json:"price_data,omitempty"`
	ThirdPartyTested     bool                `json:"third_party_tested"`
	Warnings             []string            `json:"warnings,omitempty"`
	References           []string            `json:"references,omitempty"`
}

// ResolvedIngredients returns the product's ingredients without dosage.
func (p Product) ResolvedIngredients() []Ingredient {
	out := make([]Ingredient, 0, len(p.Ingredients))
	for _, pi := range p.Ingredients {
		out = append(out, pi.Ingredient)
	}
	return out
}

// TotalMgPerServing sums the active amounts of every ingredient.
func (p Product) TotalMgPerServing() float64 {
	total := 0.0
	for _, pi := range p.Ingredients {
		if pi.AmountMgPerServing > 0 {
			total += pi.AmountMgPerServing
		}
	}
	return total
}

// DailyDoseMg is the active mass taken per day at the label dose.
func (p Product) DailyDoseMg() float64 {
	perDay := p.ServingsPerDay
	if perDay <= 0 {
		perDay = 1
	}
	return p.TotalMgPerServing() * perDay
}

// PrimaryIngredient returns the highest-dosed ingredient; ties keep the
// earlier entry.
func (p Product) PrimaryIngredient() (Ingredient, bool) {
	best := -1
	for i, pi := range p.Ingredients {
		if best < 0 || pi.AmountMgPerServing > p.Ingredients[best].AmountMgPerServing {
			best = i
		}
	}
	if best < 0 {
		return Ingredient{}, false
	}
	return p.Ingredients[best].Ingredient, true
}

// Clone returns a deep copy so callers can annotate results without
// touching the snapshot.
func (p Product) Clone() Product {
	out := p
	if p.Ingredients != nil {
		out.Ingredients = make([]ProductIngredient, len(p.Ingredients))
		for i, pi := range p.Ingredients {
			pi.Ingredient = pi.Ingredient.clone()
			out.Ingredients[i] = pi
		}
	}
	if p.Scores != nil {
		scores := *p.Scores
		out.Scores = &scores
	}
	if p.TierRatings != nil {
		ratings := *p.TierRatings
		out.TierRatings = &ratings
	}
	out.PriceData = append([]PriceOffer(nil), p.PriceData...)
	out.Warnings = append([]string(nil), p.Warnings...)
	out.References = append([]string(nil), p.References...)
	return out
}

func (i Ingredient) clone() Ingredient {
	out := i
	out.Aliases = append([]string(nil), i.Aliases...)
	out.RelatedGoals = append([]HealthGoal(nil), i.RelatedGoals...)
	out.Contraindications = append([]ContraindicationTag(nil), i.Contraindications...)
	out.SideEffects = append([]string(nil), i.SideEffects...)
	out.Interactions = append([]string(nil), i.Interactions...)
	return out
}
