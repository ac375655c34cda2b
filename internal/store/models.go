package store

import (
	"encoding/json"
	"strings"
	"time"

	"suptia-engine/internal/catalog"
)

// Ingredient is a catalog ingredient row. List fields are stored as JSON.
type Ingredient struct {
	Slug                  string `gorm:"primaryKey;size:128"`
	Name                  string `gorm:"size:256;index"`
	NameEn                string `gorm:"size:256"`
	AliasesJSON           string `gorm:"type:text"`
	Category              string `gorm:"size:64;index"`
	EvidenceLevel         string `gorm:"size:16"`
	RelatedGoalsJSON      string `gorm:"type:text"`
	ContraindicationsJSON string `gorm:"type:text"`
	SideEffectsJSON       string `gorm:"type:text"`
	InteractionsJSON      string `gorm:"type:text"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Product is a catalog product row. Curated scores are nullable so a
// missing score can be told apart from zero.
type Product struct {
	ID                   string `gorm:"primaryKey;size:64"`
	Slug                 string `gorm:"size:256;index"`
	Name                 string `gorm:"size:512"`
	Brand                string `gorm:"size:256"`
	Category             string `gorm:"size:64;index"`
	PriceJPY             float64
	ServingsPerDay       float64
	ServingsPerContainer float64
	EvidenceScore        *float64
	SafetyScore          *float64
	PriceDataJSON        string `gorm:"type:text"`
	ThirdPartyTested     bool
	WarningsJSON         string `gorm:"type:text"`
	ReferencesJSON       string `gorm:"type:text"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ProductIngredient links a product to one dosed ingredient.
type ProductIngredient struct {
	ID                 uint   `gorm:"primaryKey"`
	ProductID          string `gorm:"size:64;index"`
	IngredientSlug     string `gorm:"size:128;index"`
	Position           int
	AmountMgPerServing float64
}

// TierSnapshot is the last batch-computed tier rating of a product.
type TierSnapshot struct {
	ProductID             string `gorm:"primaryKey;size:64"`
	CohortKey             string `gorm:"size:256;index"`
	Category              string `gorm:"size:64;index"`
	PriceRank             string `gorm:"size:4"`
	CostEffectivenessRank string `gorm:"size:4"`
	ContentRank           string `gorm:"size:4"`
	EvidenceRank          string `gorm:"size:4"`
	SafetyRank            string `gorm:"size:4"`
	OverallRank           string `gorm:"size:4;index"`
	OverallScore          float64
	BadgesJSON            string `gorm:"type:text"`
	JobID                 string `gorm:"size:64"`
	ComputedAt            time.Time
}

// JobState persists tier rebuild job metadata across restarts.
type JobState struct {
	JobID         string `gorm:"primaryKey;size:64"`
	Status        string `gorm:"size:32;index"`
	Message       string `gorm:"size:255"`
	Processed     int
	Total         int
	LastEventJSON string `gorm:"type:text"`
	UpdatedAt     time.Time
	CreatedAt     time.Time
}

// NewIngredient converts a catalog ingredient into a row.
func NewIngredient(ing catalog.Ingredient) Ingredient {
	return Ingredient{
		Slug:                  ing.Key(),
		Name:                  strings.TrimSpace(ing.Name),
		NameEn:                strings.TrimSpace(ing.NameEn),
		AliasesJSON:           encodeList(ing.Aliases),
		Category:              ing.Category,
		EvidenceLevel:         string(catalog.ParseEvidenceLevel(string(ing.EvidenceLevel))),
		RelatedGoalsJSON:      encodeList(ing.RelatedGoals),
		ContraindicationsJSON: encodeList(ing.Contraindications),
		SideEffectsJSON:       encodeList(ing.SideEffects),
		InteractionsJSON:      encodeList(ing.Interactions),
	}
}

// Catalog converts the row back into the engine type.
func (i Ingredient) Catalog() catalog.Ingredient {
	return catalog.Ingredient{
		Slug:              i.Slug,
		Name:              i.Name,
		NameEn:            i.NameEn,
		Aliases:           decodeList[string](i.AliasesJSON),
		Category:          i.Category,
		EvidenceLevel:     catalog.ParseEvidenceLevel(i.EvidenceLevel),
		RelatedGoals:      decodeList[catalog.HealthGoal](i.RelatedGoalsJSON),
		Contraindications: decodeList[catalog.ContraindicationTag](i.ContraindicationsJSON),
		SideEffects:       decodeList[string](i.SideEffectsJSON),
		Interactions:      decodeList[string](i.InteractionsJSON),
	}
}

// NewProduct converts a catalog product into its row and ingredient links.
func NewProduct(p catalog.Product) (Product, []ProductIngredient) {
	row := Product{
		ID:                   strings.TrimSpace(p.ID),
		Slug:                 p.Slug,
		Name:                 p.Name,
		Brand:                p.Brand,
		Category:             p.Category,
		PriceJPY:             p.PriceJPY,
		ServingsPerDay:       p.ServingsPerDay,
		ServingsPerContainer: p.ServingsPerContainer,
		PriceDataJSON:        encodeList(p.PriceData),
		ThirdPartyTested:     p.ThirdPartyTested,
		WarningsJSON:         encodeList(p.Warnings),
		ReferencesJSON:       encodeList(p.References),
	}
	if p.Scores != nil {
		evidence, safety := p.Scores.Evidence, p.Scores.Safety
		row.EvidenceScore = &evidence
		row.SafetyScore = &safety
	}
	links := make([]ProductIngredient, 0, len(p.Ingredients))
	for i, pi := range p.Ingredients {
		links = append(links, ProductIngredient{
			ProductID:          row.ID,
			IngredientSlug:     pi.Ingredient.Key(),
			Position:           i,
			AmountMgPerServing: pi.AmountMgPerServing,
		})
	}
	return row, links
}

// Catalog converts the row back into the engine type without ingredients.
func (p Product) Catalog() catalog.Product {
	out := catalog.Product{
		ID:                   p.ID,
		Slug:                 p.Slug,
		Name:                 p.Name,
		Brand:                p.Brand,
		Category:             p.Category,
		PriceJPY:             p.PriceJPY,
		ServingsPerDay:       p.ServingsPerDay,
		ServingsPerContainer: p.ServingsPerContainer,
		PriceData:            decodeList[catalog.PriceOffer](p.PriceDataJSON),
		ThirdPartyTested:     p.ThirdPartyTested,
		Warnings:             decodeList[string](p.WarningsJSON),
		References:           decodeList[string](p.ReferencesJSON),
	}
	if p.EvidenceScore != nil && p.SafetyScore != nil {
		out.Scores = &catalog.CuratedScores{Evidence: *p.EvidenceScore, Safety: *p.SafetyScore}
	}
	return out
}

// Ratings returns the stored ranks. Values are not validated here.
func (t TierSnapshot) Ratings() catalog.TierRatings {
	return catalog.TierRatings{
		PriceRank:             catalog.TierRank(t.PriceRank),
		CostEffectivenessRank: catalog.TierRank(t.CostEffectivenessRank),
		ContentRank:           catalog.TierRank(t.ContentRank),
		EvidenceRank:          catalog.TierRank(t.EvidenceRank),
		SafetyRank:            catalog.TierRank(t.SafetyRank),
		OverallRank:           catalog.TierRank(t.OverallRank),
	}
}

// SetRatings copies ranks into the snapshot row.
func (t *TierSnapshot) SetRatings(r catalog.TierRatings) {
	t.PriceRank = string(r.PriceRank)
	t.CostEffectivenessRank = string(r.CostEffectivenessRank)
	t.ContentRank = string(r.ContentRank)
	t.EvidenceRank = string(r.EvidenceRank)
	t.SafetyRank = string(r.SafetyRank)
	t.OverallRank = string(r.OverallRank)
}

// SetBadges stores badge ids as JSON.
func (t *TierSnapshot) SetBadges(ids []string) {
	t.BadgesJSON = encodeList(ids)
}

// Badges returns the stored badge ids.
func (t TierSnapshot) Badges() []string {
	return decodeList[string](t.BadgesJSON)
}

func encodeList[T any](values []T) string {
	if values == nil {
		return "[]"
	}
	payload, _ := json.Marshal(values)
	return string(payload)
}

func decodeList[T any](raw string) []T {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
