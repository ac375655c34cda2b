package tier

import (
	"fmt"

	"suptia-engine/internal/catalog"
)

// Violation is one integrity problem in precomputed tier data.
type Violation struct {
	ProductID string `json:"product_id"`
	Field     string `json:"field"`
	Value     string `json:"value"`
	Reason    string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s=%q: %s", v.ProductID, v.Field, v.Value, v.Reason)
}

// Validate checks the stored tier ratings of one product. Products without
// ratings are valid. Nothing is corrected.
func Validate(p catalog.Product) []Violation {
	if p.TierRatings == nil {
		return nil
	}
	r := *p.TierRatings
	var out []Violation
	dims := []struct {
		field string
		rank  catalog.TierRank
	}{
		{"price_rank", r.PriceRank},
		{"cost_effectiveness_rank", r.CostEffectivenessRank},
		{"content_rank", r.ContentRank},
		{"evidence_rank", r.EvidenceRank},
		{"safety_rank", r.SafetyRank},
	}
	for _, d := range dims {
		switch {
		case !d.rank.Valid():
			out = append(out, Violation{ProductID: p.ID, Field: d.field, Value: string(d.rank), Reason: "unknown rank"})
		case d.rank == catalog.RankSPlus:
			out = append(out, Violation{ProductID: p.ID, Field: d.field, Value: string(d.rank), Reason: "S+ is only valid as an overall rank"})
		}
	}
	switch {
	case !r.OverallRank.Valid():
		out = append(out, Violation{ProductID: p.ID, Field: "overall_rank", Value: string(r.OverallRank), Reason: "unknown rank"})
	case r.OverallRank == catalog.RankSPlus && !r.AllS():
		out = append(out, Violation{ProductID: p.ID, Field: "overall_rank", Value: string(r.OverallRank), Reason: "S+ requires every dimension to be S"})
	case r.OverallRank != catalog.RankSPlus && r.AllS():
		out = append(out, Violation{ProductID: p.ID, Field: "overall_rank", Value: string(r.OverallRank), Reason: "every dimension is S but overall is not S+"})
	}
	return out
}

// ValidateCatalog runs Validate over every product.
func ValidateCatalog(products []catalog.Product) []Violation {
	out := []Violation{}
	for _, p := range products {
		out = append(out, Validate(p)...)
	}
	return out
}
