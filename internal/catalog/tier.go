package catalog

// TierRank is a six-level categorical rating.
type TierRank string

const (
	RankSPlus TierRank = "S+"
	RankS     TierRank = "S"
	RankA     TierRank = "A"
	RankB     TierRank = "B"
	RankC     TierRank = "C"
	RankD     TierRank = "D"
)

// Valid reports whether r is one of the six known ranks.
func (r TierRank) Valid() bool {
	switch r {
	case RankSPlus, RankS, RankA, RankB, RankC, RankD:
		return true
	default:
		return false
	}
}

// Ordinal maps D..S+ onto 0..5. Unknown ranks return -1.
func (r TierRank) Ordinal() int {
	switch r {
	case RankSPlus:
		return 5
	case RankS:
		return 4
	case RankA:
		return 3
	case RankB:
		return 2
	case RankC:
		return 1
	case RankD:
		return 0
	default:
		return -1
	}
}

// TierRatings holds the per-dimension ranks and the aggregate rank.
type TierRatings struct {
	PriceRank             TierRank `json:"price_rank"`
	CostEffectivenessRank TierRank `json:"cost_effectiveness_rank"`
	ContentRank           TierRank `json:"content_rank"`
	EvidenceRank          TierRank `json:"evidence_rank"`
	SafetyRank            TierRank `json:"safety_rank"`
	OverallRank           TierRank `json:"overall_rank"`
}

// Dimensions returns the five dimension ranks in a fixed order.
func (t TierRatings) Dimensions() []TierRank {
	return []TierRank{t.PriceRank, t.CostEffectivenessRank, t.ContentRank, t.EvidenceRank, t.SafetyRank}
}

// AllS reports whether every dimension rank is S.
func (t TierRatings) AllS() bool {
	for _, r := range t.Dimensions() {
		if r != RankS {
			return false
		}
	}
	return true
}
