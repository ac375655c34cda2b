package tier

import "suptia-engine/internal/catalog"

// BadgeTier is the visual weight of a badge.
type BadgeTier string

const (
	BadgeGold   BadgeTier = "gold"
	BadgeSilver BadgeTier = "silver"
	BadgeBlue   BadgeTier = "blue"
)

// Badge is a computed label; it is never stored with the product.
type Badge struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Tier  BadgeTier `json:"tier"`
}

const bestValueMinCostScore = 70.0

var (
	badgeBestValue      = Badge{ID: "best-value", Label: "Best Value", Tier: BadgeGold}
	badgeFiveCrowns     = Badge{ID: "five-crowns", Label: "Five Crowns", Tier: BadgeGold}
	badgeLowestPrice    = Badge{ID: "lowest-price", Label: "Lowest Price", Tier: BadgeSilver}
	badgeBestCostPerf   = Badge{ID: "best-cost-performance", Label: "Best Cost Performance", Tier: BadgeSilver}
	badgeHighPotency    = Badge{ID: "high-potency", Label: "High Potency", Tier: BadgeBlue}
	badgeEvidenceBacked = Badge{ID: "evidence-backed", Label: "Evidence Backed", Tier: BadgeBlue}
	badgeSafetyFirst    = Badge{ID: "safety-first", Label: "Safety First", Tier: BadgeBlue}
)

// BadgesFor returns the rank-driven badges of one rating, gold first.
func BadgesFor(r catalog.TierRatings) []Badge {
	badges := []Badge{}
	if r.OverallRank == catalog.RankSPlus {
		badges = append(badges, badgeFiveCrowns)
	}
	if r.PriceRank == catalog.RankS {
		badges = append(badges, badgeLowestPrice)
	}
	if r.CostEffectivenessRank == catalog.RankS {
		badges = append(badges, badgeBestCostPerf)
	}
	if r.ContentRank == catalog.RankS {
		badges = append(badges, badgeHighPotency)
	}
	if r.EvidenceRank == catalog.RankS {
		badges = append(badges, badgeEvidenceBacked)
	}
	if r.SafetyRank == catalog.RankS {
		badges = append(badges, badgeSafetyFirst)
	}
	return badges
}

// AwardBadges sets the badges of every rating in a list. The top product by
// overall score (ties on product id) also gets best-value when its cost
// score is at least 70.
func AwardBadges(ratings []Rating) {
	if len(ratings) == 0 {
		return
	}
	best := 0
	for i := 1; i < len(ratings); i++ {
		a, b := ratings[i], ratings[best]
		if a.Scores.OverallScore > b.Scores.OverallScore ||
			(a.Scores.OverallScore == b.Scores.OverallScore && a.Product.ID < b.Product.ID) {
			best = i
		}
	}
	for i := range ratings {
		badges := BadgesFor(ratings[i].Ratings)
		if i == best && ratings[i].Scores.CostScore >= bestValueMinCostScore {
			badges = append([]Badge{badgeBestValue}, badges...)
		}
		ratings[i].Badges = badges
	}
}

// HasBadge reports whether id is among badges.
func HasBadge(badges []Badge, id string) bool {
	for _, b := range badges {
		if b.ID == id {
			return true
		}
	}
	return false
}
