package tier

import (
	"context"
	"sort"
	"strings"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/pricing"
	"suptia-engine/internal/scoring"
)

// Rating is the tier outcome for one product.
type Rating struct {
	Product   catalog.Product        `json:"product"`
	CohortKey string                 `json:"cohort_key"`
	Ratings   catalog.TierRatings    `json:"tier_ratings"`
	Badges    []Badge                `json:"badges"`
	Scores    scoring.ScoreBreakdown `json:"scores"`
}

// Batch is the result of rating a whole catalog.
type Batch struct {
	Ratings []Rating `json:"ratings"`
	// Evaluated counts products scored while building the batch.
	Evaluated int `json:"evaluated"`
	Cohorts   int `json:"cohorts"`
}

// ProgressFunc receives the number of products rated so far.
type ProgressFunc func(done, total int)

// Engine assigns tier ranks using profile-independent scores.
type Engine struct {
	scorer *scoring.Engine
}

// NewEngine builds a tier engine on top of a scoring engine.
func NewEngine(scorer *scoring.Engine) *Engine {
	if scorer == nil {
		scorer = scoring.NewEngine(nil, nil, nil)
	}
	return &Engine{scorer: scorer}
}

type measures struct {
	price     float64
	costPerMg float64
	dailyDose float64
}

func measure(p catalog.Product) measures {
	var m measures
	if quote := pricing.EffectivePrice(p); quote.Known() {
		m.price = quote.PriceJPY
	}
	m.costPerMg = scoring.ComputeCost(p).CostCalculation.CostPerMg
	m.dailyDose = p.DailyDoseMg()
	return m
}

// Rate computes the tier ratings of one product against precomputed cohort
// statistics. A nil stats value rates the product on absolute buckets only.
// Badges are not awarded here since best-value needs the whole cohort.
func (e *Engine) Rate(p catalog.Product, stats *CohortStats) Rating {
	if stats == nil {
		stats = &CohortStats{}
	}
	eval := e.scorer.Evaluate(p, catalog.Profile{Priority: catalog.PriorityBalanced})
	scores := eval.Scores
	m := measure(p)

	var r catalog.TierRatings
	if hasPeers(m.price, stats.Prices) {
		r.PriceRank = RelativeRank(m.price, stats.Prices, true)
	} else {
		r.PriceRank = AbsoluteRank(scores.CostScore)
	}
	if hasPeers(m.costPerMg, stats.CostsPerMg) {
		r.CostEffectivenessRank = RelativeRank(m.costPerMg, stats.CostsPerMg, true)
	} else {
		r.CostEffectivenessRank = AbsoluteRank(scores.CostScore)
	}
	if hasPeers(m.dailyDose, stats.DailyDoses) {
		r.ContentRank = RelativeRank(m.dailyDose, stats.DailyDoses, false)
	} else {
		r.ContentRank = AbsoluteRank(scores.OverallScore)
	}
	r.EvidenceRank = AbsoluteRank(scores.EvidenceScore)
	r.SafetyRank = AbsoluteRank(scores.SafetyScore)
	r.OverallRank = OverallRank(r)

	out := p.Clone()
	ratings := r
	out.TierRatings = &ratings
	return Rating{
		Product:   out,
		CohortKey: CohortKey(p),
		Ratings:   r,
		Badges:    []Badge{},
		Scores:    scores,
	}
}

// CohortKey groups products that are compared with each other: same
// category and same primary ingredient.
func CohortKey(p catalog.Product) string {
	primary := ""
	if ing, ok := p.PrimaryIngredient(); ok {
		primary = ing.Key()
	}
	return strings.ToLower(strings.TrimSpace(p.Category)) + "|" + primary
}

// RankCatalog rates every product of the catalog within its cohort.
func (e *Engine) RankCatalog(products []catalog.Product) Batch {
	batch, _ := e.RankCatalogContext(context.Background(), products, nil)
	return batch
}

// RankCatalogContext is RankCatalog with cancellation and progress
// reporting. Cohort statistics are computed once per cohort.
func (e *Engine) RankCatalogContext(ctx context.Context, products []catalog.Product, progress ProgressFunc) (Batch, error) {
	var order []string
	cohorts := make(map[string][]catalog.Product)
	for _, p := range products {
		key := CohortKey(p)
		if _, ok := cohorts[key]; !ok {
			order = append(order, key)
		}
		cohorts[key] = append(cohorts[key], p)
	}

	batch := Batch{Ratings: make([]Rating, 0, len(products)), Cohorts: len(order)}
	for _, key := range order {
		members := cohorts[key]
		stats := NewCohortStats(members)
		rated := make([]Rating, 0, len(members))
		for _, p := range members {
			if err := ctx.Err(); err != nil {
				return Batch{}, err
			}
			rated = append(rated, e.Rate(p, stats))
			batch.Evaluated++
			if progress != nil {
				progress(batch.Evaluated, len(products))
			}
		}
		AwardBadges(rated)
		batch.Ratings = append(batch.Ratings, rated...)
	}
	SortRatings(batch.Ratings)
	return batch, nil
}

// SortRatings orders ratings best first: overall rank, overall score, then
// product id.
func SortRatings(ratings []Rating) {
	sort.SliceStable(ratings, func(i, j int) bool {
		a, b := ratings[i], ratings[j]
		if oa, ob := a.Ratings.OverallRank.Ordinal(), b.Ratings.OverallRank.Ordinal(); oa != ob {
			return oa > ob
		}
		if a.Scores.OverallScore != b.Scores.OverallScore {
			return a.Scores.OverallScore > b.Scores.OverallScore
		}
		return a.Product.ID < b.Product.ID
	})
}
