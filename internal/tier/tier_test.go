package tier

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/scoring"
)

var vitaminC = catalog.Ingredient{
	Slug:          "vitamin-c",
	Name:          "ビタミンC",
	NameEn:        "Vitamin C",
	EvidenceLevel: catalog.EvidenceA,
	RelatedGoals:  []catalog.HealthGoal{catalog.GoalImmuneSupport},
}

var magnesium = catalog.Ingredient{
	Slug:          "magnesium",
	Name:          "マグネシウム",
	EvidenceLevel: catalog.EvidenceB,
	RelatedGoals:  []catalog.HealthGoal{catalog.GoalSleep},
}

func makeProduct(id string, ing catalog.Ingredient, price, mg, evidence, safety float64) catalog.Product {
	return catalog.Product{
		ID:                   id,
		Name:                 id,
		Category:             "vitamin",
		PriceJPY:             price,
		ServingsPerDay:       1,
		ServingsPerContainer: 30,
		Ingredients:          []catalog.ProductIngredient{{Ingredient: ing, AmountMgPerServing: mg}},
		Scores:               &catalog.CuratedScores{Evidence: evidence, Safety: safety},
	}
}

// tenProducts builds one cohort where p0 is best on every dimension.
func tenProducts() []catalog.Product {
	products := make([]catalog.Product, 0, 10)
	for i := 0; i < 10; i++ {
		evidence, safety := 60.0, 60.0
		if i == 0 {
			evidence, safety = 95, 95
		}
		products = append(products, makeProduct(
			fmt.Sprintf("p%d", i), vitaminC,
			500+100*float64(i), 1000-50*float64(i), evidence, safety,
		))
	}
	return products
}

func TestAbsoluteRank(t *testing.T) {
	cases := map[float64]catalog.TierRank{
		92: catalog.RankS,
		90: catalog.RankS,
		85: catalog.RankA,
		72: catalog.RankB,
		65: catalog.RankC,
		40: catalog.RankD,
	}
	for score, want := range cases {
		assert.Equal(t, want, AbsoluteRank(score), "score %.0f", score)
	}
}

func TestRelativeRank(t *testing.T) {
	dist := []float64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}
	assert.Equal(t, catalog.RankS, RelativeRank(100, dist, true))
	assert.Equal(t, catalog.RankD, RelativeRank(1000, dist, true))
	assert.Equal(t, catalog.RankS, RelativeRank(1000, dist, false))
	assert.InDelta(t, 5.0/9, Percentile(500, dist, true), 1e-9)
	assert.InDelta(t, 1.0, Percentile(100, dist, true), 1e-9)
	assert.InDelta(t, 0.0, Percentile(1000, dist, true), 1e-9)

	ties := []float64{100, 100, 100, 100}
	assert.InDelta(t, 0.5, Percentile(100, ties, true), 1e-9)
	assert.Equal(t, catalog.RankB, RelativeRank(100, ties, true))

	assert.InDelta(t, 1.0, Percentile(100, []float64{100}, true), 1e-9)
	assert.InDelta(t, 1.0, Percentile(100, []float64{100, 200}, true), 1e-9)
	assert.InDelta(t, 0.0, Percentile(200, []float64{100, 200}, true), 1e-9)
}

func TestSmallCohortBestReachesS(t *testing.T) {
	engine := NewEngine(nil)
	best := makeProduct("best", vitaminC, 300, 2000, 95, 95)
	alone := engine.RankCatalog([]catalog.Product{best}).Ratings[0]

	for _, size := range []int{2, 4} {
		products := []catalog.Product{best}
		for i := 1; i < size; i++ {
			products = append(products, makeProduct(fmt.Sprintf("rival%d", i), vitaminC, 300+200*float64(i), 2000-300*float64(i), 70, 70))
		}
		batch := engine.RankCatalog(products)
		require.Equal(t, 1, batch.Cohorts)
		top := batch.Ratings[0]
		require.Equal(t, "best", top.Product.ID, "cohort of %d", size)
		assert.Equal(t, catalog.RankS, top.Ratings.PriceRank, "cohort of %d", size)
		assert.Equal(t, catalog.RankS, top.Ratings.CostEffectivenessRank, "cohort of %d", size)
		assert.Equal(t, catalog.RankS, top.Ratings.ContentRank, "cohort of %d", size)
		assert.Equal(t, catalog.RankSPlus, top.Ratings.OverallRank, "cohort of %d", size)
		assert.GreaterOrEqual(t, top.Ratings.OverallRank.Ordinal(), alone.Ratings.OverallRank.Ordinal(),
			"adding a worse rival must not lower the best product")

		for _, r := range batch.Ratings {
			if r.Product.ID == fmt.Sprintf("rival%d", size-1) {
				assert.Equal(t, catalog.RankD, r.Ratings.PriceRank, "priciest of a cohort of %d", size)
			}
		}
	}
}

func TestOverallRankSPlusGate(t *testing.T) {
	all := catalog.TierRatings{
		PriceRank: catalog.RankS, CostEffectivenessRank: catalog.RankS, ContentRank: catalog.RankS,
		EvidenceRank: catalog.RankS, SafetyRank: catalog.RankS,
	}
	assert.Equal(t, catalog.RankSPlus, OverallRank(all))

	almost := all
	almost.SafetyRank = catalog.RankA
	assert.Equal(t, catalog.RankS, OverallRank(almost))

	low := catalog.TierRatings{
		PriceRank: catalog.RankD, CostEffectivenessRank: catalog.RankD, ContentRank: catalog.RankC,
		EvidenceRank: catalog.RankD, SafetyRank: catalog.RankD,
	}
	assert.Equal(t, catalog.RankD, OverallRank(low))
}

func TestEvidenceRankMonotonic(t *testing.T) {
	engine := NewEngine(nil)
	prev := -1
	for _, evidence := range []float64{10, 40, 59, 60, 70, 80, 89, 90, 100} {
		r := engine.Rate(makeProduct("p", vitaminC, 1000, 500, evidence, 80), nil)
		ord := r.Ratings.EvidenceRank.Ordinal()
		require.GreaterOrEqual(t, ord, prev, "evidence %.0f", evidence)
		prev = ord
	}
}

func TestRateEmptyCohortFallsBackToAbsolute(t *testing.T) {
	engine := NewEngine(nil)
	p := makeProduct("solo", vitaminC, 1500, 500, 85, 85)
	r := engine.Rate(p, NewCohortStats([]catalog.Product{p}))

	assert.Equal(t, AbsoluteRank(r.Scores.CostScore), r.Ratings.PriceRank)
	assert.Equal(t, AbsoluteRank(r.Scores.CostScore), r.Ratings.CostEffectivenessRank)
	assert.Equal(t, AbsoluteRank(r.Scores.OverallScore), r.Ratings.ContentRank)
	require.NotNil(t, r.Product.TierRatings)
	assert.Equal(t, r.Ratings, *r.Product.TierRatings)
	assert.Nil(t, p.TierRatings, "input product must not be mutated")
}

func TestRankCatalog(t *testing.T) {
	products := tenProducts()
	products = append(products, makeProduct("m0", magnesium, 900, 300, 70, 90))

	batch := NewEngine(nil).RankCatalog(products)
	require.Len(t, batch.Ratings, len(products))
	assert.Equal(t, len(products), batch.Evaluated)
	assert.Equal(t, 2, batch.Cohorts)

	byID := map[string]Rating{}
	for _, r := range batch.Ratings {
		byID[r.Product.ID] = r
	}
	top := byID["p0"]
	assert.Equal(t, catalog.RankSPlus, top.Ratings.OverallRank)
	assert.True(t, HasBadge(top.Badges, "five-crowns"))
	assert.True(t, HasBadge(top.Badges, "best-value"))
	assert.True(t, HasBadge(top.Badges, "lowest-price"))
	assert.Equal(t, "best-value", top.Badges[0].ID)
	assert.Equal(t, "p0", batch.Ratings[0].Product.ID)

	worst := byID["p9"]
	assert.Equal(t, catalog.RankD, worst.Ratings.PriceRank)
	assert.False(t, HasBadge(worst.Badges, "best-value"))

	// magnesium has no peers, so its relative dimensions use absolute buckets
	solo := byID["m0"]
	assert.Equal(t, AbsoluteRank(solo.Scores.CostScore), solo.Ratings.PriceRank)
	assert.Equal(t, "vitamin|magnesium", solo.CohortKey)

	for _, r := range batch.Ratings {
		if r.Ratings.OverallRank == catalog.RankSPlus {
			assert.True(t, r.Ratings.AllS())
		}
		for _, d := range r.Ratings.Dimensions() {
			assert.NotEqual(t, catalog.RankSPlus, d)
		}
	}
}

func TestRankCatalogCostScalesWithCatalog(t *testing.T) {
	engine := NewEngine(nil)
	small := engine.RankCatalog(tenProducts()[:3])
	large := engine.RankCatalog(tenProducts())
	assert.Equal(t, 3, small.Evaluated)
	assert.Equal(t, 10, large.Evaluated)
}

func TestValidate(t *testing.T) {
	good := makeProduct("good", vitaminC, 100, 100, 80, 80)
	good.TierRatings = &catalog.TierRatings{
		PriceRank: catalog.RankS, CostEffectivenessRank: catalog.RankS, ContentRank: catalog.RankS,
		EvidenceRank: catalog.RankS, SafetyRank: catalog.RankS, OverallRank: catalog.RankSPlus,
	}
	assert.Empty(t, Validate(good))
	assert.Empty(t, Validate(makeProduct("none", vitaminC, 100, 100, 80, 80)))

	bad := good.Clone()
	bad.ID = "bad"
	bad.TierRatings.SafetyRank = catalog.RankSPlus
	bad.TierRatings.ContentRank = "Z"
	violations := Validate(bad)
	require.Len(t, violations, 3)
	fields := []string{violations[0].Field, violations[1].Field, violations[2].Field}
	assert.ElementsMatch(t, []string{"content_rank", "safety_rank", "overall_rank"}, fields)

	all := ValidateCatalog([]catalog.Product{good, bad})
	assert.Len(t, all, 3)
}

func TestCacheGetOrCompute(t *testing.T) {
	cache := NewCache(CacheConfig{MaxSize: 2, TTL: time.Minute})
	engine := NewEngine(nil)
	products := tenProducts()

	computed := 0
	compute := func() (Batch, error) {
		computed++
		return engine.RankCatalog(products), nil
	}

	snapshot := catalog.Snapshot{Products: products}
	first, hit, err := cache.GetOrCompute(snapshot, nil, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := cache.GetOrCompute(snapshot, nil, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, computed)
	assert.Equal(t, first.Evaluated, second.Evaluated)

	changed := tenProducts()
	changed[3].PriceJPY = 10
	_, hit, err = cache.GetOrCompute(catalog.Snapshot{Products: changed}, nil, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, computed)

	start := time.Now()
	cache.now = func() time.Time { return start.Add(2 * time.Minute) }
	_, hit, err = cache.GetOrCompute(snapshot, nil, compute)
	require.NoError(t, err)
	assert.False(t, hit, "expired entries are recomputed")
	assert.Equal(t, 3, computed)

	hits, misses := cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 3, misses)
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	cache := NewCache(CacheConfig{})
	boom := errors.New("boom")
	_, _, err := cache.GetOrCompute(catalog.Snapshot{}, nil, func() (Batch, error) { return Batch{}, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheKeyCoversIngredientsAndWeights(t *testing.T) {
	cache := NewCache(CacheConfig{MaxSize: 4, TTL: time.Minute})
	unlinked := catalog.Product{
		ID:                   "unlinked",
		Name:                 "Vitamin C 1000",
		Category:             "vitamin",
		PriceJPY:             1200,
		ServingsPerDay:       1,
		ServingsPerContainer: 30,
	}
	compute := func(snapshot catalog.Snapshot, weights scoring.WeightTable) func() (Batch, error) {
		return func() (Batch, error) {
			scorer := scoring.NewEngine(nil, scoring.NewAutoScorer(snapshot.Ingredients), weights)
			return NewEngine(scorer).RankCatalog(snapshot.Products), nil
		}
	}

	bare := catalog.Snapshot{Products: []catalog.Product{unlinked}}
	batch, hit, err := cache.GetOrCompute(bare, nil, compute(bare, nil))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.InDelta(t, 50, batch.Ratings[0].Scores.EvidenceScore, 1e-9)

	known := vitaminC
	known.EvidenceLevel = catalog.EvidenceS
	withIngredient := catalog.Snapshot{Products: []catalog.Product{unlinked}, Ingredients: []catalog.Ingredient{known}}
	batch, hit, err = cache.GetOrCompute(withIngredient, nil, compute(withIngredient, nil))
	require.NoError(t, err)
	assert.False(t, hit, "a new catalog ingredient changes name inference")
	assert.InDelta(t, 95, batch.Ratings[0].Scores.EvidenceScore, 1e-9)

	weights := scoring.DefaultWeights()
	_, hit, err = cache.GetOrCompute(withIngredient, weights, compute(withIngredient, weights))
	require.NoError(t, err)
	assert.False(t, hit, "a different weight table is a different batch")

	_, hit, err = cache.GetOrCompute(withIngredient, weights, compute(withIngredient, weights))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.NotEqual(t, Fingerprint(bare, nil), Fingerprint(withIngredient, nil))
}
