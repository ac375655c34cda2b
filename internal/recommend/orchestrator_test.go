package recommend

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/safety"
	"suptia-engine/internal/scoring"
)

var (
	vitaminD = catalog.Ingredient{
		Slug:          "vitamin-d",
		Name:          "ビタミンD",
		NameEn:        "Vitamin D",
		EvidenceLevel: catalog.EvidenceA,
		RelatedGoals:  []catalog.HealthGoal{catalog.GoalBone, catalog.GoalImmuneSupport},
	}
	stJohnsWort = catalog.Ingredient{
		Slug:              "st-johns-wort",
		Name:              "セントジョーンズワート",
		NameEn:            "St. John's Wort",
		EvidenceLevel:     catalog.EvidenceB,
		RelatedGoals:      []catalog.HealthGoal{catalog.GoalStress},
		Contraindications: []catalog.ContraindicationTag{catalog.ConditionPregnancy, catalog.ConditionAnticoagulant},
	}
)

func product(id string, ing catalog.Ingredient, price, evidence float64) catalog.Product {
	return catalog.Product{
		ID:                   id,
		Name:                 "Product " + id,
		Category:             "vitamin",
		PriceJPY:             price,
		ServingsPerDay:       1,
		ServingsPerContainer: 30,
		Ingredients:          []catalog.ProductIngredient{{Ingredient: ing, AmountMgPerServing: 25}},
		Scores:               &catalog.CuratedScores{Evidence: evidence, Safety: 90},
	}
}

func fixture() []catalog.Product {
	var out []catalog.Product
	for i := 0; i < 12; i++ {
		out = append(out, product(fmt.Sprintf("d%02d", i), vitaminD, 600+float64(i%4)*900, 60+float64(i%3)*15))
	}
	out = append(out, product("sjw", stJohnsWort, 900, 85))
	return out
}

func newOrchestrator(workers int) *Orchestrator {
	ings := []catalog.Ingredient{vitaminD, stJohnsWort}
	engine := scoring.NewEngine(safety.NewChecker(), scoring.NewAutoScorer(ings), scoring.DefaultWeights())
	return NewOrchestrator(engine, workers)
}

func TestRecommendDeterministic(t *testing.T) {
	profile := catalog.Profile{
		Goals:    []catalog.HealthGoal{catalog.GoalBone, catalog.GoalStress},
		Priority: catalog.PriorityBalanced,
	}
	first, err := newOrchestrator(1).Recommend(context.Background(), fixture(), profile, Options{})
	require.NoError(t, err)
	for _, workers := range []int{2, 4, 8} {
		again, err := newOrchestrator(workers).Recommend(context.Background(), fixture(), profile, Options{})
		require.NoError(t, err)
		require.Equal(t, first, again, "workers=%d", workers)
	}

	require.Len(t, first.Results, 13)
	assert.Equal(t, 13, first.Total)
	for i, r := range first.Results {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			prev := first.Results[i-1]
			assert.GreaterOrEqual(t, prev.Scores.OverallScore, r.Scores.OverallScore)
			if prev.Scores.OverallScore == r.Scores.OverallScore && prev.Scores.EvidenceScore == r.Scores.EvidenceScore {
				assert.Less(t, prev.Product.ID, r.Product.ID)
			}
		}
	}
}

func TestRecommendEmptyGoals(t *testing.T) {
	page, err := newOrchestrator(2).Recommend(context.Background(), fixture(), catalog.Profile{}, Options{})
	require.NoError(t, err)
	assert.NotNil(t, page.Results)
	assert.Empty(t, page.Results)
	assert.Zero(t, page.Total)
}

func TestRecommendPaginationKeepsRanks(t *testing.T) {
	profile := catalog.Profile{Goals: []catalog.HealthGoal{catalog.GoalBone}}
	orch := newOrchestrator(4)
	full, err := orch.Recommend(context.Background(), fixture(), profile, Options{})
	require.NoError(t, err)

	page, err := orch.Recommend(context.Background(), fixture(), profile, Options{Offset: 5, Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Results, 3)
	assert.Equal(t, 13, page.Total)
	assert.Equal(t, 6, page.Results[0].Rank)
	assert.Equal(t, full.Results[5:8], page.Results)

	past, err := orch.Recommend(context.Background(), fixture(), profile, Options{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, past.Results)
}

func TestRecommendHighRiskRanksButNotRecommended(t *testing.T) {
	profile := catalog.Profile{
		Goals:            []catalog.HealthGoal{catalog.GoalStress},
		HealthConditions: []catalog.ContraindicationTag{catalog.ConditionPregnancy},
	}
	page, err := newOrchestrator(2).Recommend(context.Background(), fixture(), profile, Options{})
	require.NoError(t, err)
	var found bool
	for _, r := range page.Results {
		if r.Product.ID == "sjw" {
			found = true
			assert.Equal(t, scoring.LevelNotRecommended, r.Recommendation)
			assert.NotEmpty(t, r.Warnings)
		}
	}
	assert.True(t, found, "unsafe products stay in the list")
}

func TestRecommendDetailed(t *testing.T) {
	detailed := catalog.DetailedProfile{
		Profile:        catalog.Profile{Goals: []catalog.HealthGoal{catalog.GoalStress}},
		SecondaryGoals: []catalog.HealthGoal{catalog.GoalBone},
		AgeGroup:       "60s",
	}
	page, err := newOrchestrator(2).RecommendDetailed(context.Background(), fixture(), detailed, Options{Limit: 5})
	require.NoError(t, err)
	require.Len(t, page.Results, 5)
	for _, r := range page.Results {
		assert.Greater(t, r.Scores.EffectivenessScore, 0.0)
	}
}

func TestRecommendCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	profile := catalog.Profile{Goals: []catalog.HealthGoal{catalog.GoalBone}}
	_, err := newOrchestrator(2).Recommend(ctx, fixture(), profile, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecommendDoesNotMutateInput(t *testing.T) {
	products := fixture()
	profile := catalog.Profile{Goals: []catalog.HealthGoal{catalog.GoalBone}}
	page, err := newOrchestrator(2).Recommend(context.Background(), products, profile, Options{})
	require.NoError(t, err)
	page.Results[0].Product.Ingredients[0].Ingredient.Name = "changed"
	for _, p := range products {
		assert.NotEqual(t, "changed", p.Ingredients[0].Ingredient.Name)
	}
}

type countingObserver struct{ calls, scored int }

func (c *countingObserver) ObserveRecommend(_ float64, scored int) {
	c.calls++
	c.scored += scored
}

func TestRecommendObserver(t *testing.T) {
	obs := &countingObserver{}
	orch := newOrchestrator(2).WithObserver(obs)
	_, err := orch.Recommend(context.Background(), fixture(), catalog.Profile{Goals: []catalog.HealthGoal{catalog.GoalBone}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, 13, obs.scored)
}
