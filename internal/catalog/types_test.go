package catalog

import "testing"

func TestParseEvidenceLevel(t *testing.T) {
	tests := []struct {
		raw      string
		expected EvidenceLevel
	}{
		{"S", EvidenceS},
		{"a", EvidenceA},
		{"High", EvidenceA},
		{"moderate", EvidenceB},
		{"low", EvidenceC},
		{"insufficient", EvidenceD},
		{"", EvidenceD},
		{"???", EvidenceD},
	}
	for _, tc := range tests {
		if got := ParseEvidenceLevel(tc.raw); got != tc.expected {
			t.Fatalf("ParseEvidenceLevel(%q) = %s, expected %s", tc.raw, got, tc.expected)
		}
	}
}

func TestPrimaryIngredientPrefersHighestDose(t *testing.T) {
	p := Product{Ingredients: []ProductIngredient{
		{Ingredient: Ingredient{Slug: "zinc"}, AmountMgPerServing: 15},
		{Ingredient: Ingredient{Slug: "vitamin-c"}, AmountMgPerServing: 1000},
		{Ingredient: Ingredient{Slug: "vitamin-d"}, AmountMgPerServing: 1000},
	}}
	primary, ok := p.PrimaryIngredient()
	if !ok {
		t.Fatalf("expected primary ingredient")
	}
	if primary.Slug != "vitamin-c" {
		t.Fatalf("expected vitamin-c got %s", primary.Slug)
	}
	if _, ok := (Product{}).PrimaryIngredient(); ok {
		t.Fatalf("expected no primary ingredient for empty product")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	original := Product{
		ID:       "p1",
		Scores:   &CuratedScores{Evidence: 80, Safety: 90},
		Warnings: []string{"keep away from children"},
		Ingredients: []ProductIngredient{
			{Ingredient: Ingredient{Slug: "fish-oil", RelatedGoals: []HealthGoal{GoalHeart}}, AmountMgPerServing: 1000},
		},
	}
	clone := original.Clone()
	clone.Scores.Evidence = 10
	clone.Warnings[0] = "changed"
	clone.Ingredients[0].Ingredient.RelatedGoals[0] = GoalSleep

	if original.Scores.Evidence != 80 {
		t.Fatalf("clone mutated curated scores")
	}
	if original.Warnings[0] != "keep away from children" {
		t.Fatalf("clone mutated warnings")
	}
	if original.Ingredients[0].Ingredient.RelatedGoals[0] != GoalHeart {
		t.Fatalf("clone mutated ingredient goals")
	}
}

func TestTierRatingsAllS(t *testing.T) {
	all := TierRatings{PriceRank: RankS, CostEffectivenessRank: RankS, ContentRank: RankS, EvidenceRank: RankS, SafetyRank: RankS}
	if !all.AllS() {
		t.Fatalf("expected AllS")
	}
	all.ContentRank = RankA
	if all.AllS() {
		t.Fatalf("expected AllS to be false")
	}
	if RankSPlus.Ordinal() <= RankS.Ordinal() || TierRank("Z").Valid() {
		t.Fatalf("unexpected ordinal/validity")
	}
}
