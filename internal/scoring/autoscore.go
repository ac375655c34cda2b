package scoring

import (
	"sort"
	"strings"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/match"
)

// ScoreSource tells callers whether evidence/safety scores are trustworthy
// curated values or inferred from the product name.
type ScoreSource string

const (
	SourceCurated  ScoreSource = "curated"
	SourceInferred ScoreSource = "inferred"
)

const (
	neutralScore       = 50.0
	nameConfidence     = 1.0
	aliasConfidence    = 0.6
	minMatchRunes      = 2
	sideEffectPenalty  = 8.0
	contraPenalty      = 4.0
	ingredientSafetyLo = 20.0
)

// IngredientSafetyDetail describes one ingredient found by name matching.
type IngredientSafetyDetail struct {
	Slug                  string                `json:"slug"`
	Name                  string                `json:"name"`
	MatchedTerm           string                `json:"matched_term"`
	MatchedBy             string                `json:"matched_by"`
	Confidence            float64               `json:"confidence"`
	EvidenceLevel         catalog.EvidenceLevel `json:"evidence_level"`
	EvidenceScore         float64               `json:"evidence_score"`
	SafetyScore           float64               `json:"safety_score"`
	SideEffectCount       int                   `json:"side_effect_count"`
	ContraindicationCount int                   `json:"contraindication_count"`
}

// Inference is the AutoScorer output for one product.
type Inference struct {
	EvidenceScore    float64                  `json:"evidence_score"`
	SafetyScore      float64                  `json:"safety_score"`
	FoundIngredients []string                 `json:"found_ingredients"`
	Details          []IngredientSafetyDetail `json:"details"`
}

type indexedTerm struct {
	term      string
	matchedBy string
}

type indexedIngredient struct {
	ingredient catalog.Ingredient
	terms      []indexedTerm
}

// AutoScorer infers evidence and safety scores for products that lack
// curated scores by finding catalog ingredient names in the product name.
type AutoScorer struct {
	index []indexedIngredient
}

// NewAutoScorer indexes the catalog ingredients. Ingredients sharing a key
// keep the first entry.
func NewAutoScorer(ingredients []catalog.Ingredient) *AutoScorer {
	seen := make(map[string]struct{}, len(ingredients))
	index := make([]indexedIngredient, 0, len(ingredients))
	for _, ing := range ingredients {
		key := ing.Key()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		var terms []indexedTerm
		for _, t := range match.Terms(ing.Name, ing.NameEn) {
			terms = append(terms, indexedTerm{term: t, matchedBy: "name"})
		}
		for _, t := range match.Terms(ing.Aliases...) {
			if containsTerm(terms, t) {
				continue
			}
			terms = append(terms, indexedTerm{term: t, matchedBy: "alias"})
		}
		if len(terms) == 0 {
			continue
		}
		index = append(index, indexedIngredient{ingredient: ing, terms: terms})
	}
	return &AutoScorer{index: index}
}

// Infer matches the product name against the catalog. Zero matches yields
// neutral scores rather than an error.
func (a *AutoScorer) Infer(productName string) Inference {
	result := Inference{
		EvidenceScore:    neutralScore,
		SafetyScore:      neutralScore,
		FoundIngredients: []string{},
		Details:          []IngredientSafetyDetail{},
	}
	if a == nil || strings.TrimSpace(productName) == "" {
		return result
	}

	profile := match.NormalizeName(productName)
	var hits []IngredientSafetyDetail
	for _, entry := range a.index {
		best, ok := bestTerm(profile, entry.terms)
		if !ok {
			continue
		}
		hits = append(hits, detailFor(entry.ingredient, best))
	}
	hits = dropShadowed(profile, hits)
	if len(hits) == 0 {
		return result
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Confidence != hits[j].Confidence {
			return hits[i].Confidence > hits[j].Confidence
		}
		return hits[i].Slug < hits[j].Slug
	})

	var weight, evidence, safety float64
	for _, h := range hits {
		weight += h.Confidence
		evidence += h.EvidenceScore * h.Confidence
		safety += h.SafetyScore * h.Confidence
		result.FoundIngredients = append(result.FoundIngredients, h.Name)
	}
	result.EvidenceScore = round2(evidence / weight)
	result.SafetyScore = round2(safety / weight)
	result.Details = hits
	return result
}

// bestTerm prefers name matches, then the longest matching term.
func bestTerm(profile match.NameProfile, terms []indexedTerm) (indexedTerm, bool) {
	var best indexedTerm
	found := false
	for _, t := range terms {
		if !profile.Contains(t.term, minMatchRunes) {
			continue
		}
		if !found || betterTerm(t, best) {
			best = t
			found = true
		}
	}
	return best, found
}

func betterTerm(candidate, current indexedTerm) bool {
	if candidate.matchedBy != current.matchedBy {
		return candidate.matchedBy == "name"
	}
	return len([]rune(candidate.term)) > len([]rune(current.term))
}

// dropShadowed removes hits whose matched term only appears inside a longer
// matched term, e.g. "vitamin b" inside "vitamin b12". A shorter term that
// also stands on its own elsewhere in the name is kept.
func dropShadowed(profile match.NameProfile, hits []IngredientSafetyDetail) []IngredientSafetyDetail {
	out := make([]IngredientSafetyDetail, 0, len(hits))
	for i, h := range hits {
		shadowed := false
		for j, other := range hits {
			if i == j || len(other.MatchedTerm) <= len(h.MatchedTerm) {
				continue
			}
			if strings.Contains(other.MatchedTerm, h.MatchedTerm) && coveredBy(profile, h.MatchedTerm, other.MatchedTerm) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			out = append(out, h)
		}
	}
	return out
}

// coveredBy reports whether every occurrence of short in the name lies
// inside an occurrence of long. The spaced form is used when it holds both
// terms, otherwise the compact one.
func coveredBy(profile match.NameProfile, short, long string) bool {
	haystack := profile.Normalized
	if !strings.Contains(haystack, short) || !strings.Contains(haystack, long) {
		haystack = profile.Compact
		short = strings.ReplaceAll(short, " ", "")
		long = strings.ReplaceAll(long, " ", "")
	}
	spans := occurrences(haystack, long)
	for _, start := range occurrences(haystack, short) {
		inside := false
		for _, ls := range spans {
			if start >= ls && start+len(short) <= ls+len(long) {
				inside = true
				break
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

// occurrences returns the byte offsets of every, possibly overlapping,
// occurrence of sub in s.
func occurrences(s, sub string) []int {
	var out []int
	if sub == "" {
		return out
	}
	for i := 0; i <= len(s); {
		j := strings.Index(s[i:], sub)
		if j < 0 {
			break
		}
		out = append(out, i+j)
		i += j + 1
	}
	return out
}

func detailFor(ing catalog.Ingredient, t indexedTerm) IngredientSafetyDetail {
	confidence := nameConfidence
	if t.matchedBy == "alias" {
		confidence = aliasConfidence
	}
	level := catalog.ParseEvidenceLevel(string(ing.EvidenceLevel))
	return IngredientSafetyDetail{
		Slug:                  ing.Slug,
		Name:                  ing.Name,
		MatchedTerm:           t.term,
		MatchedBy:             t.matchedBy,
		Confidence:            confidence,
		EvidenceLevel:         level,
		EvidenceScore:         level.Score(),
		SafetyScore:           IngredientSafetyScore(ing),
		SideEffectCount:       len(ing.SideEffects),
		ContraindicationCount: len(ing.Contraindications),
	}
}

// IngredientSafetyScore derives a 0-100 safety score from the number of
// known side effects and contraindications.
func IngredientSafetyScore(ing catalog.Ingredient) float64 {
	score := 100 - sideEffectPenalty*float64(len(ing.SideEffects)) - contraPenalty*float64(len(ing.Contraindications))
	if score < ingredientSafetyLo {
		score = ingredientSafetyLo
	}
	return score
}

func containsTerm(terms []indexedTerm, t string) bool {
	for _, existing := range terms {
		if existing.term == t {
			return true
		}
	}
	return false
}
