package api

import (
	"strings"
	"time"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/recommend"
	"suptia-engine/internal/scoring"
	"suptia-engine/internal/store"
	"suptia-engine/internal/tier"
)

// RecommendRequest carries the diagnosis answers plus optional qualifiers.
type RecommendRequest struct {
	Goals            []catalog.HealthGoal          `json:"goals"`
	HealthConditions []catalog.ContraindicationTag `json:"health_conditions"`
	BudgetPerDay     float64                       `json:"budget_per_day"`
	Priority         string                        `json:"priority"`
	SecondaryGoals   []catalog.HealthGoal          `json:"secondary_goals"`
	AgeGroup         string                        `json:"age_group"`
	Gender           string                        `json:"gender"`
	ActivityLevel    string                        `json:"activity_level"`
	Concerns         []string                      `json:"concerns"`
	Category         string                        `json:"category"`
	Offset           int                           `json:"offset"`
	Limit            int                           `json:"limit"`
}

// Profile returns the basic profile part of the request.
func (r RecommendRequest) Profile() catalog.Profile {
	return catalog.Profile{
		Goals:            r.Goals,
		HealthConditions: r.HealthConditions,
		BudgetPerDay:     r.BudgetPerDay,
		Priority:         catalog.ParsePriority(r.Priority),
	}
}

// DetailedProfile returns the profile with qualifiers attached.
func (r RecommendRequest) DetailedProfile() catalog.DetailedProfile {
	return catalog.DetailedProfile{
		Profile:        r.Profile(),
		SecondaryGoals: r.SecondaryGoals,
		AgeGroup:       strings.TrimSpace(r.AgeGroup),
		Gender:         strings.TrimSpace(r.Gender),
		ActivityLevel:  strings.TrimSpace(r.ActivityLevel),
		Concerns:       r.Concerns,
	}
}

func (r RecommendRequest) detailed() bool {
	return len(r.SecondaryGoals) > 0 || len(r.Concerns) > 0 ||
		strings.TrimSpace(r.AgeGroup) != "" ||
		strings.TrimSpace(r.Gender) != "" ||
		strings.TrimSpace(r.ActivityLevel) != ""
}

// RecommendationDTO is one ranked product in the response.
type RecommendationDTO struct {
	Rank           int                    `json:"rank"`
	ProductID      string                 `json:"product_id"`
	Name           string                 `json:"name"`
	Brand          string                 `json:"brand"`
	Category       string                 `json:"category"`
	Recommendation scoring.Level          `json:"recommendation"`
	Scores         scoring.ScoreBreakdown `json:"scores"`
	Reasons        []string               `json:"reasons"`
	Warnings       []string               `json:"warnings"`
}

// RecommendResponse is a page of recommendations.
type RecommendResponse struct {
	Items  []RecommendationDTO `json:"items"`
	Total  int                 `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

// RecommendationFromResult converts an orchestrator result into a DTO.
func RecommendationFromResult(r recommend.Result) RecommendationDTO {
	return RecommendationDTO{
		Rank:           r.Rank,
		ProductID:      r.Product.ID,
		Name:           r.Product.Name,
		Brand:          r.Product.Brand,
		Category:       r.Product.Category,
		Recommendation: r.Recommendation,
		Scores:         r.Scores,
		Reasons:        r.Reasons,
		Warnings:       r.Warnings,
	}
}

// RecommendResponseFromPage converts a page of results.
func RecommendResponseFromPage(p recommend.Page) RecommendResponse {
	items := make([]RecommendationDTO, 0, len(p.Results))
	for _, r := range p.Results {
		items = append(items, RecommendationFromResult(r))
	}
	return RecommendResponse{Items: items, Total: p.Total, Offset: p.Offset, Limit: p.Limit}
}

// ProductResponse is one catalog product with its neutral-profile scores.
// Product.TierRatings holds the last persisted tier snapshot, if any.
type ProductResponse struct {
	Product        catalog.Product        `json:"product"`
	Recommendation scoring.Level          `json:"recommendation"`
	Scores         scoring.ScoreBreakdown `json:"scores"`
	Reasons        []string               `json:"reasons"`
	Warnings       []string               `json:"warnings"`
}

// ProductFromEvaluation pairs a product with its evaluation.
func ProductFromEvaluation(p catalog.Product, eval scoring.Evaluation) ProductResponse {
	return ProductResponse{
		Product:        p,
		Recommendation: eval.Recommendation,
		Scores:         eval.Scores,
		Reasons:        eval.Reasons,
		Warnings:       eval.Warnings,
	}
}

// TierDTO is the API representation of a product's tier rating.
type TierDTO struct {
	ProductID     string              `json:"product_id"`
	Name          string              `json:"name"`
	Brand         string              `json:"brand"`
	Category      string              `json:"category"`
	CohortKey     string              `json:"cohort_key"`
	Ratings       catalog.TierRatings `json:"tier_ratings"`
	Badges        []tier.Badge        `json:"badges"`
	OverallScore  float64             `json:"overall_score"`
	CostScore     float64             `json:"cost_score"`
	EvidenceScore float64             `json:"evidence_score"`
	SafetyScore   float64             `json:"safety_score"`
	ScoreSource   scoring.ScoreSource `json:"score_source"`
}

// TierFromRating converts a computed rating into a DTO.
func TierFromRating(r tier.Rating) TierDTO {
	badges := r.Badges
	if badges == nil {
		badges = []tier.Badge{}
	}
	return TierDTO{
		ProductID:     r.Product.ID,
		Name:          r.Product.Name,
		Brand:         r.Product.Brand,
		Category:      r.Product.Category,
		CohortKey:     r.CohortKey,
		Ratings:       r.Ratings,
		Badges:        badges,
		OverallScore:  r.Scores.OverallScore,
		CostScore:     r.Scores.CostScore,
		EvidenceScore: r.Scores.EvidenceScore,
		SafetyScore:   r.Scores.SafetyScore,
		ScoreSource:   r.Scores.ScoreSource,
	}
}

// TiersResponse is the paginated catalog-wide tier listing.
type TiersResponse struct {
	Items     []TierDTO `json:"items"`
	Total     int       `json:"total"`
	Page      int       `json:"page"`
	PageSize  int       `json:"pageSize"`
	Evaluated int       `json:"evaluated"`
	Cohorts   int       `json:"cohorts"`
	Cached    bool      `json:"cached"`
}

// TierSnapshotDTO is the API representation of a persisted tier rating.
type TierSnapshotDTO struct {
	ProductID    string              `json:"product_id"`
	CohortKey    string              `json:"cohort_key"`
	Category     string              `json:"category"`
	Ratings      catalog.TierRatings `json:"tier_ratings"`
	OverallScore float64             `json:"overall_score"`
	Badges       []string            `json:"badges"`
	JobID        string              `json:"job_id"`
	ComputedAt   time.Time           `json:"computed_at"`
}

// SnapshotFromModel converts a store.TierSnapshot into a DTO.
func SnapshotFromModel(t store.TierSnapshot) TierSnapshotDTO {
	badges := t.Badges()
	if badges == nil {
		badges = []string{}
	}
	return TierSnapshotDTO{
		ProductID:    t.ProductID,
		CohortKey:    t.CohortKey,
		Category:     t.Category,
		Ratings:      t.Ratings(),
		OverallScore: t.OverallScore,
		Badges:       badges,
		JobID:        t.JobID,
		ComputedAt:   t.ComputedAt,
	}
}

// SnapshotFromRating converts a computed rating into a row for persistence.
func SnapshotFromRating(r tier.Rating, jobID string, computedAt time.Time) store.TierSnapshot {
	row := store.TierSnapshot{
		ProductID:    r.Product.ID,
		CohortKey:    r.CohortKey,
		Category:     strings.ToLower(strings.TrimSpace(r.Product.Category)),
		OverallScore: r.Scores.OverallScore,
		JobID:        jobID,
		ComputedAt:   computedAt,
	}
	row.SetRatings(r.Ratings)
	ids := make([]string, 0, len(r.Badges))
	for _, b := range r.Badges {
		ids = append(ids, b.ID)
	}
	row.SetBadges(ids)
	return row
}

// ConfigResponse describes the running engine configuration.
type ConfigResponse struct {
	Products       int64               `json:"products"`
	Ingredients    int64               `json:"ingredients"`
	WeightsSource  string              `json:"weights_source"`
	Weights        scoring.WeightTable `json:"weights"`
	TierCacheSize  int                 `json:"tier_cache_size"`
	TierCacheTTL   string              `json:"tier_cache_ttl"`
	TierCachedSets int                 `json:"tier_cached_sets"`
}

// StartRebuildResponse describes the asynchronous rebuild kickoff payload.
type StartRebuildResponse struct {
	JobID     string    `json:"job_id"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
}

// RebuildStatusResponse describes the state of the latest rebuild job.
type RebuildStatusResponse struct {
	Running   bool   `json:"running"`
	JobID     string `json:"job_id"`
	State     string `json:"state"`
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}
