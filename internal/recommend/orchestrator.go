package recommend

import (
	"context"
	"runtime"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/scoring"
	"suptia-engine/internal/util"
)

// Result is one ranked product in a recommendation list.
type Result struct {
	Product        catalog.Product        `json:"product"`
	Rank           int                    `json:"rank"`
	Scores         scoring.ScoreBreakdown `json:"scores"`
	Recommendation scoring.Level          `json:"recommendation"`
	Reasons        []string               `json:"reasons"`
	Warnings       []string               `json:"warnings"`
}

// Options paginates the ranked list. Ranks are assigned before paging.
type Options struct {
	Offset int
	Limit  int
}

// Page is a window of the ranked list.
type Page struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Offset  int      `json:"offset"`
	Limit   int      `json:"limit"`
}

// Observer is notified after every scored request.
type Observer interface {
	ObserveRecommend(seconds float64, scored int)
}

// Orchestrator scores a catalog snapshot for one profile and ranks it.
type Orchestrator struct {
	engine   *scoring.Engine
	workers  int
	observer Observer
}

// NewOrchestrator builds an orchestrator. workers <= 0 picks a value from
// the CPU count.
func NewOrchestrator(engine *scoring.Engine, workers int) *Orchestrator {
	if engine == nil {
		engine = scoring.NewEngine(nil, nil, nil)
	}
	if workers <= 0 {
		workers = determineWorkerCount()
	}
	return &Orchestrator{engine: engine, workers: workers}
}

// WithObserver attaches a metrics observer.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	o.observer = obs
	return o
}

func determineWorkerCount() int {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 12 {
		workers = 12
	}
	return workers
}

// Recommend ranks products for a basic profile. A profile without goals
// yields an empty list.
func (o *Orchestrator) Recommend(ctx context.Context, products []catalog.Product, profile catalog.Profile, opts Options) (Page, error) {
	return o.run(ctx, products, catalog.DetailedProfile{Profile: profile}, opts, false)
}

// RecommendDetailed ranks products for a detailed profile.
func (o *Orchestrator) RecommendDetailed(ctx context.Context, products []catalog.Product, profile catalog.DetailedProfile, opts Options) (Page, error) {
	return o.run(ctx, products, profile, opts, true)
}

func (o *Orchestrator) run(ctx context.Context, products []catalog.Product, profile catalog.DetailedProfile, opts Options, detailed bool) (Page, error) {
	timer := util.StartTimer()
	page := Page{Results: []Result{}, Offset: max(opts.Offset, 0), Limit: max(opts.Limit, 0)}
	if len(profile.Goals) == 0 {
		return page, ctx.Err()
	}

	results := make([]Result, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range products {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var eval scoring.Evaluation
			if detailed {
				eval = o.engine.EvaluateDetailed(products[i], profile)
			} else {
				eval = o.engine.Evaluate(products[i], profile.Profile)
			}
			results[i] = Result{
				Product:        products[i].Clone(),
				Scores:         eval.Scores,
				Recommendation: eval.Recommendation,
				Reasons:        eval.Reasons,
				Warnings:       eval.Warnings,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Page{}, err
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	Sort(results)
	for i := range results {
		results[i].Rank = i + 1
	}
	page.Total = len(results)
	page.Results = paginate(results, page.Offset, page.Limit)

	if o.observer != nil {
		o.observer.ObserveRecommend(timer.Seconds(), len(products))
	}
	logrus.WithFields(logrus.Fields{
		"products":   len(products),
		"goals":      len(profile.Goals),
		"priority":   catalog.ParsePriority(string(profile.Priority)),
		"detailed":   detailed,
		"returned":   len(page.Results),
		"elapsed_ms": timer.ElapsedMs(),
	}).Debug("recommendation computed")
	return page, nil
}

// Sort orders results by overall score, then evidence score (both
// descending), then product id and name.
func Sort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Scores.OverallScore != b.Scores.OverallScore {
			return a.Scores.OverallScore > b.Scores.OverallScore
		}
		if a.Scores.EvidenceScore != b.Scores.EvidenceScore {
			return a.Scores.EvidenceScore > b.Scores.EvidenceScore
		}
		if a.Product.ID != b.Product.ID {
			return a.Product.ID < b.Product.ID
		}
		return a.Product.Name < b.Product.Name
	})
}

// paginate applies offset and limit; limit 0 means no limit.
func paginate(results []Result, offset, limit int) []Result {
	if offset >= len(results) {
		return []Result{}
	}
	end := len(results)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return results[offset:end]
}
