package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/metrics"
	"suptia-engine/internal/recommend"
	"suptia-engine/internal/safety"
	"suptia-engine/internal/scoring"
	"suptia-engine/internal/store"
	"suptia-engine/internal/tier"
	"suptia-engine/internal/util"
)

// Config defines server dependencies.
type Config struct {
	DBPath             string
	WeightsPath        string
	AllowedOrigins     []string
	SilentDB           bool
	RecommendWorkers   int
	TierCacheSize      int
	TierCacheTTL       time.Duration
	DefaultPageSize    int
	Metrics            *metrics.Metrics
	DisableMetricsPath bool
}

// Server wires HTTP handlers with the catalog store and the engines.
type Server struct {
	db             *store.Database
	weights        scoring.WeightTable
	weightsPath    string
	checker        *safety.Checker
	allowedOrigins []string
	workers        int
	tierCache      *tier.Cache
	metrics        *metrics.Metrics
	metricsPath    bool
	pageSize       int
	tierNotifier   *TierNotifier
	jobMu          sync.Mutex
	activeJob      *rebuildJob
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	weights, err := scoring.LoadWeights(cfg.WeightsPath)
	if err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	if strings.TrimSpace(cfg.WeightsPath) != "" {
		logrus.WithField("path", cfg.WeightsPath).Info("loaded scoring weights")
	}

	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}
	if n, err := db.MarkInterruptedJobs(); err != nil {
		logrus.WithError(err).Warn("mark interrupted tier jobs")
	} else if n > 0 {
		logrus.WithField("jobs", n).Warn("tier jobs interrupted by restart marked failed")
	}

	m := cfg.Metrics
	if m == nil {
		m = metrics.Default()
	}
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Server{
		db:             db,
		weights:        weights,
		weightsPath:    cfg.WeightsPath,
		checker:        safety.NewChecker(),
		allowedOrigins: cfg.AllowedOrigins,
		workers:        cfg.RecommendWorkers,
		tierCache:      tier.NewCache(tier.CacheConfig{MaxSize: cfg.TierCacheSize, TTL: cfg.TierCacheTTL}),
		metrics:        m,
		metricsPath:    !cfg.DisableMetricsPath,
		pageSize:       pageSize,
		tierNotifier:   NewTierNotifier(),
	}, nil
}

// DB exposes the catalog store, used by seeding tools and tests.
func (s *Server) DB() *store.Database {
	return s.db
}

// Close cancels any running job and closes the database.
func (s *Server) Close() error {
	s.jobMu.Lock()
	if s.activeJob != nil {
		s.activeJob.cancel()
	}
	s.jobMu.Unlock()
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	if s.metricsPath {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		api.GET("/categories", s.handleCategories)
		api.GET("/products/:id", s.handleProduct)
		api.POST("/recommend", s.handleRecommend)
		api.GET("/tiers", s.handleTiers)
		api.GET("/tiers/stored", s.handleStoredTiers)
		api.GET("/tiers/violations", s.handleTierViolations)
		api.POST("/tiers/rebuild", s.handleRebuild)
		api.GET("/tiers/status", s.handleRebuildStatus)
		api.DELETE("/tiers/rebuild/:jobID", s.handleCancelRebuild)
		api.GET("/tiers/stream", s.handleTierStream)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	products, err := s.db.CountProducts()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	ingredients, err := s.db.CountIngredients()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	cacheConfig := s.tierCache.Config()
	weightsSource := "default"
	if strings.TrimSpace(s.weightsPath) != "" {
		weightsSource = s.weightsPath
	}
	c.JSON(http.StatusOK, ConfigResponse{
		Products:       products,
		Ingredients:    ingredients,
		WeightsSource:  weightsSource,
		Weights:        s.weights,
		TierCacheSize:  cacheConfig.MaxSize,
		TierCacheTTL:   cacheConfig.TTL.String(),
		TierCachedSets: s.tierCache.Len(),
	})
}

func (s *Server) handleCategories(c *gin.Context) {
	counts, err := s.db.Categories(0)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": counts})
}

func (s *Server) handleProduct(c *gin.Context) {
	product, err := s.db.GetProduct(c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.renderError(c, status, err)
		return
	}
	ingredients, err := s.db.ListIngredients()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	engine := scoring.NewEngine(s.checker, scoring.NewAutoScorer(ingredients), s.weights)
	eval := engine.Evaluate(product, catalog.Profile{Priority: catalog.PriorityBalanced})
	c.JSON(http.StatusOK, ProductFromEvaluation(product, eval))
}

func (s *Server) handleRecommend(c *gin.Context) {
	var req RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	if req.Offset < 0 || req.Limit < 0 {
		s.renderError(c, http.StatusBadRequest, errors.New("offset and limit must not be negative"))
		return
	}
	if req.Limit > maxPageSize {
		req.Limit = maxPageSize
	}

	snapshot, err := s.db.LoadCatalog()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	products := filterCategory(snapshot.Products, req.Category)

	engine := scoring.NewEngine(s.checker, scoring.NewAutoScorer(snapshot.Ingredients), s.weights)
	orch := recommend.NewOrchestrator(engine, s.workers).WithObserver(s.metrics)
	opts := recommend.Options{Offset: req.Offset, Limit: req.Limit}

	var page recommend.Page
	if req.detailed() {
		page, err = orch.RecommendDetailed(c.Request.Context(), products, req.DetailedProfile(), opts)
	} else {
		page, err = orch.Recommend(c.Request.Context(), products, req.Profile(), opts)
	}
	if err != nil {
		// the only error is a cancelled request
		s.renderError(c, http.StatusRequestTimeout, err)
		return
	}
	c.JSON(http.StatusOK, RecommendResponseFromPage(page))
}

func (s *Server) handleTiers(c *gin.Context) {
	page, pageSize, err := s.pageParams(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	snapshot, err := s.db.LoadCatalog()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	batch, hit, err := s.computeTiers(snapshot)
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}

	ratings := batch.Ratings
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filtered := make([]tier.Rating, 0, len(ratings))
		for _, r := range ratings {
			if strings.EqualFold(r.Product.Category, category) {
				filtered = append(filtered, r)
			}
		}
		ratings = filtered
	}
	total := len(ratings)
	start := page * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]TierDTO, 0, end-start)
	for _, r := range ratings[start:end] {
		items = append(items, TierFromRating(r))
	}
	c.JSON(http.StatusOK, TiersResponse{
		Items:     items,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Evaluated: batch.Evaluated,
		Cohorts:   batch.Cohorts,
		Cached:    hit,
	})
}

// computeTiers returns the catalog-wide batch, from cache when the catalog
// is unchanged.
func (s *Server) computeTiers(snapshot catalog.Snapshot) (tier.Batch, bool, error) {
	batch, hit, err := s.tierCache.GetOrCompute(snapshot, s.weights, func() (tier.Batch, error) {
		timer := util.StartTimer()
		engine := s.tierEngine(snapshot)
		batch := engine.RankCatalog(snapshot.Products)
		s.metrics.ObserveTierBatch(timer.Seconds())
		logrus.WithFields(logrus.Fields{
			"products":   batch.Evaluated,
			"cohorts":    batch.Cohorts,
			"elapsed_ms": timer.ElapsedMs(),
		}).Info("tier batch computed")
		return batch, nil
	})
	if err != nil {
		return tier.Batch{}, false, err
	}
	s.metrics.ObserveTierCache(hit)
	return batch, hit, nil
}

func (s *Server) tierEngine(snapshot catalog.Snapshot) *tier.Engine {
	scorer := scoring.NewEngine(s.checker, scoring.NewAutoScorer(snapshot.Ingredients), s.weights)
	return tier.NewEngine(scorer)
}

func (s *Server) handleStoredTiers(c *gin.Context) {
	page, pageSize, err := s.pageParams(c)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}
	rows, total, err := s.db.ListTierSnapshots(store.TierQuery{
		Category:    c.Query("category"),
		OverallRank: c.Query("rank"),
		Offset:      page * pageSize,
		Limit:       pageSize,
	})
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	items := make([]TierSnapshotDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, SnapshotFromModel(row))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "page": page, "pageSize": pageSize})
}

func (s *Server) handleTierViolations(c *gin.Context) {
	snapshot, err := s.db.LoadCatalog()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	violations := tier.ValidateCatalog(snapshot.Products)
	c.JSON(http.StatusOK, gin.H{"items": violations, "total": len(violations)})
}

func (s *Server) handleRebuild(c *gin.Context) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob != nil {
		s.renderError(c, http.StatusConflict, errors.New("tier rebuild already running"))
		return
	}
	total, err := s.db.CountProducts()
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	job, err := s.startRebuild(int(total))
	if err != nil {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusAccepted, StartRebuildResponse{
		JobID:     job.id,
		Total:     job.total,
		StartedAt: job.startedAt,
	})
}

func (s *Server) handleCancelRebuild(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobID"))
	if jobID == "" {
		s.renderError(c, http.StatusBadRequest, errors.New("job id required"))
		return
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.activeJob == nil {
		s.renderError(c, http.StatusNotFound, errors.New("no tier rebuild running"))
		return
	}
	if s.activeJob.id != jobID {
		s.renderError(c, http.StatusNotFound, errors.New("job not found"))
		return
	}
	s.activeJob.cancel()
	logrus.WithField("job", jobID).Info("tier rebuild cancellation requested")
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}

func (s *Server) handleRebuildStatus(c *gin.Context) {
	s.jobMu.Lock()
	job := s.activeJob
	s.jobMu.Unlock()

	resp := RebuildStatusResponse{Running: job != nil}
	if job != nil {
		resp.JobID = job.id
		resp.Total = job.total
	}
	if status := s.tierNotifier.LastStatus(); status != nil {
		resp.JobID = status.JobID
		resp.State = status.Type
		resp.Message = status.Message
		resp.Processed = status.Processed
		if status.Total != 0 {
			resp.Total = status.Total
		}
	} else if state, err := s.db.LatestJobState(); err == nil {
		resp.JobID = state.JobID
		resp.State = state.Status
		resp.Message = state.Message
		resp.Processed = state.Processed
		resp.Total = state.Total
	} else if !errors.Is(err, store.ErrNotFound) {
		s.renderError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTierStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	jobID := strings.TrimSpace(c.Query("job"))
	client := s.tierNotifier.Register(conn, jobID)
	if client == nil {
		logrus.WithField("remote", conn.RemoteAddr().String()).Warn("tier websocket replay failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"remote": conn.RemoteAddr().String(),
		"job":    jobID,
	}).Info("tier websocket connected")
	defer s.tierNotifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("tier websocket closed")
			} else {
				logrus.WithError(err).Warn("tier websocket unexpected close")
			}
			break
		}
	}
}

func (s *Server) pageParams(c *gin.Context) (int, int, error) {
	page := 0
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid page: %s", raw)
		}
		page = parsed
	}
	pageSize := s.pageSize
	if raw := strings.TrimSpace(c.Query("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid pageSize: %s", raw)
		}
		pageSize = parsed
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, nil
}

func filterCategory(products []catalog.Product, category string) []catalog.Product {
	category = strings.TrimSpace(category)
	if category == "" {
		return products
	}
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if strings.EqualFold(p.Category, category) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}
