package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"suptia-engine/internal/api"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env")
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_LEVEL")), "debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	dataDir := filepath.Join(baseDir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logrus.Fatalf("create data directory: %v", err)
	}

	cfg := api.Config{
		DBPath:      filepath.Join(dataDir, "suptia.db"),
		WeightsPath: strings.TrimSpace(os.Getenv("SCORING_WEIGHTS_PATH")),
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
		},
		SilentDB: !strings.EqualFold(strings.TrimSpace(os.Getenv("SILENT_DB")), "false"),
	}

	if override := strings.TrimSpace(os.Getenv("SUPTIA_DB_PATH")); override != "" {
		cfg.DBPath = override
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("RECOMMEND_WORKERS")); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RecommendWorkers = val
		}
	}
	if v := strings.TrimSpace(os.Getenv("TIER_CACHE_SIZE")); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.TierCacheSize = val
		}
	}
	if ttl := strings.TrimSpace(os.Getenv("TIER_CACHE_TTL")); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.TierCacheTTL = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("DEFAULT_PAGE_SIZE")); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.DefaultPageSize = val
		}
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer func() {
		if cerr := server.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close server")
		}
	}()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	logrus.Infof("starting suptia engine on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
