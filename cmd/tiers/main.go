package main

import (
	"encoding/json"
	"errors"
	"flag"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"suptia-engine/internal/api"
	"suptia-engine/internal/scoring"
	"suptia-engine/internal/store"
	"suptia-engine/internal/tier"
	"suptia-engine/internal/util"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("load .env")
	}

	var (
		dbPath       = flag.String("db", envOr("SUPTIA_DB_PATH", filepath.FromSlash("data/suptia.db")), "Path to SQLite database")
		weightsPath  = flag.String("weights", os.Getenv("SCORING_WEIGHTS_PATH"), "Optional YAML file of priority weights")
		outputPath   = flag.String("output", "", "Optional path to write the computed tiers as JSON")
		dryRun       = flag.Bool("dry-run", false, "Compute tiers without writing snapshots")
		validateOnly = flag.Bool("validate-only", false, "Only report violations in stored tier data")
	)
	flag.Parse()

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	snapshot, err := db.LoadCatalog()
	if err != nil {
		logrus.Fatalf("load catalog: %v", err)
	}

	violations := tier.ValidateCatalog(snapshot.Products)
	for _, v := range violations {
		logrus.Warn(v.String())
	}
	logrus.WithFields(logrus.Fields{
		"products":   len(snapshot.Products),
		"violations": len(violations),
	}).Info("stored tier data checked")
	if *validateOnly {
		if len(violations) > 0 {
			os.Exit(1)
		}
		return
	}

	weights, err := scoring.LoadWeights(*weightsPath)
	if err != nil {
		logrus.Fatalf("scoring weights: %v", err)
	}
	engine := tier.NewEngine(scoring.NewEngine(nil, scoring.NewAutoScorer(snapshot.Ingredients), weights))

	timer := util.StartTimer()
	batch := engine.RankCatalog(snapshot.Products)
	logrus.WithFields(logrus.Fields{
		"products":   batch.Evaluated,
		"cohorts":    batch.Cohorts,
		"elapsed_ms": timer.ElapsedMs(),
	}).Info("tier batch computed")

	if *outputPath != "" {
		if err := writeTiers(*outputPath, batch); err != nil {
			logrus.Fatalf("write tiers: %v", err)
		}
		logrus.WithField("path", *outputPath).Info("tiers written to file")
	}

	if *dryRun {
		logrus.Info("dry run; snapshots not written")
		return
	}

	jobID := uuid.NewString()
	computedAt := time.Now().UTC()
	rows := make([]store.TierSnapshot, 0, len(batch.Ratings))
	for _, r := range batch.Ratings {
		rows = append(rows, api.SnapshotFromRating(r, jobID, computedAt))
	}
	if err := db.ReplaceTierSnapshots(rows); err != nil {
		logrus.Fatalf("persist tier snapshots: %v", err)
	}
	if err := db.SaveJobState(&store.JobState{
		JobID:     jobID,
		Status:    "completed",
		Message:   "rebuilt from cli",
		Processed: batch.Evaluated,
		Total:     len(snapshot.Products),
	}); err != nil {
		logrus.WithError(err).Warn("save job state")
	}

	dist, err := db.RankDistribution()
	if err != nil {
		logrus.WithError(err).Warn("rank distribution")
	}
	logrus.WithFields(logrus.Fields{
		"job":          jobID,
		"snapshots":    len(rows),
		"distribution": dist,
	}).Info("tier snapshots replaced")
}

func writeTiers(path string, batch tier.Batch) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	items := make([]api.TierDTO, 0, len(batch.Ratings))
	for _, r := range batch.Ratings {
		items = append(items, api.TierFromRating(r))
	}
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(items)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
