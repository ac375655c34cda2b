package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/store"
	"suptia-engine/internal/tier"
	"suptia-engine/internal/util"
)

const (
	rebuildThrottle = 500 * time.Millisecond
	rebuildTopN     = 10
)

// rebuildJob tracks the state of a running tier rebuild.
type rebuildJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	total     int
}

// startRebuild launches a new asynchronous tier rebuild. The caller must
// hold s.jobMu prior to invoking this function.
func (s *Server) startRebuild(total int) (*rebuildJob, error) {
	if s.activeJob != nil {
		return nil, errors.New("tier rebuild already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &rebuildJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		total:     total,
	}
	if err := s.db.SaveJobState(&store.JobState{JobID: job.id, Status: "running", Total: total}); err != nil {
		job.cancel()
		return nil, fmt.Errorf("save job state: %w", err)
	}

	s.activeJob = job
	go s.runRebuild(ctx, job)
	return job, nil
}

func (s *Server) runRebuild(ctx context.Context, job *rebuildJob) {
	finishStatus := "completed"
	var last TierEvent

	emit := func(event TierEvent) {
		s.tierNotifier.Broadcast(event)
		last = event
	}

	defer func() {
		job.cancel()
		state := &store.JobState{
			JobID:     job.id,
			Status:    finishStatus,
			Message:   last.Message,
			Processed: last.Processed,
			Total:     job.total,
		}
		if last.Total > 0 {
			state.Total = last.Total
		}
		if payload, err := json.Marshal(last); err == nil {
			state.LastEventJSON = string(payload)
		}
		if err := s.db.SaveJobState(state); err != nil {
			logrus.WithError(err).WithField("job", job.id).Warn("save job state")
		}
		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	fail := func(err error, msg string) {
		finishStatus = "failed"
		emit(TierEvent{Type: EventError, JobID: job.id, Total: job.total, Message: fmt.Sprintf("%s: %v", msg, err)})
		logrus.WithError(err).WithField("job", job.id).Error(msg)
	}

	snapshot, err := s.db.LoadCatalog()
	if err != nil {
		fail(err, "load catalog")
		return
	}
	total := len(snapshot.Products)
	if total == 0 {
		finishStatus = "failed"
		emit(TierEvent{Type: EventError, JobID: job.id, Message: "no products available for tier rebuild"})
		return
	}

	emit(TierEvent{Type: EventStarted, JobID: job.id, Total: total, Message: "tier rebuild started"})
	logrus.WithFields(logrus.Fields{
		"job":         job.id,
		"products":    total,
		"ingredients": len(snapshot.Ingredients),
	}).Info("tier rebuild started")

	var (
		lastEmit     time.Time
		hasPending   bool
		pendingEvent TierEvent
	)
	flush := func(force bool) {
		if !hasPending {
			return
		}
		if !force && !lastEmit.IsZero() && time.Since(lastEmit) < rebuildThrottle {
			return
		}
		emit(pendingEvent)
		lastEmit = time.Now()
		logrus.WithFields(logrus.Fields{
			"job":       job.id,
			"processed": pendingEvent.Processed,
			"total":     total,
		}).Debug("broadcast tier progress")
		hasPending = false
	}

	timer := util.StartTimer()
	batch, err := s.tierEngine(snapshot).RankCatalogContext(ctx, snapshot.Products, func(done, n int) {
		pendingEvent = TierEvent{Type: EventProgress, JobID: job.id, Total: n, Processed: done}
		hasPending = true
		flush(false)
	})
	if err != nil {
		flush(true)
		if errors.Is(err, context.Canceled) {
			finishStatus = "cancelled"
			emit(TierEvent{Type: EventCancelled, JobID: job.id, Total: total, Processed: last.Processed, Message: "tier rebuild cancelled"})
			logrus.WithField("job", job.id).Warn("tier rebuild cancelled via context")
			return
		}
		fail(err, "rank catalog")
		return
	}
	flush(true)
	s.metrics.ObserveTierBatch(timer.Seconds())

	computedAt := time.Now().UTC()
	rows := make([]store.TierSnapshot, 0, len(batch.Ratings))
	products := make([]catalog.Product, 0, len(batch.Ratings))
	for _, r := range batch.Ratings {
		rows = append(rows, SnapshotFromRating(r, job.id, computedAt))
		products = append(products, r.Product)
	}
	if violations := tier.ValidateCatalog(products); len(violations) > 0 {
		for _, v := range violations {
			logrus.WithField("job", job.id).Error(v.String())
			s.tierNotifier.Broadcast(TierEvent{Type: EventViolation, JobID: job.id, Message: v.String()})
		}
		fail(fmt.Errorf("%d violations", len(violations)), "validate tiers")
		return
	}
	if err := s.db.ReplaceTierSnapshots(rows); err != nil {
		fail(err, "save tier snapshots")
		return
	}
	s.tierCache.Purge()

	top := make([]TierDTO, 0, rebuildTopN)
	for i := 0; i < len(batch.Ratings) && i < rebuildTopN; i++ {
		top = append(top, TierFromRating(batch.Ratings[i]))
	}

	duration := time.Since(job.startedAt).Round(time.Millisecond)
	emit(TierEvent{
		Type:      EventComplete,
		JobID:     job.id,
		Total:     total,
		Processed: batch.Evaluated,
		Cohorts:   batch.Cohorts,
		Top:       top,
		Message:   fmt.Sprintf("tier rebuild finished in %s", duration),
	})
	logrus.WithFields(logrus.Fields{
		"job":        job.id,
		"products":   batch.Evaluated,
		"cohorts":    batch.Cohorts,
		"elapsed_ms": timer.ElapsedMs(),
	}).Info("tier rebuild completed")
}
