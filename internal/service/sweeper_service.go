package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tryout-api/internal/models"
	"github.com/noah-isme/tryout-api/pkg/config"
	"github.com/noah-isme/tryout-api/pkg/jobs"
)

type sweeperStore interface {
	CloseElapsedReservations(ctx context.Context, now time.Time) (int64, error)
	ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]models.Attempt, error)
}

type lateMarker interface {
	MarkLateIfExpired(ctx context.Context, submissionID string, now time.Time) (models.SubmissionStatus, error)
}

// SweeperService reconciles stored status with elapsed time on a fixed
// interval so reads never depend on recomputation for long. Every transition
// it drives is idempotent and conflict-tolerant, so multiple instances may
// run concurrently.
type SweeperService struct {
	store       sweeperStore
	submissions lateMarker
	queue       *jobs.Queue
	interval    time.Duration
	batchSize   int
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewSweeperService constructs SweeperService.
func NewSweeperService(store sweeperStore, submissions lateMarker, cfg config.SweeperConfig, metrics *MetricsService, logger *zap.Logger, now func() time.Time) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}

	s := &SweeperService{
		store:       store,
		submissions: submissions,
		interval:    interval,
		batchSize:   batch,
		metrics:     metrics,
		logger:      logger,
		now:         now,
	}
	s.queue = jobs.NewQueue("sweeper", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: batch,
		Logger:     logger,
	})
	return s
}

// Start launches the sweep loop and its worker queue. Safe to call once.
func (s *SweeperService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.queue.Start(loopCtx)

	s.wg.Add(1)
	go s.loop(loopCtx)
	s.started = true
	s.logger.Sugar().Infow("sweeper started", "interval", s.interval, "batch_size", s.batchSize)
}

// Stop halts the loop and drains the workers.
func (s *SweeperService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.queue.Stop()
	s.logger.Info("sweeper stopped")
}

func (s *SweeperService) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single reconciliation pass: close elapsed open reservations in
// bulk, then dispatch the passive late transition per expired submission.
func (s *SweeperService) Sweep(ctx context.Context) {
	now := s.now()

	closed, err := s.store.CloseElapsedReservations(ctx, now)
	if err != nil {
		s.logger.Warn("sweeper failed to close elapsed reservations", zap.Error(err))
	} else if closed > 0 {
		s.metrics.SweeperClosedReservations(closed)
		s.logger.Info("sweeper closed elapsed reservations", zap.Int64("count", closed))
	}

	expired, err := s.store.ListExpiredInProgress(ctx, now, s.batchSize)
	if err != nil {
		s.logger.Warn("sweeper failed to list expired attempts", zap.Error(err))
		return
	}

	for _, attempt := range expired {
		job := jobs.Job{
			ID:      fmt.Sprintf("mark-late-%s", attempt.Submission.ID),
			Type:    "mark_late",
			Payload: attempt.Submission.ID,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("sweeper failed to enqueue transition", zap.String("submission_id", attempt.Submission.ID), zap.Error(err))
			return
		}
	}
}

func (s *SweeperService) handleJob(ctx context.Context, job jobs.Job) error {
	submissionID, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected sweeper payload %T", job.Payload)
	}
	_, err := s.submissions.MarkLateIfExpired(ctx, submissionID, s.now())
	return err
}
