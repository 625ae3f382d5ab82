package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/dsconvert/internal/metrics"
)

// ErrShutdownTimeout is returned when the sweeper doesn't stop within timeout.
var ErrShutdownTimeout = errors.New("sweeper shutdown timed out")

// Store is the part of the video store the sweeper cleans.
type Store interface {
	RemoveStale(ctx context.Context, cutoff time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Config holds sweeper configuration.
type Config struct {
	Interval time.Duration
	// StaleAfter is the age at which leftover downloads and staged outputs are removed.
	StaleAfter time.Duration
	// Retention is the age at which stored videos are removed. Zero disables it.
	Retention time.Duration
}

// Sweeper periodically removes files abandoned by failed conversions and,
// when a retention period is set, videos past it.
type Sweeper struct {
	cfg    Config
	store  Store
	logger *slog.Logger
	now    func() time.Time

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg Config, store Store, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 6 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Sweeper{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs one sweep immediately, then one per interval.
func (s *Sweeper) Start() {
	s.logger.Info("starting sweeper",
		"interval", s.cfg.Interval,
		"stale_after", s.cfg.StaleAfter,
		"retention", s.cfg.Retention,
	)

	s.wg.Add(1)
	go s.run()
}

// Stop stops the sweeper, waiting for a sweep in progress.
func (s *Sweeper) Stop(timeout time.Duration) error {
	s.logger.Info("stopping sweeper")
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	s.Sweep(s.ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.ctx)
		}
	}
}

// Sweep performs a single cleanup pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	stale, err := s.store.RemoveStale(ctx, now.Add(-s.cfg.StaleAfter))
	metrics.SweptFilesTotal.WithLabelValues(metrics.SweepStale).Add(float64(stale))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("failed to remove stale files", "error", err)
	}
	if stale > 0 {
		s.logger.Info("removed stale files", "count", stale)
	}

	if s.cfg.Retention <= 0 {
		return
	}

	expired, err := s.store.DeleteOlderThan(ctx, now.Add(-s.cfg.Retention))
	metrics.SweptFilesTotal.WithLabelValues(metrics.SweepExpired).Add(float64(expired))
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("failed to delete expired videos", "error", err)
	}
	if expired > 0 {
		s.logger.Info("deleted expired videos", "count", expired)
	}
}
