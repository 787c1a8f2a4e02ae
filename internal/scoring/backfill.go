package scoring

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/hh-scorer/internal/logger"
	"github.com/spigell/hh-scorer/internal/utils"
)

const (
	DefaultBackfillInitialDelay = 15 * time.Second
	DefaultBackfillInterval     = 5 * time.Minute
	DefaultBackfillBatchSize    = 20
	DefaultBackfillPace         = 500 * time.Millisecond
)

// BackfillConfig controls the sweep schedule.
type BackfillConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	BatchSize    int
	// Pace is the minimum gap between two enqueues within a sweep.
	Pace time.Duration
}

type unscoredLister interface {
	ListUnscored(ctx context.Context, limit int) ([]int64, error)
}

type enqueuer interface {
	Enqueue(applicantID int64) bool
}

// Backfill periodically queues applicants that have documents but no score.
type Backfill struct {
	applicants unscoredLister
	queue      enqueuer
	cfg        BackfillConfig
	limiter    *rate.Limiter
	logger     *zap.Logger

	started atomic.Bool
	done    chan struct{}
}

// NewBackfill returns a scanner; zero config fields take the package defaults.
// A negative Pace disables pacing.
func NewBackfill(applicants unscoredLister, queue enqueuer, cfg BackfillConfig, log *zap.Logger) *Backfill {
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = 0
	} else if cfg.InitialDelay == 0 {
		cfg.InitialDelay = DefaultBackfillInitialDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBackfillInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBackfillBatchSize
	}
	if cfg.Pace == 0 {
		cfg.Pace = DefaultBackfillPace
	}

	limit := rate.Inf
	if cfg.Pace > 0 {
		limit = rate.Every(cfg.Pace)
	}

	return &Backfill{
		applicants: applicants,
		queue:      queue,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger.Component(log, "backfill"),
		done:       make(chan struct{}),
	}
}

// Start runs the sweep loop in the background until ctx is done. Only the
// first call starts it; later calls return false.
func (b *Backfill) Start(ctx context.Context) bool {
	if !b.started.CompareAndSwap(false, true) {
		return false
	}

	go b.loop(ctx)
	return true
}

// Done is closed once a started loop has exited.
func (b *Backfill) Done() <-chan struct{} {
	return b.done
}

func (b *Backfill) loop(ctx context.Context) {
	defer close(b.done)

	b.logger.Info("backfill scheduled",
		zap.Duration("initial_delay", b.cfg.InitialDelay),
		zap.Duration("interval", b.cfg.Interval),
		zap.Int("batch_size", b.cfg.BatchSize),
	)

	if err := utils.WaitFor(ctx, b.cfg.InitialDelay); err != nil {
		return
	}
	b.Sweep(ctx)

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("backfill stopped")
			return
		case <-ticker.C:
			b.Sweep(ctx)
		}
	}
}

// Sweep queues one batch of unscored applicants, one at a time at the
// configured pace, and returns how many were queued.
func (b *Backfill) Sweep(ctx context.Context) int {
	ids, err := b.applicants.ListUnscored(ctx, b.cfg.BatchSize)
	if err != nil {
		b.logger.Error("listing unscored applicants", zap.Error(err))
		return 0
	}
	if len(ids) == 0 {
		b.logger.Debug("nothing to backfill")
		return 0
	}

	queued := 0
	for _, id := range ids {
		if err := b.limiter.Wait(ctx); err != nil {
			break
		}
		if b.queue.Enqueue(id) {
			queued++
		}
	}

	b.logger.Info("backfill sweep finished", zap.Int("found", len(ids)), zap.Int("queued", queued))
	return queued
}
