package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/hh-scorer/internal/logger"
)

const (
	// DefaultWorkers is the number of concurrent generations.
	DefaultWorkers = 2
	// DefaultQueueSize bounds the jobs waiting for a worker.
	DefaultQueueSize = 64
)

// ErrCoalescerClosed is returned by Start after Close.
var ErrCoalescerClosed = errors.New("coalescer is closed")

// CoalescerConfig sizes the worker pool.
type CoalescerConfig struct {
	Workers   int
	QueueSize int
}

type job struct {
	id          string
	applicantID int64
	queuedAt    time.Time
}

// Coalescer runs background generations, at most one per applicant at a time.
// Enqueue never blocks: duplicates of an in-flight applicant are dropped, and
// so is new work while the queue is full.
type Coalescer struct {
	generator Generator
	workers   int
	queue     chan job
	logger    *zap.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
	closed   bool

	started  atomic.Bool
	stopping atomic.Bool
	group    errgroup.Group
}

// NewCoalescer returns a coalescer. Call Start to run the workers.
func NewCoalescer(generator Generator, cfg CoalescerConfig, log *zap.Logger) *Coalescer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}

	return &Coalescer{
		generator: generator,
		workers:   workers,
		queue:     make(chan job, size),
		logger:    logger.Component(log, "coalescer"),
		inFlight:  make(map[int64]struct{}),
	}
}

// Start launches the workers. Generations run detached from ctx cancellation
// so an attempt sequence, once begun, runs to completion; use Close to stop.
func (c *Coalescer) Start(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrCoalescerClosed
	}

	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	jobCtx := context.WithoutCancel(ctx)
	for worker := 0; worker < c.workers; worker++ {
		c.group.Go(func() error {
			c.work(jobCtx, worker)
			return nil
		})
	}

	c.logger.Info("started workers", zap.Int("workers", c.workers), zap.Int("queue_size", cap(c.queue)))
	return nil
}

// Enqueue schedules a non-forced generation for applicantID and reports
// whether a new job was queued.
func (c *Coalescer) Enqueue(applicantID int64) bool {
	log := logger.WithFields(c.logger, logger.ApplicantFields(applicantID, "")...)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		log.Debug("dropping job, coalescer is closed")
		return false
	}
	if _, ok := c.inFlight[applicantID]; ok {
		log.Debug("generation already in flight")
		return false
	}

	j := job{id: uuid.NewString(), applicantID: applicantID, queuedAt: time.Now()}
	select {
	case c.queue <- j:
		c.inFlight[applicantID] = struct{}{}
		log.Debug("queued generation", zap.String("job_id", j.id))
		return true
	default:
		log.Warn("queue full, dropping job", zap.Int("queue_size", cap(c.queue)))
		return false
	}
}

// InFlight reports whether a generation for applicantID is queued or running.
func (c *Coalescer) InFlight(applicantID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[applicantID]
	return ok
}

// Pending returns the number of queued or running generations.
func (c *Coalescer) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inFlight)
}

// Close stops accepting work, discards queued jobs that have not started and
// waits for running ones.
func (c *Coalescer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopping.Store(true)
	close(c.queue)
	c.mu.Unlock()

	if !c.started.Load() {
		for j := range c.queue {
			c.release(j.applicantID)
		}
		return nil
	}

	if err := c.group.Wait(); err != nil {
		return fmt.Errorf("waiting for workers: %w", err)
	}
	c.logger.Info("workers stopped")
	return nil
}

func (c *Coalescer) work(ctx context.Context, worker int) {
	for j := range c.queue {
		if c.stopping.Load() {
			c.release(j.applicantID)
			continue
		}
		c.run(ctx, worker, j)
	}
}

func (c *Coalescer) run(ctx context.Context, worker int, j job) {
	log := logger.WithFields(c.logger,
		append(logger.ApplicantFields(j.applicantID, ""),
			zap.String("job_id", j.id),
			zap.Int("worker", worker),
		)...,
	)

	defer c.release(j.applicantID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("generation panicked", zap.Any("panic", r))
		}
	}()

	started := time.Now()
	result, err := c.generator.GenerateOrFetch(ctx, j.applicantID, false)
	if err != nil {
		log.Error("background generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
		return
	}

	log.Info("background generation finished",
		zap.String("status", string(result.Status)),
		zap.Duration("waited", started.Sub(j.queuedAt)),
		zap.Duration("elapsed", time.Since(started)),
	)
}

func (c *Coalescer) release(applicantID int64) {
	c.mu.Lock()
	delete(c.inFlight, applicantID)
	c.mu.Unlock()
}
