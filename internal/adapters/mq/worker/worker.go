// Package worker runs asynchronous profile sync jobs.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/gigmatch/internal/domain/model"
	"github.com/okian/gigmatch/pkg/logger"
	"github.com/okian/gigmatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.SyncJob

// HistorySource fetches listening history with a user's access token.
type HistorySource interface {
	ListeningHistory(ctx context.Context, accessToken string) (model.ListeningHistory, error)
}

// Builder turns listening history into a profile.
type Builder interface {
	Build(history model.ListeningHistory) model.UserMusicalProfile
}

// Saver persists a built profile.
type Saver interface {
	SaveUserMusicalProfile(ctx context.Context, userID int64, p model.UserMusicalProfile) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// DoneFunc is called after every job with its outcome.
type DoneFunc func(ctx context.Context, job Job, err error)

// Worker processes sync jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue is closed.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	source  HistorySource
	builder Builder
	saver   Saver
	name    string
	onDone  DoneFunc
	active  *atomic.Int32

	// Shutdown control
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker. source may be nil when every job carries
// its own history.
func NewInMemoryWorker(queue Queue, source HistorySource, builder Builder, saver Saver, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		source:   source,
		builder:  builder,
		saver:    saver,
		name:     "worker",
		active:   new(atomic.Int32),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.GetOrDiscard().Named("worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.With(logger.String("worker", w.name))
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "profile sync failed",
					logger.String("job_id", job.JobID),
					logger.Int64("user_id", job.UserID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// processJob builds and saves one user's profile.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) (err error) { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		latency := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordWorkerProcessingLatency(latency)

		outcome := "ok"
		if err != nil {
			outcome = "failed"
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "sync_error")
		}
		metrics.RecordProfileSync(job.Source(), outcome, latency)
		if w.onDone != nil {
			w.onDone(ctx, job, err)
		}
	}()

	var history model.ListeningHistory
	switch {
	case job.History != nil:
		history = *job.History
	case w.source == nil:
		return ErrNoHistorySource
	default:
		history, err = w.source.ListeningHistory(ctx, job.AccessToken)
		if err != nil {
			return fmt.Errorf("fetch listening history: %w", err)
		}
	}

	profile := w.builder.Build(history)
	if err := w.saver.SaveUserMusicalProfile(ctx, job.UserID, profile); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	w.logger.Info(ctx, "profile synced",
		logger.String("job_id", job.JobID),
		logger.Int64("user_id", job.UserID),
		logger.String("source", job.Source()),
		logger.Int("genres", profile.GenreDistribution.Len()),
		logger.Int("top_artists", len(profile.TopArtists)))
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, queue Queue, source HistorySource, builder Builder, saver Saver, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.GetOrDiscard().Named("worker-pool"),
	}

	active := new(atomic.Int32)
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(queue, source, builder, saver, workerOpts...)
		w.active = active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it. Workers still busy
// when ctx (or the pool timeout) expires are told to stop after their current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
		}
		if timedOut {
			break
		}
	}
	if !timedOut {
		return nil
	}

	for _, w := range p.workers {
		w.stop()
	}
	return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
}
