package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/pipeline"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("view worker stopped")

// Job describes one derived-view computation. The generation is issued by the
// engine and returned untouched in the Result.
type Job[T any] struct {
	Generation uint64
	Raw        []T
	Columns    pipeline.ColumnSet[T]
	Filters    pipeline.FilterState
	Sort       pipeline.SortState
	Options    pipeline.Options
}

// Result carries a finished computation back to the engine goroutine.
type Result[T any] struct {
	Generation uint64
	View       pipeline.View[T]
	Err        error
	Elapsed    time.Duration
}

// ComputeFunc derives a view. The default is pipeline.ComputeViewContext.
type ComputeFunc[T any] func(ctx context.Context, job Job[T]) (pipeline.View[T], error)

// ViewWorker offloads view computation for large datasets onto a goroutine.
// At most one job is live: submitting a new job cancels the previous one, so
// a superseded computation stops early and never delivers its result.
type ViewWorker[T any] struct {
	logger  *zap.Logger
	compute ComputeFunc[T]
	results chan Result[T]

	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu         sync.Mutex
	cancelLive context.CancelFunc
	stopped    bool

	wg       sync.WaitGroup
	inflight atomic.Int32
}

// Option is a function that configures a ViewWorker.
type Option[T any] func(*ViewWorker[T])

// WithCompute replaces the computation, primarily for tests.
func WithCompute[T any](fn ComputeFunc[T]) Option[T] {
	return func(w *ViewWorker[T]) {
		w.compute = fn
	}
}

// New creates a worker. It spawns goroutines only when jobs are submitted.
func New[T any](logger *zap.Logger, opts ...Option[T]) *ViewWorker[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &ViewWorker[T]{
		logger:     logger.With(zap.String("component", "view_worker")),
		results:    make(chan Result[T], 1),
		rootCtx:    ctx,
		rootCancel: cancel,
		compute: func(ctx context.Context, job Job[T]) (pipeline.View[T], error) {
			return pipeline.ComputeViewContext(ctx, job.Raw, job.Columns, job.Filters, job.Sort, job.Options)
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Results delivers finished jobs. The engine drains it once per frame.
func (w *ViewWorker[T]) Results() <-chan Result[T] {
	return w.results
}

// Busy reports whether a computation is running.
func (w *ViewWorker[T]) Busy() bool {
	return w.inflight.Load() > 0
}

// Submit cancels the live job, if any, and starts job on a new goroutine.
func (w *ViewWorker[T]) Submit(job Job[T]) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrStopped
	}
	if w.cancelLive != nil {
		w.cancelLive()
	}
	ctx, cancel := context.WithCancel(w.rootCtx)
	w.cancelLive = cancel

	w.wg.Add(1)
	w.inflight.Add(1)
	go w.run(ctx, job)
	return nil
}

// Cancel aborts the live job without submitting a new one.
func (w *ViewWorker[T]) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelLive != nil {
		w.cancelLive()
		w.cancelLive = nil
	}
}

// Stop cancels any live job and waits for its goroutine to exit.
func (w *ViewWorker[T]) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()

	w.rootCancel()
	w.wg.Wait()
	w.logger.Debug("View worker stopped.")
}

func (w *ViewWorker[T]) run(ctx context.Context, job Job[T]) {
	defer w.wg.Done()
	defer w.inflight.Add(-1)

	logger := w.logger.With(zap.Uint64("generation", job.Generation), zap.Int("rows", len(job.Raw)))
	logger.Debug("Computing view in background.")

	start := time.Now()
	view, err := w.safeCompute(ctx, job)
	res := Result[T]{Generation: job.Generation, View: view, Err: err, Elapsed: time.Since(start)}

	if ctx.Err() != nil {
		// Superseded or stopped. The result is stale by definition.
		logger.Debug("Background view computation cancelled.", zap.Error(ctx.Err()))
		return
	}
	if err != nil {
		logger.Warn("Background view computation failed.", zap.Error(err))
	}

	select {
	case w.results <- res:
	case <-ctx.Done():
		logger.Debug("Dropped background result after cancellation.")
	}
}

// safeCompute turns a panic in the computation into an error result so that
// the engine reports a failed view instead of losing the goroutine.
func (w *ViewWorker[T]) safeCompute(ctx context.Context, job Job[T]) (view pipeline.View[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", pipeline.ErrComputeFailed, r)
		}
	}()
	return w.compute(ctx, job)
}
