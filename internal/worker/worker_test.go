// internal/worker/worker_test.go
package worker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vgrid/internal/columns"
	"github.com/xkilldash9x/vgrid/internal/pipeline"
	"github.com/xkilldash9x/vgrid/internal/worker"
)

type row struct {
	ID   int
	Name string
}

func rowColumns(t *testing.T) *columns.Model[row] {
	t.Helper()
	m, err := columns.NewModel([]columns.Column[row]{
		{Key: "id", Accessor: func(r row) any { return r.ID }},
		{Key: "name", Accessor: func(r row) any { return r.Name }},
	})
	require.NoError(t, err)
	return m
}

func receive(t *testing.T, w *worker.ViewWorker[row]) worker.Result[row] {
	t.Helper()
	select {
	case res := <-w.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a background result")
	}
	return worker.Result[row]{}
}

// -- Default Computation --

func TestViewWorker_ComputesView(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := worker.New[row](zap.NewNop())
	defer w.Stop()

	raw := []row{{1, "b"}, {2, "a"}, {3, "a"}}
	err := w.Submit(worker.Job[row]{
		Generation: 7,
		Raw:        raw,
		Columns:    rowColumns(t),
		Sort:       pipeline.SortState{{Column: "name", Direction: pipeline.Asc}},
	})
	require.NoError(t, err)

	res := receive(t, w)
	require.NoError(t, res.Err)
	assert.Equal(t, uint64(7), res.Generation)
	assert.Equal(t, []int{1, 2, 0}, res.View.Source)
}

// -- Cancellation --

func TestViewWorker_SupersededJobIsCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan uint64, 2)
	compute := func(ctx context.Context, job worker.Job[row]) (pipeline.View[row], error) {
		started <- job.Generation
		if job.Generation == 1 {
			<-ctx.Done()
			return pipeline.View[row]{}, ctx.Err()
		}
		return pipeline.View[row]{Source: []int{0}}, nil
	}
	w := worker.New[row](zap.NewNop(), worker.WithCompute(compute))
	defer w.Stop()

	require.NoError(t, w.Submit(worker.Job[row]{Generation: 1}))
	assert.Equal(t, uint64(1), <-started)
	require.NoError(t, w.Submit(worker.Job[row]{Generation: 2}))

	res := receive(t, w)
	assert.Equal(t, uint64(2), res.Generation, "the cancelled job never delivers")
	assert.NoError(t, res.Err)

	select {
	case extra := <-w.Results():
		t.Fatalf("unexpected extra result for generation %d", extra.Generation)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestViewWorker_StopCancelsLiveJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	blocked := make(chan struct{})
	w := worker.New[row](zap.NewNop(), worker.WithCompute(func(ctx context.Context, job worker.Job[row]) (pipeline.View[row], error) {
		close(blocked)
		<-ctx.Done()
		return pipeline.View[row]{}, ctx.Err()
	}))

	require.NoError(t, w.Submit(worker.Job[row]{Generation: 1}))
	<-blocked
	assert.True(t, w.Busy())

	w.Stop()
	assert.False(t, w.Busy())
	assert.ErrorIs(t, w.Submit(worker.Job[row]{Generation: 2}), worker.ErrStopped)
}

// -- Failure Reporting --

func TestViewWorker_FailuresAreDelivered(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("returned error", func(t *testing.T) {
		w := worker.New[row](zap.NewNop(), worker.WithCompute(func(context.Context, worker.Job[row]) (pipeline.View[row], error) {
			return pipeline.View[row]{}, fmt.Errorf("disk on fire")
		}))
		defer w.Stop()

		require.NoError(t, w.Submit(worker.Job[row]{Generation: 3}))
		res := receive(t, w)
		assert.EqualError(t, res.Err, "disk on fire")
		assert.Equal(t, uint64(3), res.Generation)
	})

	t.Run("panic becomes a compute failure", func(t *testing.T) {
		w := worker.New[row](zap.NewNop(), worker.WithCompute(func(context.Context, worker.Job[row]) (pipeline.View[row], error) {
			panic("boom")
		}))
		defer w.Stop()

		require.NoError(t, w.Submit(worker.Job[row]{Generation: 4}))
		res := receive(t, w)
		assert.ErrorIs(t, res.Err, pipeline.ErrComputeFailed)
	})
}
