package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"habitatcv/internal/evaluation"
	"habitatcv/internal/models"
	"habitatcv/internal/registry"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []registry.Record
	err     error
}

func (m *memoryRecorder) Put(rec registry.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func TestTrackerCompleteRun(t *testing.T) {
	store := &memoryRecorder{}
	tracker := NewTracker(store)

	run := tracker.Create("paths.csv", "out")
	_, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, run.GetStatus())

	ctx := tracker.Start(context.Background(), run)
	assert.Equal(t, StatusRunning, run.GetStatus())

	progress := run.ProgressFunc()
	progress(2, 5)
	assert.InDelta(t, 0.4, run.GetProgress(), 1e-12)

	res := &evaluation.Results{
		Folds: []evaluation.FoldResult{{
			Iteration: 1,
			Search:    evaluation.SearchResult{Best: models.Params{Penalty: "l1", C: 10, Solver: "fista"}},
		}},
		Thresholds: []float64{0.37},
		Summary:    evaluation.Summary{N: 100, AUC: 0.8, Accuracy: 0.7},
	}
	require.NoError(t, tracker.Complete(run, res))

	assert.Equal(t, StatusCompleted, run.GetStatus())
	assert.Equal(t, 1.0, run.GetProgress())
	assert.Error(t, ctx.Err(), "run context is released on finish")

	require.Len(t, store.records, 1)
	rec := store.records[0]
	assert.Equal(t, run.ID, rec.ID)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, 100, rec.N)
	assert.Equal(t, 0.8, rec.AUC)
	assert.Equal(t, []float64{0.37}, rec.Thresholds)
	assert.Equal(t, "penalty=l1 C=10 solver=fista", rec.Params["fold_1"])
	assert.False(t, rec.EndTime.IsZero())

	logs := run.GetLogs()
	assert.Contains(t, logs[len(logs)-1], "run completed")
}

func TestTrackerFail(t *testing.T) {
	store := &memoryRecorder{}
	tracker := NewTracker(store)

	run := tracker.Create("a.csv", "out")
	tracker.Start(context.Background(), run)
	require.NoError(t, tracker.Fail(run, errors.New("boom")))

	assert.Equal(t, StatusFailed, run.GetStatus())
	require.Len(t, store.records, 1)
	assert.Equal(t, "boom", store.records[0].Error)

	cancelled := tracker.Create("b.csv", "out")
	tracker.Start(context.Background(), cancelled)
	require.NoError(t, tracker.Fail(cancelled, fmt.Errorf("outer fold 2 failed: %w", context.Canceled)))
	assert.Equal(t, StatusCancelled, cancelled.GetStatus())
}

func TestTrackerCancel(t *testing.T) {
	tracker := NewTracker(nil)
	run := tracker.Create("a.csv", "out")

	assert.Error(t, tracker.Cancel(run.ID), "pending run cannot be cancelled")
	assert.Error(t, tracker.Cancel("nope"))

	ctx := tracker.Start(context.Background(), run)
	require.NoError(t, tracker.Cancel(run.ID))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, StatusCancelled, run.GetStatus())

	// the evaluation error that follows a cancel does not overwrite it
	require.NoError(t, tracker.Fail(run, context.Canceled))
	assert.Equal(t, StatusCancelled, run.GetStatus())
}

func TestTrackerListAndGet(t *testing.T) {
	tracker := NewTracker(nil)
	first := tracker.Create("a.csv", "out")
	second := tracker.Create("b.csv", "out")

	got, ok := tracker.Get(second.ID)
	require.True(t, ok)
	assert.Same(t, second, got)

	list := tracker.List()
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}

func TestTrackerStoreError(t *testing.T) {
	tracker := NewTracker(&memoryRecorder{err: errors.New("disk full")})
	run := tracker.Create("a.csv", "out")
	tracker.Start(context.Background(), run)
	assert.Error(t, tracker.Complete(run, &evaluation.Results{}))
	assert.Equal(t, StatusCompleted, run.GetStatus())
}

func TestTrackerCompleteAfterCancel(t *testing.T) {
	store := &memoryRecorder{}
	tracker := NewTracker(store)
	run := tracker.Create("a.csv", "out")
	tracker.Start(context.Background(), run)

	require.NoError(t, tracker.Cancel(run.ID))
	err := tracker.Complete(run, &evaluation.Results{Thresholds: []float64{0.5}})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, StatusCancelled, run.GetStatus())
	require.Len(t, store.records, 1)
	assert.Equal(t, "cancelled", store.records[0].Status)
	assert.Empty(t, store.records[0].Thresholds)
}

func TestTrackerCancelOnDone(t *testing.T) {
	store := &memoryRecorder{}
	tracker := NewTracker(store)

	running := tracker.Create("a.csv", "out")
	runCtx := tracker.Start(context.Background(), running)
	pending := tracker.Create("b.csv", "out")

	ctx, cancel := context.WithCancel(context.Background())
	stop := tracker.CancelOnDone(ctx)
	cancel()
	assert.Eventually(t, func() bool {
		return running.GetStatus() == StatusCancelled
	}, time.Second, time.Millisecond)
	stop()

	assert.ErrorIs(t, runCtx.Err(), context.Canceled)
	assert.Equal(t, StatusCancelled, running.GetStatus())
	assert.Equal(t, StatusPending, pending.GetStatus())
	require.Len(t, store.records, 1)
	assert.Equal(t, running.ID, store.records[0].ID)
}

func TestTrackerCancelOnDoneStopped(t *testing.T) {
	tracker := NewTracker(nil)
	run := tracker.Create("a.csv", "out")
	tracker.Start(context.Background(), run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := tracker.CancelOnDone(ctx)
	stop()
	stop()

	assert.Equal(t, StatusRunning, run.GetStatus())
}
