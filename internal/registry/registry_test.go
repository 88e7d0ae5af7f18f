package registry

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openStore(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rec := Record{
		ID:         "a",
		Status:     "completed",
		StartTime:  start,
		EndTime:    start.Add(time.Minute),
		N:          100,
		AUC:        0.81,
		Thresholds: []float64{0.4, 0.5},
	}
	require.NoError(t, store.Put(rec))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, rec.Thresholds, got.Thresholds)
	assert.Equal(t, 0.81, got.AUC)
	assert.True(t, rec.StartTime.Equal(got.StartTime))

	rec.Status = "failed"
	require.NoError(t, store.Put(rec))
	got, err = store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
}

func TestStoreListNewestFirst(t *testing.T) {
	store := openStore(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		require.NoError(t, store.Put(Record{ID: id, StartTime: base.Add(offsets[i])}))
	}

	runs, err := store.List()
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Equal(t, "old", runs[2].ID)
}

func TestStoreErrors(t *testing.T) {
	store := openStore(t)

	_, err := store.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(store.Delete("missing"), ErrNotFound))
	assert.Error(t, store.Put(Record{}))

	require.NoError(t, store.Put(Record{ID: "x"}))
	require.NoError(t, store.Delete("x"))
	_, err = store.Get("x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(Record{ID: "kept"}))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Get("kept")
	assert.NoError(t, err)
}
