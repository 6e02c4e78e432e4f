package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/storage/memory/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name  string `json:"name"  redis:"name"`
	Count int    `json:"count" redis:"count"`
}

func newMemoryStorage(t *testing.T) *FiberStorage {
	t.Helper()
	storage := NewFiberStorage(memory.New(memory.Config{GCInterval: time.Second}))
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New[testRecord](newMemoryStorage(t), "t:")

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "a", testRecord{Name: "alpha", Count: 3}, time.Minute))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, testRecord{Name: "alpha", Count: 3}, got)

	exists, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)

	exists, err = s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	storage := newMemoryStorage(t)
	s := New[testRecord](storage, "p:")

	require.NoError(t, s.Save(ctx, "k", testRecord{Name: "kept"}))

	var raw testRecord
	require.NoError(t, storage.Get(ctx, "p:k", &raw))
	assert.Equal(t, "kept", raw.Name)

	assert.ErrorIs(t, storage.Get(ctx, "k", &raw), ErrNotFound)
}

func TestStore_Expiration(t *testing.T) {
	ctx := context.Background()
	s := New[testRecord](newMemoryStorage(t), "e:")

	require.NoError(t, s.Set(ctx, "short", testRecord{Name: "gone"}, time.Second))
	assert.Eventually(t, func() bool {
		exists, err := s.Exists(ctx, "short")
		return err == nil && !exists
	}, 5*time.Second, 100*time.Millisecond)
}

func TestFiberStorage_ConcurrentDeleteConsumesOnce(t *testing.T) {
	ctx := context.Background()
	storage := newMemoryStorage(t)
	require.NoError(t, storage.Set(ctx, "state", testRecord{Name: "once"}, time.Minute))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := storage.Delete(ctx, "state"); err == nil {
				successes.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, successes.Load())
}
