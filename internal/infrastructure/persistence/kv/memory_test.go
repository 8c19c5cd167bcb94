package kv

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, PrefixProgress+"v1", []byte(`{"demo":true}`)))

	value, err := store.Get(ctx, PrefixProgress+"v1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"demo":true}`), value)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_GetMissingKey(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "progress:missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_EmptyKeyRejected(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "")
	assert.ErrorIs(t, err, ErrKeyEmpty)
	assert.ErrorIs(t, store.Set(ctx, "", nil), ErrKeyEmpty)
	assert.ErrorIs(t, store.Delete(ctx, ""), ErrKeyEmpty)

	_, err = store.Incr(ctx, "", 1)
	assert.ErrorIs(t, err, ErrKeyEmpty)
	_, err = store.GetCounter(ctx, "")
	assert.ErrorIs(t, err, ErrKeyEmpty)
}

func TestMemoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "session:abc", []byte("v1")))
	require.NoError(t, store.Delete(ctx, "session:abc"))

	_, err := store.Get(ctx, "session:abc")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting a missing key is not an error
	assert.NoError(t, store.Delete(ctx, "session:abc"))
}

func TestMemoryStore_StoredValueIsIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	original := []byte("original")
	require.NoError(t, store.Set(ctx, "k", original))
	original[0] = 'X'

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), value)

	// Mutating the returned slice does not touch the stored blob either
	value[0] = 'Y'
	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryStore_Counter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	count, err := store.GetCounter(ctx, CounterDisplay)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = store.Incr(ctx, CounterDisplay, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = store.Incr(ctx, CounterDisplay, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)

	count, err = store.GetCounter(ctx, CounterDisplay)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
}

func TestMemoryStore_PingAndClose(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.Incr(ctx, CounterDisplay, 1)
		}()
	}
	wg.Wait()

	count, err := store.GetCounter(ctx, CounterDisplay)
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
}
