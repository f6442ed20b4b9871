package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestKeyString(t *testing.T) {
	assert.Equal(t, "ratelimit:jane@example.com", Key{Kind: KindRateLimit, Subject: " Jane@Example.com "}.String())
}

func TestMemoryStorePutGetExpires(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()
	key := Key{Kind: KindSession, Subject: "abc"}

	require.NoError(t, store.Put(ctx, key, []byte("jane"), time.Minute))

	val, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "jane", string(val))

	clock.now = clock.now.Add(time.Minute)
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreKindsDoNotCollide(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Key{Kind: KindOTP, Subject: "x"}, []byte("123456"), 0))
	_, err := store.Get(ctx, Key{Kind: KindSession, Subject: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreIncrWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()
	key := Key{Kind: KindRateLimit, Subject: "jane"}

	for i := int64(1); i <= 3; i++ {
		n, err := store.Incr(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	clock.now = clock.now.Add(61 * time.Second)
	n, err := store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Key{Kind: KindSession, Subject: "a"}, []byte("1"), time.Second))
	require.NoError(t, store.Put(ctx, Key{Kind: KindSession, Subject: "b"}, []byte("2"), 0))

	clock.now = clock.now.Add(2 * time.Second)
	assert.Equal(t, 1, store.Sweep())

	_, err := store.Get(ctx, Key{Kind: KindSession, Subject: "b"})
	assert.NoError(t, err)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	key := Key{Kind: KindIdempotency, Subject: "k"}

	require.NoError(t, store.Put(ctx, key, []byte("EB-1"), time.Hour))
	require.NoError(t, store.Delete(ctx, key))
	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}
