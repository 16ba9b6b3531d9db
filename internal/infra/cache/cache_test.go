package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Options{Name: "test"})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	require.NoError(t, m.Set(ctx, "alpha", []byte("value"), 5*time.Minute))

	got, ok, err := m.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	// Mutating the returned slice must not reach the stored entry.
	got[0] = 'X'
	again, _, _ := m.Get(ctx, "alpha")
	assert.Equal(t, []byte("value"), again)

	clock = clock.Add(5 * time.Minute)
	_, ok, err = m.Get(ctx, "alpha")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestMemory_ZeroTTLIsNotStored(t *testing.T) {
	m := NewMemory(Options{})
	require.NoError(t, m.Set(context.Background(), "alpha", []byte("v"), 0))
	assert.Zero(t, m.Len())
}

func TestMemory_EvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Options{MaxEntries: 2})

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, m.Set(ctx, "a", []byte("1b"), time.Minute))
	require.NoError(t, m.Set(ctx, "c", []byte("3"), time.Minute))

	assert.Equal(t, 2, m.Len())
	_, ok, _ := m.Get(ctx, "a")
	assert.False(t, ok, "a was inserted first")
	_, ok, _ = m.Get(ctx, "b")
	assert.True(t, ok)
	_, ok, _ = m.Get(ctx, "c")
	assert.True(t, ok)

	m.Delete("b")
	assert.Equal(t, 1, m.Len())
}

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisFromClient(client, "skillgate:"), mr
}

func TestRedis_SetGet(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "fetchTrends:abc", []byte(`{"count":1}`), 5*time.Minute))
	assert.True(t, mr.Exists("skillgate:fetchTrends:abc"))
	assert.Equal(t, 5*time.Minute, mr.TTL("skillgate:fetchTrends:abc"))

	got, ok, err := r.Get(ctx, "fetchTrends:abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"count":1}`, string(got))

	require.NoError(t, r.Delete(ctx, "fetchTrends:abc"))
	_, ok, err = r.Get(ctx, "fetchTrends:abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_Expiry(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_NamedView(t *testing.T) {
	r, mr := setupRedis(t)
	scores := r.Named("scores")

	require.NoError(t, scores.Set(context.Background(), "t1", []byte("0.9"), time.Minute))
	assert.True(t, mr.Exists("skillgate:scores:t1"))

	_, ok, err := r.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedis_ConnectionError(t *testing.T) {
	r, mr := setupRedis(t)
	mr.Close()

	_, _, err := r.Get(context.Background(), "k")
	assert.Error(t, err)
}
