package bandit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisPendingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := NewRedisPendingStore(client, "", ttl)
	require.NoError(t, err)
	return store, mr
}

func TestRedisPendingStore_PutTake(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	ctx := context.Background()

	d := PendingDecision{
		ID:        "d-1",
		Arm:       "probe",
		Features:  []float64{0.5, 1, 0},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Put(ctx, d))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok, err := store.Take(ctx, "d-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d.Arm, got.Arm)
	assert.Equal(t, d.Features, got.Features)

	// Consumed exactly once.
	_, ok, err = store.Take(ctx, "d-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPendingStore_TTLExpiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Second)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, PendingDecision{ID: "d-2", Arm: "pitch", CreatedAt: time.Now()}))

	mr.FastForward(2 * time.Second)

	_, ok, err := store.Take(ctx, "d-2")
	require.NoError(t, err)
	assert.False(t, ok, "decision must expire via redis TTL")
}

func TestRouter_WithRedisPendingStore(t *testing.T) {
	store, _ := newRedisStore(t, time.Minute)
	r, err := New(Config{Arms: []string{"probe", "pitch"}, Dim: 4, Alpha: 0.5, Lambda: 1}, store, nil)
	require.NoError(t, err)
	defer r.Close()

	ctx := context.Background()
	d := r.Choose(ctx, RouteContext{IntentConfidence: 0.9}, nil)
	assert.True(t, r.RecordFeedback(ctx, d.DecisionID, 0.8, nil))
	assert.False(t, r.RecordFeedback(ctx, d.DecisionID, 0.8, nil))
}
