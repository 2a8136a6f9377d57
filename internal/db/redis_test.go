package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &RedisStore{Client: client, Ctx: context.Background()}, mr
}

func TestDeliveredCountsMissingKeysReadZero(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Set("delivery:imps:li-1", "42")

	counts, err := store.DeliveredCounts(context.Background(), []string{"li-1", "li-2"})
	require.NoError(t, err)
	assert.Equal(t, 42, counts["li-1"])
	assert.Equal(t, 0, counts["li-2"])
}

func TestDeliveredCountsEmptyInput(t *testing.T) {
	store, _ := newTestStore(t)

	counts, err := store.DeliveredCounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestIncrementDelivered(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.IncrementDelivered(ctx, "li-1"))
	require.NoError(t, store.IncrementDelivered(ctx, "li-1"))

	counts, err := store.DeliveredCounts(ctx, []string{"li-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["li-1"])
}

func TestSaveAndGetTrace(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"req_id":"r-1","steps":[{"step":"no_fill"}]}`)
	require.NoError(t, store.SaveTrace(ctx, "r-1", payload, time.Minute))

	got, err := store.GetTrace(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	mr.FastForward(2 * time.Minute)
	_, err = store.GetTrace(ctx, "r-1")
	assert.ErrorIs(t, err, ErrTraceNotFound)
}

func TestGetTraceMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetTrace(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTraceNotFound)
}

func TestNilStoreErrors(t *testing.T) {
	var store *RedisStore
	ctx := context.Background()

	_, err := store.DeliveredCounts(ctx, []string{"li-1"})
	assert.ErrorIs(t, err, ErrNilRedisStore)

	err = store.IncrementDelivered(ctx, "li-1")
	assert.ErrorIs(t, err, ErrNilRedisStore)

	err = store.SaveTrace(ctx, "r-1", []byte("{}"), time.Minute)
	assert.ErrorIs(t, err, ErrNilRedisStore)

	_, err = store.GetTrace(ctx, "r-1")
	assert.ErrorIs(t, err, ErrNilRedisStore)
}
