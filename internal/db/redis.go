package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNilRedisStore is returned when an operation is attempted on an
// uninitialised store.
var ErrNilRedisStore = errors.New("redis store is nil")

// ErrTraceNotFound is returned when no trace exists for a request id,
// either because the request never happened or the trace expired.
var ErrTraceNotFound = errors.New("trace not found")

const (
	deliveredKeyPrefix = "delivery:imps:"
	traceKeyPrefix     = "trace:"
)

// RedisStore holds the hot per-line-item delivery counters and the
// short-lived decision traces.
type RedisStore struct {
	Client *redis.Client
	Ctx    context.Context
}

// InitRedis connects to Redis and verifies the connection.
func InitRedis(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := redisotel.InstrumentTracing(client); err != nil {
		zap.L().Warn("Failed to instrument Redis tracing", zap.Error(err))
	}

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return &RedisStore{Client: client, Ctx: ctx}, nil
}

// Close terminates the Redis connection.
func (s *RedisStore) Close() {
	if s != nil && s.Client != nil {
		if err := s.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}

// DeliveredCounts returns the delivered impression counter for each line
// item id. Missing counters read as zero.
func (s *RedisStore) DeliveredCounts(ctx context.Context, ids []string) (map[string]int, error) {
	if s == nil || s.Client == nil {
		return nil, ErrNilRedisStore
	}
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = deliveredKeyPrefix + id
	}
	vals, err := s.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget delivered counts: %w", err)
	}
	for i, v := range vals {
		if v == nil {
			counts[ids[i]] = 0
			continue
		}
		str, ok := v.(string)
		if !ok {
			counts[ids[i]] = 0
			continue
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return nil, fmt.Errorf("parse delivered count for %s: %w", ids[i], err)
		}
		counts[ids[i]] = n
	}
	return counts, nil
}

// IncrementDelivered bumps the delivered impression counter for a line
// item after a filled decision.
func (s *RedisStore) IncrementDelivered(ctx context.Context, lineItemID string) error {
	if s == nil || s.Client == nil {
		return ErrNilRedisStore
	}
	if err := s.Client.Incr(ctx, deliveredKeyPrefix+lineItemID).Err(); err != nil {
		return fmt.Errorf("incr delivered count: %w", err)
	}
	return nil
}

// SaveTrace stores the serialized decision trace for a request under a
// TTL so traces age out on their own.
func (s *RedisStore) SaveTrace(ctx context.Context, reqID string, data []byte, ttl time.Duration) error {
	if s == nil || s.Client == nil {
		return ErrNilRedisStore
	}
	if err := s.Client.Set(ctx, traceKeyPrefix+reqID, data, ttl).Err(); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

// GetTrace fetches the serialized decision trace for a request.
func (s *RedisStore) GetTrace(ctx context.Context, reqID string) ([]byte, error) {
	if s == nil || s.Client == nil {
		return nil, ErrNilRedisStore
	}
	data, err := s.Client.Get(ctx, traceKeyPrefix+reqID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTraceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	return data, nil
}
