package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore realizes Store against the shared KV store: SET NX claims the
// key for the first sighting of a given idempotency key; a losing SET NX
// means the key was already claimed, so the stored hash is read back and
// compared — the same SET-NX-claim idiom as lock.RedisMutex.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Check(ctx context.Context, service, key, hash string, ttl time.Duration) (bool, error) {
	k := Key(service, key)
	ok, err := s.client.SetNX(ctx, k, hash, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	stored, err := s.client.Get(ctx, k).Result()
	if err == redis.Nil {
		// Key expired between SetNX and Get; treat as a fresh sighting.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stored != hash, nil
}
