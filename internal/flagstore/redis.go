package flagstore

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"ridecore/internal/domain/flags"
)

// RedisStore realizes Store against the shared KV store as a hash map at
// "feature-flags:{tenant}", one hash per tenant namespace.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) lookup(ctx context.Context, tenant string, flag flags.Flag) (bool, bool, error) {
	raw, err := s.client.HGet(ctx, Key(tenant), string(flag)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, err
	}
	return v, true, nil
}

func (s *RedisStore) Get(ctx context.Context, tenant string, flag flags.Flag, def bool) (bool, error) {
	if v, ok, err := s.lookup(ctx, tenant, flag); err != nil {
		return false, err
	} else if ok {
		return v, nil
	}

	if v, ok, err := s.lookup(ctx, flags.GlobalTenant, flag); err != nil {
		return false, err
	} else if ok {
		return v, nil
	}

	return def, nil
}

func (s *RedisStore) Set(ctx context.Context, tenant string, flag flags.Flag, value bool) error {
	return s.client.HSet(ctx, Key(tenant), string(flag), strconv.FormatBool(value)).Err()
}

// InitDefaults uses HSETNX per field so an existing override is never
// overwritten: only missing fields are written.
func (s *RedisStore) InitDefaults(ctx context.Context, tenant string) error {
	key := Key(tenant)
	for flag, def := range flags.Defaults {
		if err := s.client.HSetNX(ctx, key, string(flag), strconv.FormatBool(def)).Err(); err != nil {
			return err
		}
	}
	return nil
}
