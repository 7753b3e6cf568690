package surge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

func windowKey(cell string) string { return "surge:window:" + cell }
func cacheKey(cell string) string  { return "surge:cell:" + cell }

// RedisStore realizes Store against the shared KV store: a sorted set per
// cell keyed by event-time-ms (`surge:window:{cell}`) and a string cache
// key (`surge:cell:{cell}`).
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) AddEntry(ctx context.Context, cell string, atUnixMs int64, activeDrivers, pendingRides int, ttl time.Duration) error {
	key := windowKey(cell)
	member := fmt.Sprintf("%d:%d:%d", atUnixMs, activeDrivers, pendingRides)
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(atUnixMs), Member: member}).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) PruneBefore(ctx context.Context, cell string, cutoffUnixMs int64) error {
	return s.client.ZRemRangeByScore(ctx, windowKey(cell), "-inf", fmt.Sprintf("(%d", cutoffUnixMs)).Err()
}

func (s *RedisStore) WindowEntries(ctx context.Context, cell string) ([]WindowEntry, error) {
	members, err := s.client.ZRangeByScore(ctx, windowKey(cell), &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]WindowEntry, 0, len(members))
	for _, m := range members {
		parts := strings.SplitN(m, ":", 3)
		if len(parts) != 3 {
			continue
		}
		atMs, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			continue
		}
		drivers, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		rides, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		entries = append(entries, WindowEntry{AtUnixMs: atMs, ActiveDrivers: drivers, PendingRides: rides})
	}
	return entries, nil
}

func (s *RedisStore) GetCache(ctx context.Context, cell string) (float64, bool, error) {
	raw, err := s.client.Get(ctx, cacheKey(cell)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetCache(ctx context.Context, cell string, multiplier float64, ttl time.Duration) error {
	return s.client.Set(ctx, cacheKey(cell), strconv.FormatFloat(multiplier, 'f', -1, 64), ttl).Err()
}
