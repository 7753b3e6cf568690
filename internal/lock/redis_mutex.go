package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript is a compare-and-delete: only the holder whose token matches
// the stored value may release the lock, so a lease that already expired and
// was re-acquired by someone else is never stolen back.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// RedisMutex realizes Mutex against the shared KV store with SET NX PX.
// The lease is the key's TTL, so a crashed holder releases implicitly.
type RedisMutex struct {
	client     *redis.Client
	pollPeriod time.Duration
}

// NewRedisMutex wraps an already-connected client. pollPeriod controls how
// often TryAcquire retries within its wait budget; 100ms keeps the default
// 2s dispatch-lock wait responsive without hammering Redis.
func NewRedisMutex(client *redis.Client, pollPeriod time.Duration) *RedisMutex {
	if pollPeriod <= 0 {
		pollPeriod = 100 * time.Millisecond
	}
	return &RedisMutex{client: client, pollPeriod: pollPeriod}
}

var _ Mutex = (*RedisMutex)(nil)

func (m *RedisMutex) TryAcquire(ctx context.Context, key string, wait, lease time.Duration) (bool, string, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		ok, err := m.client.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return false, "", err
		}
		if ok {
			return true, token, nil
		}
		if time.Now().After(deadline) {
			return false, "", nil
		}
		select {
		case <-ctx.Done():
			return false, "", ctx.Err()
		case <-time.After(m.pollPeriod):
		}
	}
}

func (m *RedisMutex) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, m.client, []string{key}, token).Err()
}

func (m *RedisMutex) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
