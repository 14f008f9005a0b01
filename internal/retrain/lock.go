package retrain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"skill-recommender/internal/shared/telemetry"
)

const DefaultLockTTL = 30 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

const extendTimeout = 2 * time.Second

// RedisLock is a single-key lease in Redis. The TTL bounds how long a crashed
// holder blocks other processes; a live holder extends it every TTL/3.
type RedisLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLock{client: client, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context, key string) (func(context.Context), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	extend := func(ctx context.Context) (bool, error) {
		n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
		return n == 1, err
	}
	stop := renewLease(l.ttl/3, extend, func(err error) {
		fields := map[string]any{"key": key}
		if err != nil {
			fields["error"] = err
		}
		telemetry.Warn("retrain.lock_lost", fields)
	})

	release := func(ctx context.Context) {
		stop()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			telemetry.Warn("retrain.lock_release_failed", map[string]any{"key": key, "error": err})
		}
	}
	return release, true, nil
}

// renewLease calls extend every interval until stop is called. It calls lost
// and exits once extend reports the lease is gone; errors are retried on the
// next tick. stop waits for the loop to exit.
func renewLease(every time.Duration, extend func(context.Context) (bool, error), lost func(error)) (stop func()) {
	if every <= 0 {
		every = time.Millisecond
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		var lastErr error
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), extendTimeout)
				ok, err := extend(ctx)
				cancel()
				if err != nil {
					lastErr = err
					continue
				}
				if !ok {
					lost(lastErr)
					return
				}
				lastErr = nil
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}
