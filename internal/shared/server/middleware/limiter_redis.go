package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"skill-recommender/internal/shared/telemetry"
)

const redisLimiterTimeout = 250 * time.Millisecond

// RedisWindow is a Limiter shared by every API replica. It counts requests
// in fixed windows sized so that Burst requests fit in one window at Rate.
type RedisWindow struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisWindow(client redis.UniversalClient, prefix string) *RedisWindow {
	return &RedisWindow{client: client, prefix: prefix, now: time.Now}
}

// Allow fails open when Redis cannot be reached.
func (l *RedisWindow) Allow(key string, rule Rule) (bool, time.Duration) {
	if rule.unlimited() {
		return true, 0
	}
	window := time.Duration(math.Ceil(float64(rule.Burst)/rule.Rate*1000)) * time.Millisecond
	now := l.now()
	slot := now.UnixMilli() / window.Milliseconds()
	windowKey := l.prefix + key + ":" + strconv.FormatInt(slot, 10)

	ctx, cancel := context.WithTimeout(context.Background(), redisLimiterTimeout)
	defer cancel()

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.PExpire(ctx, windowKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		telemetry.Warn("ratelimit.redis_unavailable", map[string]any{"error": err})
		return true, 0
	}
	if incr.Val() <= int64(rule.Burst) {
		return true, 0
	}
	next := time.UnixMilli((slot + 1) * window.Milliseconds())
	return false, next.Sub(now)
}
