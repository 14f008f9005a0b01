package middleware

import (
	"math"
	"sync"
	"time"
)

// idleBucketLimit bounds how many buckets are kept before idle ones are swept.
const idleBucketLimit = 10000

// TokenBuckets is a per-process Limiter. Each key refills continuously at the
// rule's rate up to its burst.
type TokenBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func NewTokenBuckets(now func() time.Time) *TokenBuckets {
	if now == nil {
		now = time.Now
	}
	return &TokenBuckets{buckets: make(map[string]*bucket), now: now}
}

func (l *TokenBuckets) Allow(key string, rule Rule) (bool, time.Duration) {
	if rule.unlimited() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= idleBucketLimit {
			l.sweep(now, rule)
		}
		b = &bucket{tokens: float64(rule.Burst), seen: now}
		l.buckets[key] = b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.seen = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}

// sweep drops buckets that would have refilled completely by now.
func (l *TokenBuckets) sweep(now time.Time, rule Rule) {
	full := time.Duration(float64(rule.Burst) / rule.Rate * float64(time.Second))
	for key, b := range l.buckets {
		if now.Sub(b.seen) > full {
			delete(l.buckets, key)
		}
	}
}

// Len reports the number of tracked buckets.
func (l *TokenBuckets) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
