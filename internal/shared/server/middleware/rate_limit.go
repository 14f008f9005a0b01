package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"skill-recommender/internal/shared/metrics"
)

// Rule allows Rate requests per second with bursts up to Burst.
type Rule struct {
	Rate  float64
	Burst int
}

func (r Rule) unlimited() bool {
	return r.Rate <= 0 || r.Burst <= 0
}

// Limiter decides whether one more request under key fits rule. When it does
// not, the duration says how long until it would.
type Limiter interface {
	Allow(key string, rule Rule) (bool, time.Duration)
}

type RateLimitConfig struct {
	// Rules maps a group name to its rule. Groups without a rule are not limited.
	Rules map[string]Rule
	// Classify picks the group for a request; empty means DefaultGroup.
	Classify     func(*gin.Context) string
	DefaultGroup string
	Limiter      Limiter
}

// RateLimit throttles per caller and group. Callers are identified by the
// principal, falling back to the client IP.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewTokenBuckets(nil)
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.Classify != nil {
			if g := strings.TrimSpace(cfg.Classify(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok || rule.unlimited() {
			c.Next()
			return
		}

		caller := strings.TrimSpace(PrincipalFromContext(c))
		if caller == "" {
			caller = "ip:" + c.ClientIP()
		}
		allowed, wait := cfg.Limiter.Allow(group+"|"+caller, rule)
		if allowed {
			c.Next()
			return
		}

		metrics.IncThrottled(group)
		waitMs := max(int(wait.Milliseconds()), 1)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(float64(waitMs)/1000))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":        "rate_limited",
			"group":        group,
			"retryAfterMs": waitMs,
		})
	}
}
