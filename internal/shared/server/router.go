package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"skill-recommender/internal/recommend"
	"skill-recommender/internal/shared/config"
	"skill-recommender/internal/shared/metrics"
	"skill-recommender/internal/shared/server/middleware"
	"skill-recommender/internal/shared/server/respond"
)

const (
	rateGroupRead     = "READ"
	rateGroupFeedback = "FEEDBACK"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config    config.Config
	Recommend *recommend.Handler
	Ready     func() bool

	// Limiter backs rate limiting; nil means per-process token buckets.
	Limiter middleware.Limiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Principal(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		body := gin.H{"ok": true}
		if deps.Ready != nil {
			body["modelLoaded"] = deps.Ready()
		}
		respond.JSON(c, http.StatusOK, body)
	})

	feedbackRate := deps.Config.FeedbackRate
	feedbackBurst := deps.Config.FeedbackBurst
	if feedbackRate <= 0 || feedbackBurst <= 0 {
		feedbackRate, feedbackBurst = 2, 10
	}
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: rateGroupRead,
		Classify:     rateGroupFor,
		Limiter:      deps.Limiter,
		Rules: map[string]middleware.Rule{
			rateGroupFeedback: {Rate: feedbackRate, Burst: feedbackBurst},
			rateGroupRead:     {Rate: 20, Burst: 40},
		},
	}))

	if deps.Recommend != nil {
		deps.Recommend.RegisterRoutes(api)
	}
	return r
}

// rateGroupFor puts writes that trigger retrains in the tighter bucket.
func rateGroupFor(c *gin.Context) string {
	if c.Request.Method != http.MethodPost {
		return rateGroupRead
	}
	path := c.FullPath()
	if strings.HasSuffix(path, "/skill-feedback") || strings.HasSuffix(path, "/model/retrain") {
		return rateGroupFeedback
	}
	return rateGroupRead
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
