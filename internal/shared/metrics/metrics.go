package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Predictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillrec_predictions_total",
			Help: "Skill predictions served, by source (classifier, fallback, none)",
		},
		[]string{"source"},
	)

	FallbackTier = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillrec_fallback_tier_total",
			Help: "Fallback resolutions by tier",
		},
		[]string{"tier"},
	)

	Feedback = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillrec_feedback_total",
			Help: "Feedback votes recorded",
		},
		[]string{"vote"},
	)

	Retrains = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillrec_retrain_total",
			Help: "Retrain runs by outcome (published, failed, skipped)",
		},
		[]string{"outcome"},
	)

	RetrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skillrec_retrain_duration_seconds",
			Help:    "Duration of retrain runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	ModelVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillrec_model_version_info",
			Help: "Serving model version (value is always 1)",
		},
		[]string{"model", "version"},
	)

	Throttled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillrec_http_throttled_total",
			Help: "Requests rejected by the rate limiter, by group",
		},
		[]string{"group"},
	)

	HTTPPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillrec_http_panics_total",
			Help: "Handler panics recovered, by route",
		},
		[]string{"route"},
	)

	PersistenceRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillrec_persistence_retries_total",
			Help: "Skill need upserts retried after a store error",
		},
	)
)

// IncPrediction counts one served prediction.
func IncPrediction(source string) {
	Predictions.WithLabelValues(source).Inc()
}

// IncFallbackTier counts one fallback resolution.
func IncFallbackTier(tier string) {
	FallbackTier.WithLabelValues(tier).Inc()
}

// IncFeedback counts one recorded vote.
func IncFeedback(vote string) {
	Feedback.WithLabelValues(vote).Inc()
}

// ObserveRetrain records a finished retrain run.
func ObserveRetrain(outcome string, d time.Duration) {
	Retrains.WithLabelValues(outcome).Inc()
	if d > 0 {
		RetrainDuration.Observe(d.Seconds())
	}
}

// SetModelVersion marks version as the one serving for model.
func SetModelVersion(model, version string) {
	ModelVersion.DeletePartialMatch(prometheus.Labels{"model": model})
	ModelVersion.WithLabelValues(model, version).Set(1)
}

// IncPersistenceRetry counts one retried upsert.
func IncPersistenceRetry() {
	PersistenceRetries.Inc()
}

// IncThrottled counts one rate limited request.
func IncThrottled(group string) {
	Throttled.WithLabelValues(group).Inc()
}

// IncHTTPPanic counts one recovered handler panic.
func IncHTTPPanic(route string) {
	HTTPPanics.WithLabelValues(route).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
