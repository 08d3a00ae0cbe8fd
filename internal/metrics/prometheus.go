// Package metrics provides Prometheus metrics for the suggestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts total HTTP requests by endpoint, method, and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlrf_requests_total",
		Help: "Total number of HTTP requests by endpoint, method, and status code",
	}, []string{"endpoint", "method", "status"})

	// RequestDuration tracks request duration in seconds by endpoint.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlrf_request_duration_seconds",
		Help:    "HTTP request duration in seconds by endpoint",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"endpoint"})

	// CacheHits counts total cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrf_cache_hits_total",
		Help: "Total number of cache hits",
	})

	// CacheMisses counts total cache misses.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrf_cache_misses_total",
		Help: "Total number of cache misses",
	})

	// ActiveConnections tracks current active connections (gauge).
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mlrf_active_connections",
		Help: "Current number of active HTTP connections",
	})

	// RateLimitRejections counts requests rejected due to rate limiting.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlrf_rate_limit_rejections_total",
		Help: "Total number of requests rejected due to rate limiting",
	})

	// PredictRequestsTotal counts suggestion requests, labeled by whether a
	// model was available to serve them.
	PredictRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_predict_requests_total",
		Help: "Total suggestion requests by model availability",
	}, []string{"available"})

	// PredictionsTotal counts suggestion outcomes, labeled by whether the
	// model's own prediction was ultimately accepted.
	PredictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_predictions_total",
		Help: "Total suggestions by whether the model's prediction was accepted",
	}, []string{"accepted"})

	// FallbackTotal counts fallbacks to the rule engine or "unknown", labeled
	// by the reason serving fell back.
	FallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_fallback_total",
		Help: "Total fallbacks by reason",
	}, []string{"reason"})

	// PredictLatency tracks per-request inference duration.
	PredictLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ml_predict_latency_seconds",
		Help:    "Per-request model inference duration in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .15, .25, .5, 1},
	})

	// SuggestCompareTotal counts shadow-mode agreement outcomes between the
	// model and the rule engine.
	SuggestCompareTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_suggest_compare_total",
		Help: "Shadow comparison outcomes between model and rule engine",
	}, []string{"agree"})

	// SuggestSourceTotal counts which source ultimately produced a
	// suggestion's label.
	SuggestSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_suggest_source_total",
		Help: "Suggestions by source",
	}, []string{"source"})

	// TrainRunsTotal counts completed training runs by outcome.
	TrainRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ml_train_runs_total",
		Help: "Completed training runs by outcome",
	}, []string{"status"})

	// TrainValF1Macro tracks the most recent training run's validation
	// macro-F1.
	TrainValF1Macro = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ml_train_val_f1_macro",
		Help: "Most recent training run's validation macro-F1",
	})
)

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	CacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	CacheMisses.Inc()
}

// RecordRateLimitRejection increments the rate limit rejection counter.
func RecordRateLimitRejection() {
	RateLimitRejections.Inc()
}

// RecordPredictRequest increments the request counter for whether a model
// was available to serve it.
func RecordPredictRequest(available bool) {
	PredictRequestsTotal.WithLabelValues(boolLabel(available)).Inc()
}

// RecordPrediction increments the prediction-outcome counter for whether the
// model's own prediction was accepted.
func RecordPrediction(accepted bool) {
	PredictionsTotal.WithLabelValues(boolLabel(accepted)).Inc()
}

// RecordFallback increments the fallback counter for reason.
func RecordFallback(reason string) {
	FallbackTotal.WithLabelValues(reason).Inc()
}

// RecordPredictLatency observes one request's inference duration.
func RecordPredictLatency(seconds float64) {
	PredictLatency.Observe(seconds)
}

// RecordShadowCompare increments the shadow-compare counter. agree must be
// one of "true", "false", or "rule_null".
func RecordShadowCompare(agree string) {
	SuggestCompareTotal.WithLabelValues(agree).Inc()
}

// RecordSuggestSource increments the suggestion-source counter.
func RecordSuggestSource(source string) {
	SuggestSourceTotal.WithLabelValues(source).Inc()
}

// RecordTrainRun increments the training-run outcome counter and, on
// success, updates the latest macro-F1 gauge.
func RecordTrainRun(status string, f1Macro float64) {
	TrainRunsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		TrainValF1Macro.Set(f1Macro)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
