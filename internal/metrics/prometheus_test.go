package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestsTotal(t *testing.T) {
	RequestsTotal.Reset()

	RequestsTotal.WithLabelValues("/health", "GET", "200").Inc()
	RequestsTotal.WithLabelValues("/ml/predict", "POST", "200").Inc()
	RequestsTotal.WithLabelValues("/ml/predict", "POST", "200").Inc()
	RequestsTotal.WithLabelValues("/ml/predict", "POST", "400").Inc()

	if v := testutil.ToFloat64(RequestsTotal.WithLabelValues("/health", "GET", "200")); v != 1 {
		t.Errorf("expected 1 /health request, got %v", v)
	}
	if v := testutil.ToFloat64(RequestsTotal.WithLabelValues("/ml/predict", "POST", "200")); v != 2 {
		t.Errorf("expected 2 successful /ml/predict requests, got %v", v)
	}
	if v := testutil.ToFloat64(RequestsTotal.WithLabelValues("/ml/predict", "POST", "400")); v != 1 {
		t.Errorf("expected 1 failed /ml/predict request, got %v", v)
	}
}

func TestRequestDuration(t *testing.T) {
	RequestDuration.Reset()

	RequestDuration.WithLabelValues("/ml/predict").Observe(0.005)
	RequestDuration.WithLabelValues("/ml/predict").Observe(0.010)
	RequestDuration.WithLabelValues("/ml/predict").Observe(0.015)

	count := testutil.ToFloat64(RequestDuration.WithLabelValues("/ml/predict"))
	if count != 3 {
		t.Errorf("expected 3 observations, got %v", count)
	}
}

func TestCacheMetrics(t *testing.T) {
	initialHits := testutil.ToFloat64(CacheHits)
	initialMisses := testutil.ToFloat64(CacheMisses)

	RecordCacheHit()
	RecordCacheHit()
	RecordCacheMiss()

	if v := testutil.ToFloat64(CacheHits) - initialHits; v != 2 {
		t.Errorf("expected 2 cache hits, got %v", v)
	}
	if v := testutil.ToFloat64(CacheMisses) - initialMisses; v != 1 {
		t.Errorf("expected 1 cache miss, got %v", v)
	}
}

func TestRateLimitRejectionMetrics(t *testing.T) {
	initial := testutil.ToFloat64(RateLimitRejections)

	RecordRateLimitRejection()
	RecordRateLimitRejection()
	RecordRateLimitRejection()

	if v := testutil.ToFloat64(RateLimitRejections) - initial; v != 3 {
		t.Errorf("expected 3 rate limit rejections, got %v", v)
	}
}

func TestActiveConnections(t *testing.T) {
	ActiveConnections.Set(0)

	ActiveConnections.Inc()
	ActiveConnections.Inc()
	if v := testutil.ToFloat64(ActiveConnections); v != 2 {
		t.Errorf("expected 2 active connections, got %v", v)
	}

	ActiveConnections.Dec()
	if v := testutil.ToFloat64(ActiveConnections); v != 1 {
		t.Errorf("expected 1 active connection, got %v", v)
	}
}

func TestRecordPredictRequest(t *testing.T) {
	PredictRequestsTotal.Reset()

	RecordPredictRequest(true)
	RecordPredictRequest(true)
	RecordPredictRequest(false)

	if v := testutil.ToFloat64(PredictRequestsTotal.WithLabelValues("true")); v != 2 {
		t.Errorf("expected 2 available=true requests, got %v", v)
	}
	if v := testutil.ToFloat64(PredictRequestsTotal.WithLabelValues("false")); v != 1 {
		t.Errorf("expected 1 available=false request, got %v", v)
	}
}

func TestRecordPrediction(t *testing.T) {
	PredictionsTotal.Reset()

	RecordPrediction(true)
	RecordPrediction(false)
	RecordPrediction(false)

	if v := testutil.ToFloat64(PredictionsTotal.WithLabelValues("true")); v != 1 {
		t.Errorf("expected 1 accepted prediction, got %v", v)
	}
	if v := testutil.ToFloat64(PredictionsTotal.WithLabelValues("false")); v != 2 {
		t.Errorf("expected 2 non-accepted predictions, got %v", v)
	}
}

func TestRecordFallback(t *testing.T) {
	FallbackTotal.Reset()

	RecordFallback("low_confidence")
	RecordFallback("low_confidence")
	RecordFallback("model_unavailable")

	if v := testutil.ToFloat64(FallbackTotal.WithLabelValues("low_confidence")); v != 2 {
		t.Errorf("expected 2 low_confidence fallbacks, got %v", v)
	}
	if v := testutil.ToFloat64(FallbackTotal.WithLabelValues("model_unavailable")); v != 1 {
		t.Errorf("expected 1 model_unavailable fallback, got %v", v)
	}
}

func TestRecordShadowCompare(t *testing.T) {
	SuggestCompareTotal.Reset()

	RecordShadowCompare("true")
	RecordShadowCompare("false")
	RecordShadowCompare("rule_null")
	RecordShadowCompare("rule_null")

	if v := testutil.ToFloat64(SuggestCompareTotal.WithLabelValues("rule_null")); v != 2 {
		t.Errorf("expected 2 rule_null comparisons, got %v", v)
	}
}

func TestRecordTrainRun(t *testing.T) {
	TrainRunsTotal.Reset()

	RecordTrainRun("success", 0.81)
	RecordTrainRun("gate_failed", 0)

	if v := testutil.ToFloat64(TrainRunsTotal.WithLabelValues("success")); v != 1 {
		t.Errorf("expected 1 success run, got %v", v)
	}
	if v := testutil.ToFloat64(TrainValF1Macro); v != 0.81 {
		t.Errorf("expected f1_macro gauge 0.81, got %v", v)
	}
}

func TestMetricsAreRegistered(t *testing.T) {
	collectors := []prometheus.Collector{
		RequestsTotal,
		RequestDuration,
		CacheHits,
		CacheMisses,
		ActiveConnections,
		RateLimitRejections,
		PredictRequestsTotal,
		PredictionsTotal,
		FallbackTotal,
		PredictLatency,
		SuggestCompareTotal,
		SuggestSourceTotal,
		TrainRunsTotal,
		TrainValF1Macro,
	}

	for _, m := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		found := false
		for desc := range ch {
			if desc != nil {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("metric not properly registered: %v", m)
		}
	}
}
