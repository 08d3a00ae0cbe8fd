// Package serving implements the request-scoped suggestion pipeline:
// resolve features, resolve the current model, encode, predict, calibrate,
// threshold, canary-route, shadow-compare, and emit metrics. Grounded on the
// teacher's request-handling shape in internal/handlers/predict.go (resolve
// inputs, call the model, shape a response, record metrics) but rebuilt
// around the spec's eleven-step fallback-aware state machine instead of a
// single ONNX call.
package serving

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/calibration"
	"github.com/mlrf/mlrf-suggest/internal/config"
	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/metrics"
	"github.com/mlrf/mlrf-suggest/internal/registry"
	"github.com/mlrf/mlrf-suggest/internal/rules"
)

// FeatureLookup is the narrow read surface serving needs from the store,
// kept as an interface so tests can supply an in-memory double without
// standing up sqlite.
type FeatureLookup interface {
	GetFeatureRow(ctx context.Context, txnID int64) (*domain.FeatureRow, error)
	GetTransaction(ctx context.Context, txnID int64) (*domain.Transaction, error)
}

// Request is one suggestion request. Either TxnID or Features must be set;
// TxnID takes precedence when both are present (tests use inline Features).
type Request struct {
	TxnID          *int64
	Features       *domain.FeatureRow
	Merchant       string
	Description    string
	Amount         float64
	IdempotencyKey string
}

// Pipeline executes the suggestion state machine.
type Pipeline struct {
	store   FeatureLookup
	handle  *registry.Handle
	rules   rules.Engine
	cfgStor *config.Store
}

// New builds a Pipeline.
func New(store FeatureLookup, handle *registry.Handle, engine rules.Engine, cfgStore *config.Store) *Pipeline {
	return &Pipeline{store: store, handle: handle, rules: engine, cfgStor: cfgStore}
}

// Predict runs the full RESOLVE_FEATURES -> EMIT pipeline for one request.
// It never returns an error: every code path produces a Suggestion with a
// source and, if fallback, a fallback_reason.
func (p *Pipeline) Predict(ctx context.Context, req Request) domain.Suggestion {
	cfg := p.cfgStor.Get()
	p.handle.Refresh()

	sug := domain.Suggestion{Source: domain.SourceSuggestFallback, Label: "unknown"}
	if req.TxnID != nil {
		sug.TxnID = *req.TxnID
	}

	merchant, description, amount := req.Merchant, req.Description, req.Amount
	row := req.Features

	// Step 1: RESOLVE_FEATURES.
	if req.TxnID != nil {
		txn, err := p.store.GetTransaction(ctx, *req.TxnID)
		if err == nil {
			merchant, description, amount = txn.Merchant, txn.Description, txn.Amount
		}
		fr, err := p.store.GetFeatureRow(ctx, *req.TxnID)
		if err != nil {
			return p.fallbackWithRules(ctx, sug, merchant, description, amount, domain.ReasonFeaturesMissing, nil)
		}
		row = fr
	}
	if row == nil {
		return p.fallbackWithRules(ctx, sug, merchant, description, amount, domain.ReasonFeaturesMissing, nil)
	}

	// Step 2: RESOLVE_MODEL.
	entry := p.handle.Get()
	metrics.RecordPredictRequest(entry != nil)
	if entry == nil {
		return p.fallbackWithRules(ctx, sug, merchant, description, amount, domain.ReasonModelUnavailable, nil)
	}
	sug.RunID = entry.RunID

	// Step 3: ENCODE.
	vec := entry.Encoder.Transform(*row)
	if err := entry.Encoder.ValidateDims(vec); err != nil {
		log.Warn().Err(err).Msg("encoder dimension mismatch, degrading to rules")
		return p.fallbackWithRules(ctx, sug, merchant, description, amount, domain.ReasonEncoderMismatch, &entry.RunID)
	}

	// Step 4-5: PREDICT, CALIBRATE, with a soft timeout.
	predictCtx, cancel := context.WithTimeout(ctx, cfg.PredictTimeout)
	defer cancel()

	type predictResult struct {
		probs map[string]float64
	}
	resultCh := make(chan predictResult, 1)
	start := time.Now()
	go func() {
		probs := entry.Model.Predict(vec)
		if cfg.CalibrationEnabled && entry.Calibrators != nil {
			probs = calibrateProbs(probs, entry.Calibrators)
		}
		resultCh <- predictResult{probs: probs}
	}()

	var probs map[string]float64
	select {
	case res := <-resultCh:
		metrics.RecordPredictLatency(time.Since(start).Seconds())
		probs = res.probs
	case <-predictCtx.Done():
		return p.fallbackWithRules(ctx, sug, merchant, description, amount, domain.ReasonPredictTimeout, &entry.RunID)
	}

	// Step 6: THRESHOLD.
	argmax, confidence := argmaxTieBreak(probs, entry.Meta.Classes)
	threshold := cfg.Threshold(argmax)
	confident := confidence >= threshold

	// Step 7: ROUTE.
	routingKey := canaryKey(req)
	useModelSlot := canaryDecision(cfg.CanaryPolicy, routingKey)

	// Step 8: DECIDE.
	ruleLabel, ruleOK := p.rules.Apply(merchant, description, amount)
	if confident && useModelSlot {
		sug.Source = domain.SourceSuggestModel
		sug.Label = argmax
		sug.Confidence = confidence
	} else {
		reason := domain.ReasonLowConfidence
		if confident {
			// Model was confident but the canary slot routed away from it.
			reason = domain.ReasonRuleMissing
		}
		if ruleOK {
			sug.Source = domain.SourceSuggestRule
			sug.Label = ruleLabel
			sug.Confidence = 1.0
		} else {
			sug.Source = domain.SourceSuggestFallback
			sug.Label = "unknown"
			sug.Confidence = 0
			sug.FallbackReason = string(reason)
			metrics.RecordFallback(string(reason))
		}
	}

	// Step 9: SHADOW_COMPARE.
	if cfg.ShadowEnabled {
		sug.Shadow = buildShadowComparison(argmax, confidence, ruleLabel, ruleOK)
		recordShadowMetric(sug.Shadow)
	}

	// Step 10-11: EMIT.
	metrics.RecordPrediction(sug.Source == domain.SourceSuggestModel)
	metrics.RecordSuggestSource(string(sug.Source))
	return sug
}

// fallbackWithRules is the shared tail for every early-exit path: call the
// rule engine, and if it has no opinion, return the "unknown" fallback.
// Every path through here records the fallback-reason and suggest-source
// metrics exactly once, whichever branch is taken.
func (p *Pipeline) fallbackWithRules(ctx context.Context, sug domain.Suggestion, merchant, description string, amount float64, reason domain.FallbackReason, runID *string) domain.Suggestion {
	if runID != nil {
		sug.RunID = *runID
	}
	label, ok := p.rules.Apply(merchant, description, amount)
	if ok {
		sug.Source = domain.SourceSuggestRule
		sug.Label = label
		sug.Confidence = 1.0
		metrics.RecordFallback(string(reason))
		metrics.RecordPrediction(false)
		metrics.RecordSuggestSource(string(sug.Source))
		return sug
	}
	sug.Source = domain.SourceSuggestFallback
	sug.Label = "unknown"
	sug.Confidence = 0
	finalReason := reason
	if finalReason == "" {
		finalReason = domain.ReasonRuleMissing
	} else if reason == domain.ReasonFeaturesMissing {
		finalReason = domain.ReasonNoFeaturesNoRule
	}
	sug.FallbackReason = string(finalReason)
	metrics.RecordFallback(string(finalReason))
	metrics.RecordPrediction(false)
	metrics.RecordSuggestSource(string(sug.Source))
	return sug
}

func calibrateProbs(raw map[string]float64, curves map[string]calibration.Curve) map[string]float64 {
	calibrated := make(map[string]float64, len(raw))
	for cls, p := range raw {
		if curve, ok := curves[cls]; ok {
			calibrated[cls] = curve.Apply(p)
		} else {
			calibrated[cls] = p
		}
	}
	return calibration.Renormalize(calibrated)
}

// argmaxTieBreak finds the highest-probability class, resolving ties within
// 1e-12 to the lexicographically smaller label. classes must be the model's
// canonical ordering so iteration order is deterministic.
func argmaxTieBreak(probs map[string]float64, classes []string) (string, float64) {
	best := ""
	bestP := -1.0
	for _, cls := range classes {
		p := probs[cls]
		if p > bestP+1e-12 {
			bestP = p
			best = cls
		} else if p >= bestP-1e-12 && best != "" && cls < best {
			best = cls
		}
	}
	return best, bestP
}

// canaryKey returns the stable routing key for a request: txn_id when
// available, otherwise the caller-supplied idempotency key.
func canaryKey(req Request) string {
	if req.TxnID != nil {
		return strconv.FormatInt(*req.TxnID, 10)
	}
	return req.IdempotencyKey
}

func canaryDecision(policy config.CanaryPolicy, key string) bool {
	switch {
	case policy.Full:
		return true
	case policy.Off:
		return false
	default:
		if key == "" {
			return false
		}
		slot := xxhash.Sum64String(key) % 100
		return slot < uint64(policy.Percent)
	}
}

func buildShadowComparison(modelLabel string, modelConfidence float64, ruleLabel string, ruleOK bool) *domain.ShadowComparison {
	sc := &domain.ShadowComparison{}
	if modelLabel != "" {
		ml := modelLabel
		mc := modelConfidence
		sc.ModelLabel = &ml
		sc.ModelConfidence = &mc
	}
	if ruleOK {
		rl := ruleLabel
		sc.RuleLabel = &rl
		if modelLabel != "" {
			agree := strings.EqualFold(modelLabel, ruleLabel)
			sc.Agree = &agree
		}
	}
	return sc
}

func recordShadowMetric(sc *domain.ShadowComparison) {
	if sc == nil || sc.RuleLabel == nil {
		metrics.RecordShadowCompare("rule_null")
		return
	}
	if sc.Agree == nil {
		metrics.RecordShadowCompare("rule_null")
		return
	}
	if *sc.Agree {
		metrics.RecordShadowCompare("true")
	} else {
		metrics.RecordShadowCompare("false")
	}
}
