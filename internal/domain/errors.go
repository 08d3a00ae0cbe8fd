package domain

import "errors"

// Sentinel errors from spec's error taxonomy. Serving never surfaces these as
// 5xx; it converts them into a fallback reason. Training surfaces them to its
// caller and always records a TrainingRun.
var (
	ErrDataUnavailable  = errors.New("data source unavailable")
	ErrInsufficientData = errors.New("insufficient data for training")
	ErrEncoderMismatch  = errors.New("encoder output dimension mismatch")
	ErrModelUnavailable = errors.New("no current model in registry")
	ErrPredictTimeout   = errors.New("inference soft timeout exceeded")
	ErrRegistryIO       = errors.New("registry publish failed")
	ErrNotFound         = errors.New("not found")
)

// FallbackReason enumerates the structured reasons serving returns a
// non-model suggestion, per spec section 6.
type FallbackReason string

const (
	ReasonFeaturesMissing  FallbackReason = "features_missing"
	ReasonModelUnavailable FallbackReason = "model_unavailable"
	ReasonEncoderMismatch  FallbackReason = "encoder_mismatch"
	ReasonLowConfidence    FallbackReason = "low_confidence"
	ReasonRuleMissing      FallbackReason = "rule_missing"
	ReasonPredictTimeout   FallbackReason = "predict_timeout"
	ReasonNoFeaturesNoRule FallbackReason = "no_features_no_rule"
)
