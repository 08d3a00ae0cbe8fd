// Package domain holds the core entities shared by the feature builder,
// trainer, registry, and serving packages.
package domain

import "time"

// LabelSource identifies who produced a Label.
type LabelSource string

const (
	SourceHuman  LabelSource = "human"
	SourceRule   LabelSource = "rule"
	SourceImport LabelSource = "import"
)

// Channel is the inferred payment channel for a transaction.
type Channel string

const (
	ChannelPOS      Channel = "pos"
	ChannelOnline   Channel = "online"
	ChannelTransfer Channel = "transfer"
	ChannelUnknown  Channel = "unknown"
)

// SuggestionSource identifies who produced a Suggestion.
type SuggestionSource string

const (
	SourceSuggestModel    SuggestionSource = "model"
	SourceSuggestRule     SuggestionSource = "rule"
	SourceSuggestFallback SuggestionSource = "fallback"
)

// Transaction is the minimal external entity this module consumes.
type Transaction struct {
	ID          int64
	UserID      int64
	Date        time.Time
	Merchant    string
	Description string
	Amount      float64
	Category    *string
	DeletedAt   *time.Time
}

// Label is an append-only categorization record for a transaction.
type Label struct {
	TxnID     int64
	Label     string
	Source    LabelSource
	CreatedAt time.Time
}

// FeatureRow is the point-in-time feature snapshot for one transaction.
type FeatureRow struct {
	TxnID             int64
	TsMonth           string // YYYY-MM
	MerchantCanonical string
	Tokens            []string
	AbsAmount         float64
	Channel           Channel
	Dow               int
	IsWeekend         bool
	IsSubscription    bool
	NormDesc          string
	BuiltAt           time.Time
}

// ClassMetrics holds per-class evaluation output.
type ClassMetrics struct {
	Class     string  `json:"class"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Support   int     `json:"support"`
}

// RunMetrics is the metrics block of a TrainingRun.
type RunMetrics struct {
	F1Macro     float64        `json:"f1_macro"`
	Accuracy    float64        `json:"accuracy"`
	PerClassF1  []ClassMetrics `json:"per_class_f1"`
	DroppedRows int            `json:"dropped_rows"`
}

// TrainingRun is the append-only audit record for one trainer invocation.
type TrainingRun struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	RowsTrain      int
	RowsVal        int
	Classes        []string
	DroppedClasses []string
	Metrics        RunMetrics
	PassedGate     bool
	Deployed       bool
	ConfigSnapshot map[string]any
	Err            string
}

// ShadowComparison is the optional shadow-mode result attached to a Suggestion.
type ShadowComparison struct {
	ModelLabel      *string `json:"model_label"`
	ModelConfidence *float64 `json:"model_confidence"`
	RuleLabel       *string `json:"rule_label"`
	Agree           *bool   `json:"agree"`
}

// Suggestion is the output of one serving request.
type Suggestion struct {
	TxnID          int64
	Label          string
	Confidence     float64
	Source         SuggestionSource
	FallbackReason string
	RunID          string
	Shadow         *ShadowComparison
}
