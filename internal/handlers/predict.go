package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mlrf/mlrf-suggest/internal/cache"
	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/featurebuilder"
	"github.com/mlrf/mlrf-suggest/internal/serving"
)

// InlineFeatures carries a raw, not-yet-persisted transaction's fields for a
// suggestion request that has no txn_id of its own.
type InlineFeatures struct {
	Merchant    string  `json:"merchant"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
}

// PredictRequest is the body of POST /ml/predict: exactly one of TxnID or
// Features must be set.
type PredictRequest struct {
	TxnID    *int64          `json:"txn_id,omitempty"`
	Features *InlineFeatures `json:"features,omitempty"`
}

// ShadowResponse mirrors domain.ShadowComparison for the wire.
type ShadowResponse struct {
	ModelLabel      *string  `json:"model_label"`
	ModelConfidence *float64 `json:"model_confidence"`
	RuleLabel       *string  `json:"rule_label"`
	Agree           *bool    `json:"agree"`
}

// PredictResponse is the body returned by POST /ml/predict.
type PredictResponse struct {
	Label          string          `json:"label"`
	Confidence     float64         `json:"confidence"`
	Source         string          `json:"source"`
	FallbackReason string          `json:"fallback_reason,omitempty"`
	Shadow         *ShadowResponse `json:"shadow,omitempty"`
	RunID          string          `json:"run_id,omitempty"`
}

// availabilityResponse is the exact 503 body strict mode returns when no
// suggestion could be produced.
type availabilityResponse struct {
	Available bool `json:"available"`
}

// BatchPredictRequest is the body of POST /ml/predict/batch.
type BatchPredictRequest struct {
	Items []PredictRequest `json:"items"`
}

// BatchPredictResponse is the body returned by POST /ml/predict/batch.
type BatchPredictResponse struct {
	Results []PredictResponse `json:"results"`
}

// Predict handles POST /ml/predict.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	var body PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, r, "malformed request body", CodeParseError)
		return
	}

	req, cacheKey, verr := h.resolveServingRequest(body)
	if verr != nil {
		WriteBadRequest(w, r, verr.Message, verr.Code)
		return
	}

	ctx := r.Context()
	if h.cache != nil && cacheKey != "" {
		if cached, err := h.cache.GetSuggestion(ctx, cache.SuggestionKey(cacheKey)); err == nil {
			writeJSON(w, http.StatusOK, cachedToResponse(cached))
			return
		}
	}

	sug := h.pipeline.Predict(ctx, req)

	if r.URL.Query().Get("strict") == "1" && sug.Source == domain.SourceSuggestFallback {
		writeJSON(w, http.StatusServiceUnavailable, availabilityResponse{Available: false})
		return
	}

	if h.cache != nil && cacheKey != "" && sug.Source != domain.SourceSuggestFallback {
		cs := cache.FromSuggestion(sug)
		_ = h.cache.SetSuggestion(ctx, cache.SuggestionKey(cacheKey), &cs)
	}

	writeJSON(w, http.StatusOK, toPredictResponse(sug))
}

// PredictBatch handles POST /ml/predict/batch.
func (h *Handlers) PredictBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchPredictRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, r, "malformed request body", CodeParseError)
		return
	}
	if verr := ValidateBatchSize(len(body.Items)); verr != nil {
		WriteBadRequest(w, r, verr.Message, verr.Code)
		return
	}

	reqs := make([]serving.Request, len(body.Items))
	for i, item := range body.Items {
		req, _, verr := h.resolveServingRequest(item)
		if verr != nil {
			WriteBadRequest(w, r, verr.Message, verr.Code)
			return
		}
		reqs[i] = req
	}

	ctx := r.Context()
	results := make([]PredictResponse, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			sug := h.pipeline.Predict(gctx, req)
			results[i] = toPredictResponse(sug)
			return nil
		})
	}
	_ = g.Wait() // predictions never return an error; Wait only joins the group

	writeJSON(w, http.StatusOK, BatchPredictResponse{Results: results})
}

// resolveServingRequest validates one PredictRequest and turns it into a
// serving.Request plus the cache key that identifies it, if caching applies.
func (h *Handlers) resolveServingRequest(body PredictRequest) (serving.Request, string, *ValidationError) {
	if (body.TxnID == nil) == (body.Features == nil) {
		return serving.Request{}, "", &ValidationError{
			Message: "exactly one of txn_id or features must be set",
			Code:    CodeInvalidRequest,
		}
	}

	if body.TxnID != nil {
		if verr := ValidateTxnID(*body.TxnID); verr != nil {
			return serving.Request{}, "", verr
		}
		return serving.Request{TxnID: body.TxnID}, strconv.FormatInt(*body.TxnID, 10), nil
	}

	if verr := ValidateInlineFeatures(body.Features); verr != nil {
		return serving.Request{}, "", verr
	}

	date := time.Now().UTC()
	if body.Features.Date != "" {
		if d, err := time.Parse(DateFormat, body.Features.Date); err == nil {
			date = d
		}
	}
	row := featurebuilder.AdHocRow(body.Features.Merchant, body.Features.Description, body.Features.Amount, date)
	key := inlineIdempotencyKey(body.Features)
	req := serving.Request{
		Features:       &row,
		Merchant:       body.Features.Merchant,
		Description:    body.Features.Description,
		Amount:         body.Features.Amount,
		IdempotencyKey: key,
	}
	return req, key, nil
}

// inlineIdempotencyKey derives a stable routing and cache key for a
// txn_id-less request, so repeated identical inline payloads get the same
// canary slot and cache entry.
func inlineIdempotencyKey(f *InlineFeatures) string {
	raw := f.Merchant + "|" + f.Description + "|" + strconv.FormatFloat(f.Amount, 'f', -1, 64) + "|" + f.Date
	return strconv.FormatUint(xxhash.Sum64String(raw), 16)
}

func toPredictResponse(sug domain.Suggestion) PredictResponse {
	resp := PredictResponse{
		Label:          sug.Label,
		Confidence:     sug.Confidence,
		Source:         string(sug.Source),
		FallbackReason: sug.FallbackReason,
		RunID:          sug.RunID,
	}
	if sug.Shadow != nil {
		resp.Shadow = &ShadowResponse{
			ModelLabel:      sug.Shadow.ModelLabel,
			ModelConfidence: sug.Shadow.ModelConfidence,
			RuleLabel:       sug.Shadow.RuleLabel,
			Agree:           sug.Shadow.Agree,
		}
	}
	return resp
}

func cachedToResponse(c *cache.CachedSuggestion) PredictResponse {
	return PredictResponse{
		Label:          c.Label,
		Confidence:     c.Confidence,
		Source:         c.Source,
		FallbackReason: c.FallbackReason,
		RunID:          c.RunID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
