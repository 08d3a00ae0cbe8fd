package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateTxnID(t *testing.T) {
	testCases := []struct {
		name        string
		txnID       int64
		expectError bool
	}{
		{"valid positive", 1, false},
		{"valid large", 1000000, false},
		{"zero", 0, true},
		{"negative", -1, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTxnID(tc.txnID)
			if tc.expectError && err == nil {
				t.Errorf("expected error for txn_id %d, got nil", tc.txnID)
			}
			if !tc.expectError && err != nil {
				t.Errorf("unexpected error for txn_id %d: %s", tc.txnID, err.Message)
			}
			if tc.expectError && err != nil && err.Code != CodeInvalidTxnID {
				t.Errorf("expected code %s, got %s", CodeInvalidTxnID, err.Code)
			}
		})
	}
}

func TestValidateInlineFeatures(t *testing.T) {
	testCases := []struct {
		name        string
		f           InlineFeatures
		expectError bool
		errorCode   string
	}{
		{"merchant only", InlineFeatures{Merchant: "Starbucks"}, false, ""},
		{"description only", InlineFeatures{Description: "coffee shop purchase"}, false, ""},
		{"valid date", InlineFeatures{Merchant: "Starbucks", Date: "2026-01-15"}, false, ""},
		{"both empty", InlineFeatures{}, true, CodeMissingInput},
		{"malformed date", InlineFeatures{Merchant: "Starbucks", Date: "01/15/2026"}, true, CodeMissingInput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInlineFeatures(&tc.f)
			if tc.expectError && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tc.expectError && err != nil {
				t.Errorf("unexpected error: %s", err.Message)
			}
			if tc.expectError && err != nil && err.Code != tc.errorCode {
				t.Errorf("expected code %s, got %s", tc.errorCode, err.Code)
			}
		})
	}
}

func TestValidateBatchSize(t *testing.T) {
	testCases := []struct {
		name        string
		size        int
		expectError bool
		errorCode   string
	}{
		{"valid single", 1, false, ""},
		{"valid max", MaxBatchSize, false, ""},
		{"empty batch", 0, true, "EMPTY_BATCH"},
		{"exceeds max", MaxBatchSize + 1, true, CodeBatchTooLarge},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateBatchSize(tc.size)
			if tc.expectError && err == nil {
				t.Errorf("expected error for size %d, got nil", tc.size)
			}
			if !tc.expectError && err != nil {
				t.Errorf("unexpected error for size %d: %s", tc.size, err.Message)
			}
			if tc.expectError && err != nil && err.Code != tc.errorCode {
				t.Errorf("expected code %s, got %s", tc.errorCode, err.Code)
			}
		})
	}
}

func TestPredict_MalformedBody(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/ml/predict", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeParseError)) {
		t.Errorf("expected %s error code, got %s", CodeParseError, w.Body.String())
	}
}

func TestPredict_BothTxnIDAndFeaturesSet(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	txnID := int64(1)
	payload := PredictRequest{TxnID: &txnID, Features: &InlineFeatures{Merchant: "Starbucks"}}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/ml/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeInvalidRequest)) {
		t.Errorf("expected %s error code, got %s", CodeInvalidRequest, w.Body.String())
	}
}

func TestPredict_NeitherTxnIDNorFeaturesSet(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	body, _ := json.Marshal(PredictRequest{})
	req := httptest.NewRequest(http.MethodPost, "/ml/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeInvalidRequest)) {
		t.Errorf("expected %s error code, got %s", CodeInvalidRequest, w.Body.String())
	}
}

func TestPredict_InvalidTxnID(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	txnID := int64(-5)
	body, _ := json.Marshal(PredictRequest{TxnID: &txnID})
	req := httptest.NewRequest(http.MethodPost, "/ml/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeInvalidTxnID)) {
		t.Errorf("expected %s error code, got %s", CodeInvalidTxnID, w.Body.String())
	}
}

func TestPredict_InvalidInlineFeatures(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	body, _ := json.Marshal(PredictRequest{Features: &InlineFeatures{}})
	req := httptest.NewRequest(http.MethodPost, "/ml/predict", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Predict(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeMissingInput)) {
		t.Errorf("expected %s error code, got %s", CodeMissingInput, w.Body.String())
	}
}

func TestPredictBatch_ExceedsMaxSize(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	items := make([]PredictRequest, MaxBatchSize+1)
	for i := range items {
		items[i] = PredictRequest{Features: &InlineFeatures{Merchant: "Starbucks"}}
	}
	body, _ := json.Marshal(BatchPredictRequest{Items: items})
	req := httptest.NewRequest(http.MethodPost, "/ml/predict/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.PredictBatch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeBatchTooLarge)) {
		t.Errorf("expected %s error code, got %s", CodeBatchTooLarge, w.Body.String())
	}
}

func TestPredictBatch_EmptyBatch(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	body, _ := json.Marshal(BatchPredictRequest{Items: []PredictRequest{}})
	req := httptest.NewRequest(http.MethodPost, "/ml/predict/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.PredictBatch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("EMPTY_BATCH")) {
		t.Errorf("expected EMPTY_BATCH error code, got %s", w.Body.String())
	}
}

func TestPredictBatch_InvalidItemInBatch(t *testing.T) {
	h := NewHandlers(nil, nil, nil, nil, nil, nil, nil, nil)

	items := []PredictRequest{
		{Features: &InlineFeatures{Merchant: "Starbucks"}},
		{Features: &InlineFeatures{}},
	}
	body, _ := json.Marshal(BatchPredictRequest{Items: items})
	req := httptest.NewRequest(http.MethodPost, "/ml/predict/batch", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.PredictBatch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(CodeMissingInput)) {
		t.Errorf("expected %s error code, got %s", CodeMissingInput, w.Body.String())
	}
}
