package handlers

import (
	"errors"
	"net/http"

	"github.com/mlrf/mlrf-suggest/internal/domain"
)

// TrainResponse is the body returned by POST /ml/train.
type TrainResponse struct {
	RunID          string   `json:"run_id"`
	RowsTrain      int      `json:"rows_train"`
	RowsVal        int      `json:"rows_val"`
	Classes        []string `json:"classes"`
	DroppedClasses []string `json:"dropped_classes,omitempty"`
	F1Macro        float64  `json:"f1_macro"`
	Accuracy       float64  `json:"accuracy"`
	PassedGate     bool     `json:"passed_gate"`
	Deployed       bool     `json:"deployed"`
	Error          string   `json:"error,omitempty"`
}

// Train handles POST /ml/train. It runs the trainer synchronously against
// the current configuration snapshot and always returns the resulting
// domain.TrainingRun audit record, even when the gate rejects the run.
func (h *Handlers) Train(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	run, err := h.trainer.Run(r.Context(), h.cfgStore.Get())
	if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		WriteInternalError(w, r, "training run failed: "+err.Error(), CodeInternalError)
		return
	}

	writeJSON(w, http.StatusOK, toTrainResponse(run))
}

func toTrainResponse(run domain.TrainingRun) TrainResponse {
	return TrainResponse{
		RunID:          run.RunID,
		RowsTrain:      run.RowsTrain,
		RowsVal:        run.RowsVal,
		Classes:        run.Classes,
		DroppedClasses: run.DroppedClasses,
		F1Macro:        run.Metrics.F1Macro,
		Accuracy:       run.Metrics.Accuracy,
		PassedGate:     run.PassedGate,
		Deployed:       run.Deployed,
		Error:          run.Err,
	}
}
