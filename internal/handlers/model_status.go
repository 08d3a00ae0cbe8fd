package handlers

import "net/http"

// ModelStatusResponse is the body returned by GET /ml/model/status.
type ModelStatusResponse struct {
	Available          bool               `json:"available"`
	RunID              string             `json:"run_id,omitempty"`
	Classes            []string           `json:"classes,omitempty"`
	CalibrationEnabled bool               `json:"calibration_enabled"`
	Thresholds         map[string]float64 `json:"thresholds"`
	CanaryPolicy       string             `json:"canary_policy"`
	ShadowEnabled      bool               `json:"shadow_enabled"`
}

// ModelStatus handles GET /ml/model/status.
func (h *Handlers) ModelStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfgStore.Get()

	thresholds := make(map[string]float64, len(cfg.ThresholdsByClass)+1)
	for class, t := range cfg.ThresholdsByClass {
		thresholds[class] = t
	}
	thresholds["_default"] = cfg.DefaultThreshold

	resp := ModelStatusResponse{
		CalibrationEnabled: cfg.CalibrationEnabled,
		Thresholds:         thresholds,
		CanaryPolicy:       cfg.CanaryPolicy.String(),
		ShadowEnabled:      cfg.ShadowEnabled,
	}

	if entry := h.handle.Get(); entry != nil {
		resp.Available = true
		resp.RunID = entry.RunID
		resp.Classes = entry.Meta.Classes
	}

	writeJSON(w, http.StatusOK, resp)
}
