package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string `json:"status"`
	Registry string `json:"registry"`
	Redis    string `json:"redis"`
	Store    string `json:"store"`
	RunID    string `json:"run_id,omitempty"`
}

// Health returns the composite health status of the service: whether the
// registry has a published run loaded, whether the store is reachable, and
// whether the optional Redis cache is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}

	entry := h.handle.Get()
	if entry != nil {
		resp.Registry = "loaded"
		resp.RunID = entry.RunID
	} else {
		resp.Registry = "no published run"
		resp.Status = "degraded"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		resp.Store = "unreachable"
		resp.Status = "unhealthy"
	} else {
		resp.Store = "connected"
	}

	if h.cache == nil {
		resp.Redis = "not configured"
	} else if err := h.cache.Ping(ctx); err != nil {
		resp.Redis = "unreachable"
		if resp.Status == "healthy" {
			resp.Status = "degraded"
		}
	} else {
		resp.Redis = "connected"
	}

	status := http.StatusOK
	if resp.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// MetricsJSON returns a JSON snapshot of the service's key gauges and cache
// statistics, a lighter-weight companion to the Prometheus text endpoint for
// dashboards that prefer JSON.
func (h *Handlers) MetricsJSON(w http.ResponseWriter, r *http.Request) {
	out := map[string]interface{}{
		"registry_loaded": h.handle.Get() != nil,
	}
	if h.cache != nil {
		out["cache_stats"] = h.cache.Stats()
	}
	cfg := h.cfgStore.Get()
	out["shadow_enabled"] = cfg.ShadowEnabled
	out["canary_policy"] = cfg.CanaryPolicy.String()
	out["calibration_enabled"] = cfg.CalibrationEnabled

	writeJSON(w, http.StatusOK, out)
}
