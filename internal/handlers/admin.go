package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/config"
)

// ReloadResponse represents the response from an admin operation.
type ReloadResponse struct {
	Status   string                 `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// requireAdmin enforces the ADMIN_API_KEY / X-Admin-Key gate shared by every
// admin endpoint. It returns false (having already written a response) when
// the caller is not authorized.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	adminKey := os.Getenv("ADMIN_API_KEY")
	if adminKey != "" && r.Header.Get("X-Admin-Key") != adminKey {
		WriteUnauthorized(w, r, "admin authentication required")
		return false
	}
	return true
}

// ReloadRegistry triggers an out-of-band refresh of the serving handle's
// cached registry entry, picking up a new "current" run without waiting for
// the next opportunistic refresh on a predict request.
func (h *Handlers) ReloadRegistry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	h.handle.Refresh()
	entry := h.handle.Get()
	if entry == nil {
		writeJSON(w, http.StatusOK, ReloadResponse{
			Status:  "reloaded",
			Message: "no published run is currently available",
		})
		return
	}

	log.Info().Str("run_id", entry.RunID).Msg("registry reload triggered via admin endpoint")
	writeJSON(w, http.StatusOK, ReloadResponse{
		Status:  "reloaded",
		Message: "registry handle refreshed",
		Metadata: map[string]interface{}{
			"run_id":  entry.RunID,
			"classes": entry.Meta.Classes,
		},
	})
}

// ReloadConfig re-reads the environment-driven configuration and swaps it
// into the process's config.Store, picking up new thresholds, canary
// policy, or shadow-mode toggles without a restart.
func (h *Handlers) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	next, err := config.FromEnv()
	if err != nil {
		WriteBadRequest(w, r, "invalid configuration: "+err.Error(), CodeInvalidRequest)
		return
	}
	h.cfgStore.Swap(next)

	log.Info().Str("canary_policy", next.CanaryPolicy.String()).Bool("shadow_enabled", next.ShadowEnabled).
		Msg("configuration reloaded via admin endpoint")
	writeJSON(w, http.StatusOK, ReloadResponse{
		Status:  "reloaded",
		Message: "configuration snapshot reloaded from environment",
		Metadata: map[string]interface{}{
			"canary_policy":       next.CanaryPolicy.String(),
			"shadow_enabled":      next.ShadowEnabled,
			"calibration_enabled": next.CalibrationEnabled,
		},
	})
}

// RegistryGC triggers registry.Registry.GC, pruning run directories older
// than the most recent keepLast runs (the current run is always retained).
func (h *Handlers) RegistryGC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed", "METHOD_NOT_ALLOWED")
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	keepLast := 5
	if v := r.URL.Query().Get("keep_last"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			keepLast = n
		}
	}

	deleted, err := h.reg.GC(keepLast)
	if err != nil {
		WriteInternalError(w, r, "registry gc failed: "+err.Error(), CodeInternalError)
		return
	}

	log.Info().Strs("deleted", deleted).Int("keep_last", keepLast).Msg("registry gc triggered via admin endpoint")
	writeJSON(w, http.StatusOK, ReloadResponse{
		Status:  "gc_complete",
		Message: "registry garbage collection complete",
		Metadata: map[string]interface{}{
			"deleted":   deleted,
			"keep_last": keepLast,
		},
	})
}

