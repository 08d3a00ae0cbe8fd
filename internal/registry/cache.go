package registry

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Handle is serving's read-optimized view of the registry's current entry.
// It caches the loaded Entry and only reloads when the "current" pointer's
// contents change, so a hot predict path never touches disk on every
// request. Matches the teacher's atomic.Pointer-backed feature-store cache
// in cmd/server/main.go, generalized from "reload on SIGHUP" to
// "reload on pointer change, checked opportunistically."
type Handle struct {
	reg     *Registry
	current atomic.Pointer[cachedEntry]
}

type cachedEntry struct {
	runID string
	entry *Entry
}

// NewHandle builds a Handle bound to reg and attempts an initial load. A
// failed initial load is not fatal: Get returns nil until a later refresh
// succeeds, matching the "model_unavailable" fallback path.
func NewHandle(reg *Registry) *Handle {
	h := &Handle{reg: reg}
	h.Refresh()
	return h
}

// Get returns the cached Entry, or nil if no run has ever been published.
func (h *Handle) Get() *Entry {
	c := h.current.Load()
	if c == nil {
		return nil
	}
	return c.entry
}

// Refresh checks whether the on-disk "current" pointer names a different
// run_id than what's cached, and reloads if so. It is safe to call on every
// request; the common case is a single cheap file read.
func (h *Handle) Refresh() {
	runID, err := readCurrentPointer(h.reg.Root)
	if err != nil {
		return
	}
	cached := h.current.Load()
	if cached != nil && cached.runID == runID {
		return
	}
	entry, err := h.reg.Load(runID)
	if err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("failed to load registry entry during refresh")
		return
	}
	h.current.Store(&cachedEntry{runID: runID, entry: entry})
	log.Info().Str("run_id", runID).Msg("serving handle picked up new current run")
}

func readCurrentPointer(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, currentFile))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
