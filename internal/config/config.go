// Package config loads the environment-driven configuration enumerated in
// the spec into a single immutable Snapshot, generalizing the teacher's
// scattered os.Getenv calls in cmd/server/main.go into one typed loader.
// Thresholds, canary policy, and the shadow flag are runtime-reloadable: the
// process holds one *Snapshot behind an atomic.Pointer, and each serving
// request reads it once at entry so a decision stays internally consistent
// even if config changes mid-flight (spec section 9, "Dynamic" configuration).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// CanaryPolicy is one of "off", "percent:<N>", or "full".
type CanaryPolicy struct {
	Off     bool
	Full    bool
	Percent int // valid only when neither Off nor Full
}

// ParseCanaryPolicy parses a CANARY_POLICY value: "off" (or empty), "full",
// or "percent:<N>" with 0 < N < 100.
func ParseCanaryPolicy(s string) (CanaryPolicy, error) {
	switch {
	case s == "" || s == "off":
		return CanaryPolicy{Off: true}, nil
	case s == "full":
		return CanaryPolicy{Full: true}, nil
	case strings.HasPrefix(s, "percent:"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "percent:"))
		if err != nil || n <= 0 || n >= 100 {
			return CanaryPolicy{}, fmt.Errorf("invalid canary percent in %q", s)
		}
		return CanaryPolicy{Percent: n}, nil
	default:
		return CanaryPolicy{}, fmt.Errorf("unrecognized canary policy %q", s)
	}
}

func (c CanaryPolicy) String() string {
	switch {
	case c.Off:
		return "off"
	case c.Full:
		return "full"
	default:
		return fmt.Sprintf("percent:%d", c.Percent)
	}
}

// Snapshot is an immutable configuration value. Never mutate a Snapshot in
// place; build a new one and swap it into the Store.
type Snapshot struct {
	FeatureWindowDays  int
	NumHashBuckets     int
	EncoderHashSeed    uint64
	ShadowEnabled      bool
	CanaryPolicy       CanaryPolicy
	ThresholdsByClass  map[string]float64
	DefaultThreshold   float64
	CalibrationEnabled bool
	F1MacroMin         float64
	F1ClassMin         float64
	MinValRows         int
	MinPerClass        int
	RegistryRoot       string
	PredictTimeout     time.Duration
	TrainWallClockCap  time.Duration
	DBPath             string
}

// Threshold returns the confidence threshold for a class, falling back to
// the default when the class has no explicit entry.
func (s *Snapshot) Threshold(class string) float64 {
	if t, ok := s.ThresholdsByClass[class]; ok {
		return t
	}
	return s.DefaultThreshold
}

// Default returns baseline configuration before environment overrides.
func Default() *Snapshot {
	return &Snapshot{
		FeatureWindowDays:  90,
		NumHashBuckets:     2048,
		EncoderHashSeed:    12345,
		ShadowEnabled:      true,
		CanaryPolicy:       CanaryPolicy{Off: true},
		ThresholdsByClass:  map[string]float64{},
		DefaultThreshold:   0.60,
		CalibrationEnabled: true,
		F1MacroMin:         0.72,
		F1ClassMin:         0.60,
		MinValRows:         200,
		MinPerClass:        25,
		RegistryRoot:       "data/registry",
		PredictTimeout:     150 * time.Millisecond,
		TrainWallClockCap:  30 * time.Minute,
		DBPath:             "data/mlrf.db",
	}
}

// FromEnv loads a Snapshot from the process environment, applying defaults
// for anything unset.
func FromEnv() (*Snapshot, error) {
	s := Default()

	if v := os.Getenv("FEATURE_WINDOW_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("FEATURE_WINDOW_DAYS: %w", err)
		}
		s.FeatureWindowDays = n
	}
	if v := os.Getenv("NUM_HASH_BUCKETS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("NUM_HASH_BUCKETS: %w", err)
		}
		s.NumHashBuckets = n
	}
	if v := os.Getenv("ENCODER_HASH_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ENCODER_HASH_SEED: %w", err)
		}
		s.EncoderHashSeed = n
	}
	if v := os.Getenv("SHADOW_ENABLED"); v != "" {
		s.ShadowEnabled = v == "1"
	}
	if v := os.Getenv("CANARY_POLICY"); v != "" {
		cp, err := ParseCanaryPolicy(v)
		if err != nil {
			return nil, err
		}
		s.CanaryPolicy = cp
	}
	if v := os.Getenv("THRESHOLDS_JSON"); v != "" {
		raw := map[string]float64{}
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return nil, fmt.Errorf("THRESHOLDS_JSON: %w", err)
		}
		if d, ok := raw["_default"]; ok {
			s.DefaultThreshold = d
			delete(raw, "_default")
		}
		s.ThresholdsByClass = raw
	}
	if v := os.Getenv("CALIBRATION_ENABLED"); v != "" {
		s.CalibrationEnabled = v == "1"
	}
	if v := os.Getenv("F1_MACRO_MIN"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("F1_MACRO_MIN: %w", err)
		}
		s.F1MacroMin = f
	}
	if v := os.Getenv("F1_CLASS_MIN"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("F1_CLASS_MIN: %w", err)
		}
		s.F1ClassMin = f
	}
	if v := os.Getenv("REGISTRY_ROOT"); v != "" {
		s.RegistryRoot = v
	}
	if v := os.Getenv("PREDICT_TIMEOUT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PREDICT_TIMEOUT_MS: %w", err)
		}
		s.PredictTimeout = time.Duration(n) * time.Millisecond
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		s.DBPath = v
	}

	return s, nil
}

// Store holds a hot-swappable Snapshot for the lifetime of a process.
type Store struct {
	ptr atomic.Pointer[Snapshot]
}

// NewStore wraps an initial Snapshot in a Store.
func NewStore(initial *Snapshot) *Store {
	st := &Store{}
	st.ptr.Store(initial)
	return st
}

// Get returns the current Snapshot. Callers should read it once per request.
func (s *Store) Get() *Snapshot {
	return s.ptr.Load()
}

// Swap atomically replaces the current Snapshot.
func (s *Store) Swap(next *Snapshot) {
	s.ptr.Store(next)
}
