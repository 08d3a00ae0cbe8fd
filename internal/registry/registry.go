// Package registry implements the durable, versioned model store: a
// filesystem directory of immutable run artifacts plus an atomically
// swapped "current" pointer, grounded on the teacher's singleton-cache
// reload pattern for the feature store (internal/features/store.go's
// load-then-atomic-swap-on-reload shape in cmd/server/main.go) but backed
// by on-disk run directories instead of one static parquet file.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/calibration"
	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/encoder"
	"github.com/mlrf/mlrf-suggest/internal/gbm"
)

const currentFile = "current"
const currentTmpFile = "current.tmp"

// Meta mirrors meta.json: the run's evaluation summary and the encoder
// configuration it was trained against.
type Meta struct {
	RunID           string                  `json:"run_id"`
	CreatedAt       time.Time               `json:"created_at"`
	Metrics         MetaMetrics             `json:"metrics"`
	Classes         []string                `json:"classes"`
	Encoder         encoder.Config          `json:"encoder"`
	Calibration     bool                    `json:"calibration"`
	ConfigSnapshot  map[string]any          `json:"config_snapshot"`
}

// MetaMetrics is meta.json's nested metrics object.
type MetaMetrics struct {
	F1Macro    float64            `json:"f1_macro"`
	Accuracy   float64            `json:"accuracy"`
	PerClassF1 map[string]float64 `json:"per_class_f1"`
}

// Entry is a fully-loaded registry run: model, encoder, classes, and an
// optional per-class calibrator.
type Entry struct {
	RunID       string
	Meta        Meta
	Model       *gbm.Model
	Encoder     *encoder.Encoder
	Calibrators map[string]calibration.Curve // nil if the run has none
}

// Registry manages runs/<run_id>/ directories under Root and the atomic
// "current" pointer.
type Registry struct {
	Root string
}

// New returns a Registry rooted at root, creating the directory tree if
// absent.
func New(root string) (*Registry, error) {
	if err := os.MkdirAll(filepath.Join(root, "runs"), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryIO, err)
	}
	return &Registry{Root: root}, nil
}

func (r *Registry) runDir(runID string) string {
	return filepath.Join(r.Root, "runs", runID)
}

// WriteRun persists a complete run directory: model.bin, encoder.json,
// classes.json, calibrator.json (if calibrators is non-nil), and meta.json.
// Each file is written to a temp path in the same directory and renamed into
// place, then the directory's contents are fsync'd, satisfying publish's
// precondition that runs/<run_id>/ is complete and durable before it is
// ever pointed at by "current".
func (r *Registry) WriteRun(entry Entry) error {
	dir := r.runDir(entry.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRegistryIO, err)
	}

	modelBytes, err := entry.Model.Marshal()
	if err != nil {
		return fmt.Errorf("%w: marshal model: %v", domain.ErrRegistryIO, err)
	}
	if err := writeFileAtomic(filepath.Join(dir, "model.bin"), modelBytes); err != nil {
		return err
	}

	if err := writeJSONAtomic(filepath.Join(dir, "encoder.json"), entry.Encoder.Config()); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(dir, "classes.json"), entry.Meta.Classes); err != nil {
		return err
	}
	if entry.Calibrators != nil {
		if err := writeJSONAtomic(filepath.Join(dir, "calibrator.json"), entry.Calibrators); err != nil {
			return err
		}
	}
	if err := writeJSONAtomic(filepath.Join(dir, "meta.json"), entry.Meta); err != nil {
		return err
	}

	if err := fsyncDir(dir); err != nil {
		return fmt.Errorf("%w: fsync run dir: %v", domain.ErrRegistryIO, err)
	}
	return nil
}

// Publish atomically swaps "current" to point at runID. It writes a sibling
// "current.tmp" file, fsyncs it, then renames it over "current" -- an
// atomic operation on POSIX filesystems, so concurrent LoadCurrent calls
// always observe either the pre- or post-publish run_id, never a partial
// write.
func (r *Registry) Publish(runID string) error {
	dir := r.runDir(runID)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: run %s not found: %v", domain.ErrRegistryIO, runID, err)
	}

	tmpPath := filepath.Join(r.Root, currentTmpFile)
	if err := writeFileAtomic(tmpPath, []byte(runID)); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, filepath.Join(r.Root, currentFile)); err != nil {
		return fmt.Errorf("%w: rename current pointer: %v", domain.ErrRegistryIO, err)
	}
	if err := fsyncDir(r.Root); err != nil {
		return fmt.Errorf("%w: fsync registry root: %v", domain.ErrRegistryIO, err)
	}
	log.Info().Str("run_id", runID).Msg("registry published new current run")
	return nil
}

// LoadCurrent reads the "current" pointer and loads the run it names. It
// returns domain.ErrNotFound if no run has ever been published.
func (r *Registry) LoadCurrent() (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(r.Root, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: read current pointer: %v", domain.ErrRegistryIO, err)
	}
	runID := string(data)
	return r.Load(runID)
}

// Load loads a specific run by id, regardless of whether it is current.
func (r *Registry) Load(runID string) (*Entry, error) {
	dir := r.runDir(runID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRegistryIO, err)
	}

	modelBytes, err := os.ReadFile(filepath.Join(dir, "model.bin"))
	if err != nil {
		return nil, fmt.Errorf("%w: read model.bin: %v", domain.ErrRegistryIO, err)
	}
	model, err := gbm.Unmarshal(modelBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshal model: %v", domain.ErrRegistryIO, err)
	}

	var encCfg encoder.Config
	if err := readJSON(filepath.Join(dir, "encoder.json"), &encCfg); err != nil {
		return nil, err
	}

	var meta Meta
	if err := readJSON(filepath.Join(dir, "meta.json"), &meta); err != nil {
		return nil, err
	}

	var calibrators map[string]calibration.Curve
	calibPath := filepath.Join(dir, "calibrator.json")
	if _, err := os.Stat(calibPath); err == nil {
		if err := readJSON(calibPath, &calibrators); err != nil {
			return nil, err
		}
	}

	return &Entry{
		RunID:       runID,
		Meta:        meta,
		Model:       model,
		Encoder:     encoder.New(encCfg),
		Calibrators: calibrators,
	}, nil
}

// GC retains the current run plus the keepLast most recently created runs,
// deleting everything else under runs/.
func (r *Registry) GC(keepLast int) (deleted []string, err error) {
	runsDir := filepath.Join(r.Root, "runs")
	infos, err := os.ReadDir(runsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", domain.ErrRegistryIO, err)
	}

	type runInfo struct {
		id      string
		modTime time.Time
	}
	var runs []runInfo
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		fi, err := info.Info()
		if err != nil {
			continue
		}
		runs = append(runs, runInfo{id: info.Name(), modTime: fi.ModTime()})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].modTime.After(runs[j].modTime) })

	keep := map[string]bool{}
	if current, err := r.currentRunID(); err == nil {
		keep[current] = true
	}
	for i := 0; i < len(runs) && i < keepLast; i++ {
		keep[runs[i].id] = true
	}

	for _, run := range runs {
		if keep[run.id] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(runsDir, run.id)); err != nil {
			return deleted, fmt.Errorf("%w: remove run %s: %v", domain.ErrRegistryIO, run.id, err)
		}
		deleted = append(deleted, run.id)
	}
	log.Info().Strs("deleted", deleted).Int("keep_last", keepLast).Msg("registry gc complete")
	return deleted, nil
}

func (r *Registry) currentRunID() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Root, currentFile))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrRegistryIO, path, err)
	}
	f, err := os.Open(tmp)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", domain.ErrRegistryIO, path, err)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", domain.ErrRegistryIO, path, err)
	}
	return writeFileAtomic(path, data)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrRegistryIO, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: unmarshal %s: %v", domain.ErrRegistryIO, path, err)
	}
	return nil
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
