package registry

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mlrf/mlrf-suggest/internal/calibration"
	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/encoder"
	"github.com/mlrf/mlrf-suggest/internal/gbm"
)

func mustFitTinyModel(t *testing.T) *gbm.Model {
	t.Helper()
	X := [][]float64{{0, 0}, {1, 1}, {0.1, 0.1}, {0.9, 0.9}}
	y := []int{0, 1, 0, 1}
	w := []float64{1, 1, 1, 1}
	params := gbm.DefaultParams()
	params.NumRounds = 5
	m, err := gbm.Fit(X, y, w, []string{"groceries", "rent"}, params)
	if err != nil {
		t.Fatalf("gbm.Fit() error = %v", err)
	}
	return m
}

func newTestEntry(t *testing.T, runID string) Entry {
	model := mustFitTinyModel(t)
	encCfg := encoder.DefaultConfig(64, 1)
	return Entry{
		RunID: runID,
		Meta: Meta{
			RunID:     runID,
			CreatedAt: time.Unix(0, 0).UTC(),
			Metrics:   MetaMetrics{F1Macro: 0.8, Accuracy: 0.8, PerClassF1: map[string]float64{"groceries": 0.8, "rent": 0.8}},
			Classes:   []string{"groceries", "rent"},
			Encoder:   encCfg,
			Calibration: true,
		},
		Model:   model,
		Encoder: encoder.New(encCfg),
		Calibrators: map[string]calibration.Curve{
			"groceries": {X: []float64{0, 1}, Y: []float64{0, 1}},
		},
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	entry := newTestEntry(t, "run-1")
	if err := reg.WriteRun(entry); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}

	loaded, err := reg.Load("run-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Meta.Classes[0] != "groceries" {
		t.Errorf("loaded classes = %v, want groceries first", loaded.Meta.Classes)
	}
	if loaded.Calibrators == nil || loaded.Calibrators["groceries"].Y[1] != 1 {
		t.Errorf("loaded calibrators missing or wrong: %+v", loaded.Calibrators)
	}
}

func TestLoadCurrentBeforePublishReturnsNotFound(t *testing.T) {
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = reg.LoadCurrent()
	if err != domain.ErrNotFound {
		t.Errorf("LoadCurrent() error = %v, want ErrNotFound", err)
	}
}

func TestPublishAndLoadCurrent(t *testing.T) {
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	entry := newTestEntry(t, "run-1")
	if err := reg.WriteRun(entry); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	if err := reg.Publish("run-1"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	current, err := reg.LoadCurrent()
	if err != nil {
		t.Fatalf("LoadCurrent() error = %v", err)
	}
	if current.RunID != "run-1" {
		t.Errorf("LoadCurrent().RunID = %s, want run-1", current.RunID)
	}
}

func TestConcurrentReadsDuringPublishNeverSeePartialEntry(t *testing.T) {
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	first := newTestEntry(t, "run-1")
	second := newTestEntry(t, "run-2")
	if err := reg.WriteRun(first); err != nil {
		t.Fatalf("WriteRun(first) error = %v", err)
	}
	if err := reg.WriteRun(second); err != nil {
		t.Fatalf("WriteRun(second) error = %v", err)
	}
	if err := reg.Publish("run-1"); err != nil {
		t.Fatalf("Publish(run-1) error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := reg.LoadCurrent()
			if err != nil {
				errs <- err
				return
			}
			if e.RunID != "run-1" && e.RunID != "run-2" {
				errs <- fmt.Errorf("unexpected run_id %q", e.RunID)
			}
		}()
	}
	if err := reg.Publish("run-2"); err != nil {
		t.Fatalf("Publish(run-2) error = %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent LoadCurrent returned unexpected error: %v", err)
		}
	}
}

func TestGCKeepsCurrentAndMostRecent(t *testing.T) {
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := reg.WriteRun(newTestEntry(t, id)); err != nil {
			t.Fatalf("WriteRun(%s) error = %v", id, err)
		}
	}
	if err := reg.Publish("run-a"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	deleted, err := reg.GC(0)
	if err != nil {
		t.Fatalf("GC() error = %v", err)
	}
	if _, err := reg.Load("run-a"); err != nil {
		t.Errorf("current run-a should survive GC, got error %v", err)
	}
	if len(deleted) == 0 {
		t.Error("expected GC to delete at least one non-current run")
	}
}

func TestHandleRefreshPicksUpNewPublish(t *testing.T) {
	reg, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := reg.WriteRun(newTestEntry(t, "run-1")); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	if err := reg.Publish("run-1"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	h := NewHandle(reg)
	if h.Get() == nil || h.Get().RunID != "run-1" {
		t.Fatalf("initial Get() = %+v, want run-1", h.Get())
	}

	if err := reg.WriteRun(newTestEntry(t, "run-2")); err != nil {
		t.Fatalf("WriteRun() error = %v", err)
	}
	if err := reg.Publish("run-2"); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	h.Refresh()
	if h.Get().RunID != "run-2" {
		t.Errorf("after refresh Get().RunID = %s, want run-2", h.Get().RunID)
	}
}
