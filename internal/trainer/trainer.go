// Package trainer orchestrates one end-to-end training run: assembling the
// labeled dataset, temporal train/validation split, fitting the classifier
// and its calibrators, evaluating against the deployment gate, and
// publishing to the registry on pass. Grounded on the teacher's pipeline
// shape in cmd/server/main.go's startup sequence (load, validate, decide,
// log outcome) but as a batch job instead of a boot-time step.
package trainer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/calibration"
	"github.com/mlrf/mlrf-suggest/internal/config"
	"github.com/mlrf/mlrf-suggest/internal/domain"
	"github.com/mlrf/mlrf-suggest/internal/encoder"
	"github.com/mlrf/mlrf-suggest/internal/gbm"
	"github.com/mlrf/mlrf-suggest/internal/metrics"
	"github.com/mlrf/mlrf-suggest/internal/registry"
	"github.com/mlrf/mlrf-suggest/internal/store"
)

// sourceWeight implements the fixed per-label-source sample weights.
var sourceWeight = map[domain.LabelSource]float64{
	domain.SourceHuman:  3.0,
	domain.SourceRule:   1.0,
	domain.SourceImport: 0.5,
}

// maxEncodingDropRate aborts a run if more rows than this fraction fail to
// encode.
const maxEncodingDropRate = 0.05

// Trainer runs training jobs against a store and publishes accepted models
// to a registry.
type Trainer struct {
	store *store.Store
	reg   *registry.Registry
}

// New builds a Trainer.
func New(s *store.Store, reg *registry.Registry) *Trainer {
	return &Trainer{store: s, reg: reg}
}

// Run executes one training run using the given configuration snapshot. It
// always returns a domain.TrainingRun describing the outcome, even on
// failure paths that do not publish.
func (t *Trainer) Run(ctx context.Context, cfg *config.Snapshot) (domain.TrainingRun, error) {
	runID := uuid.NewString()
	run := domain.TrainingRun{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}

	deadline := time.Now().Add(cfg.TrainWallClockCap)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	labeled, err := t.store.LabeledFeatureRows(ctx, []domain.LabelSource{domain.SourceHuman, domain.SourceRule, domain.SourceImport})
	if err != nil {
		run.Err = err.Error()
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, fmt.Errorf("%w: %v", domain.ErrDataUnavailable, err)
	}

	trainRows, valRows, splitMonth, err := temporalSplit(labeled, cfg.MinValRows)
	if err != nil {
		run.Err = err.Error()
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, err
	}
	log.Info().Str("run_id", runID).Str("split_month", splitMonth).
		Int("train_rows", len(trainRows)).Int("val_rows", len(valRows)).Msg("temporal split computed")

	trainRows, droppedClasses := filterMinPerClass(trainRows, cfg.MinPerClass)
	run.DroppedClasses = droppedClasses

	classes := distinctClasses(trainRows, valRows)
	if len(classes) < 2 {
		run.Err = "fewer than 2 classes remain after filtering"
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, fmt.Errorf("%w: fewer than 2 classes remain after filtering", domain.ErrInsufficientData)
	}
	run.Classes = classes

	encCfg := encoder.DefaultConfig(cfg.NumHashBuckets, cfg.EncoderHashSeed)
	enc := encoder.New(encCfg)

	X, y, weights, dropped, err := encodeDataset(enc, trainRows, classes)
	if err != nil {
		run.Err = err.Error()
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, err
	}
	run.RowsTrain = len(X)
	dropRate := float64(dropped) / float64(len(trainRows))
	if dropRate > maxEncodingDropRate {
		run.Err = fmt.Sprintf("encoding drop rate %.3f exceeds %.3f", dropRate, maxEncodingDropRate)
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, fmt.Errorf("%w: %s", domain.ErrInsufficientData, run.Err)
	}

	params := gbm.DefaultParams()
	model, err := gbm.Fit(X, y, weights, classes, params)
	if err != nil {
		run.Err = err.Error()
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, fmt.Errorf("training failed: %w", err)
	}

	valX, valY, _, _, err := encodeDataset(enc, valRows, classes)
	if err != nil {
		run.Err = err.Error()
		run.FinishedAt = time.Now().UTC()
		metrics.RecordTrainRun("error", 0)
		return run, err
	}
	run.RowsVal = len(valX)

	uncalibratedPreds := make([]string, len(valX))
	for i, x := range valX {
		probs := model.Predict(x)
		uncalibratedPreds[i] = argmaxClass(probs, classes)
	}
	runMetrics := evaluate(classes, valY, uncalibratedPreds)
	run.Metrics = runMetrics

	var calibrators map[string]calibration.Curve
	if cfg.CalibrationEnabled {
		calibrators = fitCalibrators(model, valX, valY, classes)
	}

	passed := runMetrics.F1Macro >= cfg.F1MacroMin
	for _, cm := range runMetrics.PerClassF1 {
		if cm.F1 < cfg.F1ClassMin {
			passed = false
		}
	}
	run.PassedGate = passed
	run.ConfigSnapshot = snapshotToMap(cfg)
	run.FinishedAt = time.Now().UTC()

	if !passed {
		run.Deployed = false
		metrics.RecordTrainRun("gate_failed", runMetrics.F1Macro)
		log.Warn().Str("run_id", runID).Float64("f1_macro", runMetrics.F1Macro).Msg("training run failed deployment gate")
		return run, nil
	}

	entry := registry.Entry{
		RunID: runID,
		Meta: registry.Meta{
			RunID:     runID,
			CreatedAt: run.FinishedAt,
			Metrics: registry.MetaMetrics{
				F1Macro:    runMetrics.F1Macro,
				Accuracy:   runMetrics.Accuracy,
				PerClassF1: perClassF1Map(runMetrics),
			},
			Classes:        classes,
			Encoder:        encCfg,
			Calibration:    cfg.CalibrationEnabled,
			ConfigSnapshot: run.ConfigSnapshot,
		},
		Model:       model,
		Encoder:     enc,
		Calibrators: calibrators,
	}

	if err := t.reg.WriteRun(entry); err != nil {
		run.Deployed = false
		run.Err = err.Error()
		metrics.RecordTrainRun("error", 0)
		log.Error().Err(err).Str("run_id", runID).Msg("failed to write run artifacts")
		return run, nil
	}
	if err := t.reg.Publish(runID); err != nil {
		run.Deployed = false
		run.Err = err.Error()
		metrics.RecordTrainRun("error", 0)
		log.Error().Err(err).Str("run_id", runID).Msg("failed to publish run, previous current left untouched")
		return run, nil
	}

	run.Deployed = true
	metrics.RecordTrainRun("success", runMetrics.F1Macro)
	log.Info().Str("run_id", runID).Float64("f1_macro", runMetrics.F1Macro).Msg("training run passed gate and was published")
	return run, nil
}

// temporalSplit finds T_split, the latest ts_month with at least minValRows
// rows, and partitions rows strictly before it into train and rows equal to
// it into validation.
func temporalSplit(rows []store.LabeledRow, minValRows int) (train, val []store.LabeledRow, splitMonth string, err error) {
	countByMonth := map[string]int{}
	for _, r := range rows {
		countByMonth[r.Row.TsMonth]++
	}

	var months []string
	for m := range countByMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	for i := len(months) - 1; i >= 0; i-- {
		m := months[i]
		if countByMonth[m] >= minValRows {
			splitMonth = m
			break
		}
	}
	if splitMonth == "" {
		return nil, nil, "", fmt.Errorf("%w: no month has >= %d rows for validation", domain.ErrInsufficientData, minValRows)
	}

	for _, r := range rows {
		switch {
		case r.Row.TsMonth < splitMonth:
			train = append(train, r)
		case r.Row.TsMonth == splitMonth:
			val = append(val, r)
		}
	}
	return train, val, splitMonth, nil
}

// filterMinPerClass drops classes with fewer than minPerClass train rows,
// returning the surviving rows and the names of dropped classes.
func filterMinPerClass(rows []store.LabeledRow, minPerClass int) (kept []store.LabeledRow, dropped []string) {
	counts := map[string]int{}
	for _, r := range rows {
		counts[r.Label]++
	}
	droppedSet := map[string]bool{}
	for label, n := range counts {
		if n < minPerClass {
			droppedSet[label] = true
			dropped = append(dropped, label)
		}
	}
	sort.Strings(dropped)
	for _, r := range rows {
		if !droppedSet[r.Label] {
			kept = append(kept, r)
		}
	}
	return kept, dropped
}

func distinctClasses(sets ...[]store.LabeledRow) []string {
	seen := map[string]bool{}
	for _, rows := range sets {
		for _, r := range rows {
			seen[r.Label] = true
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// encodeDataset transforms each labeled row through enc, skipping rows whose
// label is not in classes or whose encoding fails validation.
func encodeDataset(enc *encoder.Encoder, rows []store.LabeledRow, classes []string) (X [][]float64, y []int, weights []float64, dropped int, err error) {
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	classCount := make(map[string]int, len(classes))
	for _, r := range rows {
		classCount[r.Label]++
	}
	n := len(rows)

	for _, r := range rows {
		idx, ok := classIdx[r.Label]
		if !ok {
			dropped++
			continue
		}
		vec := enc.Transform(r.Row)
		if verr := enc.ValidateDims(vec); verr != nil {
			dropped++
			continue
		}
		sw := sourceWeight[r.Source]
		if sw == 0 {
			sw = 1.0
		}
		classBalance := float64(n) / (float64(len(classes)) * float64(classCount[r.Label]))
		X = append(X, vec)
		y = append(y, idx)
		weights = append(weights, sw*classBalance)
	}
	if len(X) == 0 {
		return nil, nil, nil, dropped, fmt.Errorf("%w: no rows survived encoding", domain.ErrInsufficientData)
	}
	return X, y, weights, dropped, nil
}

func argmaxClass(probs map[string]float64, classes []string) string {
	best := classes[0]
	bestP := -1.0
	for _, c := range classes {
		p := probs[c]
		if p > bestP+1e-12 {
			bestP = p
			best = c
		} else if math.Abs(p-bestP) <= 1e-12 && c < best {
			best = c
		}
	}
	return best
}

func evaluate(classes []string, truth []int, preds []string) domain.RunMetrics {
	classOf := func(i int) string { return classes[i] }

	tp := map[string]int{}
	fp := map[string]int{}
	fn := map[string]int{}
	support := map[string]int{}

	for i, pred := range preds {
		truthLabel := classOf(truth[i])
		support[truthLabel]++
		if pred == truthLabel {
			tp[pred]++
		} else {
			fp[pred]++
			fn[truthLabel]++
		}
	}

	var perClass []domain.ClassMetrics
	var f1Sum float64
	correct := 0
	for _, c := range classes {
		precision := safeDiv(float64(tp[c]), float64(tp[c]+fp[c]))
		recall := safeDiv(float64(tp[c]), float64(tp[c]+fn[c]))
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		perClass = append(perClass, domain.ClassMetrics{
			Class: c, F1: f1, Precision: precision, Recall: recall, Support: support[c],
		})
		f1Sum += f1
		correct += tp[c]
	}

	return domain.RunMetrics{
		F1Macro:    f1Sum / float64(len(classes)),
		Accuracy:   safeDiv(float64(correct), float64(len(preds))),
		PerClassF1: perClass,
	}
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func perClassF1Map(m domain.RunMetrics) map[string]float64 {
	out := make(map[string]float64, len(m.PerClassF1))
	for _, cm := range m.PerClassF1 {
		out[cm.Class] = cm.F1
	}
	return out
}

// fitCalibrators fits one isotonic curve per class on the validation set's
// predicted (post-softmax) probabilities against a one-vs-rest indicator
// target, the same values serving passes to Curve.Apply.
func fitCalibrators(model *gbm.Model, valX [][]float64, valY []int, classes []string) map[string]calibration.Curve {
	n := len(valX)
	rawByClass := make(map[string][]float64, len(classes))
	for _, c := range classes {
		rawByClass[c] = make([]float64, n)
	}
	for i, x := range valX {
		raw := model.Predict(x)
		for _, c := range classes {
			rawByClass[c][i] = raw[c]
		}
	}

	out := make(map[string]calibration.Curve, len(classes))
	for classIdx, c := range classes {
		labels := make([]float64, n)
		for i, truth := range valY {
			if truth == classIdx {
				labels[i] = 1
			}
		}
		out[c] = calibration.Fit(rawByClass[c], labels)
	}
	return out
}

func snapshotToMap(cfg *config.Snapshot) map[string]any {
	return map[string]any{
		"num_hash_buckets":    cfg.NumHashBuckets,
		"encoder_hash_seed":   cfg.EncoderHashSeed,
		"calibration_enabled": cfg.CalibrationEnabled,
		"f1_macro_min":        cfg.F1MacroMin,
		"f1_class_min":        cfg.F1ClassMin,
		"min_val_rows":        cfg.MinValRows,
		"min_per_class":       cfg.MinPerClass,
	}
}
