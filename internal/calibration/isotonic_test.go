package calibration

import "testing"

func TestFitMonotoneNonDecreasing(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	labels := []float64{0, 1, 0, 0, 1, 1, 1, 1}

	curve := Fit(scores, labels)
	for i := 1; i < len(curve.Y); i++ {
		if curve.Y[i] < curve.Y[i-1] {
			t.Fatalf("curve.Y not monotone at %d: %v then %v", i, curve.Y[i-1], curve.Y[i])
		}
	}
}

func TestApplyClampsOutsideDomain(t *testing.T) {
	curve := Curve{X: []float64{0.2, 0.5, 0.8}, Y: []float64{0.1, 0.5, 0.9}}
	if got := curve.Apply(0.0); got != 0.1 {
		t.Errorf("Apply(below domain) = %v, want 0.1", got)
	}
	if got := curve.Apply(1.0); got != 0.9 {
		t.Errorf("Apply(above domain) = %v, want 0.9", got)
	}
}

func TestApplyInterpolatesLinearly(t *testing.T) {
	curve := Curve{X: []float64{0, 1}, Y: []float64{0, 2}}
	if got := curve.Apply(0.5); got != 1.0 {
		t.Errorf("Apply(0.5) = %v, want 1.0", got)
	}
}

func TestApplyEmptyCurveIsIdentity(t *testing.T) {
	var curve Curve
	if got := curve.Apply(0.42); got != 0.42 {
		t.Errorf("Apply on empty curve = %v, want identity 0.42", got)
	}
}

func TestRenormalizeSumsToOne(t *testing.T) {
	scores := map[string]float64{"a": 0.2, "b": 0.1, "c": 0.3}
	out := Renormalize(scores)
	var sum float64
	for _, v := range out {
		sum += v
	}
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Renormalize sum = %v, want 1.0", sum)
	}
}

func TestRenormalizeDegenerateAllZero(t *testing.T) {
	scores := map[string]float64{"a": 0, "b": 0}
	out := Renormalize(scores)
	if out["a"] != 0.5 || out["b"] != 0.5 {
		t.Errorf("Renormalize degenerate case = %v, want uniform 0.5/0.5", out)
	}
}
