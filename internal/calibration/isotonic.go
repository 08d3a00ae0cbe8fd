// Package calibration fits per-class isotonic regressions on held-out
// validation scores, grounded on the teacher's accuracy-tracking shape in
// internal/handlers/accuracy.go (bucket raw predictions, compare against
// ground truth) but fitting a monotone correction curve instead of just
// reporting an error rate. No isotonic-regression library exists anywhere in
// the retrieved corpus, so the Pool Adjacent Violators Algorithm is
// hand-implemented here; this is a deliberate stdlib-only exception, noted in
// the grounding ledger.
package calibration

import "sort"

// Curve is a fitted monotone calibration curve for one class: a sorted set
// of (rawScore, calibratedScore) breakpoints. Apply interpolates linearly
// between breakpoints and clamps outside their range.
type Curve struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Fit runs the Pool Adjacent Violators Algorithm on (score, label) pairs,
// where label is 1 if the example belongs to the class being calibrated and
// 0 otherwise. Points are sorted by score first; ties keep their original
// relative order.
func Fit(scores []float64, labels []float64) Curve {
	n := len(scores)
	if n == 0 {
		return Curve{}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	x := make([]float64, n)
	y := make([]float64, n)
	w := make([]float64, n)
	for i, j := range idx {
		x[i] = scores[j]
		y[i] = labels[j]
		w[i] = 1
	}

	// Pool adjacent violators: from left to right, merge a block into its
	// left neighbor while the neighbor's weighted mean is strictly greater.
	blockY := append([]float64{}, y...)
	blockW := append([]float64{}, w...)
	blockStart := make([]int, n)
	for i := range blockStart {
		blockStart[i] = i
	}

	stack := make([]int, 0, n)
	for i := 0; i < n; i++ {
		stack = append(stack, i)
		for len(stack) > 1 {
			top := stack[len(stack)-1]
			prev := stack[len(stack)-2]
			if blockY[prev] <= blockY[top] {
				break
			}
			mergedW := blockW[prev] + blockW[top]
			mergedY := (blockY[prev]*blockW[prev] + blockY[top]*blockW[top]) / mergedW
			blockY[prev] = mergedY
			blockW[prev] = mergedW
			stack = stack[:len(stack)-1]
		}
	}

	curveX := make([]float64, 0, len(stack))
	curveY := make([]float64, 0, len(stack))
	prevEnd := 0
	for _, s := range stack {
		// Block starts at sorted index s; represent it by its leftmost x
		// so Apply's interpolation sees a non-decreasing grid.
		_ = prevEnd
		curveX = append(curveX, x[s])
		curveY = append(curveY, blockY[s])
		prevEnd = s + 1
	}

	return Curve{X: curveX, Y: curveY}
}

// Apply maps a raw score through the fitted curve via linear interpolation,
// clamping to the curve's first/last calibrated value outside its domain.
func (c Curve) Apply(score float64) float64 {
	n := len(c.X)
	if n == 0 {
		return score
	}
	if score <= c.X[0] {
		return c.Y[0]
	}
	if score >= c.X[n-1] {
		return c.Y[n-1]
	}
	i := sort.SearchFloat64s(c.X, score)
	if i < n && c.X[i] == score {
		return c.Y[i]
	}
	lo, hi := i-1, i
	x0, x1 := c.X[lo], c.X[hi]
	y0, y1 := c.Y[lo], c.Y[hi]
	if x1 == x0 {
		return y0
	}
	t := (score - x0) / (x1 - x0)
	return y0 + t*(y1-y0)
}

// Renormalize scales a set of per-class calibrated scores so they sum to 1,
// the final step after independently calibrating each one-vs-rest class.
func Renormalize(scores map[string]float64) map[string]float64 {
	var sum float64
	for _, v := range scores {
		sum += v
	}
	out := make(map[string]float64, len(scores))
	if sum <= 0 {
		// Degenerate case: every class calibrated to zero. Fall back to a
		// uniform distribution rather than dividing by zero.
		uniform := 1.0 / float64(len(scores))
		for k := range scores {
			out[k] = uniform
		}
		return out
	}
	for k, v := range scores {
		out[k] = v / sum
	}
	return out
}
