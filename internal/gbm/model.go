// Package gbm implements the gradient-boosted multiclass classifier at the
// center of the training pipeline: one-vs-rest additive logistic boosting
// with shallow CART regression trees as weak learners and a softmax output
// layer, grounded in shape on the teacher's Inferencer interface in
// internal/inference/interface.go (load once, Predict many) but with a
// native Go model instead of an ONNX graph. No gradient-boosting library
// exists anywhere in the retrieved corpus (leaves, lightgbm, xgboost,
// catboost, goml, golearn and gorgonia all absent from every go.sum), so the
// boosting loop and its trees are hand-implemented; this is the one
// intentional stdlib/from-scratch core-algorithm component in the module.
package gbm

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Params configures one training run.
type Params struct {
	NumRounds    int
	LearningRate float64
	MaxDepth     int
	MinLeafSize  int
	MaxFeatures  int
	Seed         uint64
}

// DefaultParams returns the module's baseline boosting configuration.
func DefaultParams() Params {
	return Params{
		NumRounds:    400,
		LearningRate: 0.1,
		MaxDepth:     4,
		MinLeafSize:  8,
		Seed:         12345,
	}
}

// Model is a fitted one-vs-rest softmax boosting ensemble. Classes is the
// fixed, sorted class ordering every prediction vector is aligned to.
type Model struct {
	Classes []string
	Rounds  [][]*tree // Rounds[t][k] is class k's tree for round t
	Params  Params
	Bias    []float64 // per-class initial log-odds
}

// Fit trains a Model over X (rows of encoded feature vectors), y (integer
// class indices into classes), and per-row sample weights. classes must be
// sorted and is carried through unchanged as the model's output ordering.
func Fit(X [][]float64, y []int, weight []float64, classes []string, params Params) (*Model, error) {
	n := len(X)
	if n == 0 {
		return nil, fmt.Errorf("gbm: cannot fit on zero rows")
	}
	k := len(classes)
	if k < 2 {
		return nil, fmt.Errorf("gbm: need at least 2 classes, got %d", k)
	}

	r := newRNG(params.Seed)
	treeParams := treeParams{
		MaxDepth:    params.MaxDepth,
		MinLeafSize: params.MinLeafSize,
		MaxFeatures: params.MaxFeatures,
		RandState:   r,
	}

	// F[k][i] is class k's running additive score for row i.
	F := make([][]float64, k)
	bias := make([]float64, k)
	for c := 0; c < k; c++ {
		F[c] = make([]float64, n)
		prior := classPrior(y, weight, c, n)
		bias[c] = math.Log(prior + 1e-9)
		for i := range F[c] {
			F[c][i] = bias[c]
		}
	}

	oneHot := make([][]float64, k)
	for c := 0; c < k; c++ {
		oneHot[c] = make([]float64, n)
		for i, cls := range y {
			if cls == c {
				oneHot[c][i] = 1
			}
		}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	rounds := make([][]*tree, params.NumRounds)
	probs := make([][]float64, k)
	for c := range probs {
		probs[c] = make([]float64, n)
	}

	for t := 0; t < params.NumRounds; t++ {
		softmaxColumns(F, probs)

		roundTrees := make([]*tree, k)
		for c := 0; c < k; c++ {
			residual := make([]float64, n)
			for i := 0; i < n; i++ {
				residual[i] = oneHot[c][i] - probs[c][i]
			}
			tr := fitTree(X, residual, weight, idx, treeParams)
			roundTrees[c] = tr
			for i := 0; i < n; i++ {
				F[c][i] += params.LearningRate * tr.predict(X[i])
			}
		}
		rounds[t] = roundTrees
	}

	return &Model{Classes: classes, Rounds: rounds, Params: params, Bias: bias}, nil
}

// Predict returns calibration-ready softmax probabilities for one row,
// keyed by class label.
func (m *Model) Predict(x []float64) map[string]float64 {
	scores := make([]float64, len(m.Classes))
	copy(scores, m.Bias)
	for _, roundTrees := range m.Rounds {
		for c, tr := range roundTrees {
			scores[c] += m.Params.LearningRate * tr.predict(x)
		}
	}
	probs := softmax(scores)
	out := make(map[string]float64, len(m.Classes))
	for i, cls := range m.Classes {
		out[cls] = probs[i]
	}
	return out
}

// RawScores returns each class's pre-softmax additive score.
func (m *Model) RawScores(x []float64) map[string]float64 {
	scores := make([]float64, len(m.Classes))
	copy(scores, m.Bias)
	for _, roundTrees := range m.Rounds {
		for c, tr := range roundTrees {
			scores[c] += m.Params.LearningRate * tr.predict(x)
		}
	}
	out := make(map[string]float64, len(m.Classes))
	for i, cls := range m.Classes {
		out[cls] = scores[i]
	}
	return out
}

func classPrior(y []int, weight []float64, class, n int) float64 {
	var num, den float64
	for i := 0; i < n; i++ {
		den += weight[i]
		if y[i] == class {
			num += weight[i]
		}
	}
	if den == 0 {
		return 1.0 / float64(n)
	}
	return num / den
}

func softmaxColumns(F [][]float64, out [][]float64) {
	k := len(F)
	if k == 0 {
		return
	}
	n := len(F[0])
	col := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			col[c] = F[c][i]
		}
		p := softmax(col)
		for c := 0; c < k; c++ {
			out[c][i] = p[c]
		}
	}
}

func softmax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	copy(out, scores)
	max := floats.Max(out)
	var sum float64
	for i, s := range out {
		e := math.Exp(s - max)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		uniform := 1.0 / float64(len(out))
		for i := range out {
			out[i] = uniform
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Marshal serializes the model to the module's model.bin wire format.
// encoding/gob is used rather than a third-party format because a trained
// Model is an internal, same-binary artifact with no cross-language or
// cross-version interchange requirement, unlike the feature warehouse export
// which does need parquet's ecosystem portability.
func (m *Model) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("gbm: marshal model: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a model.bin payload produced by Marshal.
func Unmarshal(data []byte) (*Model, error) {
	var m Model
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("gbm: unmarshal model: %w", err)
	}
	return &m, nil
}
