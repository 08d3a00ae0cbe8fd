package gbm

import "gonum.org/v1/gonum/floats"

// treeNode is one node of a shallow CART regression tree used as a weak
// learner inside the boosting rounds.
type treeNode struct {
	Leaf      bool
	Value     float64
	Feature   int
	Threshold float64
	Left      *treeNode
	Right     *treeNode
}

// tree is a single regression tree fit to pseudo-residuals for one class in
// one boosting round.
type tree struct {
	Root *treeNode
}

// treeParams controls tree growth.
type treeParams struct {
	MaxDepth     int
	MinLeafSize  int
	MaxFeatures  int // 0 means consider all features at every split
	RandState    *rng
}

// fitTree grows a regression tree over rows[idx] minimizing weighted squared
// error against target, matching the standard CART greedy-split procedure.
func fitTree(X [][]float64, target, weight []float64, idx []int, params treeParams) *tree {
	root := growNode(X, target, weight, idx, 0, params)
	return &tree{Root: root}
}

func growNode(X [][]float64, target, weight []float64, idx []int, depth int, params treeParams) *treeNode {
	mean, _ := weightedMean(target, weight, idx)
	if depth >= params.MaxDepth || len(idx) < 2*params.MinLeafSize {
		return &treeNode{Leaf: true, Value: mean}
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0
	var bestLeft, bestRight []int

	numFeatures := len(X[idx[0]])
	candidates := candidateFeatures(numFeatures, params)

	parentScore := weightedSSE(target, weight, idx, mean)

	for _, f := range candidates {
		thresholds := uniqueThresholds(X, idx, f)
		for _, thr := range thresholds {
			left, right := splitIndices(X, idx, f, thr)
			if len(left) < params.MinLeafSize || len(right) < params.MinLeafSize {
				continue
			}
			leftMean, _ := weightedMean(target, weight, left)
			rightMean, _ := weightedMean(target, weight, right)
			score := weightedSSE(target, weight, left, leftMean) + weightedSSE(target, weight, right, rightMean)
			gain := parentScore - score
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = thr
				bestLeft = left
				bestRight = right
			}
		}
	}

	if bestFeature == -1 {
		return &treeNode{Leaf: true, Value: mean}
	}

	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      growNode(X, target, weight, bestLeft, depth+1, params),
		Right:     growNode(X, target, weight, bestRight, depth+1, params),
	}
}

func candidateFeatures(numFeatures int, params treeParams) []int {
	if params.MaxFeatures <= 0 || params.MaxFeatures >= numFeatures {
		out := make([]int, numFeatures)
		for i := range out {
			out[i] = i
		}
		return out
	}
	return params.RandState.sampleDistinct(numFeatures, params.MaxFeatures)
}

func uniqueThresholds(X [][]float64, idx []int, feature int) []float64 {
	vals := make([]float64, len(idx))
	for i, r := range idx {
		vals[i] = X[r][feature]
	}
	floats.Sort(vals)

	var thresholds []float64
	for i := 1; i < len(vals); i++ {
		if vals[i] == vals[i-1] {
			continue
		}
		thresholds = append(thresholds, (vals[i]+vals[i-1])/2)
	}
	return thresholds
}

func splitIndices(X [][]float64, idx []int, feature int, threshold float64) (left, right []int) {
	for _, r := range idx {
		if X[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

func weightedMean(target, weight []float64, idx []int) (mean float64, totalWeight float64) {
	var sum float64
	for _, i := range idx {
		sum += target[i] * weight[i]
		totalWeight += weight[i]
	}
	if totalWeight == 0 {
		return 0, 0
	}
	return sum / totalWeight, totalWeight
}

func weightedSSE(target, weight []float64, idx []int, mean float64) float64 {
	var sse float64
	for _, i := range idx {
		d := target[i] - mean
		sse += weight[i] * d * d
	}
	return sse
}

// predict walks the tree for a single row's feature vector.
func (t *tree) predict(x []float64) float64 {
	n := t.Root
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}
