package model

import (
	"math/rand"
	"sort"
)

// treeNode is a node of a CART tree. Leaves carry either a regression value
// or a class distribution; internal nodes route on feature <= threshold.
type treeNode struct {
	leaf      bool
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	classDist []float64
}

func (n *treeNode) predict(x []float64) *treeNode {
	node := n
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node
}

// featureSubset picks maxFeatures distinct feature indices without
// replacement. maxFeatures <= 0 means all features.
func featureSubset(nFeatures, maxFeatures int, rng *rand.Rand) []int {
	if maxFeatures <= 0 || maxFeatures >= nFeatures {
		all := make([]int, nFeatures)
		for i := range all {
			all[i] = i
		}
		return all
	}
	perm := rng.Perm(nFeatures)
	return perm[:maxFeatures]
}

// buildRegressionTree grows a variance-reduction CART tree over the samples
// in idx.
func buildRegressionTree(X [][]float64, y []float64, idx []int, depth, maxDepth, minLeaf, maxFeatures int, rng *rand.Rand) *treeNode {
	n := len(idx)
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	mean := sum / float64(n)
	sse := sumSq - sum*sum/float64(n)

	if depth >= maxDepth || n < 2*minLeaf || sse <= 1e-12 {
		return &treeNode{leaf: true, value: mean}
	}

	feats := featureSubset(len(X[0]), maxFeatures, rng)
	feature, threshold, ok := bestRegressionSplit(X, y, idx, feats, minLeaf)
	if !ok {
		return &treeNode{leaf: true, value: mean}
	}

	left, right := partition(X, idx, feature, threshold)
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildRegressionTree(X, y, left, depth+1, maxDepth, minLeaf, maxFeatures, rng),
		right:     buildRegressionTree(X, y, right, depth+1, maxDepth, minLeaf, maxFeatures, rng),
	}
}

func bestRegressionSplit(X [][]float64, y []float64, idx, feats []int, minLeaf int) (int, float64, bool) {
	n := len(idx)
	bestFeature, bestThreshold, found := 0, 0.0, false
	bestScore := 0.0

	sorted := make([]int, n)
	for _, f := range feats {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		total, totalSq := 0.0, 0.0
		for _, i := range sorted {
			total += y[i]
			totalSq += y[i] * y[i]
		}

		sumL, sumSqL := 0.0, 0.0
		for k := 1; k < n; k++ {
			yi := y[sorted[k-1]]
			sumL += yi
			sumSqL += yi * yi

			if k < minLeaf || n-k < minLeaf {
				continue
			}
			xl, xr := X[sorted[k-1]][f], X[sorted[k]][f]
			if xl == xr {
				continue
			}

			sumR, sumSqR := total-sumL, totalSq-sumSqL
			sseL := sumSqL - sumL*sumL/float64(k)
			sseR := sumSqR - sumR*sumR/float64(n-k)
			score := sseL + sseR

			if !found || score < bestScore {
				found = true
				bestScore = score
				bestFeature = f
				bestThreshold = (xl + xr) / 2
			}
		}
	}

	return bestFeature, bestThreshold, found
}

// buildClassificationTree grows a Gini-impurity CART tree. Leaves keep the
// full normalized class distribution so the forest can average
// probabilities.
func buildClassificationTree(X [][]float64, y []int, idx []int, numClasses, depth, maxDepth, minLeaf, maxFeatures int, rng *rand.Rand) *treeNode {
	n := len(idx)
	counts := make([]float64, numClasses)
	for _, i := range idx {
		counts[y[i]]++
	}

	pure := false
	for _, c := range counts {
		if c == float64(n) {
			pure = true
			break
		}
	}

	if depth >= maxDepth || n < 2*minLeaf || pure {
		return classLeaf(counts, n)
	}

	feats := featureSubset(len(X[0]), maxFeatures, rng)
	feature, threshold, ok := bestClassificationSplit(X, y, idx, feats, numClasses, minLeaf)
	if !ok {
		return classLeaf(counts, n)
	}

	left, right := partition(X, idx, feature, threshold)
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      buildClassificationTree(X, y, left, numClasses, depth+1, maxDepth, minLeaf, maxFeatures, rng),
		right:     buildClassificationTree(X, y, right, numClasses, depth+1, maxDepth, minLeaf, maxFeatures, rng),
	}
}

func classLeaf(counts []float64, n int) *treeNode {
	dist := make([]float64, len(counts))
	for i, c := range counts {
		dist[i] = c / float64(n)
	}
	return &treeNode{leaf: true, classDist: dist}
}

func bestClassificationSplit(X [][]float64, y []int, idx, feats []int, numClasses, minLeaf int) (int, float64, bool) {
	n := len(idx)
	bestFeature, bestThreshold, found := 0, 0.0, false
	bestScore := 0.0

	totalCounts := make([]float64, numClasses)
	for _, i := range idx {
		totalCounts[y[i]]++
	}

	sorted := make([]int, n)
	leftCounts := make([]float64, numClasses)
	for _, f := range feats {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })

		for i := range leftCounts {
			leftCounts[i] = 0
		}

		for k := 1; k < n; k++ {
			leftCounts[y[sorted[k-1]]]++

			if k < minLeaf || n-k < minLeaf {
				continue
			}
			xl, xr := X[sorted[k-1]][f], X[sorted[k]][f]
			if xl == xr {
				continue
			}

			giniL, giniR := 1.0, 1.0
			for c := 0; c < numClasses; c++ {
				pl := leftCounts[c] / float64(k)
				pr := (totalCounts[c] - leftCounts[c]) / float64(n-k)
				giniL -= pl * pl
				giniR -= pr * pr
			}
			score := (float64(k)*giniL + float64(n-k)*giniR) / float64(n)

			if !found || score < bestScore {
				found = true
				bestScore = score
				bestFeature = f
				bestThreshold = (xl + xr) / 2
			}
		}
	}

	return bestFeature, bestThreshold, found
}

func partition(X [][]float64, idx []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
