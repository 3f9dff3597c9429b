package model

import (
	"fmt"
	"math"
	"math/rand"
)

// ProbClassifier is the contract for the rejection-reason model.
type ProbClassifier interface {
	Fit(X [][]float64, y []int) error
	PredictProba(x []float64) []float64
}

// RandomForestClassifier is a bagged ensemble of Gini CART trees with
// per-node sqrt(features) subsampling. PredictProba averages the leaf class
// distributions across trees.
type RandomForestClassifier struct {
	Trees    int
	MaxDepth int
	Seed     int64

	numClasses int
	trees      []*treeNode
}

func NewRandomForestClassifier(trees, maxDepth int, seed int64) *RandomForestClassifier {
	return &RandomForestClassifier{Trees: trees, MaxDepth: maxDepth, Seed: seed}
}

func (c *RandomForestClassifier) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("no training samples")
	}
	if len(X) != len(y) {
		return fmt.Errorf("feature/target length mismatch: %d vs %d", len(X), len(y))
	}

	distinct := make(map[int]struct{})
	maxLabel := 0
	for _, label := range y {
		if label < 0 {
			return fmt.Errorf("negative class label %d", label)
		}
		distinct[label] = struct{}{}
		if label > maxLabel {
			maxLabel = label
		}
	}
	if len(distinct) < 2 {
		return fmt.Errorf("degenerate target: only %d distinct class", len(distinct))
	}
	c.numClasses = maxLabel + 1

	n := len(X)
	maxFeatures := int(math.Sqrt(float64(len(X[0]))))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	rng := rand.New(rand.NewSource(c.Seed))
	c.trees = make([]*treeNode, c.Trees)
	idx := make([]int, n)
	for t := 0; t < c.Trees; t++ {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		c.trees[t] = buildClassificationTree(X, y, idx, c.numClasses, 0, c.MaxDepth, 1, maxFeatures, rng)
	}
	return nil
}

// PredictProba returns the averaged class distribution, indexed by class
// label.
func (c *RandomForestClassifier) PredictProba(x []float64) []float64 {
	dist := make([]float64, c.numClasses)
	for _, t := range c.trees {
		leaf := t.predict(x)
		for i, p := range leaf.classDist {
			dist[i] += p
		}
	}
	for i := range dist {
		dist[i] /= float64(len(c.trees))
	}
	return dist
}

// NumClasses returns the class count inferred at fit time.
func (c *RandomForestClassifier) NumClasses() int {
	return c.numClasses
}
