package model

import (
	"fmt"
	"math/rand"
)

// Regressor is the contract the forecast builder consumes: both ensemble
// members implement it.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

// RandomForestRegressor is a bagged ensemble of variance-reduction CART
// trees. All randomness (bootstrap draws) flows from Seed, so two fits over
// identical data produce identical forests.
type RandomForestRegressor struct {
	Trees    int
	MaxDepth int
	Seed     int64

	trees []*treeNode
}

func NewRandomForestRegressor(trees, maxDepth int, seed int64) *RandomForestRegressor {
	return &RandomForestRegressor{Trees: trees, MaxDepth: maxDepth, Seed: seed}
}

func (f *RandomForestRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}

	n := len(X)
	rng := rand.New(rand.NewSource(f.Seed))
	f.trees = make([]*treeNode, f.Trees)

	idx := make([]int, n)
	for t := 0; t < f.Trees; t++ {
		for i := range idx {
			idx[i] = rng.Intn(n)
		}
		f.trees[t] = buildRegressionTree(X, y, idx, 0, f.MaxDepth, 1, 0, rng)
	}
	return nil
}

func (f *RandomForestRegressor) Predict(x []float64) float64 {
	sum := 0.0
	for _, t := range f.trees {
		sum += t.predict(x).value
	}
	return sum / float64(len(f.trees))
}

func checkTrainingData(nX, nY int) error {
	if nX == 0 {
		return fmt.Errorf("no training samples")
	}
	if nX != nY {
		return fmt.Errorf("feature/target length mismatch: %d vs %d", nX, nY)
	}
	return nil
}
