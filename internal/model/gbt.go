package model

import (
	"math/rand"
)

// GradientBoostedRegressor fits shallow regression trees to residuals with
// shrinkage: prediction = prior + sum(lr * tree_i(x)). The prior is the
// target mean.
type GradientBoostedRegressor struct {
	Trees        int
	LearningRate float64
	MaxDepth     int
	Seed         int64

	prior float64
	trees []*treeNode
}

func NewGradientBoostedRegressor(trees int, learningRate float64, maxDepth int, seed int64) *GradientBoostedRegressor {
	return &GradientBoostedRegressor{
		Trees:        trees,
		LearningRate: learningRate,
		MaxDepth:     maxDepth,
		Seed:         seed,
	}
}

func (g *GradientBoostedRegressor) Fit(X [][]float64, y []float64) error {
	if err := checkTrainingData(len(X), len(y)); err != nil {
		return err
	}

	n := len(X)
	rng := rand.New(rand.NewSource(g.Seed))

	sum := 0.0
	for _, v := range y {
		sum += v
	}
	g.prior = sum / float64(n)

	preds := make([]float64, n)
	for i := range preds {
		preds[i] = g.prior
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	residuals := make([]float64, n)
	g.trees = make([]*treeNode, g.Trees)
	for t := 0; t < g.Trees; t++ {
		for i := range residuals {
			residuals[i] = y[i] - preds[i]
		}
		tree := buildRegressionTree(X, residuals, idx, 0, g.MaxDepth, 1, 0, rng)
		g.trees[t] = tree
		for i := range preds {
			preds[i] += g.LearningRate * tree.predict(X[i]).value
		}
	}
	return nil
}

func (g *GradientBoostedRegressor) Predict(x []float64) float64 {
	pred := g.prior
	for _, t := range g.trees {
		pred += g.LearningRate * t.predict(x).value
	}
	return pred
}
