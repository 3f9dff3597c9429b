package model

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// CVScore is a cross-validated training-quality signal. It is logged, never
// used as a gate.
type CVScore struct {
	Mean float64
	Std  float64
}

// CrossValidateMAE reports the k-fold cross-validated mean absolute error of
// a regressor built by factory. Folds are contiguous and deterministic.
func CrossValidateMAE(factory func() Regressor, X [][]float64, y []float64, folds int) (CVScore, error) {
	bounds, err := foldBounds(len(X), folds)
	if err != nil {
		return CVScore{}, err
	}

	foldScores := make(stats.Float64Data, 0, folds)
	for _, b := range bounds {
		trainX, trainY := holdOut(X, y, b[0], b[1])
		m := factory()
		if err := m.Fit(trainX, trainY); err != nil {
			return CVScore{}, fmt.Errorf("cv fold fit failed: %w", err)
		}
		sumErr := 0.0
		for i := b[0]; i < b[1]; i++ {
			sumErr += math.Abs(m.Predict(X[i]) - y[i])
		}
		foldScores = append(foldScores, sumErr/float64(b[1]-b[0]))
	}

	return summarize(foldScores)
}

// CrossValidateAccuracy reports k-fold accuracy for a classifier built by
// factory, scoring by argmax of the predicted distribution.
func CrossValidateAccuracy(factory func() ProbClassifier, X [][]float64, y []int, folds int) (CVScore, error) {
	bounds, err := foldBounds(len(X), folds)
	if err != nil {
		return CVScore{}, err
	}

	foldScores := make(stats.Float64Data, 0, folds)
	for _, b := range bounds {
		trainX, trainY := holdOutInt(X, y, b[0], b[1])
		m := factory()
		if err := m.Fit(trainX, trainY); err != nil {
			return CVScore{}, fmt.Errorf("cv fold fit failed: %w", err)
		}
		correct := 0
		for i := b[0]; i < b[1]; i++ {
			if argmax(m.PredictProba(X[i])) == y[i] {
				correct++
			}
		}
		foldScores = append(foldScores, float64(correct)/float64(b[1]-b[0]))
	}

	return summarize(foldScores)
}

func summarize(foldScores stats.Float64Data) (CVScore, error) {
	mean, err := stats.Mean(foldScores)
	if err != nil {
		return CVScore{}, fmt.Errorf("failed to aggregate cv scores: %w", err)
	}
	std, err := stats.StandardDeviation(foldScores)
	if err != nil {
		return CVScore{}, fmt.Errorf("failed to aggregate cv scores: %w", err)
	}
	return CVScore{Mean: mean, Std: std}, nil
}

// foldBounds splits [0, n) into k contiguous folds, the first n%k folds one
// sample larger.
func foldBounds(n, k int) ([][2]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("not enough samples for %d-fold cv: %d", k, n)
	}
	bounds := make([][2]int, 0, k)
	base, extra := n/k, n%k
	start := 0
	for f := 0; f < k; f++ {
		size := base
		if f < extra {
			size++
		}
		bounds = append(bounds, [2]int{start, start + size})
		start += size
	}
	return bounds, nil
}

func holdOut(X [][]float64, y []float64, lo, hi int) ([][]float64, []float64) {
	trainX := make([][]float64, 0, len(X)-(hi-lo))
	trainY := make([]float64, 0, len(y)-(hi-lo))
	for i := range X {
		if i >= lo && i < hi {
			continue
		}
		trainX = append(trainX, X[i])
		trainY = append(trainY, y[i])
	}
	return trainX, trainY
}

func holdOutInt(X [][]float64, y []int, lo, hi int) ([][]float64, []int) {
	trainX := make([][]float64, 0, len(X)-(hi-lo))
	trainY := make([]int, 0, len(y)-(hi-lo))
	for i := range X {
		if i >= lo && i < hi {
			continue
		}
		trainX = append(trainX, X[i])
		trainY = append(trainY, y[i])
	}
	return trainX, trainY
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
