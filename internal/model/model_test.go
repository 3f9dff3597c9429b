package model

import (
	"math"
	"testing"
)

// stepData builds a one-feature step function: y = 0 below the threshold,
// y = 1 at or above it.
func stepData(n int, threshold float64) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)
		X[i] = []float64{v}
		if v >= threshold {
			y[i] = 1
		}
	}
	return X, y
}

func TestRandomForestLearnsStepFunction(t *testing.T) {
	X, y := stepData(40, 20)

	rf := NewRandomForestRegressor(25, 4, 1)
	if err := rf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	if pred := rf.Predict([]float64{5}); pred > 0.2 {
		t.Errorf("Predict(5)=%f, want near 0", pred)
	}
	if pred := rf.Predict([]float64{35}); pred < 0.8 {
		t.Errorf("Predict(35)=%f, want near 1", pred)
	}
}

func TestRandomForestDeterministicForSeed(t *testing.T) {
	X, y := stepData(40, 20)

	a := NewRandomForestRegressor(15, 5, 42)
	b := NewRandomForestRegressor(15, 5, 42)
	if err := a.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	for _, probe := range []float64{0, 7.5, 19.9, 20.1, 39} {
		pa := a.Predict([]float64{probe})
		pb := b.Predict([]float64{probe})
		if pa != pb {
			t.Errorf("probe %f: predictions differ for same seed: %f vs %f", probe, pa, pb)
		}
	}
}

func TestRandomForestRejectsEmptyAndMismatchedData(t *testing.T) {
	rf := NewRandomForestRegressor(5, 3, 1)
	if err := rf.Fit(nil, nil); err == nil {
		t.Error("expected error for empty training data")
	}
	if err := rf.Fit([][]float64{{1}, {2}}, []float64{1}); err == nil {
		t.Error("expected error for length mismatch")
	}
}

func TestGradientBoostingImprovesOnPrior(t *testing.T) {
	// y = x / 40: a constant prior cannot track it, boosting should.
	n := 40
	X := make([][]float64, n)
	y := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		X[i] = []float64{float64(i)}
		y[i] = float64(i) / float64(n)
		sum += y[i]
	}
	prior := sum / float64(n)

	gbt := NewGradientBoostedRegressor(60, 0.1, 3, 42)
	if err := gbt.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	var modelErr, priorErr float64
	for i := range X {
		modelErr += math.Abs(gbt.Predict(X[i]) - y[i])
		priorErr += math.Abs(prior - y[i])
	}
	if modelErr >= priorErr {
		t.Errorf("boosted MAE %f not better than prior MAE %f", modelErr/float64(n), priorErr/float64(n))
	}
}

func classifierData() ([][]float64, []int) {
	// Two well-separated clusters in two features.
	var X [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i % 5), float64(i % 3)})
		y = append(y, 0)
	}
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(50 + i%5), float64(50 + i%3)})
		y = append(y, 1)
	}
	return X, y
}

func TestClassifierSeparatesClasses(t *testing.T) {
	X, y := classifierData()

	clf := NewRandomForestClassifier(25, 5, 7)
	if err := clf.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if clf.NumClasses() != 2 {
		t.Fatalf("NumClasses=%d, want 2", clf.NumClasses())
	}

	for _, tc := range []struct {
		x    []float64
		want int
	}{
		{[]float64{1, 1}, 0},
		{[]float64{52, 51}, 1},
	} {
		proba := clf.PredictProba(tc.x)
		if len(proba) != 2 {
			t.Fatalf("PredictProba returned %d entries, want 2", len(proba))
		}
		total := proba[0] + proba[1]
		if math.Abs(total-1.0) > 1e-9 {
			t.Errorf("probabilities sum to %f, want 1", total)
		}
		if argmax(proba) != tc.want {
			t.Errorf("x=%v: argmax=%d, want %d (proba %v)", tc.x, argmax(proba), tc.want, proba)
		}
	}
}

func TestClassifierRejectsDegenerateTarget(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}

	clf := NewRandomForestClassifier(5, 3, 1)
	if err := clf.Fit(X, []int{0, 0, 0}); err == nil {
		t.Error("expected error for single-class target")
	}
	if err := clf.Fit(X, []int{0, 1, -1}); err == nil {
		t.Error("expected error for negative class label")
	}
}

func TestFoldBounds(t *testing.T) {
	bounds, err := foldBounds(11, 3)
	if err != nil {
		t.Fatalf("foldBounds failed: %v", err)
	}
	want := [][2]int{{0, 4}, {4, 8}, {8, 11}}
	if len(bounds) != len(want) {
		t.Fatalf("got %d folds, want %d", len(bounds), len(want))
	}
	for i := range want {
		if bounds[i] != want[i] {
			t.Errorf("fold %d: got %v, want %v", i, bounds[i], want[i])
		}
	}

	if _, err := foldBounds(10, 1); err == nil {
		t.Error("expected error for fewer than 2 folds")
	}
	if _, err := foldBounds(3, 5); err == nil {
		t.Error("expected error when samples < folds")
	}
}

func TestCrossValidateMAE(t *testing.T) {
	X, y := stepData(40, 20)

	score, err := CrossValidateMAE(func() Regressor {
		return NewRandomForestRegressor(15, 4, 1)
	}, X, y, 5)
	if err != nil {
		t.Fatalf("CrossValidateMAE failed: %v", err)
	}
	if score.Mean < 0 || score.Mean > 0.6 {
		t.Errorf("cv MAE=%f, outside plausible range", score.Mean)
	}
	if score.Std < 0 {
		t.Errorf("cv std=%f, negative", score.Std)
	}
}

func TestCrossValidateAccuracy(t *testing.T) {
	// Interleave the classes so contiguous folds keep both classes in every
	// training split.
	var X [][]float64
	var y []int
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i % 5), float64(i % 3)})
		y = append(y, 0)
		X = append(X, []float64{float64(50 + i%5), float64(50 + i%3)})
		y = append(y, 1)
	}

	score, err := CrossValidateAccuracy(func() ProbClassifier {
		return NewRandomForestClassifier(15, 5, 7)
	}, X, y, 5)
	if err != nil {
		t.Fatalf("CrossValidateAccuracy failed: %v", err)
	}
	if score.Mean < 0.9 {
		t.Errorf("cv accuracy=%f, want >= 0.9 on separable data", score.Mean)
	}
}
