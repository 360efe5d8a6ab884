package model

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// corners returns perSide points jittered around each corner of the unit square,
// labelled by corner.
func corners(perSide int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	centers := [][2]float64{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	var X [][]float64
	var y []int
	for c, ctr := range centers {
		for i := 0; i < perSide; i++ {
			X = append(X, []float64{ctr[0] + rng.NormFloat64()*0.05, ctr[1] + rng.NormFloat64()*0.05})
			y = append(y, c)
		}
	}
	return X, y
}

func newTestMLP(opts ...MLPOption) *MLPClassifier {
	base := []MLPOption{
		WithHiddenLayers(10),
		WithActivation("tanh"),
		WithLearningRate(0.05),
		WithMaxIter(400),
		WithRandomState(1),
	}
	return NewMLPClassifier(append(base, opts...)...)
}

func TestMLP_FitSeparable(t *testing.T) {
	X, y := corners(20, 1)
	m := newTestMLP()
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	score, err := m.Score(X, y)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score < 0.9 {
		t.Errorf("training accuracy = %.2f, want >= 0.9", score)
	}
	if m.NIter == 0 || len(m.LossCurve) != m.NIter {
		t.Errorf("NIter = %d with %d loss entries", m.NIter, len(m.LossCurve))
	}
	if first, last := m.LossCurve[0], m.LossCurve[len(m.LossCurve)-1]; last >= first {
		t.Errorf("loss did not decrease: %v -> %v", first, last)
	}

	proba, err := m.PredictProba(X[:3])
	if err != nil {
		t.Fatalf("PredictProba: %v", err)
	}
	for i, row := range proba {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		if len(row) != 4 || math.Abs(sum-1) > 1e-9 {
			t.Errorf("row %d: %d probabilities summing to %v", i, len(row), sum)
		}
	}
}

func TestMLP_SGD(t *testing.T) {
	X, y := corners(20, 2)
	m := newTestMLP(WithSolver("sgd"), WithLearningRate(0.1), WithMaxIter(2000), WithTol(1e-6))
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if score, _ := m.Score(X, y); score < 0.9 {
		t.Errorf("training accuracy = %.2f, want >= 0.9", score)
	}
}

func TestMLP_Deterministic(t *testing.T) {
	X, y := corners(10, 3)
	a, b := newTestMLP(WithMaxIter(50)), newTestMLP(WithMaxIter(50))
	if err := a.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if err := b.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	la, lb := a.Layers(), b.Layers()
	for l := range la {
		if !mat.Equal(la[l].Weights, lb[l].Weights) {
			t.Fatalf("layer %d weights differ for the same seed", l)
		}
	}
}

func TestMLP_ShapeAndNeuronCounts(t *testing.T) {
	X, y := corners(5, 4)
	m := newTestMLP(WithClasses(8), WithMaxIter(5))
	if m.NeuronCounts() != nil {
		t.Error("NeuronCounts before Fit should be nil")
	}
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	want := []int{2, 10, 8}
	got := m.NeuronCounts()
	if len(got) != len(want) {
		t.Fatalf("NeuronCounts = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("NeuronCounts = %v, want %v", got, want)
		}
	}
	layers := m.Layers()
	if len(layers) != 2 {
		t.Fatalf("got %d layers, want 2", len(layers))
	}
	for l, p := range layers {
		in, out := p.Dims()
		if in != want[l] || out != want[l+1] || len(p.Biases) != out {
			t.Errorf("layer %d is %d×%d with %d biases", l, in, out, len(p.Biases))
		}
	}
	layers[0].Weights.Set(0, 0, 1e9)
	if m.Layers()[0].Weights.At(0, 0) == 1e9 {
		t.Error("Layers must return copies")
	}
}

func TestMLP_Errors(t *testing.T) {
	X, y := corners(3, 5)
	cases := []struct {
		name string
		m    *MLPClassifier
		X    [][]float64
		y    []int
		want error
	}{
		{"length mismatch", newTestMLP(), X, y[:2], ErrDimensionMismatch},
		{"empty", newTestMLP(), nil, nil, ErrEmptyDataset},
		{"ragged", newTestMLP(), [][]float64{{1, 2}, {1}}, []int{0, 1}, ErrDimensionMismatch},
		{"negative label", newTestMLP(), [][]float64{{1}, {2}}, []int{0, -1}, ErrLabelOutOfRange},
		{"label beyond classes", newTestMLP(WithClasses(2)), [][]float64{{1}, {2}}, []int{0, 2}, ErrLabelOutOfRange},
		{"single class", newTestMLP(), [][]float64{{1}, {2}}, []int{0, 0}, ErrLabelOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.m.Fit(tc.X, tc.y); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if err := newTestMLP(WithSolver("lbfgs")).Fit(X, y); err == nil {
		t.Error("expected error for unknown solver")
	}
	if err := newTestMLP(WithActivation("softsign")).Fit(X, y); err == nil {
		t.Error("expected error for unknown activation")
	}
	if err := newTestMLP(WithHiddenLayers(0)).Fit(X, y); err == nil {
		t.Error("expected error for empty hidden layer")
	}
}

func TestMLP_NotFitted(t *testing.T) {
	if _, err := NewMLPClassifier().Predict([][]float64{{1, 2}}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}
}

func TestMLP_PredictWrongWidth(t *testing.T) {
	X, y := corners(5, 6)
	m := newTestMLP(WithMaxIter(5))
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Predict([][]float64{{1, 2, 3}}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMLP_Cancelled(t *testing.T) {
	X, y := corners(5, 7)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := newTestMLP().FitContext(ctx, X, y); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMLP_EarlyStopping(t *testing.T) {
	X, y := corners(25, 8)
	m := newTestMLP(WithValidationFraction(0.2), WithMaxIter(300))
	if err := m.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if len(m.ValidationCurve) != m.NIter {
		t.Errorf("got %d validation scores for %d epochs", len(m.ValidationCurve), m.NIter)
	}
	if !m.Converged {
		t.Errorf("expected early stop before %d epochs", m.MaxIter)
	}

	// Rows 20..29 straddle classes 0 and 1; a 1% hold-out of ten rows is empty.
	if err := newTestMLP(WithValidationFraction(0.01)).Fit(X[20:30], y[20:30]); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("expected ErrEmptyDataset for an empty validation split, got %v", err)
	}
}

func TestNewMLPFromLayers(t *testing.T) {
	X, y := corners(10, 9)
	m := newTestMLP(WithMaxIter(100))
	if err := m.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	r, err := NewMLPFromLayers(m.Layers(), "tanh")
	if err != nil {
		t.Fatalf("NewMLPFromLayers: %v", err)
	}
	want, _ := m.Predict(X)
	got, _ := r.Predict(X)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("prediction %d differs after rebuild: %d vs %d", i, got[i], want[i])
		}
	}
	if r.Classes != 4 || len(r.HiddenLayers) != 1 || r.HiddenLayers[0] != 10 {
		t.Errorf("rebuilt shape: classes %d hidden %v", r.Classes, r.HiddenLayers)
	}

	bad := []LayerParameters{
		{Weights: mat.NewDense(2, 3, nil), Biases: make([]float64, 3)},
		{Weights: mat.NewDense(4, 2, nil), Biases: make([]float64, 2)},
	}
	if _, err := NewMLPFromLayers(bad, "tanh"); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for unchained layers, got %v", err)
	}
	if _, err := NewMLPFromLayers(nil, "tanh"); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for no layers, got %v", err)
	}
}

func TestMLP_InitialLayers(t *testing.T) {
	X, y := corners(20, 11)
	trained := newTestMLP()
	if err := trained.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	want, err := trained.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}

	seed := trained.Layers()
	before := seed[0].Weights.At(0, 0)

	// One more epoch from trained weights keeps the fit; from scratch it would not.
	warm := newTestMLP(WithInitialLayers(seed), WithMaxIter(1), WithRandomState(99))
	if err := warm.Fit(X, y); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	got, _ := warm.Score(X, y)
	if got < want-0.05 {
		t.Errorf("warm started score %.2f, want about %.2f", got, want)
	}
	if seed[0].Weights.At(0, 0) != before {
		t.Error("training wrote into the initial layers")
	}
}

func TestMLP_InitialLayersShape(t *testing.T) {
	X, y := corners(5, 12)
	other := newTestMLP(WithHiddenLayers(3), WithMaxIter(5))
	if err := other.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	err := newTestMLP(WithInitialLayers(other.Layers())).Fit(X, y)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for 3-unit layers in a 10-unit network, got %v", err)
	}
	err = newTestMLP(WithInitialLayers(other.Layers()[:1])).Fit(X, y)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for a missing layer, got %v", err)
	}
}
