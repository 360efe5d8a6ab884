package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/gniziemazity/ml-course-phase-2/pkg/NeuralNetwork"
	"github.com/gniziemazity/ml-course-phase-2/pkg/core"
	"github.com/gniziemazity/ml-course-phase-2/pkg/loader"
	"github.com/gniziemazity/ml-course-phase-2/pkg/optim"
)

// MLPClassifier is a feed-forward network with softmax output trained by mini-batch
// gradient descent on the cross-entropy loss plus an L2 penalty.
type MLPClassifier struct {
	// Hyperparameters / options
	HiddenLayers       []int
	Activation         string // tanh, relu, logistic or identity
	Solver             string // adam or sgd
	LearningRate       float64
	Momentum           float64 // sgd only
	Alpha              float64 // L2 penalty
	BatchSize          int     // 0 means min(200, n)
	MaxIter            int
	Tol                float64
	NIterNoChange      int
	ValidationFraction float64 // > 0 enables early stopping on a held out split
	RandomState        int64
	Classes            int // 0 means max(y)+1
	InitialLayers      []LayerParameters

	// Training report
	LossCurve       []float64
	ValidationCurve []float64
	NIter           int
	Converged       bool

	// Internal state
	act     NeuralNetwork.Activation
	weights []*mat.Dense
	biases  [][]float64
}

// MLPOption functional config for MLPClassifier
type MLPOption func(*MLPClassifier)

func WithHiddenLayers(sizes ...int) MLPOption {
	return func(m *MLPClassifier) { m.HiddenLayers = append([]int(nil), sizes...) }
}
func WithActivation(name string) MLPOption { return func(m *MLPClassifier) { m.Activation = name } }
func WithSolver(name string) MLPOption     { return func(m *MLPClassifier) { m.Solver = name } }
func WithLearningRate(lr float64) MLPOption {
	return func(m *MLPClassifier) { m.LearningRate = lr }
}
func WithAlpha(a float64) MLPOption        { return func(m *MLPClassifier) { m.Alpha = a } }
func WithBatchSize(n int) MLPOption        { return func(m *MLPClassifier) { m.BatchSize = n } }
func WithMaxIter(n int) MLPOption          { return func(m *MLPClassifier) { m.MaxIter = n } }
func WithTol(tol float64) MLPOption        { return func(m *MLPClassifier) { m.Tol = tol } }
func WithNIterNoChange(n int) MLPOption    { return func(m *MLPClassifier) { m.NIterNoChange = n } }
func WithRandomState(seed int64) MLPOption { return func(m *MLPClassifier) { m.RandomState = seed } }
func WithClasses(n int) MLPOption          { return func(m *MLPClassifier) { m.Classes = n } }
func WithValidationFraction(f float64) MLPOption {
	return func(m *MLPClassifier) { m.ValidationFraction = f }
}

// WithInitialLayers starts training from a copy of layers instead of random weights.
// Their shapes must match the network Fit builds.
func WithInitialLayers(layers []LayerParameters) MLPOption {
	return func(m *MLPClassifier) { m.InitialLayers = layers }
}

// NewMLPClassifier initializes the network with sensible defaults.
func NewMLPClassifier(opts ...MLPOption) *MLPClassifier {
	m := &MLPClassifier{
		HiddenLayers:  []int{100},
		Activation:    "relu",
		Solver:        "adam",
		LearningRate:  0.001,
		Momentum:      0.9,
		Alpha:         0.0001,
		MaxIter:       200,
		Tol:           1e-4,
		NIterNoChange: 10,
		RandomState:   time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewMLPFromLayers rebuilds a fitted classifier from exported layer parameters.
func NewMLPFromLayers(layers []LayerParameters, activation string) (*MLPClassifier, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrDimensionMismatch)
	}
	act, err := NeuralNetwork.ActivationByName(activation)
	if err != nil {
		return nil, err
	}
	m := NewMLPClassifier(WithActivation(activation), WithHiddenLayers())
	m.act = act
	for l, p := range layers {
		in, out := p.Dims()
		if len(p.Biases) != out {
			return nil, fmt.Errorf("%w: layer %d has %d outputs but %d biases", ErrDimensionMismatch, l, out, len(p.Biases))
		}
		if l > 0 {
			if _, prevOut := layers[l-1].Dims(); prevOut != in {
				return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer gives %d", ErrDimensionMismatch, l, in, prevOut)
			}
		}
		if l < len(layers)-1 {
			m.HiddenLayers = append(m.HiddenLayers, out)
		}
		c := p.Clone()
		m.weights = append(m.weights, c.Weights)
		m.biases = append(m.biases, c.Biases)
	}
	_, m.Classes = layers[len(layers)-1].Dims()
	return m, nil
}

// Fit trains the network on X and integer labels y.
func (m *MLPClassifier) Fit(X [][]float64, y []int) error {
	return m.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation checked between epochs.
func (m *MLPClassifier) FitContext(ctx context.Context, X [][]float64, y []int) error {
	nFeatures, err := checkXY(X, y)
	if err != nil {
		return err
	}
	classes := m.Classes
	if classes == 0 {
		for _, v := range y {
			classes = max(classes, v+1)
		}
	}
	if classes < 2 {
		return fmt.Errorf("%w: need at least 2 classes, got %d", ErrLabelOutOfRange, classes)
	}
	for i, v := range y {
		if v < 0 || v >= classes {
			return fmt.Errorf("%w: y[%d] = %d, want [0, %d)", ErrLabelOutOfRange, i, v, classes)
		}
	}
	for _, h := range m.HiddenLayers {
		if h <= 0 {
			return fmt.Errorf("model: hidden layer sizes must be positive, got %v", m.HiddenLayers)
		}
	}
	if m.act, err = NeuralNetwork.ActivationByName(m.Activation); err != nil {
		return err
	}
	opt, err := m.optimizer()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(m.RandomState))
	m.Classes = classes
	m.initLayers(nFeatures, rng)
	if m.InitialLayers != nil {
		if err := m.seedLayers(); err != nil {
			return err
		}
	}
	m.LossCurve, m.ValidationCurve = nil, nil
	m.NIter, m.Converged = 0, false

	XTrain, yTrain := X, y
	var XVal [][]float64
	var yVal []int
	if m.ValidationFraction > 0 {
		XTrain, XVal, yTrain, yVal = loader.TrainTestSplit(X, y, m.ValidationFraction, rng)
		if len(XTrain) == 0 || len(XVal) == 0 {
			return fmt.Errorf("%w: validation fraction %.2f leaves an empty split", ErrEmptyDataset, m.ValidationFraction)
		}
	}

	n := len(XTrain)
	batchSize := m.BatchSize
	if batchSize <= 0 {
		batchSize = min(200, n)
	}
	batchSize = min(batchSize, n)

	bestLoss, bestScore := math.Inf(1), math.Inf(-1)
	var best []LayerParameters
	noImprove := 0
	for ep := 0; ep < m.MaxIter; ep++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		total := 0.0
		for _, b := range loader.ShuffledBatches(n, batchSize, rng) {
			yb := make([]int, len(b))
			for i, k := range b {
				yb[i] = yTrain[k]
			}
			total += m.step(core.Gather(XTrain, b), yb, opt) * float64(len(b))
		}
		loss := total / float64(n)
		m.LossCurve = append(m.LossCurve, loss)
		m.NIter = ep + 1

		if math.IsNaN(loss) || math.IsInf(loss, 0) {
			return fmt.Errorf("model: training diverged at epoch %d (loss %v)", m.NIter, loss)
		}

		if XVal != nil {
			score, _ := m.Score(XVal, yVal)
			m.ValidationCurve = append(m.ValidationCurve, score)
			if score < bestScore+m.Tol {
				noImprove++
			} else {
				noImprove = 0
			}
			if score > bestScore {
				bestScore = score
				best = m.Layers()
			}
		} else {
			if loss > bestLoss-m.Tol {
				noImprove++
			} else {
				noImprove = 0
			}
			bestLoss = min(bestLoss, loss)
		}
		if noImprove >= m.NIterNoChange {
			m.Converged = true
			break
		}
	}
	if best != nil {
		for l, p := range best {
			m.weights[l], m.biases[l] = p.Weights, p.Biases
		}
	}
	for l, w := range m.weights {
		if i, j, bad := core.FirstNonFinite(w); bad {
			return fmt.Errorf("model: training diverged: layer %d weight [%d][%d] is %v", l, i, j, w.At(i, j))
		}
	}
	return nil
}

func (m *MLPClassifier) optimizer() (optim.Optimizer, error) {
	switch m.Solver {
	case "adam":
		return optim.NewAdam(m.LearningRate), nil
	case "sgd":
		o := optim.NewSGD(m.LearningRate)
		o.Momentum = m.Momentum
		return o, nil
	}
	return nil, fmt.Errorf("model: unknown solver %q", m.Solver)
}

// initLayers draws Glorot-uniform weights and biases.
func (m *MLPClassifier) initLayers(nFeatures int, rng *rand.Rand) {
	sizes := append(append([]int{nFeatures}, m.HiddenLayers...), m.Classes)
	factor := 6.0
	if m.Activation == "logistic" {
		factor = 2.0
	}
	m.weights = make([]*mat.Dense, len(sizes)-1)
	m.biases = make([][]float64, len(sizes)-1)
	for l := range m.weights {
		fanIn, fanOut := sizes[l], sizes[l+1]
		bound := math.Sqrt(factor / float64(fanIn+fanOut))
		draw := func() float64 { return (rng.Float64()*2 - 1) * bound }
		w := make([]float64, fanIn*fanOut)
		for i := range w {
			w[i] = draw()
		}
		b := make([]float64, fanOut)
		for i := range b {
			b[i] = draw()
		}
		m.weights[l] = mat.NewDense(fanIn, fanOut, w)
		m.biases[l] = b
	}
}

// seedLayers replaces the freshly drawn parameters with copies of InitialLayers.
func (m *MLPClassifier) seedLayers() error {
	if len(m.InitialLayers) != len(m.weights) {
		return fmt.Errorf("%w: %d initial layers for a %d layer network", ErrDimensionMismatch, len(m.InitialLayers), len(m.weights))
	}
	for l, p := range m.InitialLayers {
		in, out := p.Dims()
		wantIn, wantOut := m.weights[l].Dims()
		if in != wantIn || out != wantOut || len(p.Biases) != out {
			return fmt.Errorf("%w: initial layer %d is %dx%d with %d biases, want %dx%d",
				ErrDimensionMismatch, l, in, out, len(p.Biases), wantIn, wantOut)
		}
	}
	for l, p := range m.InitialLayers {
		c := p.Clone()
		m.weights[l], m.biases[l] = c.Weights, c.Biases
	}
	return nil
}

// forward returns the activations of every layer, input first.
// The last entry holds class probabilities.
func (m *MLPClassifier) forward(X *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, len(m.weights)+1)
	acts[0] = X
	for l, w := range m.weights {
		z := new(mat.Dense)
		z.Mul(acts[l], w)
		core.AddRow(z, m.biases[l])
		if l < len(m.weights)-1 {
			z.Apply(func(_, _ int, v float64) float64 { return m.act.F(v) }, z)
		} else {
			r, _ := z.Dims()
			for i := 0; i < r; i++ {
				NeuralNetwork.Softmax(z.RawRowView(i))
			}
		}
		acts[l+1] = z
	}
	return acts
}

// step runs one forward/backward pass on a batch, applies the update and returns the batch loss.
func (m *MLPClassifier) step(Xb *mat.Dense, yb []int, opt optim.Optimizer) float64 {
	acts := m.forward(Xb)
	loss, delta := NeuralNetwork.CrossEntropy(yb, acts[len(acts)-1])

	nb := float64(len(yb))
	penalty := 0.0
	for _, w := range m.weights {
		penalty += core.SumSquares(w)
	}
	loss += 0.5 * m.Alpha * penalty / nb

	params := make([][]float64, 0, 2*len(m.weights))
	grads := make([][]float64, 0, 2*len(m.weights))
	for l := len(m.weights) - 1; l >= 0; l-- {
		w := m.weights[l]
		gw := new(mat.Dense)
		gw.Mul(acts[l].T(), delta)
		gw.Apply(func(i, j int, v float64) float64 { return v + m.Alpha*w.At(i, j)/nb }, gw)
		gb := core.ColSums(delta)

		if l > 0 {
			prev := new(mat.Dense)
			prev.Mul(delta, w.T())
			a := acts[l]
			prev.Apply(func(i, j int, v float64) float64 { return v * m.act.PrimeOutput(a.At(i, j)) }, prev)
			delta = prev
		}
		params = append(params, w.RawMatrix().Data, m.biases[l])
		grads = append(grads, gw.RawMatrix().Data, gb)
	}
	opt.Update(params, grads)
	return loss
}

// PredictProba returns one row of class probabilities per sample.
func (m *MLPClassifier) PredictProba(X [][]float64) ([][]float64, error) {
	if len(m.weights) == 0 {
		return nil, ErrNotFitted
	}
	if len(X) == 0 {
		return nil, nil
	}
	in, _ := m.weights[0].Dims()
	for i, row := range X {
		if len(row) != in {
			return nil, fmt.Errorf("%w: X[%d] has %d features, model expects %d", ErrDimensionMismatch, i, len(row), in)
		}
	}
	Xm, err := core.FromSlice(X)
	if err != nil {
		return nil, err
	}
	acts := m.forward(Xm)
	return core.ToSlice(acts[len(acts)-1]), nil
}

// Predict returns the most probable class code for each row of X.
func (m *MLPClassifier) Predict(X [][]float64) ([]int, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		out[i] = NeuralNetwork.Argmax(p)
	}
	return out, nil
}

// Score returns the mean accuracy on X, y.
func (m *MLPClassifier) Score(X [][]float64, y []int) (float64, error) {
	if _, err := checkXY(X, y); err != nil {
		return 0, err
	}
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return Accuracy(y, pred), nil
}

// Layers returns a copy of the learned parameters, input layer first.
func (m *MLPClassifier) Layers() []LayerParameters {
	out := make([]LayerParameters, len(m.weights))
	for l := range m.weights {
		out[l] = LayerParameters{Weights: m.weights[l], Biases: m.biases[l]}.Clone()
	}
	return out
}

// NeuronCounts returns the layer widths from input to output, or nil before Fit.
func (m *MLPClassifier) NeuronCounts() []int {
	if len(m.weights) == 0 {
		return nil
	}
	in, _ := m.weights[0].Dims()
	counts := []int{in}
	for _, w := range m.weights {
		_, out := w.Dims()
		counts = append(counts, out)
	}
	return counts
}

func checkXY(X [][]float64, y []int) (nFeatures int, err error) {
	if len(X) != len(y) {
		return 0, fmt.Errorf("%w: %d samples but %d labels", ErrDimensionMismatch, len(X), len(y))
	}
	if len(X) == 0 {
		return 0, ErrEmptyDataset
	}
	nFeatures = len(X[0])
	if nFeatures == 0 {
		return 0, fmt.Errorf("%w: samples have no features", ErrDimensionMismatch)
	}
	for i, row := range X {
		if len(row) != nFeatures {
			return 0, fmt.Errorf("%w: X[%d] has %d features, X[0] has %d", ErrDimensionMismatch, i, len(row), nFeatures)
		}
	}
	return nFeatures, nil
}
