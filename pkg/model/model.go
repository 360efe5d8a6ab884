package model

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrDimensionMismatch = errors.New("model: dimension mismatch")
	ErrEmptyDataset      = errors.New("model: empty dataset")
	ErrLabelOutOfRange   = errors.New("model: label out of range")
	ErrNotFitted         = errors.New("model: classifier is not fitted")
)

// LayerParameters are the learned parameters of one dense layer.
// Weights has one row per input and one column per output; Biases has one entry per output.
type LayerParameters struct {
	Weights *mat.Dense
	Biases  []float64
}

// Dims returns the number of inputs and outputs of the layer.
func (l LayerParameters) Dims() (inputs, outputs int) { return l.Weights.Dims() }

// Clone deep copies the layer.
func (l LayerParameters) Clone() LayerParameters {
	return LayerParameters{
		Weights: mat.DenseCopyOf(l.Weights),
		Biases:  append([]float64(nil), l.Biases...),
	}
}

// Classifier is a supervised model over integer class codes.
type Classifier interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) ([]int, error)
	// Score returns the fraction of samples whose predicted label equals y.
	Score(X [][]float64, y []int) (float64, error)
}

// TrainableClassifier is a Classifier whose learned state is a stack of dense layers,
// exported in order from the input side.
type TrainableClassifier interface {
	Classifier
	Layers() []LayerParameters
}
