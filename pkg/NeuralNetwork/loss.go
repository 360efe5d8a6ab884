package NeuralNetwork

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CrossEntropy is the mean categorical log loss of softmax outputs against integer labels.
// Use this loss for multi-class classification. proba holds one row of class
// probabilities per sample.
// The gradient is taken with respect to the logits: (p - onehot(y)) / n.
func CrossEntropy(yTrue []int, proba *mat.Dense) (float64, *mat.Dense) {
	n, k := proba.Dims()
	s := 0.0
	grad := mat.NewDense(n, k, nil)

	for i := 0; i < n; i++ {
		p := math.Min(math.Max(proba.At(i, yTrue[i]), 1e-12), 1-1e-12)
		s -= math.Log(p)
		for j := 0; j < k; j++ {
			grad.Set(i, j, proba.At(i, j)/float64(n))
		}
		grad.Set(i, yTrue[i], grad.At(i, yTrue[i])-1/float64(n))
	}
	return s / float64(n), grad
}
