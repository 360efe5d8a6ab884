package NeuralNetwork

import (
	"fmt"
	"math"
)

func Sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func ReLU(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func ReLUPrime(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func Tanh(x float64) float64 { return math.Tanh(x) }

func Identity(x float64) float64 { return x }

// Activation pairs a hidden-layer function with its derivative written in terms
// of the activated value a = F(z), which is what backpropagation keeps around.
type Activation struct {
	Name        string
	F           func(float64) float64
	PrimeOutput func(a float64) float64
}

var activations = map[string]Activation{
	"tanh":     {Name: "tanh", F: Tanh, PrimeOutput: func(a float64) float64 { return 1 - a*a }},
	"logistic": {Name: "logistic", F: Sigmoid, PrimeOutput: func(a float64) float64 { return a * (1 - a) }},
	"relu":     {Name: "relu", F: ReLU, PrimeOutput: ReLUPrime},
	"identity": {Name: "identity", F: Identity, PrimeOutput: func(float64) float64 { return 1 }},
}

// ActivationByName looks up one of tanh, logistic, relu or identity.
func ActivationByName(name string) (Activation, error) {
	a, ok := activations[name]
	if !ok {
		return Activation{}, fmt.Errorf("NeuralNetwork: unknown activation %q", name)
	}
	return a, nil
}

// Softmax replaces z with its softmax in place. The row maximum is subtracted first
// so large logits do not overflow.
func Softmax(z []float64) {
	if len(z) == 0 {
		return
	}
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	sum := 0.0
	for i, v := range z {
		z[i] = math.Exp(v - max)
		sum += z[i]
	}
	for i := range z {
		z[i] /= sum
	}
}

// Argmax returns the index of the largest value, preferring the first on ties.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
