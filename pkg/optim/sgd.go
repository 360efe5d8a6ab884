package optim

// Optimizer updates parameter slices in place from their gradients.
// params[i] and grads[i] must have the same length on every call.
type Optimizer interface {
	Update(params, grads [][]float64)
}

// Stochastic Gradient Descent optimizer with learning rate and optional momentum
type SGD struct {
	LearningRate float64
	Momentum     float64

	velocity [][]float64
}

func NewSGD(lr float64) *SGD { return &SGD{LearningRate: lr} }

func (o *SGD) Step(weights, grads []float64) { // in-place update using pointer receiver
	for i := range weights {
		weights[i] -= o.LearningRate * grads[i]
	}
}

func (o *SGD) Update(params, grads [][]float64) {
	if o.Momentum == 0 {
		for i := range params {
			o.Step(params[i], grads[i])
		}
		return
	}
	if o.velocity == nil {
		o.velocity = zerosLike(params)
	}
	for i, p := range params {
		v := o.velocity[i]
		for j := range p {
			v[j] = o.Momentum*v[j] - o.LearningRate*grads[i][j]
			p[j] += v[j]
		}
	}
}

func zerosLike(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = make([]float64, len(p))
	}
	return out
}
