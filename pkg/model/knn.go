package model

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// KNN is a k-nearest-neighbors classifier over integer class codes. It is the
// baseline the MLP is compared against.
type KNN struct {
	K int
	X [][]float64
	y []int
}

// NewKNN creates and returns a new KNN model.
func NewKNN(k int) *KNN {
	return &KNN{K: k}
}

// Fit stores the training data and labels.
func (m *KNN) Fit(X [][]float64, y []int) error {
	if m.K <= 0 {
		return fmt.Errorf("model: knn needs k > 0, got %d", m.K)
	}
	if _, err := checkXY(X, y); err != nil {
		return err
	}
	for i, v := range y {
		if v < 0 {
			return fmt.Errorf("%w: y[%d] = %d", ErrLabelOutOfRange, i, v)
		}
	}
	m.X = X
	m.y = y
	return nil
}

// Predict finds the K nearest training points for each row of X and returns the
// majority class. Rows are split across GOMAXPROCS workers.
func (m *KNN) Predict(X [][]float64) ([]int, error) {
	if len(m.X) == 0 {
		return nil, ErrNotFitted
	}
	if len(X) == 0 {
		return nil, nil
	}
	for i, row := range X {
		if len(row) != len(m.X[0]) {
			return nil, fmt.Errorf("%w: X[%d] has %d features, model expects %d", ErrDimensionMismatch, i, len(row), len(m.X[0]))
		}
	}

	out := make([]int, len(X))
	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	rowsPerWorker := (len(X) + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * rowsPerWorker
		end := min(start+rowsPerWorker, len(X))
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				out[i] = m.predictSingle(X[i])
			}
		}(start, end)
	}

	wg.Wait()
	return out, nil
}

// Score returns the mean accuracy on X, y.
func (m *KNN) Score(X [][]float64, y []int) (float64, error) {
	if _, err := checkXY(X, y); err != nil {
		return 0, err
	}
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return Accuracy(y, pred), nil
}

// predictSingle votes among the K nearest neighbors of xi. Ties go to the class
// whose nearest member is closest.
func (m *KNN) predictSingle(xi []float64) int {
	type pair struct {
		d float64
		c int
	}

	// kept sorted by distance, at most K entries
	nbrs := make([]pair, 0, m.K+1)
	for j, xj := range m.X {
		d := euclidSquared(xi, xj)
		if len(nbrs) < m.K {
			nbrs = append(nbrs, pair{d: d, c: m.y[j]})
		} else if d < nbrs[len(nbrs)-1].d {
			nbrs[len(nbrs)-1] = pair{d: d, c: m.y[j]}
		} else {
			continue
		}
		sort.SliceStable(nbrs, func(a, b int) bool { return nbrs[a].d < nbrs[b].d })
	}

	votes := make(map[int]int, len(nbrs))
	best, bestVotes := nbrs[0].c, 0
	for _, p := range nbrs {
		votes[p.c]++
	}
	for _, p := range nbrs {
		if v := votes[p.c]; v > bestVotes {
			best, bestVotes = p.c, v
		}
	}
	return best
}

// euclidSquared computes the squared Euclidean distance between two vectors.
func euclidSquared(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
