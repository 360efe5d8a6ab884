package core

import (
	"errors"
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

var ErrRagged = errors.New("core: rows have different lengths")

// FromSlice creates a Dense matrix from a nested slice (copies data).
func FromSlice(a [][]float64) (*mat.Dense, error) {
	r := len(a)
	if r == 0 {
		return nil, errors.New("core: empty matrix")
	}
	c := len(a[0])
	if c == 0 {
		return nil, errors.New("core: empty matrix")
	}
	data := make([]float64, 0, r*c)
	for _, row := range a {
		if len(row) != c {
			return nil, ErrRagged
		}
		data = append(data, row...)
	}
	return mat.NewDense(r, c, data), nil
}

// ToSlice copies m into a row-major nested slice.
func ToSlice(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	return lo.Times(r, func(i int) []float64 {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		return row
	})
}

// Gather copies the rows idx of X into a len(idx)×n matrix.
func Gather(X [][]float64, idx []int) *mat.Dense {
	c := len(X[idx[0]])
	m := mat.NewDense(len(idx), c, nil)
	for i, k := range idx {
		m.SetRow(i, X[k])
	}
	return m
}

// AddRow adds v to every row of m in place.
func AddRow(m *mat.Dense, v []float64) {
	m.Apply(func(_, j int, x float64) float64 { return x + v[j] }, m)
}

// ColSums returns the sum of each column of m.
func ColSums(m mat.Matrix) []float64 {
	r, c := m.Dims()
	out := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out[j] += m.At(i, j)
		}
	}
	return out
}

// SumSquares returns the sum of squared entries of m.
func SumSquares(m mat.Matrix) float64 {
	r, c := m.Dims()
	s := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			s += v * v
		}
	}
	return s
}

// FirstNonFinite reports the position of the first NaN or ±Inf entry of m.
func FirstNonFinite(m mat.Matrix) (row, col int, ok bool) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
