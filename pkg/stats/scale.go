package stats

// MinMaxScaler maps each column onto [0, 1] using the range seen at fit time.
// Values outside that range extrapolate past 0 or 1.
type MinMaxScaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

// FitMinMax records the per-column minimum and maximum of X.
func FitMinMax(X [][]float64) *MinMaxScaler {
	if len(X) == 0 {
		return &MinMaxScaler{}
	}
	cols := len(X[0])
	s := &MinMaxScaler{Min: make([]float64, cols), Max: make([]float64, cols)}
	for j := 0; j < cols; j++ {
		s.Min[j], s.Max[j] = MinMax(Column(X, j))
	}
	return s
}

// Transform returns a scaled copy of X. A column that was constant at fit time maps to 0.
func (s *MinMaxScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = InvLerp(s.Min[j], s.Max[j], v)
		}
	}
	return out
}

// InvLerp is the inverse of Lerp: where v sits between a and b, 0 when a == b.
func InvLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return (v - a) / (b - a)
}
