package model

// Accuracy returns the fraction of positions where yPred equals yTrue. Empty input scores 0.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// ConfusionMatrix counts predictions per (true, predicted) class pair for k classes.
// Rows are true classes. Codes outside [0, k) are ignored.
func ConfusionMatrix(yTrue, yPred []int, k int) [][]int {
	m := make([][]int, k)
	for i := range m {
		m[i] = make([]int, k)
	}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if t < 0 || t >= k || p < 0 || p >= k {
			continue
		}
		m[t][p]++
	}
	return m
}

// PrecisionRecallF1 scores class against all others.
func PrecisionRecallF1(yTrue []int, yPred []int, class int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		if yPred[i] == class && yTrue[i] == class {
			tp++
		}
		if yPred[i] == class && yTrue[i] != class {
			fp++
		}
		if yPred[i] != class && yTrue[i] == class {
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}
