package loader

import "math/rand"

// TrainTestSplit splits X, y into train and test sets by ratio using rng for the shuffle.
func TrainTestSplit(X [][]float64, y []int, testRatio float64, rng *rand.Rand) (XTrain, XTest [][]float64, yTrain, yTest []int) {
	n := len(X)
	indices := rng.Perm(n)
	nTest := int(float64(n) * testRatio)
	for i := 0; i < n; i++ {
		if i < nTest {
			XTest = append(XTest, X[indices[i]])
			yTest = append(yTest, y[indices[i]])
		} else {
			XTrain = append(XTrain, X[indices[i]])
			yTrain = append(yTrain, y[indices[i]])
		}
	}
	return
}

// Batches cuts indices into consecutive mini-batches of at most size entries.
// The last batch may be shorter.
func Batches(indices []int, size int) [][]int {
	if size <= 0 {
		size = len(indices)
	}
	var out [][]int
	for start := 0; start < len(indices); start += size {
		out = append(out, indices[start:min(start+size, len(indices))])
	}
	return out
}

// ShuffledBatches draws a fresh permutation of 0..n-1 and cuts it into mini-batches.
func ShuffledBatches(n, size int, rng *rand.Rand) [][]int {
	return Batches(rng.Perm(n), size)
}
