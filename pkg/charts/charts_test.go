package charts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gniziemazity/ml-course-phase-2/pkg/dataprep"
)

// halves predicts class 0 left of x = 0.5 and class 1 elsewhere.
type halves struct{}

func (halves) Fit([][]float64, []int) error { return nil }

func (halves) Predict(X [][]float64) ([]int, error) {
	out := make([]int, len(X))
	for i, p := range X {
		if p[0] >= 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}

func (halves) Score([][]float64, []int) (float64, error) { return 1, nil }

func TestBoundaryGrid(t *testing.T) {
	e := Extent{XMin: 0, XMax: 1, YMin: -1, YMax: 1}
	g := BoundaryGrid(3, 4, e)
	if len(g) != 16 {
		t.Fatalf("got %d points, want 16", len(g))
	}
	for _, p := range g {
		if len(p) != 3 || p[2] != 0 {
			t.Fatalf("point %v should have 3 features with the extra one zeroed", p)
		}
		if p[0] <= e.XMin || p[0] >= e.XMax || p[1] <= e.YMin || p[1] >= e.YMax {
			t.Fatalf("point %v outside %+v", p, e)
		}
	}
	if g[0][0] != 0.125 || g[0][1] != -0.75 {
		t.Errorf("first cell center = %v, want [0.125 -0.75]", g[0])
	}
}

func TestExtentOf(t *testing.T) {
	e := ExtentOf([][]float64{{0, 5}, {10, 5}})
	if e.XMin != -0.5 || e.XMax != 10.5 {
		t.Errorf("x range = [%v, %v], want [-0.5, 10.5]", e.XMin, e.XMax)
	}
	if e.YMin != 4.5 || e.YMax != 5.5 {
		t.Errorf("degenerate y range = [%v, %v], want [4.5, 5.5]", e.YMin, e.YMax)
	}
}

func TestDecisionBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boundary.png")
	X := [][]float64{{0.1, 0.2}, {0.2, 0.9}, {0.8, 0.3}, {0.9, 0.7}}
	y := []int{0, 0, 1, 1}
	if err := DecisionBoundary(halves{}, X, y, dataprep.SketchClasses, 20, path); err != nil {
		t.Fatalf("DecisionBoundary: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("no image written: %v", err)
	}

	if err := DecisionBoundary(halves{}, [][]float64{{1}}, []int{0}, dataprep.SketchClasses, 20, path); err == nil {
		t.Error("expected error for a single feature")
	}
	if err := DecisionBoundary(halves{}, nil, nil, dataprep.SketchClasses, 20, path); err == nil {
		t.Error("expected error for no samples")
	}
}

func TestLossCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.png")
	if err := LossCurve([]float64{2, 1, 0.5, 0.25}, path); err != nil {
		t.Fatalf("LossCurve: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("no image written: %v", err)
	}
	if err := LossCurve(nil, path); err == nil {
		t.Error("expected error for empty curve")
	}
}

func TestClassColor(t *testing.T) {
	if ClassColor(dataprep.SketchClasses, 1) != classColors["fish"] {
		t.Error("fish should use its app color")
	}
	other := dataprep.MustLabelTable("a", "b")
	if ClassColor(other, 1) == nil {
		t.Error("unknown class should fall back to the palette")
	}
}
