// Package charts renders training diagnostics with gonum/plot.
package charts

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/gniziemazity/ml-course-phase-2/pkg/dataprep"
	"github.com/gniziemazity/ml-course-phase-2/pkg/model"
	"github.com/gniziemazity/ml-course-phase-2/pkg/stats"
)

// classColors follows the styles the drawing app uses for each class.
var classColors = map[string]color.Color{
	"car":     color.RGBA{R: 128, G: 128, B: 128, A: 255},
	"fish":    color.RGBA{R: 255, A: 255},
	"house":   color.RGBA{R: 255, G: 255, A: 255},
	"tree":    color.RGBA{G: 128, A: 255},
	"bicycle": color.RGBA{G: 255, B: 255, A: 255},
	"guitar":  color.RGBA{B: 255, A: 255},
	"pencil":  color.RGBA{R: 255, B: 255, A: 255},
	"clock":   color.RGBA{R: 211, G: 211, B: 211, A: 255},
}

// ClassColor returns the display color of a class, falling back to the plotutil palette.
func ClassColor(table *dataprep.LabelTable, code int) color.Color {
	if name, err := table.Name(code); err == nil {
		if c, ok := classColors[name]; ok {
			return c
		}
	}
	return plotutil.Color(code)
}

// DefaultResolution is the number of grid cells per axis of a decision boundary chart.
const DefaultResolution = 100

// Extent is the plotted range of the first two features.
type Extent struct {
	XMin, XMax, YMin, YMax float64
}

// ExtentOf returns the range of the first two columns of X padded by 5% on each side.
func ExtentOf(X [][]float64) Extent {
	pad := func(lo, hi float64) (float64, float64) {
		d := (hi - lo) * 0.05
		if d == 0 {
			d = 0.5
		}
		return lo - d, hi + d
	}
	var e Extent
	e.XMin, e.XMax = pad(stats.MinMax(stats.Column(X, 0)))
	e.YMin, e.YMax = pad(stats.MinMax(stats.Column(X, 1)))
	return e
}

// BoundaryGrid samples e at resolution×resolution cell centers over the first two
// features. Remaining features are zero.
func BoundaryGrid(nFeatures, resolution int, e Extent) [][]float64 {
	grid := make([][]float64, 0, resolution*resolution)
	for i := 0; i < resolution; i++ {
		for j := 0; j < resolution; j++ {
			p := make([]float64, nFeatures)
			p[0] = stats.Lerp(e.XMin, e.XMax, (float64(i)+0.5)/float64(resolution))
			p[1] = stats.Lerp(e.YMin, e.YMax, (float64(j)+0.5)/float64(resolution))
			grid = append(grid, p)
		}
	}
	return grid
}

// DecisionBoundary colors a grid over the first two features by the predicted class,
// overlays the samples X with their true classes and saves the chart to path. The
// image format follows the file extension.
func DecisionBoundary(clf model.Classifier, X [][]float64, y []int, table *dataprep.LabelTable, resolution int, path string) error {
	if len(X) == 0 {
		return errors.New("charts: no samples to draw")
	}
	if len(X[0]) < 2 {
		return fmt.Errorf("charts: decision boundary needs 2 features, got %d", len(X[0]))
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	e := ExtentOf(X)
	grid := BoundaryGrid(len(X[0]), resolution, e)
	pred, err := clf.Predict(grid)
	if err != nil {
		return fmt.Errorf("charts: predict grid: %w", err)
	}

	p := plot.New()
	p.Title.Text = "Decision Boundary"
	p.X.Label.Text = "Feature 1"
	p.Y.Label.Text = "Feature 2"
	p.X.Min, p.X.Max = e.XMin, e.XMax
	p.Y.Min, p.Y.Max = e.YMin, e.YMax

	cell := vg.Points(216 / float64(resolution))
	for code := 0; code < table.Len(); code++ {
		pts := pointsOf(grid, pred, code)
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = ClassColor(table, code)
		s.GlyphStyle.Shape = draw.BoxGlyph{}
		s.GlyphStyle.Radius = cell
		p.Add(s)
		name, _ := table.Name(code)
		p.Legend.Add(name, s)
	}

	for code := 0; code < table.Len(); code++ {
		pts := pointsOf(X, y, code)
		if len(pts) == 0 {
			continue
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = color.Black
		s.GlyphStyle.Shape = draw.RingGlyph{}
		s.GlyphStyle.Radius = vg.Points(2)
		p.Add(s)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("charts: save %s: %w", path, err)
	}
	return nil
}

// LossCurve plots the training loss per epoch and saves it to path.
func LossCurve(loss []float64, path string) error {
	if len(loss) == 0 {
		return errors.New("charts: empty loss curve")
	}
	p := plot.New()
	p.Title.Text = "Training Loss"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Cross-entropy"

	pts := make(plotter.XYs, len(loss))
	for i, v := range loss {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	l.Color = color.RGBA{R: 255, A: 255}
	l.LineStyle.Width = vg.Points(2)
	p.Add(l)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("charts: save %s: %w", path, err)
	}
	return nil
}

func pointsOf(X [][]float64, labels []int, code int) plotter.XYs {
	var pts plotter.XYs
	for i, row := range X {
		if labels[i] == code {
			pts = append(pts, plotter.XY{X: row[0], Y: row[1]})
		}
	}
	return pts
}
