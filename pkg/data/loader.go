package data

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gniziemazity/ml-course-phase-2/pkg/dataprep"
	"github.com/gniziemazity/ml-course-phase-2/pkg/stats"
)

// Sample represents a single labelled feature vector.
type Sample struct {
	X []float64
	Y int
}

// ParseError reports the file position of a row that could not be decoded.
// Column is 1-based; it is 0 when the whole row is at fault.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == 0 {
		return fmt.Sprintf("data: %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("data: %s:%d: column %d (%q): %v", e.Path, e.Line, e.Column, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var ErrNoFeatures = errors.New("data: row has no feature columns")

// ReadFeatureFile reads a comma separated feature file. The first line is a header and is
// discarded. Every other non-empty line holds the features followed by a class name, which
// is resolved through table. Any bad row aborts the read.
func ReadFeatureFile(path string, table *dataprep.LabelTable) (X [][]float64, y []int, err error) {
	samples, err := ReadSamples(path, table)
	if err != nil {
		return nil, nil, err
	}
	X = make([][]float64, len(samples))
	y = make([]int, len(samples))
	for i, s := range samples {
		X[i] = s.X
		y[i] = s.Y
	}
	return X, y, nil
}

// ReadSamples is ReadFeatureFile returning row-wise samples.
func ReadSamples(path string, table *dataprep.LabelTable) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open feature file: %w", err)
	}
	defer file.Close()

	samples, err := DecodeSamples(file, table)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return samples, nil
}

// DecodeSamples decodes a feature file from r. Errors carry no path.
func DecodeSamples(r io.Reader, table *dataprep.LabelTable) ([]Sample, error) {
	br := bufio.NewReader(r)
	// Line 1 is a header and is skipped unparsed.
	if _, err := br.ReadString('\n'); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("data: read feature file: %w", err)
	}

	reader := csv.NewReader(br)
	// The first data row fixes the field count for the rest.
	reader.FieldsPerRecord = 0
	reader.ReuseRecord = true

	var samples []Sample
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)
		s, perr := decodeRecord(rec, table)
		if perr != nil {
			perr.Line = line + headerLines
			return nil, perr
		}
		samples = append(samples, s)
	}
}

func decodeRecord(rec []string, table *dataprep.LabelTable) (Sample, *ParseError) {
	n := len(rec) - 1
	if n < 1 {
		return Sample{}, &ParseError{Err: ErrNoFeatures}
	}

	x := make([]float64, n)
	for j, s := range rec[:n] {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return Sample{}, &ParseError{Column: j + 1, Field: s, Err: err}
		}
		x[j] = v
	}

	label := strings.TrimSpace(rec[n])
	code, err := table.Code(label)
	if err != nil {
		return Sample{}, &ParseError{Column: n + 1, Field: rec[n], Err: err}
	}
	return Sample{X: x, Y: code}, nil
}

// headerLines is the number of lines consumed before the csv.Reader starts counting.
const headerLines = 1

func csvError(err error) error {
	var ce *csv.ParseError
	if errors.As(err, &ce) {
		return &ParseError{Line: ce.Line + headerLines, Column: ce.Column, Err: ce.Err}
	}
	return fmt.Errorf("data: read feature file: %w", err)
}

// Summary describes the columns of a feature matrix.
type Summary struct {
	Samples  int
	Features int
	Min      []float64
	Max      []float64
	Mean     []float64
	Std      []float64
}

// Summarize computes per-feature statistics of X. X is assumed rectangular.
func Summarize(X [][]float64) Summary {
	s := Summary{Samples: len(X)}
	if len(X) == 0 {
		return s
	}
	s.Features = len(X[0])
	s.Min = make([]float64, s.Features)
	s.Max = make([]float64, s.Features)
	s.Mean = make([]float64, s.Features)
	s.Std = make([]float64, s.Features)
	for j := 0; j < s.Features; j++ {
		col := stats.Column(X, j)
		s.Min[j], s.Max[j] = stats.MinMax(col)
		s.Mean[j] = stats.Mean(col)
		s.Std[j] = stats.Std(col)
	}
	return s
}
