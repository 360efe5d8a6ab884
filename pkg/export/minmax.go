package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/gniziemazity/ml-course-phase-2/pkg/stats"
)

const minMaxPrefix = "const minMax = "

// MinMaxExporter writes the feature ranges a model was trained on, so clients can
// normalize points the same way before feeding the network.
type MinMaxExporter struct {
	JSONPath   string
	ScriptPath string
}

// EncodeMinMax renders s as {"min":[...],"max":[...]} indented by two spaces.
func EncodeMinMax(s *stats.MinMaxScaler) ([]byte, error) {
	if len(s.Min) != len(s.Max) {
		return nil, fmt.Errorf("%w: %d minimums for %d maximums", ErrShapeMismatch, len(s.Min), len(s.Max))
	}
	for _, f := range []struct {
		name string
		v    []float64
	}{{"min", s.Min}, {"max", s.Max}} {
		for j, v := range f.v {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &SerializationError{Level: -1, Field: f.name, Row: -1, Col: j, Value: v}
			}
		}
	}
	return json.MarshalIndent(s, "", "  ")
}

// Export writes both forms of s, replacing existing content.
func (e MinMaxExporter) Export(s *stats.MinMaxScaler) error {
	payload, err := EncodeMinMax(s)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(e.JSONPath, payload); err != nil {
		return err
	}
	return writeFileAtomic(e.ScriptPath, scriptText(minMaxPrefix, payload))
}

// LoadMinMax reads ranges written by MinMaxExporter from their JSON form.
func LoadMinMax(path string) (*stats.MinMaxScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("export: read min/max: %w", err)
	}
	var s stats.MinMaxScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("export: decode min/max: %w", err)
	}
	if len(s.Min) != len(s.Max) {
		return nil, fmt.Errorf("%w: %d minimums for %d maximums", ErrShapeMismatch, len(s.Min), len(s.Max))
	}
	return &s, nil
}
