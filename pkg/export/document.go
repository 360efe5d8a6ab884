// Package export turns trained network parameters into the model document read by the
// browser visualizer, as pure JSON and as a script that binds it to `model`.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/gniziemazity/ml-course-phase-2/pkg/core"
	"github.com/gniziemazity/ml-course-phase-2/pkg/model"
)

var ErrShapeMismatch = errors.New("export: shape mismatch")

// Level is one dense layer of the exported network. Inputs and Outputs are zeroed
// buffers the visualizer fills during its own forward pass.
type Level struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
	Inputs  []float64   `json:"inputs"`
	Outputs []float64   `json:"outputs"`
}

type Network struct {
	Levels []Level `json:"levels"`
}

// Document is the exported model. Field order fixes the key order of the encoded JSON.
type Document struct {
	NeuronCounts []int    `json:"neuronCounts"`
	Classes      []string `json:"classes"`
	Network      Network  `json:"network"`
}

// SerializationError reports a value JSON cannot represent.
type SerializationError struct {
	Level int // -1 outside the network levels
	Field string
	Row   int // -1 for vectors
	Col   int
	Value float64
}

func (e *SerializationError) Error() string {
	if e.Level < 0 {
		return fmt.Sprintf("export: %s[%d] is %v, not representable in JSON", e.Field, e.Col, e.Value)
	}
	if e.Row < 0 {
		return fmt.Sprintf("export: level %d %s[%d] is %v, not representable in JSON", e.Level, e.Field, e.Col, e.Value)
	}
	return fmt.Sprintf("export: level %d %s[%d][%d] is %v, not representable in JSON", e.Level, e.Field, e.Row, e.Col, e.Value)
}

// NewDocument copies the layer parameters into a document. neuronCounts must list the
// input width followed by the output width of every layer, and classNames must name
// every output of the last layer in code order.
func NewDocument(neuronCounts []int, classNames []string, layers []model.LayerParameters) (*Document, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", ErrShapeMismatch)
	}
	if len(neuronCounts) != len(layers)+1 {
		return nil, fmt.Errorf("%w: %d neuron counts for %d layers", ErrShapeMismatch, len(neuronCounts), len(layers))
	}
	if last := neuronCounts[len(neuronCounts)-1]; len(classNames) != last {
		return nil, fmt.Errorf("%w: %d classes for %d outputs", ErrShapeMismatch, len(classNames), last)
	}

	doc := &Document{
		NeuronCounts: append([]int(nil), neuronCounts...),
		Classes:      append([]string(nil), classNames...),
		Network:      Network{Levels: make([]Level, len(layers))},
	}
	for l, p := range layers {
		in, out := p.Dims()
		if in != neuronCounts[l] || out != neuronCounts[l+1] {
			return nil, fmt.Errorf("%w: level %d is %dx%d, neuron counts say %dx%d",
				ErrShapeMismatch, l, in, out, neuronCounts[l], neuronCounts[l+1])
		}
		if len(p.Biases) != out {
			return nil, fmt.Errorf("%w: level %d has %d outputs but %d biases", ErrShapeMismatch, l, out, len(p.Biases))
		}
		doc.Network.Levels[l] = Level{
			Weights: core.ToSlice(p.Weights),
			Biases:  append(make([]float64, 0, out), p.Biases...),
			Inputs:  zeros(in),
			Outputs: zeros(out),
		}
	}
	return doc, nil
}

func zeros(n int) []float64 { return lo.Times(n, func(int) float64 { return 0 }) }

// Validate checks the structural invariants of the document.
func (d *Document) Validate() error {
	if len(d.Network.Levels) == 0 {
		return fmt.Errorf("%w: no levels", ErrShapeMismatch)
	}
	if len(d.NeuronCounts) != len(d.Network.Levels)+1 {
		return fmt.Errorf("%w: %d neuron counts for %d levels", ErrShapeMismatch, len(d.NeuronCounts), len(d.Network.Levels))
	}
	for l, lv := range d.Network.Levels {
		if len(lv.Weights) != d.NeuronCounts[l] || len(lv.Inputs) != len(lv.Weights) {
			return fmt.Errorf("%w: level %d has %d weight rows and %d inputs, want %d",
				ErrShapeMismatch, l, len(lv.Weights), len(lv.Inputs), d.NeuronCounts[l])
		}
		if len(lv.Biases) != d.NeuronCounts[l+1] || len(lv.Outputs) != len(lv.Biases) {
			return fmt.Errorf("%w: level %d has %d biases and %d outputs, want %d",
				ErrShapeMismatch, l, len(lv.Biases), len(lv.Outputs), d.NeuronCounts[l+1])
		}
		for i, row := range lv.Weights {
			if len(row) != len(lv.Biases) {
				return fmt.Errorf("%w: level %d weight row %d has %d columns, want %d", ErrShapeMismatch, l, i, len(row), len(lv.Biases))
			}
		}
	}
	if len(d.Classes) != d.NeuronCounts[len(d.NeuronCounts)-1] {
		return fmt.Errorf("%w: %d classes for %d outputs", ErrShapeMismatch, len(d.Classes), d.NeuronCounts[len(d.NeuronCounts)-1])
	}
	return nil
}

// CheckFinite returns a *SerializationError for the first NaN or infinite parameter.
func (d *Document) CheckFinite() error {
	bad := func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }
	for l, lv := range d.Network.Levels {
		for i, row := range lv.Weights {
			for j, v := range row {
				if bad(v) {
					return &SerializationError{Level: l, Field: "weights", Row: i, Col: j, Value: v}
				}
			}
		}
		for j, v := range lv.Biases {
			if bad(v) {
				return &SerializationError{Level: l, Field: "biases", Row: -1, Col: j, Value: v}
			}
		}
	}
	return nil
}

// Encode renders the document as JSON indented by two spaces.
// The same document always encodes to the same bytes.
func (d *Document) Encode() ([]byte, error) {
	if err := d.CheckFinite(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(d, "", "  ")
}

const (
	scriptPrefix = "const model = "
	scriptSuffix = ";"
)

// ScriptText wraps an encoded document as script source defining `model`.
func ScriptText(payload []byte) []byte {
	return scriptText(scriptPrefix, payload)
}

func scriptText(prefix string, payload []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(payload)+len(scriptSuffix))
	out = append(out, prefix...)
	out = append(out, payload...)
	return append(out, scriptSuffix...)
}

// Decode parses a document from either its JSON or its script form and validates it.
func Decode(data []byte) (*Document, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte(scriptPrefix)) {
		data = bytes.TrimSuffix(bytes.TrimPrefix(data, []byte(scriptPrefix)), []byte(scriptSuffix))
	}
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("export: decode model: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Layers converts the document levels back into layer parameters.
func (d *Document) Layers() ([]model.LayerParameters, error) {
	out := make([]model.LayerParameters, len(d.Network.Levels))
	for l, lv := range d.Network.Levels {
		w, err := core.FromSlice(lv.Weights)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d: %v", ErrShapeMismatch, l, err)
		}
		out[l] = model.LayerParameters{Weights: w, Biases: append([]float64(nil), lv.Biases...)}
	}
	return out, nil
}
