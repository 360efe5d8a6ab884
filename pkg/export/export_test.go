package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/gniziemazity/ml-course-phase-2/pkg/dataprep"
	"github.com/gniziemazity/ml-course-phase-2/pkg/model"
)

// sketchLayers returns a 2-10-8 network with distinguishable parameters.
func sketchLayers() []model.LayerParameters {
	fill := func(r, c int, base float64) *mat.Dense {
		m := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				m.Set(i, j, base+float64(i)+float64(j)/100)
			}
		}
		return m
	}
	b1, b2 := make([]float64, 10), make([]float64, 8)
	for i := range b1 {
		b1[i] = float64(i) / 10
	}
	for i := range b2 {
		b2[i] = -float64(i) / 10
	}
	return []model.LayerParameters{
		{Weights: fill(2, 10, 0), Biases: b1},
		{Weights: fill(10, 8, 100), Biases: b2},
	}
}

func sketchDocument(t *testing.T) *Document {
	t.Helper()
	doc, err := NewDocument([]int{2, 10, 8}, dataprep.SketchClasses.Names(), sketchLayers())
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	return doc
}

func TestNewDocument_Levels(t *testing.T) {
	doc := sketchDocument(t)
	if len(doc.Network.Levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(doc.Network.Levels))
	}
	for l, lv := range doc.Network.Levels {
		if len(lv.Inputs) != len(lv.Weights) {
			t.Errorf("level %d: %d inputs for %d weight rows", l, len(lv.Inputs), len(lv.Weights))
		}
		if len(lv.Outputs) != len(lv.Biases) {
			t.Errorf("level %d: %d outputs for %d biases", l, len(lv.Outputs), len(lv.Biases))
		}
		for _, v := range append(append([]float64(nil), lv.Inputs...), lv.Outputs...) {
			if v != 0 {
				t.Fatalf("level %d: inputs and outputs must be zero", l)
			}
		}
	}
	if got := doc.Network.Levels[1].Weights[3][2]; math.Abs(got-103.02) > 1e-9 {
		t.Errorf("Weights[3][2] = %v, want 103.02", got)
	}
	if doc.Classes[7] != "clock" {
		t.Errorf("Classes = %v", doc.Classes)
	}
	if err := doc.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNewDocument_ShapeMismatch(t *testing.T) {
	layers := sketchLayers()
	names := dataprep.SketchClasses.Names()
	cases := []struct {
		name   string
		counts []int
		names  []string
		layers []model.LayerParameters
	}{
		{"no layers", []int{2}, names, nil},
		{"too few counts", []int{2, 8}, names, layers},
		{"wrong hidden count", []int{2, 9, 8}, names, layers},
		{"too few classes", []int{2, 10, 8}, names[:7], layers},
		{"short biases", []int{2, 10, 8}, names, []model.LayerParameters{
			layers[0], {Weights: layers[1].Weights, Biases: layers[1].Biases[:7]},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDocument(tc.counts, tc.names, tc.layers); !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("expected ErrShapeMismatch, got %v", err)
			}
		})
	}
}

func TestEncode_KeyOrderAndIdempotence(t *testing.T) {
	doc := sketchDocument(t)
	a, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, _ := doc.Encode()
	if !bytes.Equal(a, b) {
		t.Error("encoding the same document twice gave different bytes")
	}
	s := string(a)
	order := []string{`"neuronCounts"`, `"classes"`, `"network"`, `"levels"`, `"weights"`, `"biases"`, `"inputs"`, `"outputs"`}
	last := -1
	for _, key := range order {
		i := strings.Index(s, key)
		if i < 0 || i < last {
			t.Fatalf("key %s missing or out of order in %s", key, s[:min(len(s), 200)])
		}
		last = i
	}
	if !strings.HasPrefix(s, "{\n  \"neuronCounts\"") {
		t.Errorf("expected two-space indentation, got %q", s[:20])
	}
}

func TestEncode_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		doc := sketchDocument(t)
		doc.Network.Levels[1].Weights[4][5] = v
		_, err := doc.Encode()
		var se *SerializationError
		if !errors.As(err, &se) {
			t.Fatalf("%v: expected *SerializationError, got %v", v, err)
		}
		if se.Level != 1 || se.Field != "weights" || se.Row != 4 || se.Col != 5 {
			t.Errorf("%v: got %+v", v, se)
		}
	}
	doc := sketchDocument(t)
	doc.Network.Levels[0].Biases[3] = math.NaN()
	var se *SerializationError
	if _, err := doc.Encode(); !errors.As(err, &se) || se.Field != "biases" || se.Row != -1 || se.Col != 3 {
		t.Errorf("expected biases[3] error, got %v", err)
	}
}

func TestExport_WritesBothForms(t *testing.T) {
	dir := t.TempDir()
	exp := Exporter{JSONPath: filepath.Join(dir, "model.json"), ScriptPath: filepath.Join(dir, "model.js")}
	doc := sketchDocument(t)
	if err := exp.Export(doc); err != nil {
		t.Fatalf("Export: %v", err)
	}

	jsonBytes, err := os.ReadFile(exp.JSONPath)
	if err != nil {
		t.Fatal(err)
	}
	jsBytes, err := os.ReadFile(exp.ScriptPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "const model = " + string(jsonBytes) + ";"
	if string(jsBytes) != want {
		t.Errorf("script form is not the JSON wrapped in `const model = ...;`")
	}

	var generic map[string]any
	if err := json.Unmarshal(jsonBytes, &generic); err != nil {
		t.Fatalf("model.json is not valid JSON: %v", err)
	}
	for _, key := range []string{"neuronCounts", "classes", "network"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("model.json is missing %q", key)
		}
	}

	// A second export replaces the files with identical content.
	if err := exp.Export(doc); err != nil {
		t.Fatalf("second Export: %v", err)
	}
	again, _ := os.ReadFile(exp.JSONPath)
	if !bytes.Equal(again, jsonBytes) {
		t.Error("re-export changed model.json")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("expected only the two artifacts in %s, found %d entries", dir, len(entries))
	}
}

func TestExport_Overwrites(t *testing.T) {
	dir := t.TempDir()
	exp := Exporter{JSONPath: filepath.Join(dir, "model.json"), ScriptPath: filepath.Join(dir, "model.js")}
	stale := strings.Repeat("x", 1<<16)
	for _, p := range []string{exp.JSONPath, exp.ScriptPath} {
		if err := os.WriteFile(p, []byte(stale), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := exp.Export(sketchDocument(t)); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if _, err := Load(exp.JSONPath); err != nil {
		t.Errorf("model.json not replaced: %v", err)
	}
	if _, err := Load(exp.ScriptPath); err != nil {
		t.Errorf("model.js not replaced: %v", err)
	}
}

func TestExport_MissingDirectory(t *testing.T) {
	dir := t.TempDir()
	exp := Exporter{
		JSONPath:   filepath.Join(dir, "missing", "model.json"),
		ScriptPath: filepath.Join(dir, "model.js"),
	}
	err := exp.Export(sketchDocument(t))
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if we.Path != exp.JSONPath || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("got %v", err)
	}
	if _, err := os.Stat(exp.ScriptPath); !errors.Is(err, fs.ErrNotExist) {
		t.Error("script must not be written when the JSON write fails")
	}

	err = Exporter{JSONPath: filepath.Join(dir, "model.json")}.Export(sketchDocument(t))
	if !errors.As(err, &we) || we.Path != "" {
		t.Errorf("expected WriteError for empty script path, got %v", err)
	}
}

func TestExport_NonFiniteWritesNothing(t *testing.T) {
	dir := t.TempDir()
	exp := Exporter{JSONPath: filepath.Join(dir, "model.json"), ScriptPath: filepath.Join(dir, "model.js")}
	doc := sketchDocument(t)
	doc.Network.Levels[0].Weights[0][0] = math.Inf(1)
	var se *SerializationError
	if err := exp.Export(doc); !errors.As(err, &se) {
		t.Fatalf("expected *SerializationError, got %v", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("expected no files, found %d", len(entries))
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	doc := sketchDocument(t)
	payload, err := doc.Encode()
	if err != nil {
		t.Fatal(err)
	}
	for name, data := range map[string][]byte{
		"json":   payload,
		"script": ScriptText(payload),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			again, _ := got.Encode()
			if !bytes.Equal(again, payload) {
				t.Error("decoded document re-encodes differently")
			}
			layers, err := got.Layers()
			if err != nil {
				t.Fatalf("Layers: %v", err)
			}
			for l, p := range sketchLayers() {
				if !mat.Equal(layers[l].Weights, p.Weights) {
					t.Errorf("level %d weights differ after round trip", l)
				}
			}
		})
	}
	if _, err := Decode([]byte(`{"neuronCounts":[2,3],"classes":["a"],"network":{"levels":[]}}`)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if _, err := Decode([]byte("const model = {;")); err == nil {
		t.Error("expected error for malformed payload")
	}
}
