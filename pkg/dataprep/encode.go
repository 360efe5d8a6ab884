package dataprep

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

var (
	ErrUnknownLabel   = errors.New("dataprep: unknown label")
	ErrDuplicateLabel = errors.New("dataprep: duplicate label")
)

// LabelTable is an ordered, immutable mapping from class name to a dense integer code.
// The position of a name is its code, so Names() doubles as the exported class list.
type LabelTable struct {
	names []string
	codes map[string]int
}

// SketchClasses is the label table shared by training, scoring and export.
var SketchClasses = MustLabelTable("car", "fish", "house", "tree", "bicycle", "guitar", "pencil", "clock")

// NewLabelTable builds a table whose codes follow the order of names.
func NewLabelTable(names ...string) (*LabelTable, error) {
	if len(names) == 0 {
		return nil, errors.New("dataprep: empty label table")
	}
	if dups := lo.FindDuplicates(names); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, dups[0])
	}
	return &LabelTable{
		names: append([]string(nil), names...),
		codes: lo.SliceToMap(names, func(n string) (string, int) { return n, lo.IndexOf(names, n) }),
	}, nil
}

// MustLabelTable is like NewLabelTable but panics on error. Use it for package-level tables.
func MustLabelTable(names ...string) *LabelTable {
	t, err := NewLabelTable(names...)
	if err != nil {
		panic(err)
	}
	return t
}

// Code returns the integer code of name.
func (t *LabelTable) Code(name string) (int, error) {
	c, ok := t.codes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, name)
	}
	return c, nil
}

// Name returns the class name for code.
func (t *LabelTable) Name(code int) (string, error) {
	if code < 0 || code >= len(t.names) {
		return "", fmt.Errorf("%w: code %d", ErrUnknownLabel, code)
	}
	return t.names[code], nil
}

// Names returns a copy of the class names in code order.
func (t *LabelTable) Names() []string { return append([]string(nil), t.names...) }

func (t *LabelTable) Len() int { return len(t.names) }

// Decode maps label codes back to class names.
func (t *LabelTable) Decode(codes []int) ([]string, error) {
	out := make([]string, len(codes))
	for i, c := range codes {
		n, err := t.Name(c)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
