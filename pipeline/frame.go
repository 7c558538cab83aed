package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
)

// Kind is the prepared type of a column.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindCategorical
	KindText
)

var kindNames = map[Kind]string{
	KindFloat:       "float",
	KindInt:         "int",
	KindCategorical: "categorical",
	KindText:        "text",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	name, ok := kindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown kind %d", int(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. "numeric" is accepted
// as an alias of float.
func (k *Kind) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "numeric" {
		*k = KindFloat
		return nil
	}
	for kind, name := range kindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown kind %q", s)
}

// Numeric reports whether values of this kind are numbers in the source data.
func (k Kind) Numeric() bool {
	return k == KindFloat || k == KindInt
}

// Field describes one prepared column.
type Field struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Categories []string `json:"categories,omitempty"`
}

// Code returns the position of label in the field's sorted category set.
func (f Field) Code(label string) (int, bool) {
	i := sort.SearchStrings(f.Categories, label)
	if i < len(f.Categories) && f.Categories[i] == label {
		return i, true
	}
	return -1, false
}

// Column is an immutable typed column of a Frame.
type Column struct {
	Field

	floats []float64
	ints   []int64
	codes  []int
	texts  []string
}

func (c *Column) Len() int {
	switch c.Kind {
	case KindFloat:
		return len(c.floats)
	case KindInt:
		return len(c.ints)
	case KindCategorical:
		return len(c.codes)
	default:
		return len(c.texts)
	}
}

// Float returns the value at i as a model input. Categoricals yield their
// code, text yields NaN.
func (c *Column) Float(i int) float64 {
	switch c.Kind {
	case KindFloat:
		return c.floats[i]
	case KindInt:
		return float64(c.ints[i])
	case KindCategorical:
		return float64(c.codes[i])
	default:
		return math.NaN()
	}
}

// Int returns the value at i of an int column.
func (c *Column) Int(i int) int64 {
	if c.Kind != KindInt {
		return 0
	}
	return c.ints[i]
}

// Label returns the category label at i of a categorical column.
func (c *Column) Label(i int) string {
	if c.Kind != KindCategorical {
		return ""
	}
	return c.Categories[c.codes[i]]
}

// String renders the value at i the way it is written back to CSV.
func (c *Column) String(i int) string {
	switch c.Kind {
	case KindFloat:
		if math.IsNaN(c.floats[i]) {
			return ""
		}
		return strconv.FormatFloat(c.floats[i], 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(c.ints[i], 10)
	case KindCategorical:
		return c.Label(i)
	default:
		return c.texts[i]
	}
}

// Frame is a prepared, typed dataset. Frames are never mutated once built.
type Frame struct {
	columns []*Column
	rows    int
}

func newFrame(columns []*Column, rows int) *Frame {
	return &Frame{columns: columns, rows: rows}
}

func (f *Frame) Len() int {
	return f.rows
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) Schema() Schema {
	schema := make(Schema, len(f.columns))
	for i, c := range f.columns {
		schema[i] = Field{
			Name:       c.Name,
			Kind:       c.Kind,
			Categories: append([]string(nil), c.Categories...),
		}
	}
	return schema
}

func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// WriteCSV writes the frame with categoricals rendered as labels.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(f.columns))
	for i := 0; i < f.rows; i++ {
		for j, c := range f.columns {
			record[j] = c.String(i)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
