package pipeline

import (
	"fmt"
	"strings"
)

// TypeConversionError is returned when a cell cannot be coerced to the
// numeric type its column requires.
type TypeConversionError struct {
	Column string
	Row    int
	Value  string
	Want   Kind
}

func (e *TypeConversionError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot convert %q to %s", e.Column, e.Row, e.Value, e.Want)
}

// DateParseError is returned when a date cell cannot be parsed.
type DateParseError struct {
	Column string
	Row    int
	Value  string
	Err    error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot parse date %q: %v", e.Column, e.Row, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error {
	return e.Err
}

// UnknownCategoryError is returned when a categorical value is not part of
// the label set fixed at training time.
type UnknownCategoryError struct {
	Field string
	Value string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Field, e.Value)
}

// SchemaMismatchError lists every difference between an expected schema and
// the one observed.
type SchemaMismatchError struct {
	Problems []string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + strings.Join(e.Problems, "; ")
}
