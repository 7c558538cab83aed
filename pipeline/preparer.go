package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"listingprice/listing"
)

// Options names the columns the preparer treats specially.
type Options struct {
	DropColumns        []string `yaml:"drop_columns"`
	TargetColumn       string   `yaml:"target_column"`
	DateColumn         string   `yaml:"date_column"`
	CategoricalColumns []string `yaml:"categorical_columns"`
	TextColumns        []string `yaml:"text_columns"`
	IntColumns         []string `yaml:"int_columns"`
	FloatColumns       []string `yaml:"float_columns"`
}

// DefaultOptions returns the listings dataset layout.
func DefaultOptions() Options {
	return Options{
		DropColumns:  []string{listing.ColID, listing.ColHostID, listing.ColHostName},
		TargetColumn: listing.ColPrice,
		DateColumn:   listing.ColLastReview,
		CategoricalColumns: []string{
			listing.ColNeighbourhoodGroup,
			listing.ColNeighbourhood,
			listing.ColRoomType,
		},
		TextColumns: []string{listing.ColName, "description"},
		IntColumns: []string{
			listing.ColMinimumNights,
			listing.ColNumberOfReviews,
			listing.ColCalculatedHostListingsCount,
			listing.ColAvailability365,
		},
		FloatColumns: []string{
			listing.ColLatitude,
			listing.ColLongitude,
			listing.ColReviewsPerMonth,
		},
	}
}

// Preparer turns raw listing tables into model-ready frames.
type Preparer struct {
	opts        Options
	drop        map[string]bool
	categorical map[string]bool
	text        map[string]bool
	ints        map[string]bool
	floats      map[string]bool
}

// NewPreparer creates a preparer. Empty option fields fall back to defaults.
func NewPreparer(opts Options) *Preparer {
	defaults := DefaultOptions()
	if opts.TargetColumn == "" {
		opts.TargetColumn = defaults.TargetColumn
	}
	if opts.DateColumn == "" {
		opts.DateColumn = defaults.DateColumn
	}
	if opts.DropColumns == nil {
		opts.DropColumns = defaults.DropColumns
	}
	if opts.CategoricalColumns == nil {
		opts.CategoricalColumns = defaults.CategoricalColumns
	}
	if opts.TextColumns == nil {
		opts.TextColumns = defaults.TextColumns
	}
	if opts.IntColumns == nil {
		opts.IntColumns = defaults.IntColumns
	}
	if opts.FloatColumns == nil {
		opts.FloatColumns = defaults.FloatColumns
	}
	return &Preparer{
		opts:        opts,
		drop:        toSet(opts.DropColumns),
		categorical: toSet(opts.CategoricalColumns),
		text:        toSet(opts.TextColumns),
		ints:        toSet(opts.IntColumns),
		floats:      toSet(opts.FloatColumns),
	}
}

// TargetColumn returns the name of the training target.
func (p *Preparer) TargetColumn() string {
	return p.opts.TargetColumn
}

// Prepare runs the training-time pass: identifiers are dropped, the target is
// coerced to float64, listed numeric columns get their fixed kind,
// categorical label sets are inferred from the data and the date column is
// replaced by year and month. Only unlisted columns have their kind guessed.
// Any bad cell aborts the whole table.
func (p *Preparer) Prepare(t *Table) (*Frame, error) {
	if err := p.checkHeader(t, true); err != nil {
		return nil, err
	}

	columns := make([]*Column, 0, len(t.Header)+1)
	var derived []*Column
	for idx, name := range t.Header {
		if p.drop[name] {
			continue
		}
		values := t.Values(idx)

		switch {
		case name == p.opts.TargetColumn:
			col, err := floatColumn(name, values, false)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		case name == p.opts.DateColumn:
			year, month, err := dateColumns(name, values)
			if err != nil {
				return nil, err
			}
			derived = []*Column{year, month}
		case p.text[name]:
			columns = append(columns, textColumn(name, values))
		case p.categorical[name]:
			columns = append(columns, categoricalColumn(name, values))
		case p.ints[name]:
			col, err := intColumn(name, values)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		case p.floats[name]:
			col, err := floatColumn(name, values, true)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
		default:
			columns = append(columns, inferColumn(name, values))
		}
	}
	columns = append(columns, derived...)
	return newFrame(columns, t.Len()), nil
}

// Conform runs the serving-time pass against a fixed training schema. Kinds
// and category sets come from schema; a label outside its set is an
// *UnknownCategoryError. The target column is optional.
func (p *Preparer) Conform(t *Table, schema Schema) (*Frame, error) {
	if err := p.checkHeader(t, false); err != nil {
		return nil, err
	}

	var (
		columns  []*Column
		year     *Column
		month    *Column
		missing  []string
		dateDone bool
	)
	for _, field := range schema {
		if field.Name == listing.ColYear || field.Name == listing.ColMonth {
			if !dateDone {
				idx := t.Index(p.opts.DateColumn)
				if idx < 0 {
					missing = append(missing, p.opts.DateColumn)
					dateDone = true
					continue
				}
				var err error
				year, month, err = dateColumns(p.opts.DateColumn, t.Values(idx))
				if err != nil {
					return nil, err
				}
				dateDone = true
			}
			if year == nil {
				continue
			}
			if field.Name == listing.ColYear {
				columns = append(columns, year)
			} else {
				columns = append(columns, month)
			}
			continue
		}

		idx := t.Index(field.Name)
		if idx < 0 {
			if field.Name != p.opts.TargetColumn {
				missing = append(missing, field.Name)
			}
			continue
		}
		col, err := conformColumn(field, t.Values(idx))
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	if len(missing) > 0 {
		problems := make([]string, len(missing))
		for i, name := range missing {
			problems[i] = fmt.Sprintf("missing column %q", name)
		}
		return nil, &SchemaMismatchError{Problems: problems}
	}
	return newFrame(columns, t.Len()), nil
}

func (p *Preparer) checkHeader(t *Table, training bool) error {
	var problems []string
	seen := make(map[string]bool, len(t.Header))
	for _, name := range t.Header {
		if seen[name] {
			problems = append(problems, fmt.Sprintf("duplicate column %q", name))
		}
		seen[name] = true
	}
	if training {
		if !seen[p.opts.TargetColumn] {
			problems = append(problems, fmt.Sprintf("missing column %q", p.opts.TargetColumn))
		}
		if !seen[p.opts.DateColumn] {
			problems = append(problems, fmt.Sprintf("missing column %q", p.opts.DateColumn))
		}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			problems = append(problems, fmt.Sprintf("row %d has %d cells, header has %d", i, len(row), len(t.Header)))
			break
		}
	}
	if len(problems) > 0 {
		return &SchemaMismatchError{Problems: problems}
	}
	return nil
}

func conformColumn(field Field, values []string) (*Column, error) {
	switch field.Kind {
	case KindFloat:
		return floatColumn(field.Name, values, true)
	case KindInt:
		return intColumn(field.Name, values)
	case KindText:
		return textColumn(field.Name, values), nil
	case KindCategorical:
		codes := make([]int, len(values))
		for i, v := range values {
			label := NormalizeLabel(v)
			code, ok := field.Code(label)
			if !ok {
				return nil, &UnknownCategoryError{Field: field.Name, Value: v}
			}
			codes[i] = code
		}
		return &Column{
			Field: Field{Name: field.Name, Kind: KindCategorical, Categories: append([]string(nil), field.Categories...)},
			codes: codes,
		}, nil
	default:
		return nil, fmt.Errorf("column %q: unsupported kind %s", field.Name, field.Kind)
	}
}

func floatColumn(name string, values []string, allowEmpty bool) (*Column, error) {
	floats := make([]float64, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" && allowEmpty {
			floats[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, &TypeConversionError{Column: name, Row: i, Value: v, Want: KindFloat}
		}
		floats[i] = f
	}
	return &Column{Field: Field{Name: name, Kind: KindFloat}, floats: floats}, nil
}

func intColumn(name string, values []string) (*Column, error) {
	ints := make([]int64, len(values))
	for i, v := range values {
		n, ok := parseInt(v)
		if !ok {
			return nil, &TypeConversionError{Column: name, Row: i, Value: v, Want: KindInt}
		}
		ints[i] = n
	}
	return &Column{Field: Field{Name: name, Kind: KindInt}, ints: ints}, nil
}

func textColumn(name string, values []string) *Column {
	return &Column{Field: Field{Name: name, Kind: KindText}, texts: append([]string(nil), values...)}
}

// categoricalColumn infers a closed label set from the values present.
// Labels are sorted so codes are stable for identical input.
func categoricalColumn(name string, values []string) *Column {
	labels := make([]string, len(values))
	set := make(map[string]bool)
	for i, v := range values {
		labels[i] = NormalizeLabel(v)
		set[labels[i]] = true
	}
	categories := make([]string, 0, len(set))
	for label := range set {
		categories = append(categories, label)
	}
	sort.Strings(categories)

	field := Field{Name: name, Kind: KindCategorical, Categories: categories}
	codes := make([]int, len(values))
	for i, label := range labels {
		codes[i], _ = field.Code(label)
	}
	return &Column{Field: field, codes: codes}
}

// inferColumn types a column that no option names:
// int when every cell is integral, float when every non-empty cell is a
// number, categorical otherwise.
func inferColumn(name string, values []string) *Column {
	if len(values) > 0 {
		if col, err := intColumn(name, values); err == nil {
			return col
		}
	}
	if col, err := floatColumn(name, values, true); err == nil {
		return col
	}
	return categoricalColumn(name, values)
}

func dateColumns(name string, values []string) (*Column, *Column, error) {
	years := make([]int64, len(values))
	months := make([]int64, len(values))
	for i, v := range values {
		d, err := listing.ParseDate(v)
		if err != nil {
			return nil, nil, &DateParseError{Column: name, Row: i, Value: v, Err: err}
		}
		years[i] = int64(d.Year())
		months[i] = int64(d.Month())
	}
	year := &Column{Field: Field{Name: listing.ColYear, Kind: KindInt}, ints: years}
	month := &Column{Field: Field{Name: listing.ColMonth, Kind: KindInt}, ints: months}
	return year, month, nil
}

func parseInt(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, true
	}
	// integral floats such as "3.0" written by dataframe exports
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
