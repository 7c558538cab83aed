package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Schema is the ordered list of prepared fields a model was trained on.
type Schema []Field

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Field returns the named field.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Without returns the schema minus the named fields.
func (s Schema) Without(names ...string) Schema {
	out := make(Schema, 0, len(s))
	for _, f := range s {
		skip := false
		for _, name := range names {
			if f.Name == name {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

// Diff describes every difference between s (expected) and other. Names,
// order, kinds and category sets must all agree.
func (s Schema) Diff(other Schema) []string {
	var problems []string
	if len(s) != len(other) {
		problems = append(problems, fmt.Sprintf("expected %d columns, got %d", len(s), len(other)))
	}
	n := len(s)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		want, got := s[i], other[i]
		if want.Name != got.Name {
			problems = append(problems, fmt.Sprintf("column %d: expected %q, got %q", i, want.Name, got.Name))
			continue
		}
		if want.Kind != got.Kind {
			problems = append(problems, fmt.Sprintf("column %q: expected %s, got %s", want.Name, want.Kind, got.Kind))
			continue
		}
		if want.Kind == KindCategorical && !equalLabels(want.Categories, got.Categories) {
			problems = append(problems, fmt.Sprintf("column %q: categories differ (%s)", want.Name, labelDiff(want.Categories, got.Categories)))
		}
	}
	for i := n; i < len(s); i++ {
		problems = append(problems, fmt.Sprintf("missing column %q", s[i].Name))
	}
	for i := n; i < len(other); i++ {
		problems = append(problems, fmt.Sprintf("unexpected column %q", other[i].Name))
	}
	return problems
}

// Check returns a *SchemaMismatchError when other differs from s.
func (s Schema) Check(other Schema) error {
	if problems := s.Diff(other); len(problems) > 0 {
		return &SchemaMismatchError{Problems: problems}
	}
	return nil
}

// Catalog returns the category label sets of the schema's categorical fields.
func (s Schema) Catalog() Catalog {
	catalog := make(Catalog)
	for _, f := range s {
		if f.Kind == KindCategorical {
			catalog[f.Name] = append([]string(nil), f.Categories...)
		}
	}
	return catalog
}

// Catalog maps each categorical field to its closed, sorted label set.
type Catalog map[string][]string

// Fields returns the categorical field names, sorted.
func (c Catalog) Fields() []string {
	fields := make([]string, 0, len(c))
	for field := range c {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Contains reports whether label is a known value of field.
func (c Catalog) Contains(field, label string) bool {
	labels := c[field]
	label = NormalizeLabel(label)
	i := sort.SearchStrings(labels, label)
	return i < len(labels) && labels[i] == label
}

func equalLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func labelDiff(want, got []string) string {
	wantSet := make(map[string]bool, len(want))
	for _, l := range want {
		wantSet[l] = true
	}
	gotSet := make(map[string]bool, len(got))
	for _, l := range got {
		gotSet[l] = true
	}
	var parts []string
	for _, l := range want {
		if !gotSet[l] {
			parts = append(parts, "-"+l)
		}
	}
	for _, l := range got {
		if !wantSet[l] {
			parts = append(parts, "+"+l)
		}
	}
	if len(parts) == 0 {
		return "order"
	}
	return strings.Join(parts, ", ")
}
