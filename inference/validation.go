package inference

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"listingprice/listing"
)

// FieldError is one problem found in a candidate record. Rule names the
// check that reported it; problems found while reading raw cells have none.
type FieldError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Rule    string `json:"rule,omitempty"`
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s (got %s)", e.Field, e.Message, e.Value)
}

// ValidationError is returned when a candidate record is malformed. The
// model is never invoked for such a record.
type ValidationError struct {
	Problems []*FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return "invalid listing: " + strings.Join(msgs, "; ")
}

// ValidationRule checks one aspect of a candidate record.
type ValidationRule interface {
	Name() string
	Check(listing.Record) error
}

// DefaultRules returns the record checks applied before scoring.
// requireCoordinates is set when the model uses latitude and longitude.
func DefaultRules(requireCoordinates bool) []ValidationRule {
	return []ValidationRule{
		&requiredRule{fields: map[string]func(listing.Record) string{
			listing.ColNeighbourhoodGroup: func(r listing.Record) string { return r.NeighbourhoodGroup },
			listing.ColNeighbourhood:      func(r listing.Record) string { return r.Neighbourhood },
			listing.ColRoomType:           func(r listing.Record) string { return r.RoomType },
		}, order: []string{listing.ColNeighbourhoodGroup, listing.ColNeighbourhood, listing.ColRoomType}},
		newRangeRule(listing.ColMinimumNights, 0, math.Inf(1), func(r listing.Record) float64 { return float64(r.MinimumNights) }),
		newRangeRule(listing.ColNumberOfReviews, 0, math.Inf(1), func(r listing.Record) float64 { return float64(r.NumberOfReviews) }),
		newRangeRule(listing.ColReviewsPerMonth, 0, math.Inf(1), func(r listing.Record) float64 { return r.ReviewsPerMonth }),
		newRangeRule(listing.ColCalculatedHostListingsCount, 0, math.Inf(1), func(r listing.Record) float64 { return float64(r.CalculatedHostListingsCount) }),
		newRangeRule(listing.ColAvailability365, 0, 365, func(r listing.Record) float64 { return float64(r.Availability365) }),
		&dateRule{},
		&coordinatesRule{required: requireCoordinates},
	}
}

// Validate runs every rule and collects all problems into a
// *ValidationError.
func Validate(record listing.Record, rules []ValidationRule) error {
	verr := &ValidationError{}
	for _, rule := range rules {
		for _, e := range multierr.Errors(rule.Check(record)) {
			var fe *FieldError
			if !errors.As(e, &fe) {
				fe = &FieldError{Field: "record", Message: e.Error()}
			}
			fe.Rule = rule.Name()
			verr.Problems = append(verr.Problems, fe)
		}
	}
	if len(verr.Problems) == 0 {
		return nil
	}
	return verr
}

type requiredRule struct {
	fields map[string]func(listing.Record) string
	order  []string
}

func (r *requiredRule) Name() string {
	return "required"
}

func (r *requiredRule) Check(record listing.Record) error {
	var err error
	for _, field := range r.order {
		if strings.TrimSpace(r.fields[field](record)) == "" {
			err = multierr.Append(err, &FieldError{Field: field, Message: "is required"})
		}
	}
	return err
}

type rangeRule struct {
	field    string
	min, max float64
	get      func(listing.Record) float64
}

func newRangeRule(field string, min, max float64, get func(listing.Record) float64) *rangeRule {
	return &rangeRule{field: field, min: min, max: max, get: get}
}

func (r *rangeRule) Name() string {
	return "range:" + r.field
}

func (r *rangeRule) Check(record listing.Record) error {
	v := r.get(record)
	value := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &FieldError{Field: r.field, Value: value, Message: "must be a finite number"}
	}
	if v < r.min {
		return &FieldError{Field: r.field, Value: value, Message: fmt.Sprintf("must be >= %g", r.min)}
	}
	if v > r.max {
		return &FieldError{Field: r.field, Value: value, Message: fmt.Sprintf("must be <= %g", r.max)}
	}
	return nil
}

type dateRule struct{}

func (r *dateRule) Name() string {
	return "date:" + listing.ColLastReview
}

func (r *dateRule) Check(record listing.Record) error {
	if strings.TrimSpace(record.LastReview) == "" {
		return &FieldError{Field: listing.ColLastReview, Message: "is required"}
	}
	if _, err := listing.ParseDate(record.LastReview); err != nil {
		return &FieldError{Field: listing.ColLastReview, Value: record.LastReview, Message: "is not a valid date"}
	}
	return nil
}

type coordinatesRule struct {
	required bool
}

func (r *coordinatesRule) Name() string {
	return "coordinates"
}

func (r *coordinatesRule) Check(record listing.Record) error {
	if record.Latitude == nil && record.Longitude == nil {
		if r.required {
			return multierr.Combine(
				&FieldError{Field: listing.ColLatitude, Message: "is required"},
				&FieldError{Field: listing.ColLongitude, Message: "is required"},
			)
		}
		return nil
	}
	if record.Latitude == nil {
		return &FieldError{Field: listing.ColLatitude, Message: "is required with longitude"}
	}
	if record.Longitude == nil {
		return &FieldError{Field: listing.ColLongitude, Message: "is required with latitude"}
	}
	return multierr.Combine(
		newRangeRule(listing.ColLatitude, -90, 90, func(r listing.Record) float64 { return *r.Latitude }).Check(record),
		newRangeRule(listing.ColLongitude, -180, 180, func(r listing.Record) float64 { return *r.Longitude }).Check(record),
	)
}
