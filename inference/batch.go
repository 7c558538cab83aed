package inference

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"listingprice/listing"
	"listingprice/pipeline"
)

// validateTable runs the record rules over every row of a raw table. The
// first bad row fails the batch with a *ValidationError wrapped with its row
// number.
func (s *Service) validateTable(t *pipeline.Table) error {
	for row := range t.Rows {
		record, problems := tableRecord(t, row)
		if err := Validate(record, s.rules); err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return err
			}
			problems = append(problems, verr.Problems...)
		}
		if len(problems) > 0 {
			return fmt.Errorf("row %d: %w", row, &ValidationError{Problems: problems})
		}
	}
	return nil
}

// tableRecord reads one row into a Record. Cells that do not parse are
// reported as problems and left at their zero value.
func tableRecord(t *pipeline.Table, row int) (listing.Record, []*FieldError) {
	var problems []*FieldError
	cell := func(name string) string {
		idx := t.Index(name)
		if idx < 0 || idx >= len(t.Rows[row]) {
			return ""
		}
		return strings.TrimSpace(t.Rows[row][idx])
	}
	number := func(name string) *float64 {
		v := cell(name)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, &FieldError{Field: name, Value: v, Message: "must be a number"})
			return nil
		}
		return &f
	}
	integer := func(name string) int {
		v := cell(name)
		if v == "" {
			problems = append(problems, &FieldError{Field: name, Message: "is required"})
			return 0
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f != math.Trunc(f) {
			problems = append(problems, &FieldError{Field: name, Value: v, Message: "must be an integer"})
			return 0
		}
		return int(f)
	}

	record := listing.Record{
		Name:                        cell(listing.ColName),
		NeighbourhoodGroup:          cell(listing.ColNeighbourhoodGroup),
		Neighbourhood:               cell(listing.ColNeighbourhood),
		RoomType:                    cell(listing.ColRoomType),
		Latitude:                    number(listing.ColLatitude),
		Longitude:                   number(listing.ColLongitude),
		MinimumNights:               integer(listing.ColMinimumNights),
		NumberOfReviews:             integer(listing.ColNumberOfReviews),
		CalculatedHostListingsCount: integer(listing.ColCalculatedHostListingsCount),
		Availability365:             integer(listing.ColAvailability365),
		LastReview:                  cell(listing.ColLastReview),
	}
	if rpm := number(listing.ColReviewsPerMonth); rpm != nil {
		record.ReviewsPerMonth = *rpm
	} else if cell(listing.ColReviewsPerMonth) == "" {
		problems = append(problems, &FieldError{Field: listing.ColReviewsPerMonth, Message: "is required"})
	}
	return record, problems
}
