package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"listingprice/inference"
	"listingprice/listing"
)

// predictRequest mirrors listing.Record with pointers so that missing
// fields can be told apart from zero values.
type predictRequest struct {
	Name                        *string  `json:"name"`
	NeighbourhoodGroup          *string  `json:"neighbourhood_group"`
	Neighbourhood               *string  `json:"neighbourhood"`
	RoomType                    *string  `json:"room_type"`
	Latitude                    *float64 `json:"latitude"`
	Longitude                   *float64 `json:"longitude"`
	MinimumNights               *int     `json:"minimum_nights"`
	NumberOfReviews             *int     `json:"number_of_reviews"`
	ReviewsPerMonth             *float64 `json:"reviews_per_month"`
	CalculatedHostListingsCount *int     `json:"calculated_host_listings_count"`
	Availability365             *int     `json:"availability_365"`
	LastReview                  *string  `json:"last_review"`
}

var (
	// errMalformedBody marks bodies that could not be decoded at all.
	errMalformedBody = errors.New("malformed request body")
	// errBodyTooLarge marks bodies cut off by the size limit.
	errBodyTooLarge = errors.New("request body too large")
)

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}

// decodeRecord reads a candidate listing from a JSON or form-encoded body.
func decodeRecord(r *http.Request) (listing.Record, error) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch contentType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return listing.Record{}, bodyError(err)
		}
		return recordFromForm(r.PostForm)
	default:
		return recordFromJSON(r.Body)
	}
}

func recordFromJSON(body io.Reader) (listing.Record, error) {
	var req predictRequest
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return listing.Record{}, bodyError(err)
	}

	var problems []*inference.FieldError
	required := func(field string, missing bool) {
		if missing {
			problems = append(problems, &inference.FieldError{Field: field, Message: "is required"})
		}
	}
	required(listing.ColNeighbourhoodGroup, req.NeighbourhoodGroup == nil)
	required(listing.ColNeighbourhood, req.Neighbourhood == nil)
	required(listing.ColRoomType, req.RoomType == nil)
	required(listing.ColMinimumNights, req.MinimumNights == nil)
	required(listing.ColNumberOfReviews, req.NumberOfReviews == nil)
	required(listing.ColReviewsPerMonth, req.ReviewsPerMonth == nil)
	required(listing.ColCalculatedHostListingsCount, req.CalculatedHostListingsCount == nil)
	required(listing.ColAvailability365, req.Availability365 == nil)
	required(listing.ColLastReview, req.LastReview == nil)
	if len(problems) > 0 {
		return listing.Record{}, &inference.ValidationError{Problems: problems}
	}

	record := listing.Record{
		NeighbourhoodGroup:          *req.NeighbourhoodGroup,
		Neighbourhood:               *req.Neighbourhood,
		RoomType:                    *req.RoomType,
		Latitude:                    req.Latitude,
		Longitude:                   req.Longitude,
		MinimumNights:               *req.MinimumNights,
		NumberOfReviews:             *req.NumberOfReviews,
		ReviewsPerMonth:             *req.ReviewsPerMonth,
		CalculatedHostListingsCount: *req.CalculatedHostListingsCount,
		Availability365:             *req.Availability365,
		LastReview:                  *req.LastReview,
	}
	if req.Name != nil {
		record.Name = *req.Name
	}
	return record, nil
}

func recordFromForm(form url.Values) (listing.Record, error) {
	var problems []*inference.FieldError
	text := func(field string, required bool) string {
		v := strings.TrimSpace(form.Get(field))
		if v == "" && required {
			problems = append(problems, &inference.FieldError{Field: field, Message: "is required"})
		}
		return v
	}
	integer := func(field string) int {
		v := text(field, true)
		if v == "" {
			return 0
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			problems = append(problems, &inference.FieldError{Field: field, Value: v, Message: "must be an integer"})
		}
		return n
	}
	number := func(field string, required bool) *float64 {
		v := text(field, required)
		if v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			problems = append(problems, &inference.FieldError{Field: field, Value: v, Message: "must be a number"})
			return nil
		}
		return &f
	}

	record := listing.Record{
		Name:                        text(listing.ColName, false),
		NeighbourhoodGroup:          text(listing.ColNeighbourhoodGroup, true),
		Neighbourhood:               text(listing.ColNeighbourhood, true),
		RoomType:                    text(listing.ColRoomType, true),
		Latitude:                    number(listing.ColLatitude, false),
		Longitude:                   number(listing.ColLongitude, false),
		MinimumNights:               integer(listing.ColMinimumNights),
		NumberOfReviews:             integer(listing.ColNumberOfReviews),
		CalculatedHostListingsCount: integer(listing.ColCalculatedHostListingsCount),
		Availability365:             integer(listing.ColAvailability365),
		LastReview:                  text(listing.ColLastReview, true),
	}
	if rpm := number(listing.ColReviewsPerMonth, true); rpm != nil {
		record.ReviewsPerMonth = *rpm
	}
	if len(problems) > 0 {
		return listing.Record{}, &inference.ValidationError{Problems: problems}
	}
	return record, nil
}
