// Package listing holds the rental listing record shared by the dataset
// loader, the feature preparer and the prediction surfaces.
package listing

import (
	"strconv"
)

// Column names used in the listings dataset.
const (
	ColID                          = "id"
	ColName                        = "name"
	ColHostID                      = "host_id"
	ColHostName                    = "host_name"
	ColNeighbourhoodGroup          = "neighbourhood_group"
	ColNeighbourhood               = "neighbourhood"
	ColLatitude                    = "latitude"
	ColLongitude                   = "longitude"
	ColRoomType                    = "room_type"
	ColPrice                       = "price"
	ColMinimumNights               = "minimum_nights"
	ColNumberOfReviews             = "number_of_reviews"
	ColLastReview                  = "last_review"
	ColReviewsPerMonth             = "reviews_per_month"
	ColCalculatedHostListingsCount = "calculated_host_listings_count"
	ColAvailability365             = "availability_365"
	ColYear                        = "year"
	ColMonth                       = "month"
)

// Record is one candidate listing submitted for scoring. Price is never part
// of a candidate.
type Record struct {
	Name                        string   `json:"name"`
	NeighbourhoodGroup          string   `json:"neighbourhood_group"`
	Neighbourhood               string   `json:"neighbourhood"`
	RoomType                    string   `json:"room_type"`
	Latitude                    *float64 `json:"latitude,omitempty"`
	Longitude                   *float64 `json:"longitude,omitempty"`
	MinimumNights               int      `json:"minimum_nights"`
	NumberOfReviews             int      `json:"number_of_reviews"`
	ReviewsPerMonth             float64  `json:"reviews_per_month"`
	CalculatedHostListingsCount int      `json:"calculated_host_listings_count"`
	Availability365             int      `json:"availability_365"`
	LastReview                  string   `json:"last_review"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (r Record) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Columns returns the record's header in dataset order. Coordinates are only
// included when present.
func (r Record) Columns() []string {
	cols := []string{ColName, ColNeighbourhoodGroup, ColNeighbourhood}
	if r.HasCoordinates() {
		cols = append(cols, ColLatitude, ColLongitude)
	}
	return append(cols,
		ColRoomType,
		ColMinimumNights,
		ColNumberOfReviews,
		ColLastReview,
		ColReviewsPerMonth,
		ColCalculatedHostListingsCount,
		ColAvailability365,
	)
}

// Row renders the record as raw cells aligned with Columns.
func (r Record) Row() []string {
	row := []string{r.Name, r.NeighbourhoodGroup, r.Neighbourhood}
	if r.HasCoordinates() {
		row = append(row, formatFloat(*r.Latitude), formatFloat(*r.Longitude))
	}
	return append(row,
		r.RoomType,
		strconv.Itoa(r.MinimumNights),
		strconv.Itoa(r.NumberOfReviews),
		r.LastReview,
		formatFloat(r.ReviewsPerMonth),
		strconv.Itoa(r.CalculatedHostListingsCount),
		strconv.Itoa(r.Availability365),
	)
}

// Key is a canonical string for the record, stable across calls.
func (r Record) Key() string {
	cols := r.Columns()
	row := r.Row()
	key := make([]byte, 0, 128)
	for i := range cols {
		key = append(key, cols[i]...)
		key = append(key, '=')
		key = strconv.AppendQuote(key, row[i])
		key = append(key, ';')
	}
	return string(key)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
