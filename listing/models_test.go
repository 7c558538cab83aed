package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRowAlignsWithColumns(t *testing.T) {
	lat, lon := 40.81, -73.94
	tests := []struct {
		name   string
		record Record
		want   int
	}{
		{name: "without coordinates", record: Record{Name: "Cozy loft"}, want: 10},
		{name: "with coordinates", record: Record{Name: "Cozy loft", Latitude: &lat, Longitude: &lon}, want: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols := tt.record.Columns()
			assert.Len(t, cols, tt.want)
			assert.Len(t, tt.record.Row(), len(cols))
			assert.NotContains(t, cols, ColPrice)
		})
	}
}

func TestRecordKeyIsStable(t *testing.T) {
	a := Record{Name: "a", MinimumNights: 3, ReviewsPerMonth: 1.5}
	b := a
	assert.Equal(t, a.Key(), b.Key())

	b.ReviewsPerMonth = 1.25
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2019-05-01", "2019-05-01T00:00:00Z", "05/01/2019"} {
		got, err := ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, 2019, got.Year())
		assert.Equal(t, time.May, got.Month())
	}

	_, err := ParseDate("")
	assert.Error(t, err)
	_, err = ParseDate("not a date")
	assert.Error(t, err)
}
