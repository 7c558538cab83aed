package pipeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingsCSV = `id,name,host_id,host_name,neighbourhood_group,neighbourhood,latitude,longitude,room_type,price,minimum_nights,number_of_reviews,last_review,reviews_per_month,calculated_host_listings_count,availability_365
2539,Clean & quiet apt home by the park,2787,John,Brooklyn,Kensington,40.64749,-73.97237,Private room,149,1,9,2018-10-19,0.21,6,365
2595,Skylit Midtown Castle,2845,Jennifer,Manhattan,Midtown,40.75362,-73.98377,Entire home/apt,225,1,45,2019-05-21,0.38,2,355
3647,THE VILLAGE OF HARLEM,4632,Elisabeth,Manhattan,Harlem,40.80902,-73.9419,Private room,150,3,0,2019-06-01,0.5,1,365
3831,Cozy Entire Floor of Brownstone,4869,LisaRoxanne,Brooklyn,Clinton Hill,40.68514,-73.95976,Entire home/apt,89,1,270,2019-07-05,4.64,1,194
`

func loadListings(t *testing.T) *Table {
	t.Helper()
	table, err := ReadCSV(strings.NewReader(listingsCSV))
	require.NoError(t, err)
	return table
}

func TestPrepareSchema(t *testing.T) {
	frame, err := NewPreparer(DefaultOptions()).Prepare(loadListings(t))
	require.NoError(t, err)

	assert.Equal(t, 4, frame.Len())
	assert.Equal(t, []string{
		"name", "neighbourhood_group", "neighbourhood", "latitude", "longitude",
		"room_type", "price", "minimum_nights", "number_of_reviews",
		"reviews_per_month", "calculated_host_listings_count", "availability_365",
		"year", "month",
	}, frame.Names())

	schema := frame.Schema()
	for _, dropped := range []string{"id", "host_id", "host_name", "last_review"} {
		_, ok := schema.Field(dropped)
		assert.False(t, ok, dropped)
	}

	price, _ := schema.Field("price")
	assert.Equal(t, KindFloat, price.Kind)
	name, _ := schema.Field("name")
	assert.Equal(t, KindText, name.Kind)
	nights, _ := schema.Field("minimum_nights")
	assert.Equal(t, KindInt, nights.Kind)
	rpm, _ := schema.Field("reviews_per_month")
	assert.Equal(t, KindFloat, rpm.Kind)

	group, _ := schema.Field("neighbourhood_group")
	assert.Equal(t, KindCategorical, group.Kind)
	assert.Equal(t, []string{"Brooklyn", "Manhattan"}, group.Categories)
}

func TestPrepareDerivesYearAndMonth(t *testing.T) {
	frame, err := NewPreparer(DefaultOptions()).Prepare(loadListings(t))
	require.NoError(t, err)

	year, ok := frame.Column("year")
	require.True(t, ok)
	month, ok := frame.Column("month")
	require.True(t, ok)

	assert.Equal(t, int64(2018), year.Int(0))
	assert.Equal(t, int64(10), month.Int(0))
	assert.Equal(t, int64(2019), year.Int(1))
	assert.Equal(t, int64(5), month.Int(1))
}

func TestPrepareIsDeterministic(t *testing.T) {
	p := NewPreparer(DefaultOptions())
	first, err := p.Prepare(loadListings(t))
	require.NoError(t, err)
	second, err := p.Prepare(loadListings(t))
	require.NoError(t, err)

	assert.Equal(t, first.Schema(), second.Schema())

	var a, b bytes.Buffer
	require.NoError(t, first.WriteCSV(&a))
	require.NoError(t, second.WriteCSV(&b))
	assert.Equal(t, a.String(), b.String())
}

func TestPrepareDoesNotMutateInput(t *testing.T) {
	table := loadListings(t)
	header := append([]string(nil), table.Header...)
	firstRow := append([]string(nil), table.Rows[0]...)

	_, err := NewPreparer(DefaultOptions()).Prepare(table)
	require.NoError(t, err)

	assert.Equal(t, header, table.Header)
	assert.Equal(t, firstRow, table.Rows[0])
}

func TestPrepareRejectsNonNumericPrice(t *testing.T) {
	table := loadListings(t)
	table.Rows[2][table.Index("price")] = "$150"

	frame, err := NewPreparer(DefaultOptions()).Prepare(table)
	assert.Nil(t, frame)

	var convErr *TypeConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "price", convErr.Column)
	assert.Equal(t, 2, convErr.Row)
	assert.Equal(t, "$150", convErr.Value)
}

func TestPrepareRejectsBadDate(t *testing.T) {
	table := loadListings(t)
	table.Rows[1][table.Index("last_review")] = "yesterday"

	_, err := NewPreparer(DefaultOptions()).Prepare(table)
	var dateErr *DateParseError
	require.True(t, errors.As(err, &dateErr))
	assert.Equal(t, "last_review", dateErr.Column)
	assert.Equal(t, 1, dateErr.Row)
}

func TestPrepareEmptyDatasetKeepsSchema(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(strings.SplitN(listingsCSV, "\n", 2)[0] + "\n"))
	require.NoError(t, err)

	frame, err := NewPreparer(DefaultOptions()).Prepare(table)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Len())

	schema := frame.Schema()
	assert.Contains(t, schema.Names(), "year")
	assert.Contains(t, schema.Names(), "month")
	group, _ := schema.Field("neighbourhood_group")
	assert.Equal(t, KindCategorical, group.Kind)
	assert.Empty(t, group.Categories)
}

func TestPrepareSingleLabelStaysCategorical(t *testing.T) {
	table := NewTable(
		[]string{"name", "room_type", "price", "last_review"},
		[]string{"a", "Private room", "10", "2019-01-01"},
		[]string{"b", "Private room", "12", "2019-02-01"},
	)
	frame, err := NewPreparer(DefaultOptions()).Prepare(table)
	require.NoError(t, err)

	room, ok := frame.Column("room_type")
	require.True(t, ok)
	assert.Equal(t, KindCategorical, room.Kind)
	assert.Equal(t, []string{"Private room"}, room.Categories)
}

func TestPrepareUnlistedStringColumnBecomesCategorical(t *testing.T) {
	table := NewTable(
		[]string{"name", "license", "price", "last_review"},
		[]string{"a", "OSE-1", "10", "2019-01-01"},
		[]string{"b", "", "12", "2019-02-01"},
	)
	frame, err := NewPreparer(DefaultOptions()).Prepare(table)
	require.NoError(t, err)

	license, _ := frame.Column("license")
	assert.Equal(t, KindCategorical, license.Kind)
	name, _ := frame.Column("name")
	assert.Equal(t, KindText, name.Kind)
}

func TestPrepareUsesFixedNumericKinds(t *testing.T) {
	table := NewTable(
		[]string{"name", "latitude", "price", "minimum_nights", "reviews_per_month", "last_review"},
		[]string{"a", "", "10", "3.0", "1", "2019-01-01"},
		[]string{"b", "40.7", "12", "2", "2", "2019-02-01"},
	)
	frame, err := NewPreparer(DefaultOptions()).Prepare(table)
	require.NoError(t, err)

	schema := frame.Schema()
	rpm, _ := schema.Field("reviews_per_month")
	assert.Equal(t, KindFloat, rpm.Kind)
	lat, _ := schema.Field("latitude")
	assert.Equal(t, KindFloat, lat.Kind)
	nights, ok := frame.Column("minimum_nights")
	require.True(t, ok)
	assert.Equal(t, KindInt, nights.Kind)
	assert.Equal(t, int64(3), nights.Int(0))
}

func TestPrepareRejectsFractionalCount(t *testing.T) {
	table := NewTable(
		[]string{"name", "price", "minimum_nights", "last_review"},
		[]string{"a", "10", "1.5", "2019-01-01"},
	)
	_, err := NewPreparer(DefaultOptions()).Prepare(table)

	var convErr *TypeConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "minimum_nights", convErr.Column)
	assert.Equal(t, KindInt, convErr.Want)
}

func TestPrepareRequiresTargetAndDate(t *testing.T) {
	table := NewTable([]string{"name", "room_type"}, []string{"a", "Private room"})
	_, err := NewPreparer(DefaultOptions()).Prepare(table)

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Len(t, mismatch.Problems, 2)
}

func TestConformSingleRecord(t *testing.T) {
	p := NewPreparer(DefaultOptions())
	training, err := p.Prepare(loadListings(t))
	require.NoError(t, err)

	candidate := NewTable(
		[]string{"name", "neighbourhood_group", "neighbourhood", "latitude", "longitude", "room_type",
			"minimum_nights", "number_of_reviews", "last_review", "reviews_per_month",
			"calculated_host_listings_count", "availability_365"},
		[]string{"Cozy loft", "Manhattan", "Harlem", "40.81", "-73.94", "Entire home/apt",
			"3", "10", "2019-05-01", "1.5", "2", "200"},
	)
	frame, err := p.Conform(candidate, training.Schema())
	require.NoError(t, err)

	assert.Equal(t, 1, frame.Len())
	assert.Equal(t, training.Schema().Without("price").Names(), frame.Names())

	year, _ := frame.Column("year")
	month, _ := frame.Column("month")
	assert.Equal(t, int64(2019), year.Int(0))
	assert.Equal(t, int64(5), month.Int(0))

	group, _ := frame.Column("neighbourhood_group")
	assert.Equal(t, "Manhattan", group.Label(0))
	assert.Equal(t, float64(1), group.Float(0))
}

func TestConformUnknownCategory(t *testing.T) {
	p := NewPreparer(DefaultOptions())
	training, err := p.Prepare(loadListings(t))
	require.NoError(t, err)

	candidate := NewTable(
		[]string{"name", "neighbourhood_group", "neighbourhood", "latitude", "longitude", "room_type",
			"minimum_nights", "number_of_reviews", "last_review", "reviews_per_month",
			"calculated_host_listings_count", "availability_365"},
		[]string{"x", "Atlantis", "Harlem", "40.81", "-73.94", "Entire home/apt",
			"3", "10", "2019-05-01", "1.5", "2", "200"},
	)
	_, err = p.Conform(candidate, training.Schema())

	var unknown *UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "neighbourhood_group", unknown.Field)
	assert.Equal(t, "Atlantis", unknown.Value)
}

func TestConformMissingColumn(t *testing.T) {
	p := NewPreparer(DefaultOptions())
	training, err := p.Prepare(loadListings(t))
	require.NoError(t, err)

	candidate := NewTable([]string{"name", "last_review"}, []string{"x", "2019-05-01"})
	_, err = p.Conform(candidate, training.Schema())

	var mismatch *SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Contains(t, mismatch.Error(), "neighbourhood_group")
}

func TestSchemaDiff(t *testing.T) {
	want := Schema{
		{Name: "minimum_nights", Kind: KindInt},
		{Name: "room_type", Kind: KindCategorical, Categories: []string{"Entire home/apt", "Private room"}},
	}
	assert.Empty(t, want.Diff(want))
	assert.NoError(t, want.Check(want))

	got := Schema{
		{Name: "minimum_nights", Kind: KindFloat},
		{Name: "room_type", Kind: KindCategorical, Categories: []string{"Private room", "Shared room"}},
		{Name: "year", Kind: KindInt},
	}
	problems := want.Diff(got)
	assert.Len(t, problems, 4)
	assert.Error(t, want.Check(got))
}

func TestCatalogContainsNormalizes(t *testing.T) {
	catalog := Catalog{"neighbourhood": {"Bay Ridge", "Crown Heights"}}
	assert.True(t, catalog.Contains("neighbourhood", " Bay Ridge "))
	assert.False(t, catalog.Contains("neighbourhood", "Harlem"))
	assert.Equal(t, []string{"neighbourhood"}, catalog.Fields())
}

func TestNormalizeLabelComposes(t *testing.T) {
	decomposed := "Cafe\u0301"
	assert.Equal(t, "Caf\u00e9", NormalizeLabel(decomposed))
}
