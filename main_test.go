package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"listingprice/config"
	"listingprice/inference"
	"listingprice/ml"
	"listingprice/monitoring"
	"listingprice/pipeline"
)

const listingsCSV = `id,name,host_id,host_name,neighbourhood_group,neighbourhood,latitude,longitude,room_type,price,minimum_nights,number_of_reviews,last_review,reviews_per_month,calculated_host_listings_count,availability_365
2539,Clean & quiet apt home by the park,2787,John,Brooklyn,Kensington,40.64749,-73.97237,Private room,149,1,9,2018-10-19,0.21,6,365
2595,Skylit Midtown Castle,2845,Jennifer,Manhattan,Midtown,40.75362,-73.98377,Entire home/apt,225,1,45,2019-05-21,0.38,2,355
3647,THE VILLAGE OF HARLEM,4632,Elisabeth,Manhattan,Harlem,40.80902,-73.9419,Private room,150,3,0,2019-06-01,0.5,1,365
`

type fixture struct {
	dir     string
	dataset string
	model   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		dataset: filepath.Join(dir, "listings.csv"),
		model:   filepath.Join(dir, "best_lgbm.json"),
	}
	require.NoError(t, os.WriteFile(f.dataset, []byte(listingsCSV), 0o644))
	return f
}

// saveModel writes an ensemble over neighbourhood_group and room_type that
// predicts 120 for entire homes in Manhattan and 80 otherwise.
func (f fixture) saveModel(t *testing.T, features pipeline.Schema) {
	t.Helper()
	model, err := ml.NewTreeEnsemble("best_lgbm", ml.TransformLog, 0, features, []ml.Tree{
		{Nodes: []ml.TreeNode{
			{FeatureIdx: 0, Categories: []int{1}, LeftChild: 1, RightChild: 4},
			{FeatureIdx: 1, Categories: []int{0}, LeftChild: 2, RightChild: 3},
			{IsLeaf: true, Value: math.Log(120)},
			{IsLeaf: true, Value: math.Log(80)},
			{IsLeaf: true, Value: math.Log(80)},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, model.Save(f.model))
}

func (f fixture) features(t *testing.T) pipeline.Schema {
	t.Helper()
	schema, err := trainingSchema(pipeline.NewPreparer(pipeline.DefaultOptions()), f.dataset)
	require.NoError(t, err)
	group, ok := schema.Field("neighbourhood_group")
	require.True(t, ok)
	room, ok := schema.Field("room_type")
	require.True(t, ok)
	return pipeline.Schema{group, room}
}

func (f fixture) config() *config.Config {
	cfg := config.Default()
	cfg.Model.Path = f.model
	cfg.Dataset.Path = f.dataset
	return cfg
}

func TestBuildService(t *testing.T) {
	f := newFixture(t)
	f.saveModel(t, f.features(t))

	metrics := monitoring.NewMetricsCollector()
	service, err := buildService(f.config(), zap.NewNop(), metrics)
	require.NoError(t, err)
	assert.Equal(t, "best_lgbm", service.ModelName())

	v, ok := metrics.Value("model_features", map[string]string{"model": "best_lgbm"})
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestBuildServiceMissingModel(t *testing.T) {
	f := newFixture(t)

	_, err := buildService(f.config(), zap.NewNop(), nil)
	var loadErr *ml.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, f.model, loadErr.Path)
}

func TestBuildServiceSchemaMismatch(t *testing.T) {
	f := newFixture(t)
	features := f.features(t)
	features[0].Categories = []string{"Bronx", "Brooklyn"}
	f.saveModel(t, features)

	_, err := buildService(f.config(), zap.NewNop(), nil)
	var loadErr *ml.ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, f.model, loadErr.Path)
	var mismatch *pipeline.SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Contains(t, err.Error(), "neighbourhood_group")
}

func TestRunPrepare(t *testing.T) {
	f := newFixture(t)
	catalogPath := filepath.Join(f.dir, "catalog.json")

	var out bytes.Buffer
	frame, err := runPrepare(pipeline.NewPreparer(pipeline.DefaultOptions()), f.dataset, &out, catalogPath)
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Len())

	header := strings.SplitN(out.String(), "\n", 2)[0]
	assert.NotContains(t, header, "host_id")
	assert.NotContains(t, header, "last_review")
	assert.True(t, strings.HasSuffix(header, "year,month"), header)

	raw, err := os.ReadFile(catalogPath)
	require.NoError(t, err)
	var catalog map[string][]string
	require.NoError(t, json.Unmarshal(raw, &catalog))
	assert.Equal(t, []string{"Brooklyn", "Manhattan"}, catalog["neighbourhood_group"])
	assert.Equal(t, []string{"Entire home/apt", "Private room"}, catalog["room_type"])
}

func TestRunPrepareMissingInput(t *testing.T) {
	_, err := runPrepare(pipeline.NewPreparer(pipeline.DefaultOptions()), filepath.Join(t.TempDir(), "nope.csv"), &bytes.Buffer{}, "")
	assert.Error(t, err)
}

func TestRunPredict(t *testing.T) {
	f := newFixture(t)
	f.saveModel(t, f.features(t))
	service, err := buildService(f.config(), zap.NewNop(), nil)
	require.NoError(t, err)

	record := `{"neighbourhood_group":"Manhattan","neighbourhood":"Harlem","room_type":"Entire home/apt",` +
		`"minimum_nights":3,"number_of_reviews":10,"reviews_per_month":1.5,` +
		`"calculated_host_listings_count":2,"availability_365":200,"last_review":"2019-05-01"}`

	var out bytes.Buffer
	require.NoError(t, runPredict(context.Background(), service, record, "", &out))
	var est inference.Estimate
	require.NoError(t, json.Unmarshal(out.Bytes(), &est))
	assert.Equal(t, 120.0, est.Price)

	out.Reset()
	require.NoError(t, runPredict(context.Background(), service, "", f.dataset, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &est))
	assert.Equal(t, 120.0, est.Price)
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &est))
	assert.Equal(t, 80.0, est.Price)
}

func TestRunPredictArguments(t *testing.T) {
	f := newFixture(t)
	f.saveModel(t, f.features(t))
	service, err := buildService(f.config(), zap.NewNop(), nil)
	require.NoError(t, err)

	assert.Error(t, runPredict(context.Background(), service, "", "", &bytes.Buffer{}))
	assert.Error(t, runPredict(context.Background(), service, "{}", f.dataset, &bytes.Buffer{}))
	assert.Error(t, runPredict(context.Background(), service, `{"price": 10}`, "", &bytes.Buffer{}))
}
