package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listingprice/listing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	assert.NoError(t, second.Close())
}

func TestSaveAndListPredictions(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, group := range []string{"Brooklyn", "Manhattan", "Manhattan"} {
		_, err := store.SavePrediction(ctx, Prediction{
			RequestID:      "req-" + group,
			Record:         listing.Record{NeighbourhoodGroup: group, RoomType: "Private room", MinimumNights: i + 1},
			PredictedPrice: float64(100 + i*50),
			ModelName:      "best_lgbm",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	recent, err := store.RecentPredictions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 200.0, recent[0].PredictedPrice)
	assert.Equal(t, 3, recent[0].Record.MinimumNights)
	assert.Equal(t, "Manhattan", recent[1].Record.NeighbourhoodGroup)

	summary, err := store.SummarizeByGroup(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Brooklyn", summary[0].NeighbourhoodGroup)
	assert.Equal(t, 1, summary[0].Count)
	assert.Equal(t, 2, summary[1].Count)
	assert.Equal(t, 175.0, summary[1].AveragePrice)
	assert.Equal(t, 150.0, summary[1].MinPrice)
	assert.Equal(t, 200.0, summary[1].MaxPrice)
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "logs", "predictions.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}
