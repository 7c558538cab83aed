package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "model:\n  path: m.json\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Http.Port)
	assert.Equal(t, 30*time.Second, cfg.Http.Timeout)
	assert.Equal(t, "m.json", cfg.Model.Path)
	assert.Equal(t, "tree_ensemble", cfg.Model.Type)
	assert.Equal(t, 1024, cfg.Inference.CacheSize)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReadsSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
http:
  port: 9000
  timeout: 5s
log:
  level: debug
  file: /tmp/pricing.log
dataset:
  path: data.csv
  prepare:
    categorical_columns: [room_type]
database:
  path: predictions.db
inference:
  cache_size: -1
`))
	assert.Nil(t, cfg)
	assert.ErrorContains(t, err, "cache_size")

	cfg, err = Load(writeConfig(t, `
http:
  port: 9000
  timeout: 5s
dataset:
  path: data.csv
  prepare:
    categorical_columns: [room_type]
database:
  path: predictions.db
`))
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
	assert.Equal(t, []string{"room_type"}, cfg.Dataset.Prepare.CategoricalColumns)
	assert.Equal(t, "predictions.db", cfg.Database.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
