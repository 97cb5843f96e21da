package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Fetch.Workers)
	assert.Equal(t, 1000, cfg.Fetch.BatchSize)
	assert.Equal(t, 45, cfg.Fetch.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Fetch.CheckpointEvery)
	assert.Equal(t, "parquet", cfg.Export.Format)
	assert.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	payload := []byte(`
search:
  start_date: "2021-01-01"
  end_date: "2021-06-30"
fetch:
  workers: 8
export:
  format: csv
`)
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Fetch.Workers)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "2021-01-01", cfg.Search.StartDate)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Search: SearchConfig{
				BaseURL:   "https://example.com",
				StartDate: "2021-01-01",
				EndDate:   "2021-06-30",
			},
			Fetch: FetchConfig{
				Workers:         4,
				BatchSize:       100,
				TimeoutSeconds:  45,
				CheckpointEvery: 10,
			},
			Storage: StorageConfig{OutputDir: "./articles"},
			Export:  ExportConfig{Format: "parquet", Dir: "./export"},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("bad start date", func(t *testing.T) {
		cfg := base()
		cfg.Search.StartDate = "01/01/2021"
		assert.Error(t, cfg.Validate())
	})

	t.Run("start after end", func(t *testing.T) {
		cfg := base()
		cfg.Search.StartDate = "2022-01-01"
		assert.Error(t, cfg.Validate())
	})

	t.Run("unsupported export format", func(t *testing.T) {
		cfg := base()
		cfg.Export.Format = "xlsx"
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero workers", func(t *testing.T) {
		cfg := base()
		cfg.Fetch.Workers = 0
		assert.Error(t, cfg.Validate())
	})
}

func TestRunDir(t *testing.T) {
	cfg := Config{
		Search:  SearchConfig{StartDate: "2021-01-01", EndDate: "2021-06-30"},
		Storage: StorageConfig{OutputDir: "/data/articles"},
	}
	assert.Equal(t, filepath.Join("/data/articles", "2021-01-01_2021-06-30"), cfg.RunDir())

	cfg.Search.StartDate = ""
	assert.Equal(t, "/data/articles", cfg.RunDir())
}
