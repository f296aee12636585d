package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/greenery-map/internal/filter"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "greenery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Map.StyleURL, cfg.Map.StyleURL)
	assert.Equal(t, DefaultCenter, cfg.Map.Center)
	assert.Equal(t, DefaultBounds, cfg.Map.Bounds)
	assert.Equal(t, 11.0, cfg.Map.Zoom)
	assert.Equal(t, 10.0, cfg.Map.MinZoom)
	assert.Equal(t, 15.0, cfg.Map.MaxZoom)
	assert.Equal(t, 10, cfg.Species.TopN)
	assert.Equal(t, "Species", cfg.Species.Property)
	assert.Equal(t, filter.InitialAll, cfg.Species.Initial())
	assert.Equal(t, DefaultRamp, cfg.Grid.Ramp)
	assert.Equal(t, 50.0, cfg.Cluster.Radius)
	assert.Equal(t, "trees.geojson", cfg.Data.Files().Trees)
	assert.Equal(t, DefaultIdleTTL, cfg.Session.IdleTTL)
	assert.Equal(t, DefaultSweepInterval, cfg.Session.SweepInterval)
	assert.NoError(t, def.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
species:
  top_n: 5
  initial_selection: none
grid:
  ramp:
    - {score: 0, color: "#000000"}
    - {score: 100, color: "#00ff00"}
data:
  trees: street_trees.geojson
session:
  idle_ttl: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Species.TopN)
	assert.Equal(t, filter.InitialNone, cfg.Species.Initial())
	assert.Equal(t, []RampStop{{0, "#000000"}, {100, "#00ff00"}}, cfg.Grid.Ramp)
	assert.Equal(t, "street_trees.geojson", cfg.Data.Trees)
	assert.Equal(t, 90*time.Second, cfg.Session.IdleTTL)
	// untouched sections keep their defaults
	assert.Equal(t, "grid.geojson", cfg.Data.Grid)
	assert.Equal(t, 15.0, cfg.Map.MaxZoom)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GREENERY_SPECIES_TOP_N", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Species.TopN)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted zoom", func(c *Config) { c.Map.MinZoom = 16 }},
		{"inverted bounds", func(c *Config) { c.Map.Bounds[0][0] = -100 }},
		{"negative top_n", func(c *Config) { c.Species.TopN = -1 }},
		{"bad initial selection", func(c *Config) { c.Species.InitialSelection = "some" }},
		{"empty ramp", func(c *Config) { c.Grid.Ramp = nil }},
		{"unsorted ramp", func(c *Config) { c.Grid.Ramp = []RampStop{{50, "#fff"}, {10, "#000"}} }},
		{"zero cluster radius", func(c *Config) { c.Cluster.Radius = 0 }},
		{"no trees file", func(c *Config) { c.Data.Trees = "" }},
		{"negative idle ttl", func(c *Config) { c.Session.IdleTTL = -time.Second }},
		{"ttl without sweep", func(c *Config) { c.Session.SweepInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
