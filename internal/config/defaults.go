package config

import (
	"time"

	"github.com/spf13/viper"
)

// Camera defaults frame Eugene, Oregon.
var (
	DefaultCenter = [2]float64{-123.082355, 44.045628}
	DefaultBounds = [2][2]float64{
		{-123.6580612, 43.7874626},
		{-122.650526, 44.24003163},
	}
)

// Idle sessions are dropped after DefaultIdleTTL.
const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// DefaultRamp colors the greenery score from bare to dense canopy.
var DefaultRamp = []RampStop{
	{Score: 0, Color: "#f7fcf5"},
	{Score: 25, Color: "#c7e9c0"},
	{Score: 50, Color: "#74c476"},
	{Score: 75, Color: "#31a354"},
	{Score: 100, Color: "#006d2c"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("map.style_url", "mapbox://styles/mapbox/dark-v10")
	v.SetDefault("map.access_token", "")
	v.SetDefault("map.center", DefaultCenter)
	v.SetDefault("map.zoom", 11)
	v.SetDefault("map.min_zoom", 10)
	v.SetDefault("map.max_zoom", 15)
	v.SetDefault("map.bounds", DefaultBounds)

	v.SetDefault("species.property", "Species")
	v.SetDefault("species.top_n", 10)
	v.SetDefault("species.initial_selection", "all")

	v.SetDefault("grid.opacity", 0.6)
	v.SetDefault("grid.ramp", rampMaps(DefaultRamp))

	v.SetDefault("cluster.radius", 50)
	v.SetDefault("cluster.max_zoom", 14)
	v.SetDefault("cluster.min_points", 2)

	v.SetDefault("data.trees", "trees.geojson")
	v.SetDefault("data.grid", "grid.geojson")
	v.SetDefault("data.watch", true)

	v.SetDefault("session.idle_ttl", DefaultIdleTTL)
	v.SetDefault("session.sweep_interval", DefaultSweepInterval)
}

// rampMaps keeps the default ramp in the same shape a YAML file produces so
// viper merges it consistently.
func rampMaps(stops []RampStop) []map[string]any {
	out := make([]map[string]any, len(stops))
	for i, s := range stops {
		out[i] = map[string]any{"score": s.Score, "color": s.Color}
	}
	return out
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	return &Config{
		Map: MapConfig{
			StyleURL: "mapbox://styles/mapbox/dark-v10",
			Center:   DefaultCenter,
			Zoom:     11,
			MinZoom:  10,
			MaxZoom:  15,
			Bounds:   DefaultBounds,
		},
		Species: SpeciesConfig{Property: "Species", TopN: 10, InitialSelection: "all"},
		Grid:    GridConfig{Opacity: 0.6, Ramp: append([]RampStop(nil), DefaultRamp...)},
		Cluster: ClusterConfig{Radius: 50, MaxZoom: 14, MinPoints: 2},
		Data:    DataConfig{Trees: "trees.geojson", Grid: "grid.geojson", Watch: true},
		Session: SessionConfig{IdleTTL: DefaultIdleTTL, SweepInterval: DefaultSweepInterval},
	}
}
