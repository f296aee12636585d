// Package config loads the viewer configuration: map camera and style, the
// species ranking and filter defaults, the score color ramp and the dataset
// files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joeblew999/greenery-map/internal/dataset"
	"github.com/joeblew999/greenery-map/internal/filter"
)

// envPrefix maps nested keys to GREENERY_<SECTION>_<FIELD>.
const envPrefix = "GREENERY"

// Config is the full viewer configuration.
type Config struct {
	Map     MapConfig     `mapstructure:"map" yaml:"map"`
	Species SpeciesConfig `mapstructure:"species" yaml:"species"`
	Grid    GridConfig    `mapstructure:"grid" yaml:"grid"`
	Cluster ClusterConfig `mapstructure:"cluster" yaml:"cluster"`
	Data    DataConfig    `mapstructure:"data" yaml:"data"`
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// MapConfig is the base map camera and style handed to the browser.
type MapConfig struct {
	StyleURL    string     `mapstructure:"style_url" yaml:"style_url"`
	AccessToken string     `mapstructure:"access_token" yaml:"access_token"`
	Center      [2]float64 `mapstructure:"center" yaml:"center"`
	Zoom        float64    `mapstructure:"zoom" yaml:"zoom"`
	MinZoom     float64    `mapstructure:"min_zoom" yaml:"min_zoom"`
	MaxZoom     float64    `mapstructure:"max_zoom" yaml:"max_zoom"`
	// Bounds is [[west, south], [east, north]].
	Bounds [2][2]float64 `mapstructure:"bounds" yaml:"bounds"`
}

// SpeciesConfig drives the ranking and the filter panel.
type SpeciesConfig struct {
	Property string `mapstructure:"property" yaml:"property"`
	TopN     int    `mapstructure:"top_n" yaml:"top_n"`
	// InitialSelection is "all" or "none".
	InitialSelection string `mapstructure:"initial_selection" yaml:"initial_selection"`
}

// GridConfig styles the choropleth.
type GridConfig struct {
	Opacity float64    `mapstructure:"opacity" yaml:"opacity"`
	Ramp    []RampStop `mapstructure:"ramp" yaml:"ramp"`
}

// RampStop maps a score to a fill color.
type RampStop struct {
	Score float64 `mapstructure:"score" yaml:"score" json:"score"`
	Color string  `mapstructure:"color" yaml:"color" json:"color"`
}

// ClusterConfig tunes marker clustering.
type ClusterConfig struct {
	// Radius is in screen pixels.
	Radius    float64 `mapstructure:"radius" yaml:"radius"`
	MaxZoom   int     `mapstructure:"max_zoom" yaml:"max_zoom"`
	MinPoints int     `mapstructure:"min_points" yaml:"min_points"`
}

// DataConfig names the dataset files inside the data directory.
type DataConfig struct {
	Trees string `mapstructure:"trees" yaml:"trees"`
	Grid  string `mapstructure:"grid" yaml:"grid"`
	Watch bool   `mapstructure:"watch" yaml:"watch"`
}

// SessionConfig bounds how long an idle viewer session is kept.
type SessionConfig struct {
	// IdleTTL expires sessions with no request and no open event stream for
	// this long. Zero keeps sessions until they are deleted.
	IdleTTL time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// Files returns the dataset file names.
func (d DataConfig) Files() dataset.Files {
	return dataset.Files{Trees: d.Trees, Grid: d.Grid}
}

// Initial returns the parsed initial selection.
func (s SpeciesConfig) Initial() filter.Initial {
	in, err := filter.ParseInitial(s.InitialSelection)
	if err != nil {
		return filter.InitialAll
	}
	return in
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads the YAML file at path on top of the defaults and GREENERY_*
// environment overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the viewer cannot render.
func (c *Config) Validate() error {
	var errs []error

	if c.Map.MinZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Errorf("map.min_zoom %v exceeds map.max_zoom %v", c.Map.MinZoom, c.Map.MaxZoom))
	}
	b := c.Map.Bounds
	if b[0][0] >= b[1][0] || b[0][1] >= b[1][1] {
		errs = append(errs, errors.New("map.bounds must be [[west, south], [east, north]]"))
	}
	if c.Species.TopN < 0 {
		errs = append(errs, errors.New("species.top_n must not be negative"))
	}
	if _, err := filter.ParseInitial(c.Species.InitialSelection); err != nil {
		errs = append(errs, fmt.Errorf("species.initial_selection: %w", err))
	}
	if len(c.Grid.Ramp) == 0 {
		errs = append(errs, errors.New("grid.ramp needs at least one stop"))
	}
	for i := 1; i < len(c.Grid.Ramp); i++ {
		if c.Grid.Ramp[i].Score < c.Grid.Ramp[i-1].Score {
			errs = append(errs, errors.New("grid.ramp stops must be sorted by score"))
			break
		}
	}
	if c.Cluster.Radius <= 0 {
		errs = append(errs, errors.New("cluster.radius must be positive"))
	}
	if c.Data.Trees == "" {
		errs = append(errs, errors.New("data.trees is required"))
	}
	if c.Session.IdleTTL < 0 {
		errs = append(errs, errors.New("session.idle_ttl must not be negative"))
	}
	if c.Session.IdleTTL > 0 && c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.sweep_interval must be positive when session.idle_ttl is set"))
	}

	return errors.Join(errs...)
}
