// Package service holds the viewer state behind the HTTP surface: the loaded
// dataset, its species ranking and the per-client sessions.
package service

import (
	"time"

	"github.com/joeblew999/greenery-map/internal/filter"
	"github.com/joeblew999/greenery-map/internal/species"
)

// MapView is the camera and basemap the browser map starts with.
// Huma reads the tags for OpenAPI.
type MapView struct {
	StyleURL    string        `json:"styleUrl" doc:"Basemap style URL" example:"mapbox://styles/mapbox/dark-v10"`
	AccessToken string        `json:"accessToken,omitempty" doc:"Basemap access token"`
	Center      [2]float64    `json:"center" doc:"Initial center as [lon, lat]"`
	Zoom        float64       `json:"zoom" minimum:"0" maximum:"22" doc:"Initial zoom"`
	MinZoom     float64       `json:"minZoom" minimum:"0" maximum:"22" doc:"Smallest zoom the map allows"`
	MaxZoom     float64       `json:"maxZoom" minimum:"0" maximum:"22" doc:"Largest zoom the map allows"`
	Bounds      [2][2]float64 `json:"bounds" doc:"Max bounds as [[west, south], [east, north]]"`
	GridOpacity float64       `json:"gridOpacity" minimum:"0" maximum:"1" doc:"Grid fill opacity"`
	Ramp        []RampStop    `json:"ramp" doc:"Greenery score color stops"`
}

// RampStop is one stop of the grid color ramp.
type RampStop struct {
	Score float64 `json:"score" doc:"Greenery score"`
	Color string  `json:"color" doc:"Fill color (CSS)" example:"#74c476"`
}

// Camera is the view the reset control returns to.
type Camera struct {
	Center [2]float64 `json:"center" doc:"Center as [lon, lat]"`
	Zoom   float64    `json:"zoom" doc:"Zoom"`
}

// SessionState summarizes a session's selection.
type SessionState struct {
	ID          string        `json:"id" doc:"Session identifier" format:"uuid"`
	Created     time.Time     `json:"created" doc:"When the session started"`
	Selected    []species.Key `json:"selected" doc:"Checked keys, sorted"`
	AllSelected bool          `json:"allSelected" doc:"Whether the select-all box is checked"`
	Active      int           `json:"active" doc:"Trees currently displayed"`
	Items       []filter.Item `json:"items" doc:"Top species controls followed by the Other bucket"`
}

// DataFile is a GeoJSON file in the data directory.
type DataFile struct {
	Name string `json:"name" doc:"File name" example:"trees.geojson"`
	Size string `json:"size" doc:"Human-readable file size" example:"1.2 MB"`
	Role string `json:"role,omitempty" enum:"trees,grid" doc:"Which dataset collection the file feeds"`
}
