// Package dataset loads the tree inventory and the greenery grid.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// ErrNotFeatureCollection is returned for GeoJSON documents that are not a
// FeatureCollection.
var ErrNotFeatureCollection = errors.New("not a GeoJSON FeatureCollection")

// Tree properties.
const (
	PropHeight = "Height"
	PropSpread = "Spread"
)

// Grid properties.
const (
	PropGridID        = "GridID"
	PropParksCount    = "ParksCount"
	PropTreeCount     = "TreeCount"
	PropSumSpread     = "SumSpread"
	PropSumHeight     = "SumHeight"
	PropUniqueSpecies = "UniqueSpecies"
	PropMostCommon    = "MostCommon"
	PropScore         = "Score"
)

// Files names the dataset files inside a data directory.
type Files struct {
	Trees string
	Grid  string
}

// Dataset is one loaded snapshot of both collections. It is never mutated
// after Load returns.
type Dataset struct {
	Trees *geojson.FeatureCollection
	Grid  *geojson.FeatureCollection
}

// Load reads both collections from dir. A missing grid file yields an empty
// grid; a missing trees file is an error.
func Load(dir string, files Files) (*Dataset, error) {
	trees, err := ReadFile(filepath.Join(dir, files.Trees))
	if err != nil {
		return nil, fmt.Errorf("loading trees: %w", err)
	}

	grid, err := ReadFile(filepath.Join(dir, files.Grid))
	switch {
	case errors.Is(err, os.ErrNotExist):
		grid = geojson.NewFeatureCollection()
	case err != nil:
		return nil, fmt.Errorf("loading grid: %w", err)
	}

	return &Dataset{Trees: trees, Grid: grid}, nil
}

// ReadFile decodes a GeoJSON FeatureCollection file.
func ReadFile(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a GeoJSON FeatureCollection document.
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, ErrNotFeatureCollection
	}
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
	}
	return fc, nil
}

// Tree is a typed view of a tree feature.
type Tree struct {
	Species string  `json:"species" doc:"Species label as recorded"`
	Height  float64 `json:"height" doc:"Height"`
	Spread  float64 `json:"spread" doc:"Crown spread"`
}

// TreeOf reads the tree properties of f using speciesProp for the label.
func TreeOf(f *geojson.Feature, speciesProp string) Tree {
	return Tree{
		Species: f.Properties.MustString(speciesProp, ""),
		Height:  number(f.Properties, PropHeight),
		Spread:  number(f.Properties, PropSpread),
	}
}

// GridCell is a typed view of a greenery grid feature.
type GridCell struct {
	GridID        string  `json:"gridId" doc:"Grid cell identifier"`
	ParksCount    int     `json:"parksCount" doc:"Parks intersecting the cell"`
	TreeCount     int     `json:"treeCount" doc:"Trees in the cell"`
	SumSpread     float64 `json:"sumSpread" doc:"Summed crown spread"`
	SumHeight     float64 `json:"sumHeight" doc:"Summed tree height"`
	UniqueSpecies int     `json:"uniqueSpecies" doc:"Distinct species in the cell"`
	MostCommon    string  `json:"mostCommon" doc:"Most common species in the cell"`
	Score         float64 `json:"score" minimum:"0" maximum:"100" doc:"Greenery score"`
}

// GridCellOf reads the grid properties of f.
func GridCellOf(f *geojson.Feature) GridCell {
	p := f.Properties
	return GridCell{
		GridID:        label(p, PropGridID),
		ParksCount:    int(number(p, PropParksCount)),
		TreeCount:     int(number(p, PropTreeCount)),
		SumSpread:     number(p, PropSumSpread),
		SumHeight:     number(p, PropSumHeight),
		UniqueSpecies: int(number(p, PropUniqueSpecies)),
		MostCommon:    p.MustString(PropMostCommon, ""),
		Score:         Score(f),
	}
}

// Score returns the greenery score of a grid feature clamped to [0,100].
func Score(f *geojson.Feature) float64 {
	s := number(f.Properties, PropScore)
	switch {
	case s < 0:
		return 0
	case s > 100:
		return 100
	}
	return s
}

func number(p geojson.Properties, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// label reads identifiers that may be encoded as strings or numbers.
func label(p geojson.Properties, key string) string {
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
