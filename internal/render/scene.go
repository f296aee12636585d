// Package render turns the active tree subset and the score grid into what
// the map draws: clustered tree markers, a choropleth grid, vector tiles and
// click popups.
package render

import (
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/planar"

	"github.com/joeblew999/greenery-map/internal/dataset"
)

// Layer names a drawable layer.
type Layer string

const (
	LayerTrees Layer = "trees"
	LayerGrid  Layer = "grid"
)

// DefaultTolerance is the click radius in pixels around a tree marker.
const DefaultTolerance = 12

// Options configures a Scene.
type Options struct {
	SpeciesProperty string
	Cluster         ClusterOptions
	Ramp            *Ramp
}

// Scene holds the displayed tree subset and the grid. It implements the
// filter sink, so controllers push new subsets into it with Replace.
type Scene struct {
	opts Options

	mu    sync.RWMutex
	trees *geojson.FeatureCollection
	grid  *geojson.FeatureCollection
	index *ClusterIndex
}

// NewScene creates an empty scene over grid.
func NewScene(grid *geojson.FeatureCollection, opts Options) *Scene {
	if opts.SpeciesProperty == "" {
		opts.SpeciesProperty = "Species"
	}
	if opts.Ramp == nil {
		opts.Ramp = defaultRamp
	}
	if grid == nil {
		grid = geojson.NewFeatureCollection()
	}
	s := &Scene{opts: opts, grid: grid}
	s.Replace(geojson.NewFeatureCollection())
	return s
}

// Replace swaps the displayed trees and rebuilds the cluster index.
func (s *Scene) Replace(fc *geojson.FeatureCollection) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	index := NewClusterIndex(fc, s.opts.Cluster)

	s.mu.Lock()
	s.trees = fc
	s.index = index
	s.mu.Unlock()
}

// SetGrid swaps the grid layer, used after a dataset reload.
func (s *Scene) SetGrid(grid *geojson.FeatureCollection) {
	if grid == nil {
		grid = geojson.NewFeatureCollection()
	}
	s.mu.Lock()
	s.grid = grid
	s.mu.Unlock()
}

// Trees returns the displayed subset.
func (s *Scene) Trees() *geojson.FeatureCollection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trees
}

// Grid returns the grid layer with each cell's choropleth fill set in a
// copy of its properties.
func (s *Scene) Grid() *geojson.FeatureCollection {
	s.mu.RLock()
	grid := s.grid
	s.mu.RUnlock()

	out := geojson.NewFeatureCollection()
	for _, f := range grid.Features {
		out.Append(s.filled(f))
	}
	return out
}

// Markers returns the tree markers drawn at zoom.
func (s *Scene) Markers(zoom int) []Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Markers(zoom)
}

// ExpansionZoom returns the zoom that breaks cluster id apart.
func (s *Scene) ExpansionZoom(id uint64) (int, error) {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	return index.ExpansionZoom(id)
}

// Hit is one feature found under a screen point.
type Hit struct {
	Layer   Layer            `json:"layer"`
	Marker  *Marker          `json:"-"`
	Feature *geojson.Feature `json:"-"`
}

// QueryAt returns what layer draws at p, closest first for trees. Tree
// markers count within tolerance pixels; grid cells must contain p.
func (s *Scene) QueryAt(layer Layer, p orb.Point, zoom int, tolerance float64) []Hit {
	s.mu.RLock()
	index, grid := s.index, s.grid
	s.mu.RUnlock()

	switch layer {
	case LayerTrees:
		if tolerance <= 0 {
			tolerance = DefaultTolerance
		}
		type near struct {
			m    Marker
			dist float64
		}
		var found []near
		for _, m := range index.Markers(zoom) {
			if d := pixelDistance(p, m.Point, zoom); d <= tolerance {
				found = append(found, near{m, d})
			}
		}
		sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

		hits := make([]Hit, len(found))
		for i := range found {
			m := found[i].m
			hits[i] = Hit{Layer: LayerTrees, Marker: &m, Feature: m.Feature}
		}
		return hits

	case LayerGrid:
		var hits []Hit
		for _, f := range grid.Features {
			if contains(f.Geometry, p) {
				hits = append(hits, Hit{Layer: LayerGrid, Feature: f})
			}
		}
		return hits
	}
	return nil
}

// PopupKind says what a popup describes.
type PopupKind string

const (
	PopupTree    PopupKind = "tree"
	PopupCluster PopupKind = "cluster"
	PopupGrid    PopupKind = "grid"
)

// Popup is the content shown for a click.
type Popup struct {
	Kind      PopupKind         `json:"kind" enum:"tree,cluster,grid" doc:"What was clicked"`
	Point     [2]float64        `json:"point" doc:"Anchor as [lon, lat]"`
	Tree      *dataset.Tree     `json:"tree,omitempty" doc:"Set for a single tree"`
	ClusterID uint64            `json:"clusterId,omitempty" doc:"Set for a cluster"`
	Count     int               `json:"count,omitempty" doc:"Trees inside the cluster"`
	Grid      *dataset.GridCell `json:"grid,omitempty" doc:"Set for a grid cell"`
	Fill      string            `json:"fill,omitempty" doc:"Choropleth color of the grid cell"`
}

// Click resolves a click into a popup. A tree marker or cluster under the
// point wins over the grid cell beneath it.
func (s *Scene) Click(p orb.Point, zoom int, tolerance float64) (Popup, bool) {
	if hits := s.QueryAt(LayerTrees, p, zoom, tolerance); len(hits) > 0 {
		m := hits[0].Marker
		pop := Popup{Point: [2]float64(m.Point), Count: m.Count}
		if m.Cluster() {
			pop.Kind = PopupCluster
			pop.ClusterID = m.ID
			return pop, true
		}
		tree := dataset.TreeOf(m.Feature, s.opts.SpeciesProperty)
		pop.Kind = PopupTree
		pop.Tree = &tree
		return pop, true
	}

	if hits := s.QueryAt(LayerGrid, p, zoom, 0); len(hits) > 0 {
		f := hits[0].Feature
		cell := dataset.GridCellOf(f)
		return Popup{
			Kind:  PopupGrid,
			Point: [2]float64(p),
			Grid:  &cell,
			Fill:  s.opts.Ramp.Color(cell.Score),
		}, true
	}
	return Popup{}, false
}

func (s *Scene) filled(f *geojson.Feature) *geojson.Feature {
	clone := geojson.NewFeature(f.Geometry)
	clone.ID = f.ID
	for k, v := range f.Properties {
		clone.Properties[k] = v
	}
	clone.Properties["fill"] = s.opts.Ramp.Color(dataset.Score(f))
	return clone
}

func pixelDistance(a, b orb.Point, zoom int) float64 {
	if zoom < 0 {
		zoom = 0
	}
	fa := maptile.Fraction(a, maptile.Zoom(zoom))
	fb := maptile.Fraction(b, maptile.Zoom(zoom))
	dx := (fa.X() - fb.X()) * tileSize
	dy := (fa.Y() - fb.Y()) * tileSize
	return math.Hypot(dx, dy)
}

func contains(g orb.Geometry, p orb.Point) bool {
	if g == nil || !g.Bound().Contains(p) {
		return false
	}
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	case orb.Bound:
		return true
	}
	return false
}

var defaultRamp, _ = NewRamp([]Stop{
	{Score: 0, Color: "#f7fcf5"},
	{Score: 100, Color: "#006d2c"},
})
