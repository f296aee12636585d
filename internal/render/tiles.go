package render

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"
)

// MaxTileZoom is the deepest zoom Tile serves.
const MaxTileZoom = 22

// Tile encodes the trees and grid layers of one tile as a gzipped Mapbox
// Vector Tile. It returns nil bytes when the tile holds nothing.
//
// Trees are drawn as markers: a cluster becomes a point with cluster_id and
// point_count, a single tree keeps its properties.
func (s *Scene) Tile(z, x, y uint32) ([]byte, error) {
	if z > MaxTileZoom {
		return nil, fmt.Errorf("zoom %d is beyond %d", z, MaxTileZoom)
	}
	if n := uint32(1) << z; x >= n || y >= n {
		return nil, fmt.Errorf("tile %d/%d/%d is outside the world", z, x, y)
	}
	tile := maptile.New(x, y, maptile.Zoom(z))
	bound := tile.Bound()

	trees := geojson.NewFeatureCollection()
	for _, m := range s.Markers(int(z)) {
		if !bound.Contains(m.Point) {
			continue
		}
		trees.Append(markerFeature(m))
	}

	grid := geojson.NewFeatureCollection()
	for _, f := range s.Grid().Features {
		if f.Geometry == nil || !f.Geometry.Bound().Intersects(bound) {
			continue
		}
		// Clip and ProjectToTile work in place.
		g := cloneGeometry(f.Geometry)
		if g == nil {
			continue
		}
		clone := geojson.NewFeature(g)
		clone.Properties = f.Properties
		grid.Append(clone)
	}

	var layers mvt.Layers
	if len(grid.Features) > 0 {
		layer := mvt.NewLayer(string(LayerGrid), grid)
		if epsilon := simplifyEpsilon(tile.Z); epsilon > 0 {
			layer.Simplify(simplify.DouglasPeucker(epsilon))
		}
		layer.Clip(bound)
		layers = append(layers, layer)
	}
	if len(trees.Features) > 0 {
		layers = append(layers, mvt.NewLayer(string(LayerTrees), trees))
	}
	if len(layers) == 0 {
		return nil, nil
	}

	layers.ProjectToTile(tile)
	layers.RemoveEmpty(0.5, 0.5)

	empty := true
	for _, l := range layers {
		if len(l.Features) > 0 {
			empty = false
		}
	}
	if empty {
		return nil, nil
	}

	data, err := mvt.MarshalGzipped(layers)
	if err != nil {
		return nil, fmt.Errorf("encoding tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}

func markerFeature(m Marker) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{m.Point[0], m.Point[1]})
	if m.Cluster() {
		f.Properties["cluster"] = true
		f.Properties["cluster_id"] = m.ID
		f.Properties["point_count"] = m.Count
		return f
	}
	for k, v := range m.Feature.Properties {
		f.Properties[k] = v
	}
	return f
}

// simplifyEpsilon returns the simplification tolerance in degrees for the
// grid at a zoom level. Grid cells are a few hundred meters wide, so the
// tolerance stays well below a cell at every zoom.
func simplifyEpsilon(zoom maptile.Zoom) float64 {
	switch {
	case zoom >= 14:
		return 0
	case zoom >= 10:
		return 0.00001
	case zoom >= 6:
		return 0.0001
	default:
		return 0.0005
	}
}

func cloneGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Point:
		return orb.Point{geom[0], geom[1]}
	case orb.Ring:
		return cloneRing(geom)
	case orb.Polygon:
		return clonePolygon(geom)
	case orb.MultiPolygon:
		clone := make(orb.MultiPolygon, len(geom))
		for i, poly := range geom {
			clone[i] = clonePolygon(poly)
		}
		return clone
	case orb.Bound:
		return clonePolygon(geom.ToPolygon())
	default:
		return nil
	}
}

func clonePolygon(p orb.Polygon) orb.Polygon {
	clone := make(orb.Polygon, len(p))
	for i, ring := range p {
		clone[i] = cloneRing(ring)
	}
	return clone
}

func cloneRing(r orb.Ring) orb.Ring {
	clone := make(orb.Ring, len(r))
	copy(clone, r)
	return clone
}
