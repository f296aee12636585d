package render

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
)

// ErrClusterNotFound is returned for cluster ids that do not name a cluster
// in the current index.
var ErrClusterNotFound = errors.New("cluster not found")

// tileSize is the pixel size of one tile; cluster radii are in these pixels.
const tileSize = 256

// maxClusterZoom bounds the zoom levels encodable in a cluster id.
const maxClusterZoom = 20

// minRadius keeps cell indexes within 24 bits at maxClusterZoom.
const minRadius = 16

// ClusterOptions tunes the index.
type ClusterOptions struct {
	// Radius is the cluster cell size in pixels.
	Radius float64
	// MaxZoom is the last zoom that clusters; above it every point is drawn.
	MaxZoom int
	// MinPoints is the smallest group that forms a cluster.
	MinPoints int
}

func (o ClusterOptions) withDefaults() ClusterOptions {
	if o.Radius <= 0 {
		o.Radius = 50
	}
	if o.Radius < minRadius {
		o.Radius = minRadius
	}
	if o.MaxZoom < 0 {
		o.MaxZoom = 0
	}
	if o.MaxZoom > maxClusterZoom {
		o.MaxZoom = maxClusterZoom
	}
	if o.MinPoints < 2 {
		o.MinPoints = 2
	}
	return o
}

// Marker is what the trees layer draws at one zoom: a single tree or a
// cluster of trees.
type Marker struct {
	// ID is non-zero for clusters.
	ID      uint64
	Point   orb.Point
	Count   int
	Feature *geojson.Feature // set for single trees
}

// Cluster reports whether the marker stands for several trees.
func (m Marker) Cluster() bool {
	return m.ID != 0
}

// ClusterIndex groups point features into pixel-grid clusters for every zoom
// up to MaxZoom. It is immutable once built.
type ClusterIndex struct {
	opts   ClusterOptions
	points []*geojson.Feature
	byZoom [][]Marker
}

// NewClusterIndex indexes the point features of fc. Non-point geometries
// are skipped.
func NewClusterIndex(fc *geojson.FeatureCollection, opts ClusterOptions) *ClusterIndex {
	idx := &ClusterIndex{opts: opts.withDefaults()}
	if fc != nil {
		for _, f := range fc.Features {
			if _, ok := f.Geometry.(orb.Point); ok {
				idx.points = append(idx.points, f)
			}
		}
	}

	idx.byZoom = make([][]Marker, idx.opts.MaxZoom+1)
	for z := 0; z <= idx.opts.MaxZoom; z++ {
		idx.byZoom[z] = idx.cluster(z)
	}
	return idx
}

// Len returns the number of indexed points.
func (idx *ClusterIndex) Len() int {
	return len(idx.points)
}

// Markers returns the markers drawn at zoom.
func (idx *ClusterIndex) Markers(zoom int) []Marker {
	if zoom < 0 {
		zoom = 0
	}
	if zoom <= idx.opts.MaxZoom {
		return idx.byZoom[zoom]
	}
	markers := make([]Marker, len(idx.points))
	for i, f := range idx.points {
		markers[i] = single(f)
	}
	return markers
}

// ExpansionZoom returns the zoom at which the cluster id breaks apart.
func (idx *ClusterIndex) ExpansionZoom(id uint64) (int, error) {
	z, cx, cy := decodeID(id)
	if z < 0 || z > idx.opts.MaxZoom {
		return 0, ErrClusterNotFound
	}

	var members []orb.Point
	for _, f := range idx.points {
		p := f.Geometry.(orb.Point)
		if x, y := idx.cell(p, z); x == cx && y == cy {
			members = append(members, p)
		}
	}
	if len(members) < idx.opts.MinPoints {
		return 0, ErrClusterNotFound
	}

	for next := z + 1; next <= idx.opts.MaxZoom; next++ {
		x0, y0 := idx.cell(members[0], next)
		for _, p := range members[1:] {
			if x, y := idx.cell(p, next); x != x0 || y != y0 {
				return next, nil
			}
		}
	}
	return idx.opts.MaxZoom + 1, nil
}

// Leaves returns the trees inside cluster id.
func (idx *ClusterIndex) Leaves(id uint64) ([]*geojson.Feature, error) {
	z, cx, cy := decodeID(id)
	if z < 0 || z > idx.opts.MaxZoom {
		return nil, ErrClusterNotFound
	}
	var leaves []*geojson.Feature
	for _, f := range idx.points {
		if x, y := idx.cell(f.Geometry.(orb.Point), z); x == cx && y == cy {
			leaves = append(leaves, f)
		}
	}
	if len(leaves) < idx.opts.MinPoints {
		return nil, ErrClusterNotFound
	}
	return leaves, nil
}

func (idx *ClusterIndex) cluster(z int) []Marker {
	type group struct {
		x, y    uint32
		members []*geojson.Feature
	}
	var order []*group
	cells := map[[2]uint32]*group{}

	for _, f := range idx.points {
		x, y := idx.cell(f.Geometry.(orb.Point), z)
		g, ok := cells[[2]uint32{x, y}]
		if !ok {
			g = &group{x: x, y: y}
			cells[[2]uint32{x, y}] = g
			order = append(order, g)
		}
		g.members = append(g.members, f)
	}

	markers := make([]Marker, 0, len(order))
	for _, g := range order {
		if len(g.members) < idx.opts.MinPoints {
			for _, f := range g.members {
				markers = append(markers, single(f))
			}
			continue
		}
		var sx, sy float64
		for _, f := range g.members {
			p := f.Geometry.(orb.Point)
			sx += p.X()
			sy += p.Y()
		}
		n := float64(len(g.members))
		markers = append(markers, Marker{
			ID:    encodeID(z, g.x, g.y),
			Point: orb.Point{sx / n, sy / n},
			Count: len(g.members),
		})
	}
	return markers
}

// cell returns the radius-sized pixel cell holding p at zoom z.
func (idx *ClusterIndex) cell(p orb.Point, z int) (uint32, uint32) {
	frac := maptile.Fraction(p, maptile.Zoom(z))
	x := math.Floor(frac.X() * tileSize / idx.opts.Radius)
	y := math.Floor(frac.Y() * tileSize / idx.opts.Radius)
	return uint32(math.Max(x, 0)), uint32(math.Max(y, 0))
}

func single(f *geojson.Feature) Marker {
	return Marker{Point: f.Geometry.(orb.Point), Count: 1, Feature: f}
}

// Cluster ids pack zoom+1 above two 24-bit cell indexes. They stay below
// 2^53 so JSON clients read them exactly, and a valid id is never zero.
func encodeID(z int, x, y uint32) uint64 {
	return uint64(z+1)<<48 | uint64(x&0xffffff)<<24 | uint64(y&0xffffff)
}

func decodeID(id uint64) (z int, x, y uint32) {
	return int(id>>48) - 1, uint32(id >> 24 & 0xffffff), uint32(id & 0xffffff)
}
