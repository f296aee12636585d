package render

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRamp(t *testing.T) {
	r, err := NewRamp([]Stop{{0, "#000000"}, {100, "#fff"}})
	require.NoError(t, err)

	assert.Equal(t, "#000000", r.Color(0))
	assert.Equal(t, "#ffffff", r.Color(100))
	assert.Equal(t, "#808080", r.Color(50))
	assert.Equal(t, "#000000", r.Color(-20))
	assert.Equal(t, "#ffffff", r.Color(250))
}

func TestRamp_Invalid(t *testing.T) {
	_, err := NewRamp(nil)
	assert.Error(t, err)

	_, err = NewRamp([]Stop{{50, "#000"}, {10, "#fff"}})
	assert.Error(t, err)

	_, err = NewRamp([]Stop{{0, "green"}})
	assert.Error(t, err)
}

func tree(lon, lat float64, species string) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties["Species"] = species
	f.Properties["Height"] = 12.5
	return f
}

func collection(fs ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		fc.Append(f)
	}
	return fc
}

func square(minLon, minLat, maxLon, maxLat, score float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Bound{Min: orb.Point{minLon, minLat}, Max: orb.Point{maxLon, maxLat}}.ToPolygon())
	f.Properties["GridID"] = "g1"
	f.Properties["Score"] = score
	return f
}

func TestClusterIndex_ExpansionZoom(t *testing.T) {
	idx := NewClusterIndex(collection(
		tree(0.5, 0.5, "Oak"),
		tree(0.51, 0.51, "Oak"),
	), ClusterOptions{Radius: 50, MaxZoom: 14, MinPoints: 2})

	markers := idx.Markers(0)
	require.Len(t, markers, 1)
	require.True(t, markers[0].Cluster())
	assert.Equal(t, 2, markers[0].Count)

	z, err := idx.ExpansionZoom(markers[0].ID)
	require.NoError(t, err)
	assert.Greater(t, z, 0)

	after := idx.Markers(z)
	require.Len(t, after, 2)
	for _, m := range after {
		assert.False(t, m.Cluster())
	}
	before := idx.Markers(z - 1)
	require.Len(t, before, 1)
	assert.Equal(t, 2, before[0].Count)

	leaves, err := idx.Leaves(markers[0].ID)
	require.NoError(t, err)
	assert.Len(t, leaves, 2)
}

func TestClusterIndex_UnknownCluster(t *testing.T) {
	idx := NewClusterIndex(collection(tree(0.5, 0.5, "Oak")), ClusterOptions{})

	_, err := idx.ExpansionZoom(0)
	assert.ErrorIs(t, err, ErrClusterNotFound)

	_, err = idx.ExpansionZoom(encodeID(3, 999, 999))
	assert.ErrorIs(t, err, ErrClusterNotFound)

	_, err = idx.ExpansionZoom(encodeID(30, 0, 0))
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestClusterIndex_MinPoints(t *testing.T) {
	idx := NewClusterIndex(collection(
		tree(0.5, 0.5, "Oak"),
		tree(0.51, 0.51, "Oak"),
	), ClusterOptions{MinPoints: 3})

	for _, m := range idx.Markers(0) {
		assert.False(t, m.Cluster())
	}
	assert.Equal(t, 2, idx.Len())
}

func TestEncodeID(t *testing.T) {
	id := encodeID(14, 12345, 67890)
	z, x, y := decodeID(id)
	assert.Equal(t, 14, z)
	assert.Equal(t, uint32(12345), x)
	assert.Equal(t, uint32(67890), y)
	assert.NotZero(t, encodeID(0, 0, 0))
	assert.Less(t, encodeID(maxClusterZoom, 1<<24-1, 1<<24-1), uint64(1)<<53)
}

func newScene(trees ...*geojson.Feature) *Scene {
	s := NewScene(collection(square(0, 0, 1, 1, 80)), Options{
		Cluster: ClusterOptions{Radius: 50, MaxZoom: 14, MinPoints: 2},
	})
	s.Replace(collection(trees...))
	return s
}

func TestScene_ClickTreeSuppressesGrid(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"))

	pop, ok := s.Click(orb.Point{0.5, 0.5}, 16, 0)
	require.True(t, ok)
	assert.Equal(t, PopupTree, pop.Kind)
	require.NotNil(t, pop.Tree)
	assert.Equal(t, "Oak", pop.Tree.Species)
	assert.Equal(t, 12.5, pop.Tree.Height)
	assert.Nil(t, pop.Grid)
}

func TestScene_ClickGrid(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"))

	pop, ok := s.Click(orb.Point{0.9, 0.9}, 16, 0)
	require.True(t, ok)
	assert.Equal(t, PopupGrid, pop.Kind)
	require.NotNil(t, pop.Grid)
	assert.Equal(t, "g1", pop.Grid.GridID)
	assert.Equal(t, 80.0, pop.Grid.Score)
	assert.NotEmpty(t, pop.Fill)

	_, ok = s.Click(orb.Point{5, 5}, 16, 0)
	assert.False(t, ok)
}

func TestScene_ClickCluster(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"), tree(0.51, 0.51, "Maple"))

	markers := s.Markers(0)
	require.Len(t, markers, 1)

	pop, ok := s.Click(markers[0].Point, 0, 0)
	require.True(t, ok)
	assert.Equal(t, PopupCluster, pop.Kind)
	assert.Equal(t, 2, pop.Count)
	assert.Equal(t, markers[0].ID, pop.ClusterID)

	z, err := s.ExpansionZoom(pop.ClusterID)
	require.NoError(t, err)
	assert.Greater(t, z, 0)
}

func TestScene_ReplaceClearsOldClusters(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"), tree(0.51, 0.51, "Maple"))
	id := s.Markers(0)[0].ID

	s.Replace(collection(tree(0.5, 0.5, "Oak")))
	_, err := s.ExpansionZoom(id)
	assert.ErrorIs(t, err, ErrClusterNotFound)
	assert.Len(t, s.Trees().Features, 1)
}

func TestScene_GridFill(t *testing.T) {
	s := newScene()
	grid := s.Grid()
	require.Len(t, grid.Features, 1)
	assert.Equal(t, defaultRamp.Color(80), grid.Features[0].Properties["fill"])
}

func TestScene_QueryAtTolerance(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"))

	assert.Len(t, s.QueryAt(LayerTrees, orb.Point{0.5, 0.5}, 16, 5), 1)
	assert.Empty(t, s.QueryAt(LayerTrees, orb.Point{0.6, 0.6}, 16, 5))
	assert.Len(t, s.QueryAt(LayerGrid, orb.Point{0.6, 0.6}, 16, 0), 1)
	assert.Nil(t, s.QueryAt(Layer("parks"), orb.Point{0.6, 0.6}, 16, 0))
}

func TestScene_Tile(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"))

	data, err := s.Tile(0, 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers, err := mvt.UnmarshalGzipped(data)
	require.NoError(t, err)
	names := map[string]int{}
	for _, l := range layers {
		names[l.Name] = len(l.Features)
	}
	assert.Equal(t, 1, names[string(LayerTrees)])
	assert.Equal(t, 1, names[string(LayerGrid)])
}

func TestScene_TileEmptyAndInvalid(t *testing.T) {
	s := newScene(tree(0.5, 0.5, "Oak"))

	data, err := s.Tile(4, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = s.Tile(2, 4, 0)
	assert.Error(t, err)
	_, err = s.Tile(40, 0, 0)
	assert.Error(t, err)
}
