package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const treesJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"Species": "Oak", "Height": 12.5, "Spread": 8},
     "geometry": {"type": "Point", "coordinates": [-123.08, 44.04]}},
    {"type": "Feature", "properties": null,
     "geometry": {"type": "Point", "coordinates": [-123.09, 44.05]}}
  ]
}`

const gridJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {"GridID": 17, "ParksCount": 2, "TreeCount": 40, "SumSpread": 310.5,
                    "SumHeight": 512, "UniqueSpecies": 9, "MostCommon": "Oak", "Score": 72.5},
     "geometry": {"type": "Polygon", "coordinates": [[[-123.1, 44.0], [-123.0, 44.0], [-123.0, 44.1], [-123.1, 44.1], [-123.1, 44.0]]]}}
  ]
}`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

var testFiles = Files{Trees: "trees.geojson", Grid: "grid.geojson"}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "trees.geojson", treesJSON)
	writeFixture(t, dir, "grid.geojson", gridJSON)

	ds, err := Load(dir, testFiles)
	require.NoError(t, err)

	require.Len(t, ds.Trees.Features, 2)
	require.Len(t, ds.Grid.Features, 1)
	assert.Equal(t, orb.Point{-123.08, 44.04}, ds.Trees.Features[0].Geometry)
	assert.NotNil(t, ds.Trees.Features[1].Properties, "null properties are replaced by an empty bag")
}

func TestLoad_MissingGridIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "trees.geojson", treesJSON)

	ds, err := Load(dir, testFiles)
	require.NoError(t, err)
	assert.Empty(t, ds.Grid.Features)
}

func TestLoad_MissingTrees(t *testing.T) {
	_, err := Load(t.TempDir(), testFiles)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{"type": "Feature"`))
	assert.Error(t, err)
}

func TestTreeOf(t *testing.T) {
	fc, err := Decode([]byte(treesJSON))
	require.NoError(t, err)

	assert.Equal(t, Tree{Species: "Oak", Height: 12.5, Spread: 8}, TreeOf(fc.Features[0], "Species"))
	assert.Equal(t, Tree{}, TreeOf(fc.Features[1], "Species"))
}

func TestGridCellOf(t *testing.T) {
	fc, err := Decode([]byte(gridJSON))
	require.NoError(t, err)

	assert.Equal(t, GridCell{
		GridID:        "17",
		ParksCount:    2,
		TreeCount:     40,
		SumSpread:     310.5,
		SumHeight:     512,
		UniqueSpecies: 9,
		MostCommon:    "Oak",
		Score:         72.5,
	}, GridCellOf(fc.Features[0]))
}

func TestScore_Clamped(t *testing.T) {
	fc, err := Decode([]byte(gridJSON))
	require.NoError(t, err)
	f := fc.Features[0]

	f.Properties[PropScore] = 140.0
	assert.Equal(t, 100.0, Score(f))
	f.Properties[PropScore] = -3.0
	assert.Equal(t, 0.0, Score(f))
	delete(f.Properties, PropScore)
	assert.Equal(t, 0.0, Score(f))
}
