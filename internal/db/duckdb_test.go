package db

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/greenery-map/internal/dataset"
)

func sample() *dataset.Dataset {
	trees := geojson.NewFeatureCollection()
	for i, s := range []string{"Oak", "Oak", "Maple"} {
		f := geojson.NewFeature(orb.Point{-123 + float64(i)*0.01, 44})
		f.Properties["Species"] = s
		f.Properties["Height"] = 10.0 + float64(i)
		trees.Append(f)
	}

	grid := geojson.NewFeatureCollection()
	cell := geojson.NewFeature(orb.Bound{Min: orb.Point{-123, 44}, Max: orb.Point{-122.9, 44.1}}.ToPolygon())
	cell.Properties["GridID"] = "A1"
	cell.Properties["Score"] = 42.0
	cell.Properties["MostCommon"] = "Oak"
	grid.Append(cell)

	return &dataset.Dataset{Trees: trees, Grid: grid}
}

func TestMirror(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(Config{})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Mirror(ctx, conn, sample(), "Species"))

	tables, err := Tables(ctx, conn)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{TreesTable, GridTable}, tables)

	var oaks int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(*) FROM trees WHERE species = 'Oak'`).Scan(&oaks))
	assert.Equal(t, 2, oaks)

	var score float64
	var common string
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT score, most_common FROM grid WHERE grid_id = 'A1'`).Scan(&score, &common))
	assert.Equal(t, 42.0, score)
	assert.Equal(t, "Oak", common)
}

func TestMirror_Replaces(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(Config{})
	require.NoError(t, err)
	defer conn.Close()

	ds := sample()
	require.NoError(t, Mirror(ctx, conn, ds, "Species"))

	ds.Trees.Features = ds.Trees.Features[:1]
	require.NoError(t, Mirror(ctx, conn, ds, "Species"))

	rows, err := Query(ctx, conn, `SELECT id FROM trees`)
	require.NoError(t, err)
	defer rows.Close()
	n := 0
	for rows.Next() {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestOpen_File(t *testing.T) {
	conn, err := Open(Config{DataDir: t.TempDir(), DBName: "greenery"})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())
}
