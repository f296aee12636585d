// Package db mirrors the loaded dataset into DuckDB tables for ad-hoc SQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb"

	"github.com/joeblew999/greenery-map/internal/dataset"
)

// Table names.
const (
	TreesTable = "trees"
	GridTable  = "grid"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	// DBName names the database file under DataDir/duckdb. Empty means an
	// in-memory database.
	DBName string
}

// Open opens DuckDB.
func Open(cfg Config) (*sql.DB, error) {
	if cfg.DBName == "" {
		return sql.Open("duckdb", "")
	}

	duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}
	return sql.Open("duckdb", filepath.Join(duckdbDir, cfg.DBName+".duckdb"))
}

const createTrees = `CREATE OR REPLACE TABLE trees (
	id      INTEGER,
	species VARCHAR,
	height  DOUBLE,
	spread  DOUBLE,
	lon     DOUBLE,
	lat     DOUBLE
)`

const createGrid = `CREATE OR REPLACE TABLE grid (
	grid_id        VARCHAR,
	parks_count    INTEGER,
	tree_count     INTEGER,
	sum_spread     DOUBLE,
	sum_height     DOUBLE,
	unique_species INTEGER,
	most_common    VARCHAR,
	score          DOUBLE,
	lon            DOUBLE,
	lat            DOUBLE
)`

// Mirror replaces the trees and grid tables with the contents of ds in one
// transaction. Tree species are stored as recorded, so a blank species is an
// empty string rather than Unknown.
func Mirror(ctx context.Context, db *sql.DB, ds *dataset.Dataset, speciesProp string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mirror: begin: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{createTrees, createGrid} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mirror: create: %w", err)
		}
	}

	if ds.Trees != nil {
		ins, err := tx.PrepareContext(ctx, `INSERT INTO trees VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("mirror: prepare trees: %w", err)
		}
		defer ins.Close()
		for i, f := range ds.Trees.Features {
			t := dataset.TreeOf(f, speciesProp)
			c := center(f.Geometry)
			if _, err := ins.ExecContext(ctx, i, t.Species, t.Height, t.Spread, c.X(), c.Y()); err != nil {
				return fmt.Errorf("mirror: tree %d: %w", i, err)
			}
		}
	}

	if ds.Grid != nil {
		ins, err := tx.PrepareContext(ctx, `INSERT INTO grid VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("mirror: prepare grid: %w", err)
		}
		defer ins.Close()
		for i, f := range ds.Grid.Features {
			g := dataset.GridCellOf(f)
			c := center(f.Geometry)
			if _, err := ins.ExecContext(ctx, g.GridID, g.ParksCount, g.TreeCount, g.SumSpread,
				g.SumHeight, g.UniqueSpecies, g.MostCommon, g.Score, c.X(), c.Y()); err != nil {
				return fmt.Errorf("mirror: grid cell %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mirror: commit: %w", err)
	}
	return nil
}

// Query executes a query and returns rows.
func Query(ctx context.Context, db *sql.DB, query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(ctx, query, args...)
}

// Tables lists the tables in the database.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func center(g orb.Geometry) orb.Point {
	if g == nil {
		return orb.Point{}
	}
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}
