// Package assetdb keeps a SQLite catalog of a project's assets so exports can
// run against an indexed snapshot instead of re-walking the asset database.
package assetdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Alia5/syncbackend/identity"
	"github.com/Alia5/syncbackend/internal/scenegraph"
)

// DefaultName is the catalog file name inside the work directory.
const DefaultName = "assets.db"

type Catalog struct {
	db *sql.DB
}

func Open(path string) (*Catalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty catalog path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			seq INTEGER PRIMARY KEY,
			guid TEXT NOT NULL,
			path TEXT NOT NULL UNIQUE,
			asset_id INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_asset_id ON assets(asset_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init catalog schema: %w", err)
		}
	}
	return nil
}

func (c *Catalog) Close() error {
	return c.db.Close()
}

// Index replaces the catalog content with assets, keeping their order. It
// returns the number of assets whose GUID yields an asset id.
func (c *Catalog) Index(ctx context.Context, assets []scenegraph.Asset) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return 0, fmt.Errorf("clear catalog: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO assets (guid, path, asset_id) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET guid = excluded.guid, asset_id = excluded.asset_id`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	valid := 0
	for _, a := range assets {
		var id sql.NullInt64
		if v, err := identity.AssetIDFromString(a.GUID); err == nil {
			id = sql.NullInt64{Int64: int64(v), Valid: true}
			valid++
		}
		if _, err := stmt.ExecContext(ctx, a.GUID, a.Path, id); err != nil {
			return 0, fmt.Errorf("index %s: %w", a.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit catalog: %w", err)
	}
	return valid, nil
}

// EnumerateAllAssets lists the catalog in indexing order.
func (c *Catalog) EnumerateAllAssets() ([]scenegraph.Asset, error) {
	rows, err := c.db.Query(`SELECT guid, path FROM assets ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var out []scenegraph.Asset
	for rows.Next() {
		var a scenegraph.Asset
		if err := rows.Scan(&a.GUID, &a.Path); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Lookup returns the first asset with the given asset id.
func (c *Catalog) Lookup(ctx context.Context, assetID uint32) (scenegraph.Asset, error) {
	var a scenegraph.Asset
	err := c.db.QueryRowContext(ctx,
		`SELECT guid, path FROM assets WHERE asset_id = ? ORDER BY seq LIMIT 1`, int64(assetID),
	).Scan(&a.GUID, &a.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return scenegraph.Asset{}, fmt.Errorf("asset %d: %w", assetID, scenegraph.ErrNotFound)
	}
	if err != nil {
		return scenegraph.Asset{}, fmt.Errorf("lookup asset %d: %w", assetID, err)
	}
	return a, nil
}
