package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:blobfs.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/blobfs?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS share_links (
  identifier TEXT PRIMARY KEY,
  file_data_identifier TEXT NOT NULL,
  bucket_identifier TEXT NOT NULL,
  filesystem_path TEXT NOT NULL,
  link TEXT NOT NULL,
  valid_until INTEGER NOT NULL -- unix seconds, UTC
);

CREATE INDEX IF NOT EXISTS idx_share_links_file_data
  ON share_links (file_data_identifier);

CREATE INDEX IF NOT EXISTS idx_share_links_valid_until
  ON share_links (valid_until);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS share_links (
  identifier TEXT PRIMARY KEY,
  file_data_identifier TEXT NOT NULL,
  bucket_identifier TEXT NOT NULL,
  filesystem_path TEXT NOT NULL,
  link TEXT NOT NULL,
  valid_until BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_share_links_file_data
  ON share_links (file_data_identifier);

CREATE INDEX IF NOT EXISTS idx_share_links_valid_until
  ON share_links (valid_until);
`
