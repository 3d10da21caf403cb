// Package source reads trip record files into frames.
//
// Parquet and CSV files are loaded into tables of an embedded DuckDB instance, keeping
// the column types the file declares.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joshafouda/taxitripapp/frame"
)

// ErrUnsupportedFormat is returned for files that are neither parquet nor csv.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// DuckDB extracts files with an embedded DuckDB database.
type DuckDB struct {
	db *sql.DB
}

// OpenDuckDB opens an in-memory DuckDB instance.
func OpenDuckDB() (*DuckDB, error) {
	db, err := frame.Open()
	if err != nil {
		return nil, err
	}
	return &DuckDB{db: db}, nil
}

// NewDuckDB wraps an already open DuckDB handle.
func NewDuckDB(db *sql.DB) *DuckDB { return &DuckDB{db: db} }

// DB returns the database the extracted frames live in.
func (d *DuckDB) DB() *sql.DB { return d.db }

// Close releases the database.
func (d *DuckDB) Close() error { return d.db.Close() }

// Extract loads the whole file at path into a new table of the database.
func (d *DuckDB) Extract(ctx context.Context, path string) (*frame.Frame, error) {
	q, err := Query(path)
	if err != nil {
		return nil, err
	}
	f, err := frame.Create(ctx, d.db, frame.TableName("raw"), q)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return f, nil
}

// Query returns the DuckDB statement that selects every row of the file at path.
func Query(path string) (string, error) {
	var fn string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		fn = "read_parquet"
	case ".csv":
		fn = "read_csv_auto"
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return fmt.Sprintf("SELECT * FROM %s(%s)", fn, frame.Literal(path)), nil
}
