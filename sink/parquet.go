package sink

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joshafouda/taxitripapp/frame"
)

// ParquetSink appends frames to a single parquet file. Each load rewrites the file as
// old rows UNION ALL BY NAME new rows, so columns are matched by name and a column
// present on one side only is filled with NULL.
//
// Frames living in the sink's own DuckDB database are copied straight from their
// table. Frames from another database are first appended into a staging table.
type ParquetSink struct {
	db    *sql.DB
	path  string
	owned bool
}

// OpenParquet opens an in-memory DuckDB instance that writes to path.
func OpenParquet(path string) (*ParquetSink, error) {
	db, err := frame.Open()
	if err != nil {
		return nil, err
	}
	s := NewParquetSink(db, path)
	s.owned = true
	return s, nil
}

// NewParquetSink writes to path through an existing DuckDB handle, usually the one
// the frames are extracted into.
func NewParquetSink(db *sql.DB, path string) *ParquetSink {
	return &ParquetSink{db: db, path: path}
}

// Path returns the output file.
func (s *ParquetSink) Path() string { return s.path }

// Describe names the destination.
func (s *ParquetSink) Describe() string { return "parquet file " + s.path }

// Close closes DuckDB if the sink opened it.
func (s *ParquetSink) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// Load appends f to the parquet file, creating it and its directory when absent. The
// file is replaced atomically.
func (s *ParquetSink) Load(ctx context.Context, f *frame.Frame) error {
	if f == nil || f.Width() == 0 {
		return ErrEmptyFrame
	}
	if f.Len() == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	table := f.Table()
	if f.DB() != s.db {
		staged, err := s.stage(ctx, f)
		if err != nil {
			return fmt.Errorf("stage rows: %w", err)
		}
		defer func() { _ = staged.Drop(context.WithoutCancel(ctx)) }()
		table = staged.Table()
	}

	tmp := s.path + ".tmp"
	if _, err := s.db.ExecContext(ctx, s.copySQL(table, tmp)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// stage streams f into a table of the sink's database through the DuckDB appender.
// DECIMAL columns are staged as DOUBLE.
func (s *ParquetSink) stage(ctx context.Context, f *frame.Frame) (*frame.Frame, error) {
	schema := f.Schema()
	decimal := make([]bool, len(schema))
	for i, c := range schema {
		if strings.HasPrefix(strings.ToUpper(c.Type), "DECIMAL") {
			schema[i].Type, decimal[i] = "DOUBLE", true
		}
	}
	rows, err := f.Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	table := frame.TableName("staging")
	if err := frame.CreateTable(ctx, s.db, table, schema); err != nil {
		return nil, err
	}
	next := func() ([]driver.Value, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		vals, err := frame.Scan(rows, len(schema))
		if err != nil {
			return nil, err
		}
		out := make([]driver.Value, len(vals))
		for i, v := range vals {
			switch {
			case frame.IsMissing(v):
				out[i] = nil
			case decimal[i]:
				out[i], _ = frame.Float(v)
			default:
				out[i] = v
			}
		}
		return out, nil
	}
	if _, err := frame.Append(ctx, s.db, table, next); err != nil {
		_, _ = s.db.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+frame.Quote(table))
		return nil, err
	}
	return frame.Attach(ctx, s.db, table)
}

// copySQL rewrites the whole file on every load since parquet cannot be appended to
// in place.
func (s *ParquetSink) copySQL(table, tmp string) string {
	from := frame.Quote(table)
	if _, err := os.Stat(s.path); err == nil {
		from = fmt.Sprintf("(SELECT * FROM read_parquet(%s) UNION ALL BY NAME SELECT * FROM %s)",
			frame.Literal(s.path), frame.Quote(table))
	}
	return fmt.Sprintf("COPY %s TO %s (FORMAT PARQUET)", from, frame.Literal(tmp))
}
