package frame

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb/v2"
)

// Column is one column of a frame with its DuckDB type, e.g. BIGINT or DECIMAL(10,2).
type Column struct {
	Name string
	Type string
}

// Frame is a table held in a DuckDB database. A frame is not modified once built;
// stages derive new frames with SQL and drop the ones they are done with.
type Frame struct {
	db     *sql.DB
	table  string
	schema []Column
	rows   int
}

// Open opens an in-memory DuckDB database. Every connection of the returned pool
// sees the same tables.
func Open() (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	return db, nil
}

// TableName returns a fresh table name starting with prefix.
func TableName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create materializes query as table and returns the frame over it. An existing
// table of the same name is replaced.
func Create(ctx context.Context, db *sql.DB, table, query string) (*Frame, error) {
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS %s", Quote(table), query)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("create %s: %w", table, err)
	}
	return Attach(ctx, db, table)
}

// Attach returns the frame over an existing table.
func Attach(ctx context.Context, db *sql.DB, table string) (*Frame, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_name = ? ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	f := &Frame{db: db, table: table}
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		f.schema = append(f.schema, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(f.schema) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+Quote(table)).Scan(&f.rows); err != nil {
		return nil, fmt.Errorf("count %s: %w", table, err)
	}
	return f, nil
}

// FromRows creates table with schema and bulk-loads rows into it. Each row holds one
// value per column; nil is NULL.
func FromRows(ctx context.Context, db *sql.DB, table string, schema []Column, rows [][]any) (*Frame, error) {
	for i, row := range rows {
		if len(row) != len(schema) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(schema))
		}
	}
	if err := CreateTable(ctx, db, table, schema); err != nil {
		return nil, err
	}
	i := 0
	next := func() ([]driver.Value, error) {
		if i == len(rows) {
			return nil, io.EOF
		}
		vals := make([]driver.Value, len(rows[i]))
		for c, v := range rows[i] {
			vals[c] = v
		}
		i++
		return vals, nil
	}
	if _, err := Append(ctx, db, table, next); err != nil {
		return nil, err
	}
	return Attach(ctx, db, table)
}

// CreateTable creates an empty table, replacing any table of the same name.
func CreateTable(ctx context.Context, db *sql.DB, table string, schema []Column) error {
	if len(schema) == 0 {
		return errors.New("no columns")
	}
	defs := make([]string, len(schema))
	for i, c := range schema {
		defs[i] = Quote(c.Name) + " " + c.Type
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", Quote(table), strings.Join(defs, ", "))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	return nil
}

// Append feeds rows from next into table through the DuckDB appender until next
// returns io.EOF. It returns the number of rows appended.
func Append(ctx context.Context, db *sql.DB, table string, next func() ([]driver.Value, error)) (int, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	n := 0
	err = conn.Raw(func(dc any) error {
		dconn, ok := dc.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", dc)
		}
		a, err := duckdb.NewAppenderFromConn(dconn, "", table)
		if err != nil {
			return fmt.Errorf("appender for %s: %w", table, err)
		}
		for {
			vals, err := next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = a.Close()
				return err
			}
			if err := a.AppendRow(vals...); err != nil {
				_ = a.Close()
				return fmt.Errorf("append row %d to %s: %w", n+1, table, err)
			}
			n++
		}
		return a.Close()
	})
	return n, err
}

// DB returns the database holding the frame.
func (f *Frame) DB() *sql.DB { return f.db }

// Table returns the name of the backing table.
func (f *Frame) Table() string { return f.table }

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return f.rows
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	if f == nil {
		return 0
	}
	return len(f.schema)
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.schema))
	for i, c := range f.schema {
		out[i] = c.Name
	}
	return out
}

// Schema returns the columns with their types.
func (f *Frame) Schema() []Column {
	return append([]Column(nil), f.schema...)
}

// Rows selects every row in insertion order. The caller closes the result.
func (f *Frame) Rows(ctx context.Context) (*sql.Rows, error) {
	return f.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY rowid", Quote(f.table)))
}

// Records reads the whole frame into memory. Meant for small frames.
func (f *Frame) Records(ctx context.Context) ([][]any, error) {
	rows, err := f.Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out [][]any
	for rows.Next() {
		vals, err := Scan(rows, f.Width())
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

// Drop removes the backing table. Dropping a nil frame is a no-op.
func (f *Frame) Drop(ctx context.Context) error {
	if f == nil || f.db == nil {
		return nil
	}
	_, err := f.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+Quote(f.table))
	return err
}

// Scan reads the current row of rows into width values. Byte slices are copied into
// strings since drivers reuse their buffers.
func Scan(rows *sql.Rows, width int) ([]any, error) {
	vals := make([]any, width)
	ptrs := make([]any, width)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals, nil
}

// Quote quotes an identifier for DuckDB.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// Literal quotes s as a SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
