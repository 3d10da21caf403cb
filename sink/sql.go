package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/joshafouda/taxitripapp/frame"
)

// DefaultBatchRows caps the rows sent per INSERT statement.
const DefaultBatchRows = 1000

// SQLSink appends frames to a relational table, creating it on first use.
type SQLSink struct {
	db        *sql.DB
	dialect   Dialect
	table     string
	batchRows int
	owned     bool
}

// NewSQLSink writes to table through db. The caller keeps ownership of db.
func NewSQLSink(db *sql.DB, d Dialect, table string) *SQLSink {
	return &SQLSink{db: db, dialect: d, table: table, batchRows: DefaultBatchRows}
}

// OpenSQL opens the database behind rawURL. Close releases it.
func OpenSQL(rawURL, table string) (*SQLSink, error) {
	db, d, err := Open(rawURL)
	if err != nil {
		return nil, err
	}
	s := NewSQLSink(db, d, table)
	s.owned = true
	return s, nil
}

// WithBatchRows changes the rows per INSERT. Values below one are ignored.
func (s *SQLSink) WithBatchRows(n int) *SQLSink {
	if n > 0 {
		s.batchRows = n
	}
	return s
}

// Describe names the destination.
func (s *SQLSink) Describe() string { return s.dialect.Name + " table " + s.table }

// Close closes the database if the sink opened it.
func (s *SQLSink) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}

// Load appends every row of f inside one transaction, streaming the rows out of
// DuckDB in batches. An empty frame writes nothing.
func (s *SQLSink) Load(ctx context.Context, f *frame.Frame) error {
	if f == nil || f.Width() == 0 {
		return ErrEmptyFrame
	}
	if f.Len() == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return describe(fmt.Errorf("begin: %w", err))
	}
	if err := s.write(ctx, tx, f); err != nil {
		_ = tx.Rollback()
		return describe(err)
	}
	if err := tx.Commit(); err != nil {
		return describe(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *SQLSink) write(ctx context.Context, tx *sql.Tx, f *frame.Frame) error {
	kinds := Kinds(f)
	cols := f.Columns()
	if _, err := tx.ExecContext(ctx, s.CreateTableSQL(cols, kinds)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}

	per := s.batchRows
	if limit := s.dialect.MaxParams / len(cols); per > limit {
		per = limit
	}
	if per < 1 {
		per = 1
	}

	rows, err := f.Rows(ctx)
	if err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	defer func() { _ = rows.Close() }()

	args := make([]any, 0, per*len(cols))
	start, n := 0, 0
	flush := func() error {
		if _, err := tx.ExecContext(ctx, s.InsertSQL(cols, n), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d into %s: %w", start, start+n-1, s.table, err)
		}
		start += n
		n = 0
		args = args[:0]
		return nil
	}
	for rows.Next() {
		vals, err := frame.Scan(rows, len(cols))
		if err != nil {
			return err
		}
		for c, v := range vals {
			args = append(args, bindValue(v, kinds[c]))
		}
		n++
		if n == per {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read frame: %w", err)
	}
	if n > 0 {
		return flush()
	}
	return nil
}

// CreateTableSQL returns the CREATE TABLE IF NOT EXISTS statement for the columns.
func (s *SQLSink) CreateTableSQL(cols []string, kinds []Kind) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = s.dialect.Quote(c) + " " + s.dialect.Types[kinds[i]]
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", s.dialect.Quote(s.table), strings.Join(defs, ", "))
}

// InsertSQL returns a multi-row INSERT for n rows.
func (s *SQLSink) InsertSQL(cols []string, n int) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = s.dialect.Quote(c)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.dialect.Quote(s.table), strings.Join(quoted, ", "))
	p := 1
	for r := 0; r < n; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range cols {
			if c > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s.dialect.Placeholder(p))
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Kinds maps every column of f to a SQL type family from its DuckDB type.
func Kinds(f *frame.Frame) []Kind {
	schema := f.Schema()
	kinds := make([]Kind, len(schema))
	for i, c := range schema {
		kinds[i] = KindOf(c.Type)
	}
	return kinds
}

// KindOf maps a DuckDB type name to a SQL type family. DECIMAL columns are written
// as floats; types without a family of their own are written as text.
func KindOf(duckType string) Kind {
	t := strings.ToUpper(strings.TrimSpace(duckType))
	switch {
	case strings.HasPrefix(t, "DECIMAL"), strings.HasPrefix(t, "NUMERIC"):
		return KindFloat
	case strings.HasPrefix(t, "TIMESTAMP"):
		return KindTime
	}
	switch t {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return KindInt
	case "FLOAT", "DOUBLE", "REAL", "HUGEINT", "UHUGEINT":
		return KindFloat
	case "BOOLEAN":
		return KindBool
	case "DATE":
		return KindTime
	}
	return KindText
}

func bindValue(v any, k Kind) any {
	if frame.IsMissing(v) {
		return nil
	}
	switch k {
	case KindFloat:
		if x, ok := frame.Float(v); ok {
			return x
		}
	case KindInt:
		if x, ok := frame.Int(v); ok {
			return x
		}
	case KindText:
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return v
}

// describe adds the server-side detail of a PostgreSQL error to the message.
func describe(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := fmt.Sprintf("postgres error %s", pgErr.Code)
		if pgErr.Detail != "" {
			msg += ": " + pgErr.Detail
		}
		if pgErr.TableName != "" {
			msg += " (table " + pgErr.TableName + ")"
		}
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}
