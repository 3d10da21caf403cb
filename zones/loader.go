package zones

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joshafouda/taxitripapp/frame"
)

// Header names of the lookup table, matched case-insensitively.
const (
	ColLocationID  = "LocationID"
	ColBorough     = "Borough"
	ColZone        = "Zone"
	ColServiceZone = "service_zone"
)

// ErrNoLocationID is returned when the lookup table has no location id column.
var ErrNoLocationID = errors.New("zone lookup has no LocationID column")

// Loader produces a fresh index on every call.
type Loader interface {
	Load(ctx context.Context) (*Index, error)
}

// LoadCSV builds an index from a lookup CSV with a header row.
func LoadCSV(r io.Reader) (*Index, error) {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1
	rec, err := csvr.ReadAll()
	if err != nil {
		return nil, err
	}
	x := NewIndex()
	if len(rec) == 0 {
		return x, nil
	}
	head := rec[0]
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	idx := func(col string) int {
		for i, h := range head {
			if strings.EqualFold(strings.TrimSpace(h), col) {
				return i
			}
		}
		return -1
	}
	lID := idx(ColLocationID)
	bor := idx(ColBorough)
	zn := idx(ColZone)
	sz := idx(ColServiceZone)
	if lID < 0 {
		return nil, ErrNoLocationID
	}
	field := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	for line, row := range rec[1:] {
		raw := field(row, lID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad location id %q: %w", line+2, raw, err)
		}
		x.Add(Zone{
			LocationID:  id,
			Borough:     field(row, bor),
			Zone:        field(row, zn),
			ServiceZone: field(row, sz),
		})
	}
	return x, nil
}

// LoadCSVFile builds an index from a lookup CSV on disk.
func LoadCSVFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	x, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return x, nil
}

// FileLoader reads the lookup CSV from Path on every Load.
type FileLoader struct {
	Path string
}

// Load implements Loader.
func (l FileLoader) Load(ctx context.Context) (*Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadCSVFile(l.Path)
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLLoader reads the lookup table from a database table whose columns match the CSV
// header names, compared case-insensitively.
type SQLLoader struct {
	db    *sql.DB
	table string
}

// NewSQLLoader creates a loader for table, which may be schema-qualified.
func NewSQLLoader(db *sql.DB, table string) (*SQLLoader, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid zone table name %q", table)
	}
	return &SQLLoader{db: db, table: table}, nil
}

// Load implements Loader.
func (l *SQLLoader) Load(ctx context.Context) (*Index, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT * FROM "+l.table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", l.table, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	idx := func(col string) int {
		for i, h := range cols {
			if strings.EqualFold(h, col) {
				return i
			}
		}
		return -1
	}
	lID := idx(ColLocationID)
	bor := idx(ColBorough)
	zn := idx(ColZone)
	sz := idx(ColServiceZone)
	if lID < 0 {
		return nil, ErrNoLocationID
	}

	x := NewIndex()
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	text := func(i int) string {
		if i < 0 {
			return ""
		}
		switch t := vals[i].(type) {
		case nil:
			return ""
		case []byte:
			return string(t)
		case string:
			return t
		default:
			return fmt.Sprint(t)
		}
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		id, ok := frame.Int(vals[lID])
		if !ok {
			parsed, err := strconv.ParseInt(text(lID), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("bad location id %v in %s", vals[lID], l.table)
			}
			id = parsed
		}
		x.Add(Zone{LocationID: id, Borough: text(bor), Zone: text(zn), ServiceZone: text(sz)})
	}
	return x, rows.Err()
}
