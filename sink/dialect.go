package sink

import (
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

// Dialect holds the per-database SQL differences the SQL sink cares about.
type Dialect struct {
	Name       string
	Driver     string
	MaxParams  int
	Backticks  bool
	Positional bool // $1, $2 ... instead of ?
	Types      map[Kind]string
}

// Kind is the SQL type family a frame column is written as.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
)

var (
	Postgres = Dialect{
		Name: "postgres", Driver: "pgx", MaxParams: 65535, Positional: true,
		Types: map[Kind]string{KindText: "TEXT", KindInt: "BIGINT", KindFloat: "DOUBLE PRECISION", KindBool: "BOOLEAN", KindTime: "TIMESTAMP"},
	}
	MySQL = Dialect{
		Name: "mysql", Driver: "mysql", MaxParams: 65535, Backticks: true,
		Types: map[Kind]string{KindText: "TEXT", KindInt: "BIGINT", KindFloat: "DOUBLE", KindBool: "BOOLEAN", KindTime: "DATETIME"},
	}
	SQLite = Dialect{
		Name: "sqlite", Driver: "sqlite", MaxParams: 32766,
		Types: map[Kind]string{KindText: "TEXT", KindInt: "INTEGER", KindFloat: "REAL", KindBool: "BOOLEAN", KindTime: "TIMESTAMP"},
	}
	DuckDB = Dialect{
		Name: "duckdb", Driver: "duckdb", MaxParams: 65535,
		Types: map[Kind]string{KindText: "VARCHAR", KindInt: "BIGINT", KindFloat: "DOUBLE", KindBool: "BOOLEAN", KindTime: "TIMESTAMP"},
	}
)

// Quote quotes an identifier, which may be schema-qualified.
func (d Dialect) Quote(ident string) string {
	q := `"`
	if d.Backticks {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// Placeholder returns the bind marker for the n-th argument, counting from 1.
func (d Dialect) Placeholder(n int) string {
	if d.Positional {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Open parses a connection URL and opens the matching database. Supported schemes are
// postgresql, postgres, mysql, sqlite and duckdb. The connection is not verified.
func Open(rawURL string) (*sql.DB, Dialect, error) {
	d, dsn, err := ParseURL(rawURL)
	if err != nil {
		return nil, Dialect{}, err
	}
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name || d.Name == DuckDB.Name {
		db.SetMaxOpenConns(1)
	}
	return db, d, nil
}

// ParseURL maps a connection URL to its dialect and the DSN its driver expects.
func ParseURL(rawURL string) (Dialect, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Dialect{}, "", fmt.Errorf("parse connection url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "postgresql", "postgres":
		return Postgres, rawURL, nil
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.Net = "tcp"
		cfg.Addr = u.Host
		if u.Port() == "" {
			cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
		}
		if u.User != nil {
			cfg.User = u.User.Username()
			cfg.Passwd, _ = u.User.Password()
		}
		cfg.DBName = strings.TrimPrefix(u.Path, "/")
		cfg.ParseTime = true
		return MySQL, cfg.FormatDSN(), nil
	case "sqlite", "sqlite3":
		return SQLite, filePath(u), nil
	case "duckdb":
		return DuckDB, filePath(u), nil
	}
	return Dialect{}, "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
}

// sqlite://data/trips.db is relative, sqlite:///var/trips.db is absolute.
func filePath(u *url.URL) string {
	return u.Host + u.Path
}
