package schema

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
)

// Dialect renders engine-specific SQL and classifies engine errors so the
// catalog and the applier stay engine agnostic.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	Placeholder(n int) string
	// SupportsAddColumnIfNotExists reports whether ADD COLUMN accepts a
	// conditional clause. Without it the applier's snapshot check is the only
	// guard against re-adding a column.
	SupportsAddColumnIfNotExists() bool
	RenderCreateTable(t TableSpec) string
	RenderAddColumn(c ColumnSpec) string
	ListTablesQuery() string
	ListColumnsQuery(table TableName) (string, []any)
	IsDuplicateColumn(err error) bool
	IsConnectionFailure(err error) bool
}

// tableLocker is implemented by dialects that can take the ADD COLUMN lock
// up front, so a column check made afterwards cannot go stale before the
// statement runs.
type tableLocker interface {
	LockTableStatement(table TableName) string
}

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DialectSQLite, "sqlite3":
		return SQLite(), nil
	case DialectPostgres, "postgresql", "pgx":
		return Postgres(), nil
	}
	return nil, fmt.Errorf("unsupported database dialect %q", name)
}

// DetectDialect picks the dialect from the driver backing db.
func DetectDialect(db *sql.DB) (Dialect, error) {
	if db == nil {
		return nil, errors.New("nil database handle")
	}
	switch db.Driver().(type) {
	case *sqlite.Driver:
		return SQLite(), nil
	case *stdlib.Driver:
		return Postgres(), nil
	}
	return nil, fmt.Errorf("unsupported database driver %T", db.Driver())
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func renderBoolean(v string, trueWord, falseWord string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return trueWord
	case "false", "0":
		return falseWord
	}
	return v
}

type columnRenderer interface {
	Dialect
	renderType(t SQLType) string
	renderDefault(t SQLType, v string) string
	primaryKeyClause() string
}

func renderColumnDef(d columnRenderer, c ColumnDef) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(c.Name))
	if c.PrimaryKey {
		b.WriteString(" ")
		b.WriteString(d.primaryKeyClause())
		return b.String()
	}
	b.WriteString(" ")
	b.WriteString(d.renderType(c.Type))
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Unique {
		b.WriteString(" UNIQUE")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(d.renderDefault(c.Type, *c.Default))
	}
	if c.References != nil {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", d.QuoteIdent(string(c.References.Table)), d.QuoteIdent(c.References.Column))
	}
	return b.String()
}

func renderCreateTable(d columnRenderer, t TableSpec) string {
	parts := make([]string, 0, len(t.Columns)+len(t.Uniques))
	for _, c := range t.Columns {
		parts = append(parts, renderColumnDef(d, c))
	}
	for _, group := range t.Uniques {
		quoted := make([]string, 0, len(group))
		for _, name := range group {
			quoted = append(quoted, d.QuoteIdent(name))
		}
		parts = append(parts, "UNIQUE ("+strings.Join(quoted, ", ")+")")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", d.QuoteIdent(string(t.Name)), strings.Join(parts, ",\n\t"))
}

func renderAddColumn(d columnRenderer, c ColumnSpec, ifNotExists bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ALTER TABLE %s ADD COLUMN ", d.QuoteIdent(string(c.Table)))
	if ifNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(d.QuoteIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(d.renderType(c.Type))
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(d.renderDefault(c.Type, *c.Default))
	}
	return b.String()
}

// isGenericConnectionFailure covers failures that mean the handle itself is
// unusable regardless of engine.
func isGenericConnectionFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
