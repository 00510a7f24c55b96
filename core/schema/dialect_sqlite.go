package schema

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func SQLite() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string                       { return DialectSQLite }
func (sqliteDialect) QuoteIdent(name string) string      { return quoteIdent(name) }
func (sqliteDialect) Placeholder(int) string             { return "?" }
func (sqliteDialect) SupportsAddColumnIfNotExists() bool { return false }
func (sqliteDialect) primaryKeyClause() string           { return "INTEGER PRIMARY KEY" }
func (sqliteDialect) renderType(t SQLType) string        { return t.String() }

func (sqliteDialect) renderDefault(t SQLType, v string) string {
	if t.Kind == KindBoolean {
		return renderBoolean(v, "1", "0")
	}
	return v
}

func (d sqliteDialect) RenderCreateTable(t TableSpec) string {
	return renderCreateTable(d, t)
}

// RenderAddColumn has no conditional form on SQLite; callers must check the
// live columns first.
func (d sqliteDialect) RenderAddColumn(c ColumnSpec) string {
	return renderAddColumn(d, c, false)
}

func (sqliteDialect) ListTablesQuery() string {
	return `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
}

func (sqliteDialect) ListColumnsQuery(table TableName) (string, []any) {
	return `SELECT name FROM pragma_table_info(?) ORDER BY cid`, []any{string(table)}
}

func (sqliteDialect) IsDuplicateColumn(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_ERROR &&
		strings.Contains(strings.ToLower(se.Error()), "duplicate column name")
}

func (sqliteDialect) IsConnectionFailure(err error) bool {
	if isGenericConnectionFailure(err) {
		return true
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR,
		sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
