package schema

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateColumn = "42701"
	pgAdminShutdown   = "57P01"
	pgCrashShutdown   = "57P02"
	pgCannotConnect   = "57P03"
)

type postgresDialect struct{}

func Postgres() Dialect { return postgresDialect{} }

func (postgresDialect) Name() string                       { return DialectPostgres }
func (postgresDialect) QuoteIdent(name string) string      { return quoteIdent(name) }
func (postgresDialect) Placeholder(n int) string           { return "$" + strconv.Itoa(n) }
func (postgresDialect) SupportsAddColumnIfNotExists() bool { return true }
func (postgresDialect) primaryKeyClause() string           { return "SERIAL PRIMARY KEY" }
func (postgresDialect) renderType(t SQLType) string        { return t.String() }

func (postgresDialect) renderDefault(t SQLType, v string) string {
	if t.Kind == KindBoolean {
		return renderBoolean(v, "TRUE", "FALSE")
	}
	return v
}

func (d postgresDialect) RenderCreateTable(t TableSpec) string {
	return renderCreateTable(d, t)
}

func (d postgresDialect) RenderAddColumn(c ColumnSpec) string {
	return renderAddColumn(d, c, true)
}

func (postgresDialect) LockTableStatement(table TableName) string {
	return "LOCK TABLE " + quoteIdent(string(table)) + " IN ACCESS EXCLUSIVE MODE"
}

func (postgresDialect) ListTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`
}

func (postgresDialect) ListColumnsQuery(table TableName) (string, []any) {
	return `SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, []any{string(table)}
}

func (postgresDialect) IsDuplicateColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgDuplicateColumn
}

func (postgresDialect) IsConnectionFailure(err error) bool {
	if isGenericConnectionFailure(err) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		switch pgErr.Code {
		case pgAdminShutdown, pgCrashShutdown, pgCannotConnect:
			return true
		}
	}
	return false
}
