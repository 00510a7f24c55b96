package schema

import (
	"context"
	"database/sql"
	"fmt"
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Inspector reads table and column names from the live database. Every call
// goes to the engine; nothing is cached because other processes or an
// operator may change the schema between calls.
type Inspector struct {
	db      queryer
	dialect Dialect
}

func NewInspector(db *sql.DB, dialect Dialect) *Inspector {
	return &Inspector{db: db, dialect: dialect}
}

func (i *Inspector) Dialect() Dialect { return i.dialect }

func (i *Inspector) ListTables(ctx context.Context) (map[TableName]struct{}, error) {
	names, err := i.queryNames(ctx, "list tables", i.dialect.ListTablesQuery())
	if err != nil {
		return nil, err
	}
	out := make(map[TableName]struct{}, len(names))
	for _, n := range names {
		out[TableName(n)] = struct{}{}
	}
	return out, nil
}

// ListColumns returns the column names of table. A table that does not
// exist yields an empty set.
func (i *Inspector) ListColumns(ctx context.Context, table TableName) (map[string]struct{}, error) {
	query, args := i.dialect.ListColumnsQuery(table)
	names, err := i.queryNames(ctx, fmt.Sprintf("list columns of %s", table), query, args...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

func (i *Inspector) Snapshot(ctx context.Context, table TableName) (TableSnapshot, error) {
	cols, err := i.ListColumns(ctx, table)
	if err != nil {
		return TableSnapshot{}, err
	}
	return TableSnapshot{Table: table, Columns: cols}, nil
}

func (i *Inspector) queryNames(ctx context.Context, op, query string, args ...any) ([]string, error) {
	if i == nil || i.db == nil {
		return nil, &ConnectionError{Op: op, Err: sql.ErrConnDone}
	}
	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ConnectionError{Op: op, Err: err}
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &ConnectionError{Op: op, Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Op: op, Err: err}
	}
	return names, nil
}
