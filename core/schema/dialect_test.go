package schema

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func specFor(t *testing.T, key string) ColumnSpec {
	t.Helper()
	for _, c := range Catalog() {
		if c.Key() == key {
			return c
		}
	}
	t.Fatalf("no catalog entry %s", key)
	return ColumnSpec{}
}

func TestRenderAddColumn(t *testing.T) {
	cases := []struct {
		dialect Dialect
		key     string
		want    string
	}{
		{SQLite(), "truck.is_zone_manual", `ALTER TABLE "truck" ADD COLUMN "is_zone_manual" BOOLEAN DEFAULT 0`},
		{Postgres(), "truck.is_zone_manual", `ALTER TABLE "truck" ADD COLUMN IF NOT EXISTS "is_zone_manual" BOOLEAN DEFAULT FALSE`},
		{SQLite(), "truck.history_str", `ALTER TABLE "truck" ADD COLUMN "history_str" TEXT DEFAULT '[]'`},
		{Postgres(), "truck.zones_last_updated", `ALTER TABLE "truck" ADD COLUMN IF NOT EXISTS "zones_last_updated" VARCHAR(20) DEFAULT '2000-01-01'`},
		{Postgres(), "trip.destination_zone", `ALTER TABLE "trip" ADD COLUMN IF NOT EXISTS "destination_zone" VARCHAR(50)`},
	}
	for _, tc := range cases {
		t.Run(tc.dialect.Name()+"/"+tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.dialect.RenderAddColumn(specFor(t, tc.key)))
		})
	}
}

func TestRenderCreateTable(t *testing.T) {
	var fds TableSpec
	for _, spec := range Tables() {
		if spec.Name == "truck_fds" {
			fds = spec
		}
	}
	require.NotEmpty(t, fds.Columns)

	lite := SQLite().RenderCreateTable(fds)
	assert.True(t, strings.HasPrefix(lite, `CREATE TABLE IF NOT EXISTS "truck_fds"`))
	assert.Contains(t, lite, `"id" INTEGER PRIMARY KEY`)
	assert.Contains(t, lite, `"is_out_of_service" BOOLEAN DEFAULT 1`)
	assert.Contains(t, lite, `REFERENCES "truck"("plate")`)
	assert.Contains(t, lite, `UNIQUE ("truck_plate", "date")`)

	pg := Postgres().RenderCreateTable(fds)
	assert.Contains(t, pg, `"id" SERIAL PRIMARY KEY`)
	assert.Contains(t, pg, `"is_out_of_service" BOOLEAN DEFAULT TRUE`)
}

func TestTableOrderSatisfiesForeignKeys(t *testing.T) {
	seen := make(map[TableName]bool)
	for _, spec := range Tables() {
		for _, c := range spec.Columns {
			if c.References != nil {
				assert.True(t, seen[c.References.Table], "%s references %s before it is created", spec.Name, c.References.Table)
			}
		}
		seen[spec.Name] = true
	}
}

func TestPostgresErrorClassification(t *testing.T) {
	d := Postgres()
	dup := &pgconn.PgError{Code: "42701", Message: `column "trailer" of relation "truck" already exists`}

	assert.True(t, d.IsDuplicateColumn(dup))
	assert.True(t, d.IsDuplicateColumn(fmt.Errorf("exec: %w", dup)))
	assert.False(t, d.IsDuplicateColumn(&pgconn.PgError{Code: "42P07"}))
	assert.False(t, d.IsDuplicateColumn(errors.New(`column "trailer" already exists`)))

	assert.True(t, d.IsConnectionFailure(&pgconn.PgError{Code: "08006"}))
	assert.True(t, d.IsConnectionFailure(&pgconn.PgError{Code: "57P01"}))
	assert.False(t, d.IsConnectionFailure(dup))
	assert.False(t, d.IsConnectionFailure(&pgconn.PgError{Code: "42601"}))
}

func TestClassifyExec(t *testing.T) {
	d := Postgres()
	assert.NoError(t, classifyExec(d, "truck.trailer", "stmt", nil))

	var dup *DuplicateColumnError
	assert.ErrorAs(t, classifyExec(d, "truck.trailer", "stmt", &pgconn.PgError{Code: "42701"}), &dup)
	assert.Equal(t, "truck.trailer", dup.Column)

	var stmtErr *StatementError
	assert.ErrorAs(t, classifyExec(d, "truck.trailer", "stmt", &pgconn.PgError{Code: "42601"}), &stmtErr)
	assert.Equal(t, "stmt", stmtErr.Statement)

	assert.True(t, IsConnectionError(classifyExec(d, "truck.trailer", "stmt", &pgconn.PgError{Code: "08003"})))
}

func TestDialectFor(t *testing.T) {
	for name, want := range map[string]string{
		"sqlite":     DialectSQLite,
		"SQLite3":    DialectSQLite,
		"postgres":   DialectPostgres,
		"postgresql": DialectPostgres,
		"pgx":        DialectPostgres,
	} {
		d, err := DialectFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, d.Name())
	}
	_, err := DialectFor("mysql")
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", SQLite().Placeholder(2))
	assert.Equal(t, "$2", Postgres().Placeholder(2))
}

func TestOnlyPostgresLocksTableBeforeAddColumn(t *testing.T) {
	l, ok := Postgres().(tableLocker)
	require.True(t, ok)
	assert.Equal(t, `LOCK TABLE "user" IN ACCESS EXCLUSIVE MODE`, l.LockTableStatement("user"))

	_, ok = SQLite().(tableLocker)
	assert.False(t, ok)
}
