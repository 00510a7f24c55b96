package schema

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const postgresURLEnv = "FLEETOPS_TEST_POSTGRES_URL"

// postgresSchema creates a throwaway schema on the server named by
// FLEETOPS_TEST_POSTGRES_URL. The returned func opens handles whose
// current_schema() is that schema.
func postgresSchema(t *testing.T) func() *sql.DB {
	t.Helper()
	url := strings.TrimSpace(os.Getenv(postgresURLEnv))
	if url == "" {
		t.Skipf("%s not set", postgresURLEnv)
	}
	admin, err := sql.Open("pgx", url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	name := "fleetops_test_" + strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	_, err = admin.Exec("CREATE SCHEMA " + quoteIdent(name))
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = admin.Exec("DROP SCHEMA " + quoteIdent(name) + " CASCADE") })

	return func() *sql.DB {
		cfg, err := pgx.ParseConfig(url)
		require.NoError(t, err)
		cfg.RuntimeParams["search_path"] = name
		db := stdlib.OpenDB(*cfg)
		t.Cleanup(func() { _ = db.Close() })
		return db
	}
}

func TestPostgresFreshDatabaseThenIdempotent(t *testing.T) {
	open := postgresSchema(t)
	db := open()
	ctx := context.Background()
	applier := NewApplier(db, Postgres())

	first, err := applier.EnsureSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Catalog()), first.Count(ActionAdded), first.Text())
	assert.Equal(t, DialectPostgres, first.Dialect)

	tables, err := applier.Inspector().ListTables(ctx)
	require.NoError(t, err)
	for _, spec := range Tables() {
		assert.Contains(t, tables, spec.Name)
	}
	for _, spec := range Catalog() {
		cols, err := applier.Inspector().ListColumns(ctx, spec.Table)
		require.NoError(t, err)
		assert.Contains(t, cols, spec.Name, spec.Key())
	}

	_, err = db.Exec(`INSERT INTO "user" (username, password_hash, is_admin) VALUES ('ops', 'x', TRUE)`)
	require.NoError(t, err)

	second, err := applier.EnsureSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Catalog()), second.Count(ActionAlreadyPresent), second.Text())
	assert.Zero(t, second.Count(ActionAdded))
}

func TestPostgresLegacyRowsGetDefaults(t *testing.T) {
	db := postgresSchema(t)()
	ctx := context.Background()
	for _, spec := range Tables() {
		if spec.Name == "truck" || spec.Name == "trip" {
			_, err := db.Exec(Postgres().RenderCreateTable(spec))
			require.NoError(t, err)
		}
	}
	_, err := db.Exec(`INSERT INTO "truck" (plate, creation_date) VALUES ('1234ABC', '2023-01-01')`)
	require.NoError(t, err)

	report, err := NewApplier(db, Postgres()).EnsureSchema(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Catalog()), report.Count(ActionAdded))

	var (
		trailer, history string
		zoneManual       bool
	)
	err = db.QueryRow(`SELECT trailer, history_str, is_zone_manual FROM "truck" WHERE plate = $1`, "1234ABC").Scan(&trailer, &history, &zoneManual)
	require.NoError(t, err)
	assert.Equal(t, "", trailer)
	assert.Equal(t, "[]", history)
	assert.False(t, zoneManual)
}

func TestPostgresFailedStatementRollsBackToSavepoint(t *testing.T) {
	db := postgresSchema(t)()
	catalog := []ColumnSpec{
		{Table: "truck", Name: "manual_location", Type: VarChar(100), Default: lit("''")},
		{Table: "truck", Name: "broken", Type: Text, Default: lit("((")},
		{Table: "truck", Name: "trailer", Type: VarChar(50), Default: lit("''")},
	}
	applier := NewApplier(db, Postgres(), WithCatalog(Tables(), catalog))

	report, err := applier.EnsureSchema(context.Background())
	require.NoError(t, err)
	got := actions(report)
	assert.Equal(t, ActionAdded, got["truck.manual_location"])
	assert.Equal(t, ActionFailed, got["truck.broken"])
	assert.Equal(t, ActionAdded, got["truck.trailer"])

	cols, err := applier.Inspector().ListColumns(context.Background(), "truck")
	require.NoError(t, err)
	assert.Contains(t, cols, "trailer")
	assert.NotContains(t, cols, "broken")
}

func TestPostgresInterleavedRunsReportEachColumnOnce(t *testing.T) {
	open := postgresSchema(t)
	ctx := context.Background()
	first := NewApplier(open(), Postgres())
	second := NewApplier(open(), Postgres())

	planA, err := first.Plan(ctx)
	require.NoError(t, err)
	planB, err := second.Plan(ctx)
	require.NoError(t, err)
	require.Equal(t, len(Catalog()), planB.Pending())

	reportA, err := first.Apply(ctx, planA)
	require.NoError(t, err)
	reportB, err := second.Apply(ctx, planB)
	require.NoError(t, err)

	assert.Equal(t, len(Catalog()), reportA.Count(ActionAdded))
	assert.Equal(t, len(Catalog()), reportB.Count(ActionAlreadyPresent), reportB.Text())
}

func TestPostgresConcurrentRunsConverge(t *testing.T) {
	open := postgresSchema(t)
	const runners = 4
	appliers := make([]*Applier, runners)
	reports := make([]*Report, runners)
	for i := range appliers {
		appliers[i] = NewApplier(open(), Postgres())
	}

	g, gctx := errgroup.WithContext(context.Background())
	for i := range appliers {
		g.Go(func() error {
			r, err := appliers[i].EnsureSchema(gctx)
			reports[i] = r
			return err
		})
	}
	require.NoError(t, g.Wait())

	added := make(map[string]int)
	for _, r := range reports {
		require.False(t, r.HasFailures(), r.Text())
		for _, o := range r.Outcomes {
			if o.Action == ActionAdded {
				added[o.Column]++
			}
		}
	}
	for _, spec := range Catalog() {
		assert.Equal(t, 1, added[spec.Key()], spec.Key())
	}
}
