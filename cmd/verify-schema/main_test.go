package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetops/core/schema"
	"fleetops/core/store"
)

func runVerify(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 0
}

func openDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := store.OpenSQLiteFile(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestVerifyMissingFile(t *testing.T) {
	_, err := runVerify(t, "--db", filepath.Join(t.TempDir(), "absent.db"))
	require.Error(t, err)
	assert.Equal(t, exitMissingStorage, exitCode(err))
}

func TestVerifyReportsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db := openDB(t, path)
	_, err := db.Exec(`CREATE TABLE truck (id INTEGER PRIMARY KEY, plate TEXT)`)
	require.NoError(t, err)

	out, err := runVerify(t, "--db", path)
	require.Error(t, err)
	assert.Equal(t, exitMissingColumns, exitCode(err))
	assert.Contains(t, out, "truck.manual_location: MISSING")
	assert.Contains(t, out, "Table trip: not found")
}

func TestVerifyCleanAfterMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.db")
	db := openDB(t, path)
	_, err := schema.NewApplier(db, schema.SQLite()).EnsureSchema(context.Background())
	require.NoError(t, err)

	out, err := runVerify(t, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "All expected columns are present.")

	out, err = runVerify(t, "--db", path, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"missing"`)
}
