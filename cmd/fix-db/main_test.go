package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFixDB(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFixDBMigratesThenReportsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.db")

	out, err := runFixDB(t, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Using database: "+path)
	assert.Contains(t, out, "truck.manual_location: ADDED (sqlite)")
	assert.Contains(t, out, "failed=0")

	out, err = runFixDB(t, "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "truck.manual_location: EXISTS (sqlite)")
	assert.Contains(t, out, "added=0")
}

func TestFixDBRejectsPositionalArgs(t *testing.T) {
	_, err := runFixDB(t, "database.db")
	require.Error(t, err)
}

func TestFixDBPrintsErrorDetailWhenRunAborts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-db.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("garbage!"), 512), 0o644))

	var stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--db", path})
	require.Error(t, cmd.Execute())

	assert.Contains(t, stderr.String(), "Error updating schema:")
	assert.Contains(t, stderr.String(), "caused by")
	assert.Contains(t, stderr.String(), "goroutine")
}

func TestColumnsFailedErrorSurvivesWrapping(t *testing.T) {
	var failed *columnsFailedError
	err := fmt.Errorf("wrapped: %w", &columnsFailedError{count: 2})
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "2 column(s) could not be added", failed.Error())
}
