package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"fleetops/core/schema"
	"fleetops/core/store"
	"fleetops/core/utils"
)

const defaultDBPath = "database.db"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fix-db: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dbPath  string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:           "fix-db",
		Short:         "Create missing tables and add missing columns to a SQLite database file",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := utils.NewLoggerWithWriter(cmd.ErrOrStderr(), level)
			err := fixDB(cmd.Context(), cmd, dbPath, logger)
			var failed *columnsFailedError
			if err != nil && !errors.As(err, &failed) {
				writeErrorDetail(cmd.ErrOrStderr(), err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "SQLite database file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every statement outcome")
	return cmd
}

func fixDB(ctx context.Context, cmd *cobra.Command, path string, logger *utils.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Using database: %s\n", path)

	db, err := store.OpenSQLiteFile(path, false)
	if err != nil {
		return err
	}
	defer db.Close()

	applier := schema.NewApplier(db, schema.SQLite(), schema.WithLogger(logger))
	before, err := applier.Inspector().ListTables(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Tables before check: %d\n", len(before))
	fmt.Fprintln(out, "Creating missing tables and checking columns...")

	report, err := applier.EnsureSchema(ctx)
	if err != nil {
		return fmt.Errorf("schema update aborted: %w", err)
	}
	for _, line := range report.Lines() {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Done: added=%d exists=%d failed=%d\n",
		report.Count(schema.ActionAdded), report.Count(schema.ActionAlreadyPresent), report.Count(schema.ActionFailed))
	if report.HasFailures() {
		return &columnsFailedError{count: report.Count(schema.ActionFailed)}
	}
	return nil
}

// columnsFailedError means the run completed and the report already lists
// the failed columns.
type columnsFailedError struct {
	count int
}

func (e *columnsFailedError) Error() string {
	return fmt.Sprintf("%d column(s) could not be added", e.count)
}

// writeErrorDetail prints every layer of the error chain followed by a stack
// trace.
func writeErrorDetail(w io.Writer, err error) {
	fmt.Fprintf(w, "Error updating schema: %v\n", err)
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		fmt.Fprintf(w, "  caused by (%T): %v\n", cause, cause)
	}
	fmt.Fprintf(w, "\n%s\n", debug.Stack())
}
