package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fleetops/core/schema"
)

const (
	defaultDBPath      = "database.db"
	exitMissingStorage = 1
	exitMissingColumns = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "verify-schema: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	var (
		dbPath string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:           "verify-schema",
		Short:         "Check a SQLite database file for the late-added columns without modifying it",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := schema.VerifyFile(cmd.Context(), dbPath, schema.DefaultVerifySubset())
			if err != nil {
				if schema.IsMissingStorage(err) {
					return &exitError{code: exitMissingStorage, err: err}
				}
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				fmt.Fprint(out, report.Text())
			}
			if !report.OK() {
				return &exitError{code: exitMissingColumns, err: fmt.Errorf("%d expected column(s) missing", len(report.Missing))}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "SQLite database file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
