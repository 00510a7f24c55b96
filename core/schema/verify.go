package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// uriPathEscaper escapes the characters SQLite's URI parser would read as
// the start of a query, a fragment or an escape sequence.
var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// SQLiteDSN builds a modernc DSN for a database file. Writable handles take
// the write lock when a transaction begins, so concurrent runs queue on the
// busy timeout instead of failing a lock upgrade.
func SQLiteDSN(path string, readOnly bool) string {
	params := []string{}
	if readOnly {
		params = append(params, "mode=ro")
	}
	params = append(params, "_pragma=busy_timeout(5000)")
	if !readOnly {
		params = append(params, "_pragma=foreign_keys(ON)", "_txlock=immediate")
	}
	return "file:" + uriPathEscaper.Replace(path) + "?" + strings.Join(params, "&")
}

type TableColumns struct {
	Table   TableName `json:"table"`
	Exists  bool      `json:"exists"`
	Columns []string  `json:"columns"`
}

type VerifyReport struct {
	Path    string         `json:"path,omitempty"`
	Tables  []TableColumns `json:"tables"`
	Present []ColumnRef    `json:"present"`
	Missing []ColumnRef    `json:"missing"`
}

func (r *VerifyReport) OK() bool {
	return r != nil && len(r.Missing) == 0
}

// Verify reports which of the expected columns exist. Tables are inspected in
// the order they first appear in expected; a missing table makes all of its
// expected columns missing.
func Verify(ctx context.Context, ins *Inspector, expected []ColumnRef) (*VerifyReport, error) {
	tables, err := ins.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{}
	seen := make(map[TableName]int)
	for _, ref := range expected {
		idx, ok := seen[ref.Table]
		if !ok {
			tc := TableColumns{Table: ref.Table}
			if _, exists := tables[ref.Table]; exists {
				snap, err := ins.Snapshot(ctx, ref.Table)
				if err != nil {
					return nil, err
				}
				tc.Exists = true
				tc.Columns = snap.Names()
			}
			report.Tables = append(report.Tables, tc)
			idx = len(report.Tables) - 1
			seen[ref.Table] = idx
		}
		if hasColumn(report.Tables[idx], ref.Column) {
			report.Present = append(report.Present, ref)
		} else {
			report.Missing = append(report.Missing, ref)
		}
	}
	return report, nil
}

// VerifyFile opens the SQLite file at path read-only and runs Verify. It
// returns *MissingStorageError when the file does not exist, so the caller
// can tell "no database" apart from "database lacks columns".
func VerifyFile(ctx context.Context, path string, expected []ColumnRef) (*VerifyReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingStorageError{Path: path}
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	db, err := sql.Open("sqlite", SQLiteDSN(path, true))
	if err != nil {
		return nil, &ConnectionError{Op: "open " + path, Err: err}
	}
	defer db.Close()

	report, err := Verify(ctx, NewInspector(db, SQLite()), expected)
	if err != nil {
		return nil, err
	}
	report.Path = path
	return report, nil
}

func hasColumn(tc TableColumns, column string) bool {
	for _, c := range tc.Columns {
		if c == column {
			return true
		}
	}
	return false
}

func (r *VerifyReport) Text() string {
	var b strings.Builder
	if r.Path != "" {
		fmt.Fprintf(&b, "Database: %s\n", r.Path)
	}
	for _, tc := range r.Tables {
		if !tc.Exists {
			fmt.Fprintf(&b, "\nTable %s: not found\n", tc.Table)
			continue
		}
		fmt.Fprintf(&b, "\nTable %s columns: %s\n", tc.Table, strings.Join(tc.Columns, ", "))
	}
	b.WriteString("\n")
	for _, ref := range r.Present {
		fmt.Fprintf(&b, "%s: present\n", ref)
	}
	for _, ref := range r.Missing {
		fmt.Fprintf(&b, "%s: MISSING\n", ref)
	}
	if r.OK() {
		b.WriteString("\nAll expected columns are present.\n")
	} else {
		fmt.Fprintf(&b, "\n%d expected column(s) missing.\n", len(r.Missing))
	}
	return b.String()
}
