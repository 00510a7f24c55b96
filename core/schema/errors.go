package schema

import (
	"errors"
	"fmt"
)

// ConnectionError means the storage could not be reached or the handle broke
// mid-run. The run is aborted and may be retried.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("schema: %s: connection unusable: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// DuplicateColumnError is the steady-state outcome of adding a column that
// another run added first.
type DuplicateColumnError struct {
	Column string
	Err    error
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("schema: column %s already exists: %v", e.Column, e.Err)
}

func (e *DuplicateColumnError) Unwrap() error { return e.Err }

// StatementError is a DDL statement the engine rejected for any other reason.
type StatementError struct {
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("schema: statement failed: %v", e.Err)
}

func (e *StatementError) Unwrap() error { return e.Err }

// MissingStorageError is returned by the offline verifier when the database
// file does not exist, as opposed to existing with missing columns.
type MissingStorageError struct {
	Path string
}

func (e *MissingStorageError) Error() string {
	return fmt.Sprintf("schema: database file %s not found", e.Path)
}

func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

func IsMissingStorage(err error) bool {
	var me *MissingStorageError
	return errors.As(err, &me)
}

// classifyExec maps a raw driver error from executing stmt to the taxonomy.
func classifyExec(d Dialect, column, stmt string, err error) error {
	if err == nil {
		return nil
	}
	if d.IsDuplicateColumn(err) {
		return &DuplicateColumnError{Column: column, Err: err}
	}
	if d.IsConnectionFailure(err) {
		return &ConnectionError{Op: "exec", Err: err}
	}
	return &StatementError{Statement: stmt, Err: err}
}
