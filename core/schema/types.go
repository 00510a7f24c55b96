// Package schema keeps a live database in the shape the application expects.
//
// The catalog lists every table with its baseline columns and every column
// added since. The applier creates missing tables, inspects what is actually
// there and adds whatever is absent. It never drops, renames or retypes
// anything, so running it again is always safe.
package schema

import (
	"fmt"
	"sort"
)

type TableName string

type TypeKind int

const (
	KindVarChar TypeKind = iota
	KindText
	KindBoolean
	KindInteger
)

type SQLType struct {
	Kind TypeKind
	Size int
}

func VarChar(n int) SQLType { return SQLType{Kind: KindVarChar, Size: n} }

var (
	Text    = SQLType{Kind: KindText}
	Boolean = SQLType{Kind: KindBoolean}
	Integer = SQLType{Kind: KindInteger}
)

func (t SQLType) String() string {
	switch t.Kind {
	case KindVarChar:
		return fmt.Sprintf("VARCHAR(%d)", t.Size)
	case KindText:
		return "TEXT"
	case KindBoolean:
		return "BOOLEAN"
	case KindInteger:
		return "INTEGER"
	}
	return "TEXT"
}

// ColumnSpec is one catalog entry: a column added to a table after the
// table was introduced. Default holds a SQL literal ('' quoted strings,
// numbers) or a boolean word that the dialect renders.
type ColumnSpec struct {
	Table   TableName
	Name    string
	Type    SQLType
	Default *string
}

func (c ColumnSpec) Key() string {
	return string(c.Table) + "." + c.Name
}

// ColumnDef describes a baseline column inside a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	Type       SQLType
	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Default    *string
	References *ForeignKey
}

type ForeignKey struct {
	Table  TableName
	Column string
}

// TableSpec is the baseline shape of a table as it was first created.
type TableSpec struct {
	Name    TableName
	Columns []ColumnDef
	Uniques [][]string
}

type TableSnapshot struct {
	Table   TableName
	Columns map[string]struct{}
}

func (s TableSnapshot) Has(column string) bool {
	_, ok := s.Columns[column]
	return ok
}

func (s TableSnapshot) Names() []string {
	out := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type Action int

const (
	ActionAdded Action = iota
	ActionAlreadyPresent
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionAdded:
		return "ADDED"
	case ActionAlreadyPresent:
		return "EXISTS"
	case ActionFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

type Outcome struct {
	Spec   ColumnSpec `json:"-"`
	Column string     `json:"column"`
	Action Action     `json:"action"`
	Reason string     `json:"reason,omitempty"`
}

func newOutcome(spec ColumnSpec, action Action, reason string) Outcome {
	return Outcome{Spec: spec, Column: spec.Key(), Action: action, Reason: reason}
}

func lit(v string) *string { return &v }
