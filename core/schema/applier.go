package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"fleetops/core/utils"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Applier brings the connected database up to the shape described by its
// tables and catalog.
type Applier struct {
	db        *sql.DB
	dialect   Dialect
	inspector *Inspector
	tables    []TableSpec
	catalog   []ColumnSpec
	logger    *utils.Logger
	metrics   *Metrics
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Applier)

func WithLogger(logger *utils.Logger) Option {
	return func(a *Applier) { a.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(a *Applier) { a.metrics = m }
}

// WithCatalog replaces the built-in tables and catalog, mostly for tests.
func WithCatalog(tables []TableSpec, catalog []ColumnSpec) Option {
	return func(a *Applier) {
		a.tables = tables
		a.catalog = catalog
	}
}

// WithStatementTimeout bounds every single statement the applier issues.
func WithStatementTimeout(d time.Duration) Option {
	return func(a *Applier) { a.timeout = d }
}

func NewApplier(db *sql.DB, dialect Dialect, opts ...Option) *Applier {
	a := &Applier{
		db:      db,
		dialect: dialect,
		tables:  Tables(),
		catalog: Catalog(),
		now:     utils.NowUTC,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.inspector = NewInspector(db, dialect)
	return a
}

func (a *Applier) Dialect() Dialect       { return a.dialect }
func (a *Applier) Inspector() *Inspector  { return a.inspector }
func (a *Applier) Catalog() []ColumnSpec  { return append([]ColumnSpec(nil), a.catalog...) }
func (a *Applier) TableSpecs() []TableSpec { return append([]TableSpec(nil), a.tables...) }

// PlannedColumn is one catalog entry after inspection: either already
// decided (present, or its table is unusable) or waiting on Statement.
type PlannedColumn struct {
	Spec      ColumnSpec
	Statement string
	Decided   *Outcome
}

type Plan struct {
	RunID     string
	Dialect   string
	StartedAt time.Time
	Columns   []PlannedColumn
}

func (p *Plan) Pending() int {
	n := 0
	for _, c := range p.Columns {
		if c.Decided == nil {
			n++
		}
	}
	return n
}

// EnsureSchema creates missing tables, adds missing catalog columns and
// returns one outcome per catalog entry. A *ConnectionError aborts the run;
// per-column failures are reported in the outcomes instead.
func (a *Applier) EnsureSchema(ctx context.Context) (*Report, error) {
	plan, err := a.Plan(ctx)
	if err != nil {
		a.metrics.observeError()
		return nil, err
	}
	return a.Apply(ctx, plan)
}

// Plan creates missing baseline tables, then snapshots the live columns and
// decides what each catalog entry needs. Table creation is committed
// immediately and never touches an existing table.
func (a *Applier) Plan(ctx context.Context) (*Plan, error) {
	plan := &Plan{
		RunID:     uuid.Must(uuid.NewV4()).String(),
		Dialect:   a.dialect.Name(),
		StartedAt: a.now(),
	}
	log := a.logger.With("run_id", plan.RunID, "dialect", plan.Dialect)

	before, err := a.inspector.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("tables before check: %s", joinTables(before))

	createErrs := make(map[TableName]error)
	for _, t := range a.tables {
		stmt := a.dialect.RenderCreateTable(t)
		if err := a.exec(ctx, a.db, stmt); err != nil {
			classified := classifyExec(a.dialect, string(t.Name), stmt, err)
			if IsConnectionError(classified) {
				return nil, classified
			}
			createErrs[t.Name] = classified
		}
	}

	tables, err := a.inspector.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	// Concurrent CREATE TABLE IF NOT EXISTS on PostgreSQL can lose a race on
	// the catalog and fail even though the table now exists.
	for name, createErr := range createErrs {
		if _, ok := tables[name]; ok {
			log.Printf("create table %s failed but the table exists: %v", name, errors.Unwrap(createErr))
			delete(createErrs, name)
			continue
		}
		log.Errorf("create table %s failed: %v", name, errors.Unwrap(createErr))
	}

	snapshots := make(map[TableName]TableSnapshot)
	for _, spec := range a.catalog {
		pc := PlannedColumn{Spec: spec}
		if createErr, failed := createErrs[spec.Table]; failed {
			o := newOutcome(spec, ActionFailed, fmt.Sprintf("create table %s: %v", spec.Table, errors.Unwrap(createErr)))
			pc.Decided = &o
			plan.Columns = append(plan.Columns, pc)
			continue
		}
		if _, ok := tables[spec.Table]; !ok {
			o := newOutcome(spec, ActionFailed, fmt.Sprintf("table %s does not exist", spec.Table))
			pc.Decided = &o
			plan.Columns = append(plan.Columns, pc)
			continue
		}
		snap, ok := snapshots[spec.Table]
		if !ok {
			snap, err = a.inspector.Snapshot(ctx, spec.Table)
			if err != nil {
				return nil, err
			}
			snapshots[spec.Table] = snap
		}
		if snap.Has(spec.Name) {
			o := newOutcome(spec, ActionAlreadyPresent, "")
			pc.Decided = &o
		} else {
			pc.Statement = a.dialect.RenderAddColumn(spec)
		}
		plan.Columns = append(plan.Columns, pc)
	}
	return plan, nil
}

// Apply runs the pending statements of plan inside one transaction. Each
// statement gets its own savepoint so a rejected column is rolled back alone
// and its siblings still commit. A duplicate-column error means a concurrent
// run got there first and is recorded as already present.
func (a *Applier) Apply(ctx context.Context, plan *Plan) (*Report, error) {
	log := a.logger.With("run_id", plan.RunID, "dialect", plan.Dialect)
	outcomes := make([]Outcome, len(plan.Columns))
	for i, pc := range plan.Columns {
		if pc.Decided != nil {
			outcomes[i] = *pc.Decided
		}
	}

	if plan.Pending() > 0 {
		if err := a.applyPending(ctx, plan, outcomes); err != nil {
			a.metrics.observeError()
			log.Errorf("schema run aborted: %v", err)
			return nil, err
		}
	}

	report := &Report{
		RunID:     plan.RunID,
		Dialect:   plan.Dialect,
		StartedAt: plan.StartedAt,
		Duration:  a.now().Sub(plan.StartedAt),
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		if o.Action == ActionFailed {
			log.Errorf("%s: %s %s", o.Column, o.Action, o.Reason)
			continue
		}
		log.Debugf("%s: %s", o.Column, o.Action)
	}
	log.Printf("schema run finished added=%d exists=%d failed=%d dur=%s",
		report.Count(ActionAdded), report.Count(ActionAlreadyPresent), report.Count(ActionFailed), report.Duration)
	a.metrics.observe(report)
	return report, nil
}

func (a *Applier) applyPending(ctx context.Context, plan *Plan, outcomes []Outcome) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return &ConnectionError{Op: "begin", Err: err}
	}
	abort := func(op string, err error) error {
		_ = tx.Rollback()
		if IsConnectionError(err) {
			return err
		}
		return &ConnectionError{Op: op, Err: err}
	}

	txIns := &Inspector{db: tx, dialect: a.dialect}
	added := make([]int, 0, len(plan.Columns))
	n := 0
	for i, pc := range plan.Columns {
		if pc.Decided != nil {
			continue
		}
		n++
		sp := fmt.Sprintf("add_column_%d", n)
		if err := a.exec(ctx, tx, "SAVEPOINT "+sp); err != nil {
			return abort("savepoint", err)
		}
		action, reason, err := a.addColumn(ctx, tx, txIns, pc)
		if err != nil {
			return abort("exec", err)
		}
		if action == ActionAdded {
			if err := a.exec(ctx, tx, "RELEASE SAVEPOINT "+sp); err != nil {
				return abort("release savepoint", err)
			}
			added = append(added, i)
			continue
		}
		if err := a.exec(ctx, tx, "ROLLBACK TO SAVEPOINT "+sp); err != nil {
			return abort("rollback to savepoint", err)
		}
		if err := a.exec(ctx, tx, "RELEASE SAVEPOINT "+sp); err != nil {
			return abort("release savepoint", err)
		}
		outcomes[i] = newOutcome(pc.Spec, action, reason)
	}
	if err := tx.Commit(); err != nil {
		return &ConnectionError{Op: "commit", Err: err}
	}
	for _, i := range added {
		outcomes[i] = newOutcome(plan.Columns[i].Spec, ActionAdded, "")
	}
	return nil
}

// addColumn runs one pending statement inside the current savepoint. The
// column is looked up again inside the transaction first, after locking the
// table where the dialect supports it, because another process may have
// added it since the plan was made and ADD COLUMN IF NOT EXISTS would hide
// that. Only connection failures are returned as errors.
func (a *Applier) addColumn(ctx context.Context, tx *sql.Tx, ins *Inspector, pc PlannedColumn) (Action, string, error) {
	if l, ok := a.dialect.(tableLocker); ok {
		stmt := l.LockTableStatement(pc.Spec.Table)
		if err := a.exec(ctx, tx, stmt); err != nil {
			classified := classifyExec(a.dialect, pc.Spec.Key(), stmt, err)
			if IsConnectionError(classified) {
				return 0, "", classified
			}
			return ActionFailed, err.Error(), nil
		}
	}
	cols, err := ins.ListColumns(ctx, pc.Spec.Table)
	if err != nil {
		return 0, "", err
	}
	if _, ok := cols[pc.Spec.Name]; ok {
		return ActionAlreadyPresent, "", nil
	}

	execErr := a.exec(ctx, tx, pc.Statement)
	classified := classifyExec(a.dialect, pc.Spec.Key(), pc.Statement, execErr)
	if classified == nil {
		return ActionAdded, "", nil
	}
	if IsConnectionError(classified) {
		return 0, "", classified
	}
	var dup *DuplicateColumnError
	if errors.As(classified, &dup) {
		return ActionAlreadyPresent, "", nil
	}
	return ActionFailed, execErr.Error(), nil
}

func (a *Applier) exec(ctx context.Context, db execer, stmt string) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	_, err := db.ExecContext(ctx, stmt)
	return err
}

func joinTables(set map[TableName]struct{}) string {
	if len(set) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(set))
	for t := range set {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
