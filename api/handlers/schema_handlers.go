package handlers

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"fleetops/core/auth"
	"fleetops/core/schema"
	"fleetops/core/utils"
)

type SchemaHandler struct {
	applier *schema.Applier
	state   *schema.MigrationState
	logger  *utils.Logger
}

func NewSchemaHandler(applier *schema.Applier, state *schema.MigrationState, logger *utils.Logger) *SchemaHandler {
	return &SchemaHandler{applier: applier, state: state, logger: logger}
}

// Update re-runs the migration pass and answers with one line per catalog
// column. An aborted run answers 500 with the error and a stack trace.
func (h *SchemaHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.applier == nil {
		writeText(w, http.StatusServiceUnavailable, "schema applier not configured")
		return
	}
	if p := auth.PrincipalFrom(r.Context()); p != nil && h.logger != nil {
		h.logger.Printf("manual schema update requested by %s (id=%d)", p.Username, p.UserID)
	}
	report, err := h.applier.EnsureSchema(r.Context())
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("manual schema update failed: %v", err)
		}
		writeText(w, http.StatusInternalServerError, fmt.Sprintf("Error updating schema: %v\n\n%s", err, debug.Stack()))
		return
	}
	h.state.MarkInitialized()
	writeText(w, http.StatusOK, report.Text())
}

type schemaStatus struct {
	Dialect     string                `json:"dialect"`
	Initialized bool                  `json:"initialized"`
	Tables      []schema.TableColumns `json:"tables"`
	Missing     []schema.ColumnRef    `json:"missing"`
}

// Status reports the live columns of every catalog table without changing
// anything.
func (h *SchemaHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.applier == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "schema applier not configured"})
		return
	}
	report, err := schema.Verify(r.Context(), h.applier.Inspector(), expectedColumns(h.applier))
	if err != nil {
		if h.logger != nil {
			h.logger.Errorf("schema status: %v", err)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	missing := report.Missing
	if missing == nil {
		missing = []schema.ColumnRef{}
	}
	writeJSON(w, http.StatusOK, schemaStatus{
		Dialect:     h.applier.Dialect().Name(),
		Initialized: h.state.Initialized(),
		Tables:      report.Tables,
		Missing:     missing,
	})
}

// expectedColumns lists every baseline and catalog column, grouped by table
// in creation order.
func expectedColumns(a *schema.Applier) []schema.ColumnRef {
	var refs []schema.ColumnRef
	added := make(map[schema.TableName][]schema.ColumnSpec)
	for _, c := range a.Catalog() {
		added[c.Table] = append(added[c.Table], c)
	}
	seen := make(map[schema.TableName]bool)
	for _, t := range a.TableSpecs() {
		seen[t.Name] = true
		for _, c := range t.Columns {
			refs = append(refs, schema.ColumnRef{Table: t.Name, Column: c.Name})
		}
		for _, c := range added[t.Name] {
			refs = append(refs, schema.ColumnRef{Table: c.Table, Column: c.Name})
		}
	}
	for _, c := range a.Catalog() {
		if !seen[c.Table] {
			refs = append(refs, schema.ColumnRef{Table: c.Table, Column: c.Name})
		}
	}
	return refs
}
