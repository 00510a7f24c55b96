package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"fleetops/config"
	"fleetops/core/auth"
	"fleetops/core/schema"
	"fleetops/core/store"
	"fleetops/core/utils"
)

func setupSchemaHandler(t *testing.T) (*SchemaHandler, *sql.DB) {
	t.Helper()
	cfg := &config.AppConfig{DBPath: filepath.Join(t.TempDir(), "handlers.db")}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applier := schema.NewApplier(db, schema.SQLite(), schema.WithLogger(logger))
	return NewSchemaHandler(applier, schema.NewMigrationState(), logger), db
}

func TestUpdateReportsEveryCatalogColumn(t *testing.T) {
	h, _ := setupSchemaHandler(t)

	rr := httptest.NewRecorder()
	h.Update(rr, httptest.NewRequest(http.MethodGet, "/update_db_schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Schema updated successfully!") {
		t.Fatalf("missing success header: %s", body)
	}
	for _, c := range schema.Catalog() {
		if !strings.Contains(body, c.Key()+": ADDED") {
			t.Fatalf("missing line for %s in %s", c.Key(), body)
		}
	}
	if !h.state.Initialized() {
		t.Fatalf("expected state initialized after a manual run")
	}

	rr = httptest.NewRecorder()
	h.Update(rr, httptest.NewRequest(http.MethodGet, "/update_db_schema", nil))
	if !strings.Contains(rr.Body.String(), "truck.trailer: EXISTS") {
		t.Fatalf("expected EXISTS on second run: %s", rr.Body.String())
	}
}

func TestUpdateReturnsTraceOnConnectionFailure(t *testing.T) {
	h, db := setupSchemaHandler(t)
	_ = db.Close()

	rr := httptest.NewRecorder()
	h.Update(rr, httptest.NewRequest(http.MethodGet, "/update_db_schema", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Error updating schema") || !strings.Contains(body, "goroutine") {
		t.Fatalf("expected error with trace, got %s", body)
	}
	if h.state.Initialized() {
		t.Fatalf("failed run must not mark state initialized")
	}
}

func TestStatusListsMissingColumns(t *testing.T) {
	h, db := setupSchemaHandler(t)
	for _, spec := range schema.Tables() {
		if _, err := db.Exec(schema.SQLite().RenderCreateTable(spec)); err != nil {
			t.Fatalf("create %s: %v", spec.Name, err)
		}
	}

	rr := httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload schemaStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Dialect != "sqlite" || payload.Initialized {
		t.Fatalf("unexpected status %+v", payload)
	}
	if len(payload.Missing) != len(schema.Catalog()) {
		t.Fatalf("expected %d missing columns, got %d", len(schema.Catalog()), len(payload.Missing))
	}

	if _, err := h.applier.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	rr = httptest.NewRecorder()
	h.Status(rr, httptest.NewRequest(http.MethodGet, "/api/schema", nil))
	payload = schemaStatus{}
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if len(payload.Missing) != 0 {
		t.Fatalf("expected no missing columns, got %v", payload.Missing)
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestUpdateLogsRequestingOperator(t *testing.T) {
	h, _ := setupSchemaHandler(t)
	var buf bytes.Buffer
	h.logger = utils.NewLoggerWithWriter(&buf, "info")

	req := httptest.NewRequest(http.MethodGet, "/update_db_schema", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: 7, Username: "davidp", Roles: []string{"admin"}}))
	rr := httptest.NewRecorder()
	h.Update(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(buf.String(), "requested by davidp (id=7)") {
		t.Fatalf("expected operator in log, got %s", buf.String())
	}
}
