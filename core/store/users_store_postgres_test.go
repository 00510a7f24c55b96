package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"fleetops/core/schema"
)

func TestUsersStorePostgres(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("FLEETOPS_TEST_POSTGRES_URL"))
	if url == "" {
		t.Skip("FLEETOPS_TEST_POSTGRES_URL not set")
	}
	admin, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer admin.Close()
	name := "fleetops_users_" + strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
	if _, err := admin.Exec(`CREATE SCHEMA "` + name + `"`); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	defer func() { _, _ = admin.Exec(`DROP SCHEMA "` + name + `" CASCADE`) }()

	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.RuntimeParams["search_path"] = name
	db := stdlib.OpenDB(*cfg)
	defer db.Close()

	ctx := context.Background()
	if _, err := schema.NewApplier(db, schema.Postgres()).EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	users := NewUsersStore(db, schema.Postgres())
	id, err := users.Create(ctx, &User{Username: "davidp", PasswordHash: "x", IsAdmin: true})
	if err != nil || id <= 0 {
		t.Fatalf("create: id=%d err=%v", id, err)
	}
	u, err := users.FindByUsername(ctx, "davidp")
	if err != nil || u == nil || u.ID != id || !u.IsAdmin {
		t.Fatalf("find: %+v %v", u, err)
	}
	if n, err := users.Count(ctx); err != nil || n != 1 {
		t.Fatalf("count: %d %v", n, err)
	}
}
