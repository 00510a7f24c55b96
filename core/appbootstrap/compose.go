package appbootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"fleetops/api"
	"fleetops/config"
	"fleetops/core/auth"
	"fleetops/core/rbac"
	"fleetops/core/schema"
	"fleetops/core/store"
	"fleetops/core/utils"
)

const shutdownTimeout = 15 * time.Second

type runtimeComposition struct {
	server  *api.Server
	applier *schema.Applier
	state   *schema.MigrationState
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	dialect, err := schema.DetectDialect(db)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	users := store.NewUsersStore(db, dialect)
	state := schema.NewMigrationState()
	applier := schema.NewApplier(db, dialect,
		schema.WithLogger(logger),
		schema.WithMetrics(schema.NewMetrics(reg)),
		schema.WithStatementTimeout(cfg.Schema.StatementTimeout),
	)
	warnOperatorAccess(cfg, logger)
	seedAdmin := func(ctx context.Context) {
		if _, err := auth.EnsureAdmin(ctx, users, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword, logger); err != nil {
			logger.Errorf("bootstrap admin: %v", err)
		}
		if cfg.Security.DisableOperatorAuth {
			return
		}
		n, err := users.Count(ctx)
		if err != nil {
			logger.Errorf("count operator accounts: %v", err)
			return
		}
		if n == 0 {
			logger.Warnf("no operator account exists: /update_db_schema answers 401 until bootstrap.admin_password is set or a user row is created")
		}
	}

	server := api.NewServer(cfg, api.ServerDeps{
		Applier:        applier,
		State:          state,
		Users:          users,
		Policy:         rbac.NewPolicy(rbac.DefaultRoles()),
		Authn:          auth.NewAuthenticator(users, logger),
		Metrics:        reg,
		AfterMigration: seedAdmin,
	}, logger)

	return &runtimeComposition{server: server, applier: applier, state: state}, nil
}

// warnOperatorAccess flags configurations where the operator routes are
// either open to anyone or reachable by no one.
func warnOperatorAccess(cfg *config.AppConfig, logger *utils.Logger) {
	if cfg.Security.DisableOperatorAuth {
		if !cfg.IsDevelopment() {
			logger.Warnf("operator auth is disabled outside development (app_env=%q): schema routes are open to anyone", cfg.AppEnv)
		}
		return
	}
	if strings.TrimSpace(cfg.Bootstrap.AdminPassword) == "" {
		logger.Warnf("bootstrap.admin_password is empty: no admin will be seeded and operator routes need an existing account")
	}
}

// Run opens the database, serves HTTP until ctx is cancelled and then shuts
// the server down gracefully.
func Run(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	rt, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- rt.server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
