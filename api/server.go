package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"fleetops/config"
	"fleetops/core/auth"
	"fleetops/core/rbac"
	"fleetops/core/schema"
	"fleetops/core/store"
	"fleetops/core/utils"
)

type ServerDeps struct {
	Applier *schema.Applier
	State   *schema.MigrationState
	Users   store.UsersStore
	Policy  *rbac.Policy
	Authn   *auth.Authenticator
	Metrics prometheus.Gatherer
	// AfterMigration runs once the automatic pass has completed, before the
	// request that triggered it is served.
	AfterMigration func(ctx context.Context)
}

type Server struct {
	cfg            *config.AppConfig
	logger         *utils.Logger
	router         chi.Router
	httpServer     *http.Server
	applier        *schema.Applier
	state          *schema.MigrationState
	users          store.UsersStore
	policy         *rbac.Policy
	authn          *auth.Authenticator
	metrics        prometheus.Gatherer
	afterMigration func(ctx context.Context)
	operatorLimit  *requestLimiter
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	state := deps.State
	if state == nil {
		state = schema.NewMigrationState()
	}
	policy := deps.Policy
	if policy == nil {
		policy = rbac.NewPolicy(rbac.DefaultRoles())
	}
	authn := deps.Authn
	if authn == nil && deps.Users != nil {
		authn = auth.NewAuthenticator(deps.Users, logger)
	}
	s := &Server{
		cfg:            cfg,
		logger:         logger,
		applier:        deps.Applier,
		state:          state,
		users:          deps.Users,
		policy:         policy,
		authn:          authn,
		metrics:        deps.Metrics,
		afterMigration: deps.AfterMigration,
		operatorLimit:  newLimiter(operatorAttempts, time.Minute),
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) State() *schema.MigrationState { return s.state }

func (s *Server) ListenAndServe() error {
	if s.logger != nil {
		s.logger.Printf("listening on %s", s.httpServer.Addr)
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
