package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetops/api/handlers"
	"fleetops/core/rbac"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware, s.loggingMiddleware, s.securityHeadersMiddleware, s.schemaGate)

	h := handlers.NewSchemaHandler(s.applier, s.state, s.logger)
	gatherer := s.metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r.Get("/health", handlers.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/update_db_schema", s.withOperator(s.requirePermission(rbac.PermSchemaUpdate)(h.Update)))
	r.Get("/api/schema", s.withOperator(s.requirePermission(rbac.PermSchemaView)(h.Status)))
	return r
}
