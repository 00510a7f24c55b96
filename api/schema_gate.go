package api

import (
	"context"
	"net/http"
)

// schemaGate runs the automatic migration pass inline on every request until
// one pass completes. Requests racing past an unset flag each run the pass;
// the applier tolerates that. Errors are logged and the request is served
// anyway.
func (s *Server) schemaGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.autoMigrate() && !s.state.Initialized() {
			s.runAutoMigration(context.WithoutCancel(r.Context()))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) autoMigrate() bool {
	if s.applier == nil {
		return false
	}
	return s.cfg == nil || !s.cfg.Schema.SkipAutoMigrate
}

func (s *Server) runAutoMigration(ctx context.Context) {
	report, err := s.applier.EnsureSchema(ctx)
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("auto migration failed, will retry on next request: %v", err)
		}
		return
	}
	if report.HasFailures() && s.logger != nil {
		for _, o := range report.Failed() {
			s.logger.Errorf("auto migration: %s failed: %s", o.Column, o.Reason)
		}
	}
	s.state.MarkInitialized()
	if s.afterMigration != nil {
		s.afterMigration(ctx)
	}
}
