package healthcheck

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"gitlab.com/paragonau/api/drover-sms-platform/pkg/utils"
)

// ReadyCheck reports whether a dependency is ready to serve. The name keys
// the entry in the readiness response.
type ReadyCheck func(ctx context.Context) error

// Server exposes liveness, readiness and metrics endpoints.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *zap.Logger
	checks     map[string]ReadyCheck
}

// HealthResponse is the body of the health and readiness endpoints.
type HealthResponse struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// NewServer creates a health check server listening on the given port.
func NewServer(port string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	server := &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		},
		mux:    mux,
		logger: logger,
		checks: make(map[string]ReadyCheck),
	}

	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)

	return server
}

// AddReadyCheck registers a named dependency probe for /ready.
func (s *Server) AddReadyCheck(name string, check ReadyCheck) {
	s.checks[name] = check
}

// RegisterMetricsHandler adds the /metrics endpoint handler.
// Should only be called if metrics are enabled.
func (s *Server) RegisterMetricsHandler(handler http.Handler) {
	s.logger.Info("Registering /metrics endpoint")
	s.mux.Handle("/metrics", handler)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	utils.SafeGo(func() {
		s.logger.Info("Starting health check server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Health check server error", zap.Error(err))
		}
	}, nil)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping health check server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, HealthResponse{Status: "UP"})
}

// handleReady runs every registered probe. Any failure reports 503 with the
// failing dependencies named.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	details := map[string]string{
		"timestamp": utils.FormatISO8601(utils.Now()),
	}
	ready := true
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			ready = false
			details[name] = err.Error()
		} else {
			details[name] = "ok"
		}
	}

	resp := HealthResponse{Status: "READY", Details: details}
	status := http.StatusOK
	if !ready {
		resp.Status = "NOT_READY"
		status = http.StatusServiceUnavailable
	}
	utils.WriteJSONResponse(w, status, resp)
}
