// Package api serves the crawler's operational endpoints while a cycle runs.
package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // codec config

// Server wires the operational routes.
type Server struct {
	healthHandler  *HealthHandler
	statusHandler  *StatusHandler
	metricsHandler http.Handler
}

// NewServer creates a server reporting the progress of status.
func NewServer(status StatusProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statusHandler:  NewStatusHandler(status),
		metricsHandler: metricsHandler(),
	}
}

// Register attaches all routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))
	mux.Handle("/metrics", s.metricsHandler)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
