package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routeopt/internal/metrics"
)

// Routes returns the full HTTP handler with middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
	mux.HandleFunc("/v1/optimizations", s.OptimizationsHandler)
	mux.HandleFunc("/v1/optimizations/", s.OptimizationByIDHandler)
	mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/cache", s.AdminCacheHandler)
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)
	mux.HandleFunc("/debug/vars", s.DebugJSON)
	mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("/openapi.json", s.OpenAPIHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return recoverMiddleware(logMiddleware(s.rateLimit(mux)))
}
