package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"routeopt/internal/opt"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Optimizations counts solves by requested algorithm, mode (sync/async) and outcome
	Optimizations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_optimizations_total", Help: "Route optimizations by algorithm, mode and outcome."},
		[]string{"algorithm", "mode", "outcome"},
	)
	OptimizationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "route_optimization_duration_seconds", Help: "Wall time of a solve.", Buckets: []float64{.005, .01, .05, .1, .5, 1, 2, 5, 10, 30}},
		[]string{"algorithm"},
	)
	OptimizationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "route_optimization_score", Help: "Optimization score (0-100) of returned routes.", Buckets: prometheus.LinearBuckets(0, 10, 11)},
	)
	// Violations counts constraint violations reported on returned routes
	Violations = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "route_constraint_violations_total", Help: "Constraint violations reported on returned routes."},
	)
	Fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "route_optimizer_fallbacks_total", Help: "Solves that fell back to nearest neighbor."},
	)

	// CachePairs is the number of memoized distance pairs
	CachePairs = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "route_distance_cache_pairs", Help: "Memoized distance pairs held by the optimizer."},
	)
	CacheClears = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "route_distance_cache_clears_total", Help: "Distance cache clears by trigger."},
		[]string{"trigger"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Optimizations)
		Registry.MustRegister(OptimizationDuration)
		Registry.MustRegister(OptimizationScore)
		Registry.MustRegister(Violations)
		Registry.MustRegister(Fallbacks)
		Registry.MustRegister(CachePairs)
		Registry.MustRegister(CacheClears)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObserveSolve records one solve. sol is nil when the solve failed.
func ObserveSolve(algo opt.Algorithm, mode string, took time.Duration, sol *opt.Solution) {
	if algo == "" {
		algo = "default"
	}
	if sol == nil {
		Optimizations.WithLabelValues(string(algo), mode, "error").Inc()
		return
	}
	Optimizations.WithLabelValues(string(algo), mode, "ok").Inc()
	OptimizationDuration.WithLabelValues(string(algo)).Observe(took.Seconds())
	OptimizationScore.Observe(sol.OptimizationScore)
	Violations.Add(float64(len(sol.Violations)))
	if sol.Fallback {
		Fallbacks.Inc()
	}
}

// ObserveCache publishes the current cache size.
func ObserveCache(s opt.CacheStats) { CachePairs.Set(float64(s.Distances)) }
