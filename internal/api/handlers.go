package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"routeopt/internal/metrics"
	"routeopt/internal/model"
	"routeopt/internal/opt"
	"routeopt/internal/store"
	"routeopt/internal/worker"
)

type optimizationResponse struct {
	ID       string        `json:"id"`
	Status   model.Status  `json:"status"`
	Solution *opt.Solution `json:"solution,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func responseFor(o model.Optimization) optimizationResponse {
	return optimizationResponse{ID: o.ID, Status: o.Status, Solution: o.Solution, Error: o.Error}
}

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if msgs := s.validateOptimizeRequest(&req); len(msgs) > 0 {
		writeProblemDetails(w, Problem{
			Title:    "Invalid optimize request",
			Status:   http.StatusUnprocessableEntity,
			Detail:   msgs[0],
			Instance: r.URL.Path,
			Errors:   msgs,
		})
		return
	}
	if req.Async {
		s.enqueueOptimization(w, r, req)
		return
	}

	o, err := s.Store.CreateOptimization(r.Context(), req, model.StatusRunning)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create optimization failed", err.Error(), r.URL.Path)
		return
	}
	o, err = s.Runner.Run(r.Context(), o, "sync")
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Optimization failed", err.Error(), r.URL.Path)
		return
	}
	if o.Status == model.StatusFailed {
		status := http.StatusInternalServerError
		if errors.Is(r.Context().Err(), context.Canceled) {
			status = http.StatusRequestTimeout
		}
		writeProblem(w, status, "Optimization failed", o.Error, "/v1/optimizations/"+o.ID)
		return
	}
	writeJSON(w, http.StatusOK, responseFor(o))
}

func (s *Server) enqueueOptimization(w http.ResponseWriter, r *http.Request, req model.OptimizeRequest) {
	if s.Tasks == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Async unavailable", "asynchronous optimization requires a task queue", r.URL.Path)
		return
	}
	o, err := s.Store.CreateOptimization(r.Context(), req, model.StatusPending)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create optimization failed", err.Error(), r.URL.Path)
		return
	}
	err = s.Tasks.DistributeTaskOptimizeRoute(r.Context(), &worker.PayloadOptimizeRoute{OptimizationID: o.ID})
	if err != nil {
		log.Error().Err(err).Str("optimization_id", o.ID).Msg("enqueue optimization failed")
		_, _ = s.Store.UpdateOptimization(r.Context(), o.ID, model.StatusFailed, nil, "enqueue failed: "+err.Error())
		metrics.ObserveSolve(req.Options.Algorithm, "async", 0, nil)
		writeProblem(w, http.StatusServiceUnavailable, "Enqueue failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Location", "/v1/optimizations/"+o.ID)
	writeJSON(w, http.StatusAccepted, responseFor(o))
}

// OptimizationsHandler handles GET /v1/optimizations
func (s *Server) OptimizationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be a non-negative integer", r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListOptimizations(r.Context(), model.Status(q.Get("status")), q.Get("cursor"), limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List optimizations failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// OptimizationByIDHandler handles GET /v1/optimizations/{id} and
// GET /v1/optimizations/{id}/events
func (s *Server) OptimizationByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/optimizations/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch sub {
	case "":
		o, err := s.Store.GetOptimization(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Not Found", "optimization not found", path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Get optimization failed", err.Error(), path)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case "events":
		s.EventsHandler(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

// OptimizerConfigHandler returns the defaults applied to omitted options.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults": s.Solver.Defaults(),
		"algorithms": []opt.Algorithm{
			opt.Hybrid, opt.NearestNeighbor, opt.Genetic, opt.SimulatedAnnealing,
		},
		"maxLocations":  s.maxLocations,
		"speedKph":      s.Config.Optimizer.SpeedKph,
		"routingSource": routingSource(s.Config.Routing.URL),
	})
}

func routingSource(url string) string {
	if url == "" {
		return "haversine"
	}
	return "osrm"
}

// AdminCacheHandler handles GET and DELETE /v1/admin/cache
func (s *Server) AdminCacheHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stats := s.Solver.CacheStats()
		metrics.ObserveCache(stats)
		writeJSON(w, http.StatusOK, stats)
	case http.MethodDelete:
		s.Solver.ClearCache()
		metrics.CacheClears.WithLabelValues("api").Inc()
		metrics.ObserveCache(s.Solver.CacheStats())
		resp := map[string]any{"cleared": true}
		if s.Shared != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
			defer cancel()
			n, err := s.Shared.Clear(ctx)
			if err != nil {
				writeProblem(w, http.StatusBadGateway, "Shared cache clear failed", err.Error(), r.URL.Path)
				return
			}
			resp["sharedKeys"] = n
		}
		log.Info().Msg("distance cache cleared via admin API")
		writeJSON(w, http.StatusOK, resp)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports whether the store and broker are reachable.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "store: "+err.Error(), r.URL.Path)
		return
	}
	if err := s.Broker.Ping(); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", "broker: "+err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
