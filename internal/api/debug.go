package api

import (
	"net/http"
	"time"

	"routeopt/internal/buildinfo"
)

// DebugJSON reports build info and a redacted configuration snapshot.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"environment":        cfg.Environment,
			"port":               cfg.Port,
			"rateRps":            cfg.Rate.RPS,
			"rateBurst":          cfg.Rate.Burst,
			"routingUrl":         cfg.Routing.URL,
			"cacheClearSchedule": cfg.Cache.ClearSchedule,
			"cacheMaxPairs":      cfg.Cache.MaxPairs,
			"workerConcurrency":  cfg.Worker.Concurrency,
			"hasDatabaseUrl":     cfg.DatabaseURL != "",
			"hasRedisUrl":        cfg.RedisURL != "",
		},
		"cache": s.Solver.CacheStats(),
		"async": s.Tasks != nil,
	})
}
