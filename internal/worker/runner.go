package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"routeopt/internal/metrics"
	"routeopt/internal/model"
	"routeopt/internal/opt"
	"routeopt/internal/store"
)

// Publisher announces terminal optimization events.
type Publisher interface {
	Publish(id string, evt model.Event)
}

// Runner solves stored optimizations and records the outcome. The HTTP
// handler uses it for synchronous requests and the task processor for queued
// ones.
type Runner struct {
	store  store.Store
	solver *opt.Solver
	events Publisher
}

func NewRunner(st store.Store, solver *opt.Solver, events Publisher) *Runner {
	return &Runner{store: st, solver: solver, events: events}
}

// Run solves o and stores the solution, or the failure. Solver errors are
// recorded on the optimization; only store errors are returned.
func (r *Runner) Run(ctx context.Context, o model.Optimization, mode string) (model.Optimization, error) {
	if o.Status != model.StatusRunning {
		if _, err := r.store.UpdateOptimization(ctx, o.ID, model.StatusRunning, nil, ""); err != nil {
			return o, fmt.Errorf("mark running: %w", err)
		}
	}
	req := o.Request
	started := time.Now()
	sol, err := r.solver.Solve(ctx, req.Locations, req.Constraints, req.Options)
	took := time.Since(started)
	metrics.ObserveSolve(req.Options.Algorithm, mode, took, sol)
	metrics.ObserveCache(r.solver.CacheStats())

	status, msg := model.StatusCompleted, ""
	if err != nil {
		status, msg = model.StatusFailed, err.Error()
		log.Warn().Err(err).Str("optimization_id", o.ID).Str("mode", mode).Msg("optimization failed")
	} else {
		log.Info().
			Str("optimization_id", o.ID).
			Str("mode", mode).
			Str("algorithm", sol.Algorithm).
			Int("stops", len(sol.Route)).
			Float64("score", sol.OptimizationScore).
			Dur("took", took).
			Msg("optimization completed")
	}

	updated, uerr := r.store.UpdateOptimization(ctx, o.ID, status, sol, msg)
	if uerr != nil {
		return o, fmt.Errorf("store result: %w", uerr)
	}
	if r.events != nil {
		r.events.Publish(o.ID, model.EventFor(updated))
	}
	return updated, nil
}
