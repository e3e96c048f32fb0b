package opt

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultTimeLimit = 30.0 // seconds

	// Above this many locations Solve still runs but logs a warning.
	largeInstance = 50

	// Hybrid only runs the genetic optimizer on small inputs and caps
	// annealing on large ones.
	hybridGeneticMax     = 8
	hybridUncappedMax    = 10
	hybridAnnealingLimit = 1000
)

// Solver orchestrates the optimizers over a shared Oracle. It is safe for
// concurrent use.
type Solver struct {
	oracle     *Oracle
	eval       *Evaluator
	optimizers map[Algorithm]optimizer
	defaults   Options
	now        func() time.Time
}

type SolverOption func(*Solver)

// WithOracle shares an existing oracle (and its cache) with the Solver.
func WithOracle(o *Oracle) SolverOption { return func(s *Solver) { s.oracle = o } }

// WithDefaults sets the options applied to zero fields of every Solve call.
func WithDefaults(o Options) SolverOption { return func(s *Solver) { s.defaults = o } }

func WithClock(now func() time.Time) SolverOption { return func(s *Solver) { s.now = now } }

func withOptimizer(o optimizer) SolverOption {
	return func(s *Solver) { s.optimizers[o.Name()] = o }
}

func NewSolver(opts ...SolverOption) *Solver {
	s := &Solver{
		optimizers: map[Algorithm]optimizer{},
		defaults:   Options{Algorithm: Hybrid, TimeLimit: defaultTimeLimit},
		now:        time.Now,
	}
	for _, o := range []optimizer{nearestNeighbor{}, genetic{}, annealing{}} {
		s.optimizers[o.Name()] = o
	}
	for _, fn := range opts {
		fn(s)
	}
	if s.oracle == nil {
		s.oracle = NewOracle()
	}
	s.eval = NewEvaluator(s.oracle)
	return s
}

func (s *Solver) Oracle() *Oracle { return s.oracle }

func (s *Solver) ClearCache() { s.oracle.ClearCache() }

func (s *Solver) CacheStats() CacheStats { return s.oracle.CacheStats() }

// Defaults returns the options used for fields a caller leaves zero.
func (s *Solver) Defaults() Options { return s.defaults }

// Known reports whether a is an algorithm Solve accepts.
func Known(a Algorithm) bool {
	switch a {
	case NearestNeighbor, Genetic, SimulatedAnnealing, Hybrid:
		return true
	}
	return false
}

func (s *Solver) resolve(o Options) Options {
	d := s.defaults
	if o.Algorithm == "" {
		o.Algorithm = d.Algorithm
	}
	if o.Algorithm == "" {
		o.Algorithm = Hybrid
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = d.MaxIterations
	}
	if o.TimeLimit == 0 {
		o.TimeLimit = d.TimeLimit
	}
	if o.TimeLimit == 0 {
		o.TimeLimit = defaultTimeLimit
	}
	if o.PopulationSize == 0 {
		o.PopulationSize = d.PopulationSize
	}
	if o.Temperature == 0 {
		o.Temperature = d.Temperature
	}
	if o.Seed == 0 {
		o.Seed = s.now().UnixNano()
	}
	return o
}

type step struct {
	algo Algorithm
	p    params
}

func (s *Solver) plan(algo Algorithm, n int, p params) []step {
	if algo != Hybrid {
		return []step{{algo, p}}
	}
	steps := []step{{NearestNeighbor, p}}
	sa := p
	if n > hybridUncappedMax {
		limit := sa.maxIterations
		if limit <= 0 {
			limit = defaultAnnealingIterations
		}
		sa.maxIterations = min(hybridAnnealingLimit, limit)
	}
	steps = append(steps, step{SimulatedAnnealing, sa})
	if n <= hybridGeneticMax {
		steps = append(steps, step{Genetic, p})
	}
	return steps
}

// Solve orders locations under c. Only fewer than two locations, or a context
// cancelled while distances are fetched, produce an error; constraint breaches
// are reported in Solution.Violations.
func (s *Solver) Solve(ctx context.Context, locations []Location, c Constraints, o Options) (*Solution, error) {
	if len(locations) < 2 {
		return nil, ErrTooFewLocations
	}
	began := s.now()
	o = s.resolve(o)
	if !Known(o.Algorithm) {
		log.Warn().Str("algorithm", string(o.Algorithm)).Msg("unknown algorithm, using hybrid")
		o.Algorithm = Hybrid
	}
	if len(locations) > largeInstance {
		log.Warn().Int("locations", len(locations)).Msg("large instance, optimization may be slow")
	}

	in := layout(locations, c)
	in.departure = o.DepartureTime
	if in.departure.IsZero() {
		in.departure = began
	}
	hints := c.Hints()
	if err := s.oracle.Precompute(ctx, in.nodes, hints); err != nil {
		return nil, fmt.Errorf("precompute distances: %w", err)
	}
	in.tbl = s.oracle.table(in.nodes, hints)

	p := params{
		maxIterations:  o.MaxIterations,
		populationSize: o.PopulationSize,
		temperature:    o.Temperature,
		deadline:       began.Add(time.Duration(o.TimeLimit * float64(time.Second))),
		now:            s.now,
	}
	sol := &Solution{Seed: o.Seed}

	var (
		winner     []int
		winnerEval Evaluation
		winnerAlgo string
	)
	for _, st := range s.plan(o.Algorithm, len(locations), p) {
		route, err := s.run(in, st, o.Seed)
		if err != nil {
			log.Error().Err(err).Str("algorithm", string(st.algo)).Msg("optimizer failed, falling back to nearest neighbor")
			sol.Candidates = append(sol.Candidates, CandidateSummary{Algorithm: st.algo, Error: err.Error()})
			winner = nil
			break
		}
		ev := in.evaluate(route)
		name := string(st.algo)
		if polished, err := safely(func() ([]int, error) { return in.twoOpt(route), nil }); err == nil {
			if pev := in.evaluate(polished); !better(ev, pev) {
				if !slices.Equal(polished, route) {
					name += "_2opt"
				}
				route, ev = polished, pev
			}
		}
		sol.Candidates = append(sol.Candidates, CandidateSummary{
			Algorithm:     st.algo,
			Score:         ev.Score,
			TotalDistance: ev.TotalDistance,
			TotalTime:     ev.TotalTime,
		})
		if winner == nil || better(ev, winnerEval) {
			winner, winnerEval, winnerAlgo = route, ev, name
		}
	}
	if winner == nil {
		winner = in.nearest()
		winnerAlgo = string(NearestNeighbor)
		sol.Fallback = true
	} else if o.Algorithm == Hybrid {
		winnerAlgo = string(Hybrid)
	}

	sol.Route = in.locations(winner)
	sol.Algorithm = winnerAlgo
	e := s.eval.withHints(hints)
	ev := e.Evaluate(sol.Route)
	sol.TotalDistance = ev.TotalDistance
	sol.TotalTime = ev.TotalTime
	sol.TotalCost = ev.TotalCost
	sol.OptimizationScore = ev.Score
	sol.Violations = e.Validate(sol.Route, c, in.departure)
	if sol.Violations == nil {
		sol.Violations = []string{}
	}
	sol.ElapsedMs = s.now().Sub(began).Milliseconds()

	log.Debug().
		Str("algorithm", sol.Algorithm).
		Int("stops", len(sol.Route)).
		Float64("score", sol.OptimizationScore).
		Int64("elapsed_ms", sol.ElapsedMs).
		Msg("route optimized")
	return sol, nil
}

// run executes one optimizer on its own RNG stream and checks its output.
func (s *Solver) run(in *instance, st step, seed int64) ([]int, error) {
	o, ok := s.optimizers[st.algo]
	if !ok {
		return nil, fmt.Errorf("opt: no optimizer registered for %q", st.algo)
	}
	rng := streamRNG(seed, st.algo)
	route, err := safely(func() ([]int, error) { return o.Optimize(in, st.p, rng) })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", st.algo, err)
	}
	if !in.valid(route) {
		return nil, fmt.Errorf("%s: %w", st.algo, ErrInvalidRoute)
	}
	return route, nil
}

// safely converts a panic in fn into an error.
func safely(fn func() ([]int, error)) (route []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			route, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
