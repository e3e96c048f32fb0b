package opt

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestSolver(opts ...SolverOption) *Solver {
	return NewSolver(append([]SolverOption{WithClock(func() time.Time { return testNow })}, opts...)...)
}

func randomLocations(n int, seed int64) []Location {
	rng := rand.New(rand.NewSource(seed))
	out := make([]Location, n)
	for i := range out {
		out[i] = Location{
			ID:  fmt.Sprintf("L%02d", i),
			Lat: 40 + rng.Float64(),
			Lng: -74 + rng.Float64(),
		}
	}
	return out
}

func sortedIDs(locs []Location) []string {
	ids := make([]string, len(locs))
	for i, l := range locs {
		ids[i] = l.ID
	}
	sort.Strings(ids)
	return ids
}

func newTestInstance(t *testing.T, locs []Location, c Constraints) *instance {
	t.Helper()
	o := NewOracle()
	in := layout(locs, c)
	in.departure = testNow
	require.NoError(t, o.Precompute(context.Background(), in.nodes, c.Hints()))
	in.tbl = o.table(in.nodes, c.Hints())
	return in
}

var allAlgorithms = []Algorithm{NearestNeighbor, Genetic, SimulatedAnnealing, Hybrid}

func TestSolveRequiresTwoLocations(t *testing.T) {
	s := newTestSolver()
	_, err := s.Solve(context.Background(), []Location{{ID: "a"}}, Constraints{}, Options{})
	require.ErrorIs(t, err, ErrTooFewLocations)
	_, err = s.Solve(context.Background(), nil, Constraints{}, Options{})
	require.ErrorIs(t, err, ErrTooFewLocations)
}

func TestSolveReturnsPermutation(t *testing.T) {
	for _, n := range []int{3, 8, 12} {
		locs := randomLocations(n, int64(n))
		for _, algo := range allAlgorithms {
			t.Run(fmt.Sprintf("%s/%d", algo, n), func(t *testing.T) {
				sol, err := newTestSolver().Solve(context.Background(), locs, Constraints{}, Options{Algorithm: algo, Seed: 7})
				require.NoError(t, err)
				require.Equal(t, sortedIDs(locs), sortedIDs(sol.Route))
				require.False(t, sol.Fallback)
				require.Equal(t, int64(7), sol.Seed)
				require.NotNil(t, sol.Violations)
				require.Empty(t, sol.Violations)
			})
		}
	}
}

func TestSolveHonorsPins(t *testing.T) {
	locs := randomLocations(9, 3)
	for _, algo := range allAlgorithms {
		t.Run(string(algo), func(t *testing.T) {
			c := Constraints{StartLocation: &locs[4], EndLocation: &locs[2]}
			sol, err := newTestSolver().Solve(context.Background(), locs, c, Options{Algorithm: algo, Seed: 11})
			require.NoError(t, err)
			ids := sol.IDs()
			require.Equal(t, "L04", ids[0])
			require.Equal(t, "L02", ids[len(ids)-1])
			require.Equal(t, sortedIDs(locs), sortedIDs(sol.Route))
		})
	}
}

func TestSolveRoundTrip(t *testing.T) {
	locs := randomLocations(6, 5)
	c := Constraints{StartLocation: &locs[0], EndLocation: &locs[0]}
	sol, err := newTestSolver().Solve(context.Background(), locs, c, Options{Seed: 1})
	require.NoError(t, err)
	ids := sol.IDs()
	require.Len(t, ids, len(locs)+1)
	require.Equal(t, "L00", ids[0])
	require.Equal(t, "L00", ids[len(ids)-1])
	require.Equal(t, sortedIDs(locs), sortedIDs(sol.Route[:len(locs)]))
}

func TestSolveAddsUnlistedPin(t *testing.T) {
	locs := randomLocations(4, 9)
	depot := Location{ID: "depot", Lat: 40.5, Lng: -73.5}
	sol, err := newTestSolver().Solve(context.Background(), locs, Constraints{StartLocation: &depot}, Options{Seed: 2})
	require.NoError(t, err)
	require.Len(t, sol.Route, 5)
	require.Equal(t, "depot", sol.Route[0].ID)
}

func TestSolveTwoLocations(t *testing.T) {
	a := Location{ID: "a", Lat: 40.7128, Lng: -74.0060}
	b := Location{ID: "b", Lat: 40.7306, Lng: -73.9352}
	s := newTestSolver()
	for _, algo := range allAlgorithms {
		sol, err := s.Solve(context.Background(), []Location{a, b}, Constraints{}, Options{Algorithm: algo})
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, sol.IDs())
		require.Equal(t, s.Oracle().Distance(a, b), sol.TotalDistance)
	}
}

func TestSolveUnitSquareFollowsPerimeter(t *testing.T) {
	locs := []Location{
		{ID: "00", Lat: 0, Lng: 0},
		{ID: "11", Lat: 1, Lng: 1},
		{ID: "01", Lat: 0, Lng: 1},
		{ID: "10", Lat: 1, Lng: 0},
	}
	sol, err := newTestSolver().Solve(context.Background(), locs, Constraints{StartLocation: &locs[0]},
		Options{Algorithm: NearestNeighbor})
	require.NoError(t, err)
	require.Contains(t, [][]string{
		{"00", "01", "11", "10"},
		{"00", "10", "11", "01"},
	}, sol.IDs())
}

func TestSolveReportsClosedTimeWindow(t *testing.T) {
	locs := randomLocations(5, 13)
	locs[3].TimeWindow = &TimeWindow{
		EarliestArrival: testNow.Add(-3 * time.Hour),
		LatestDeparture: testNow.Add(-time.Hour),
	}
	for _, algo := range allAlgorithms {
		sol, err := newTestSolver().Solve(context.Background(), locs, Constraints{RespectTimeWindows: true},
			Options{Algorithm: algo, Seed: 4})
		require.NoError(t, err)
		require.Equal(t, sortedIDs(locs), sortedIDs(sol.Route))
		require.NotEmpty(t, sol.Violations)
		require.Contains(t, sol.Violations[len(sol.Violations)-1], `"L03"`)
	}
}

func TestHybridIsNoWorseThanStandalone(t *testing.T) {
	for _, n := range []int{5, 8} {
		locs := randomLocations(n, int64(100+n))
		s := newTestSolver()
		opts := Options{Seed: 99, MaxIterations: 300}
		opts.Algorithm = Hybrid
		hybrid, err := s.Solve(context.Background(), locs, Constraints{}, opts)
		require.NoError(t, err)
		require.Equal(t, "hybrid", hybrid.Algorithm)
		require.Len(t, hybrid.Candidates, 3)

		for _, algo := range []Algorithm{NearestNeighbor, Genetic, SimulatedAnnealing} {
			opts.Algorithm = algo
			single, err := s.Solve(context.Background(), locs, Constraints{}, opts)
			require.NoError(t, err)
			require.GreaterOrEqual(t, hybrid.OptimizationScore, single.OptimizationScore-scoreEps, "n=%d %s", n, algo)
		}
	}
}

func TestHybridPlan(t *testing.T) {
	s := newTestSolver()
	names := func(steps []step) []Algorithm {
		out := make([]Algorithm, len(steps))
		for i, st := range steps {
			out[i] = st.algo
		}
		return out
	}
	require.Equal(t, []Algorithm{NearestNeighbor, SimulatedAnnealing, Genetic}, names(s.plan(Hybrid, 8, params{})))
	require.Equal(t, []Algorithm{NearestNeighbor, SimulatedAnnealing}, names(s.plan(Hybrid, 10, params{})))

	large := s.plan(Hybrid, 11, params{maxIterations: 5000})
	require.Equal(t, []Algorithm{NearestNeighbor, SimulatedAnnealing}, names(large))
	require.Equal(t, 1000, large[1].p.maxIterations)
	require.Equal(t, 200, s.plan(Hybrid, 11, params{maxIterations: 200})[1].p.maxIterations)

	require.Equal(t, []Algorithm{Genetic}, names(s.plan(Genetic, 30, params{})))
}

func TestSolveIsDeterministicForSeed(t *testing.T) {
	locs := randomLocations(9, 21)
	for _, algo := range allAlgorithms {
		a, err := newTestSolver().Solve(context.Background(), locs, Constraints{}, Options{Algorithm: algo, Seed: 5})
		require.NoError(t, err)
		b, err := newTestSolver().Solve(context.Background(), locs, Constraints{}, Options{Algorithm: algo, Seed: 5})
		require.NoError(t, err)
		require.Equal(t, a.IDs(), b.IDs(), string(algo))
		require.Equal(t, a.Algorithm, b.Algorithm)
	}
}

type brokenOptimizer struct {
	name  Algorithm
	panic bool
}

func (b brokenOptimizer) Name() Algorithm { return b.name }

func (b brokenOptimizer) Optimize(in *instance, _ params, _ *rand.Rand) ([]int, error) {
	if b.panic {
		panic("index out of range")
	}
	return in.free, nil // drops pinned nodes
}

func TestSolveFallsBackToNearestNeighbor(t *testing.T) {
	locs := randomLocations(6, 17)
	for _, b := range []brokenOptimizer{{name: SimulatedAnnealing, panic: true}, {name: Genetic}} {
		s := newTestSolver(withOptimizer(b))
		c := Constraints{StartLocation: &locs[1]}
		for _, algo := range []Algorithm{b.name, Hybrid} {
			sol, err := s.Solve(context.Background(), locs, c, Options{Algorithm: algo, Seed: 3})
			require.NoError(t, err)
			require.True(t, sol.Fallback)
			require.Equal(t, "nearest_neighbor", sol.Algorithm)
			require.Equal(t, "L01", sol.Route[0].ID)
			require.Equal(t, sortedIDs(locs), sortedIDs(sol.Route))
			require.NotEmpty(t, sol.Candidates[len(sol.Candidates)-1].Error)
		}
	}
}

type inputOrder struct{ name Algorithm }

func (o inputOrder) Name() Algorithm { return o.name }

func (inputOrder) Optimize(in *instance, _ params, _ *rand.Rand) ([]int, error) {
	return in.route(in.free), nil
}

func TestSolveTagsPolishedRoutes(t *testing.T) {
	// Input order zig-zags along a line; 2-opt must untangle it.
	locs := []Location{
		{ID: "a", Lat: 0, Lng: 0},
		{ID: "c", Lat: 0, Lng: 2},
		{ID: "b", Lat: 0, Lng: 1},
		{ID: "d", Lat: 0, Lng: 3},
	}
	s := newTestSolver(withOptimizer(inputOrder{name: SimulatedAnnealing}))
	sol, err := s.Solve(context.Background(), locs, Constraints{StartLocation: &locs[0]},
		Options{Algorithm: SimulatedAnnealing, Seed: 1})
	require.NoError(t, err)
	require.Equal(t, "simulated_annealing_2opt", sol.Algorithm)
	require.Equal(t, []string{"a", "b", "c", "d"}, sol.IDs())

	in := newTestInstance(t, locs, Constraints{})
	require.Equal(t, []int{0, 2, 1, 3}, in.twoOpt([]int{0, 1, 2, 3}))
}

func TestSolveUsesConfiguredDefaults(t *testing.T) {
	s := newTestSolver(WithDefaults(Options{Algorithm: NearestNeighbor, TimeLimit: 5}))
	require.Equal(t, NearestNeighbor, s.Defaults().Algorithm)
	sol, err := s.Solve(context.Background(), randomLocations(4, 1), Constraints{}, Options{})
	require.NoError(t, err)
	require.Contains(t, []string{"nearest_neighbor", "nearest_neighbor_2opt"}, sol.Algorithm)
	require.Equal(t, testNow.UnixNano(), sol.Seed)
}

func TestSolverCacheControls(t *testing.T) {
	s := newTestSolver()
	_, err := s.Solve(context.Background(), randomLocations(4, 2), Constraints{}, Options{Algorithm: NearestNeighbor})
	require.NoError(t, err)
	require.Equal(t, 6, s.CacheStats().Distances)
	s.ClearCache()
	require.Zero(t, s.CacheStats().Distances)
}

func TestSolveIsSafeForConcurrentUse(t *testing.T) {
	s := newTestSolver()
	pool := randomLocations(14, 31)

	const workers = 8
	type result struct {
		want []string
		sol  *Solution
		err  error
	}
	results := make([]result, workers)

	stop := make(chan struct{})
	var sweeper sync.WaitGroup
	sweeper.Add(1)
	go func() {
		defer sweeper.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.ClearCache()
				_ = s.CacheStats()
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Overlapping windows of the same pool share cache entries.
			locs := pool[w%4 : w%4+9]
			sol, err := s.Solve(context.Background(), locs, Constraints{}, Options{
				Algorithm:     allAlgorithms[w%len(allAlgorithms)],
				Seed:          int64(w + 1),
				MaxIterations: 200,
			})
			results[w] = result{want: sortedIDs(locs), sol: sol, err: err}
		}(w)
	}
	wg.Wait()
	close(stop)
	sweeper.Wait()

	for w, r := range results {
		require.NoError(t, r.err, "worker %d", w)
		require.Equal(t, r.want, sortedIDs(r.sol.Route), "worker %d", w)
		require.False(t, r.sol.Fallback, "worker %d", w)
	}
}
