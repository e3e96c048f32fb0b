package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"routeopt/internal/model"
	"routeopt/internal/opt"
	"routeopt/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events map[string][]model.Event
}

func (r *recorder) Publish(id string, evt model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = map[string][]model.Event{}
	}
	r.events[id] = append(r.events[id], evt)
}

func newTestRunner() (*Runner, *store.Memory, *recorder) {
	st := store.NewMemory()
	rec := &recorder{}
	return NewRunner(st, opt.NewSolver(), rec), st, rec
}

func optimizeTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(PayloadOptimizeRoute{OptimizationID: id})
	require.NoError(t, err)
	return asynq.NewTask(TaskOptimizeRoute, b)
}

func request(n int) model.OptimizeRequest {
	req := model.OptimizeRequest{Options: opt.Options{Seed: 1}}
	for i := 0; i < n; i++ {
		req.Locations = append(req.Locations, opt.Location{
			ID:  string(rune('a' + i)),
			Lat: 40 + float64(i)*0.01,
			Lng: -74 + float64(i%2)*0.02,
		})
	}
	return req
}

func TestProcessTaskOptimizeRoute(t *testing.T) {
	runner, st, rec := newTestRunner()
	p := NewTestTaskProcessor(runner)
	ctx := context.Background()

	o, err := st.CreateOptimization(ctx, request(5), model.StatusPending)
	require.NoError(t, err)

	require.NoError(t, p.ProcessTaskOptimizeRoute(ctx, optimizeTask(t, o.ID)))

	got, err := st.GetOptimization(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.Len(t, got.Solution.Route, 5)
	require.Equal(t, int64(1), got.Solution.Seed)

	require.Len(t, rec.events[o.ID], 1)
	require.Equal(t, model.EventCompleted, rec.events[o.ID][0].Type)

	// redelivery is acknowledged without solving again
	require.NoError(t, p.ProcessTaskOptimizeRoute(ctx, optimizeTask(t, o.ID)))
	require.Len(t, rec.events[o.ID], 1)
}

func TestProcessTaskRecordsSolverFailure(t *testing.T) {
	runner, st, rec := newTestRunner()
	p := NewTestTaskProcessor(runner)
	ctx := context.Background()

	o, err := st.CreateOptimization(ctx, request(1), model.StatusPending)
	require.NoError(t, err)
	require.NoError(t, p.ProcessTaskOptimizeRoute(ctx, optimizeTask(t, o.ID)))

	got, err := st.GetOptimization(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusFailed, got.Status)
	require.Contains(t, got.Error, "at least 2 locations")
	require.Equal(t, model.EventFailed, rec.events[o.ID][0].Type)
}

func TestProcessTaskSkipsRetryOnBadInput(t *testing.T) {
	runner, _, _ := newTestRunner()
	p := NewTestTaskProcessor(runner)
	ctx := context.Background()

	err := p.ProcessTaskOptimizeRoute(ctx, asynq.NewTask(TaskOptimizeRoute, []byte("{")))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = p.ProcessTaskOptimizeRoute(ctx, optimizeTask(t, ""))
	require.True(t, errors.Is(err, asynq.SkipRetry))

	err = p.ProcessTaskOptimizeRoute(ctx, optimizeTask(t, "missing"))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}
