package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

func sampleRequest() model.OptimizeRequest {
	return model.OptimizeRequest{Locations: []opt.Location{
		{ID: "a", Lat: 40.71, Lng: -74.0},
		{ID: "b", Lat: 40.73, Lng: -73.9},
	}}
}

func TestMemoryLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	o, err := m.CreateOptimization(ctx, sampleRequest(), model.StatusPending)
	require.NoError(t, err)
	require.NotEmpty(t, o.ID)
	require.Nil(t, o.Solution)

	sol := &opt.Solution{Algorithm: "hybrid"}
	o, err = m.UpdateOptimization(ctx, o.ID, model.StatusCompleted, sol, "")
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, o.Status)

	got, err := m.GetOptimization(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, "hybrid", got.Solution.Algorithm)

	_, err = m.GetOptimization(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdateOptimization(ctx, "missing", model.StatusFailed, nil, "x")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListPagesInCreationOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var ids []string
	for i := 0; i < 5; i++ {
		o, err := m.CreateOptimization(ctx, sampleRequest(), model.StatusPending)
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}
	_, err := m.UpdateOptimization(ctx, ids[1], model.StatusFailed, nil, "boom")
	require.NoError(t, err)

	page, next, err := m.ListOptimizations(ctx, "", "", 2)
	require.NoError(t, err)
	require.Equal(t, []string{ids[0], ids[1]}, idsOf(page))
	require.Equal(t, ids[1], next)

	page, next, err = m.ListOptimizations(ctx, "", next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{ids[2], ids[3]}, idsOf(page))

	page, _, err = m.ListOptimizations(ctx, "", next, 2)
	require.NoError(t, err)
	require.Equal(t, []string{ids[4]}, idsOf(page))

	failed, next, err := m.ListOptimizations(ctx, model.StatusFailed, "", 10)
	require.NoError(t, err)
	require.Equal(t, []string{ids[1]}, idsOf(failed))
	require.Empty(t, next)
}

func idsOf(os []model.Optimization) []string {
	out := make([]string, len(os))
	for i, o := range os {
		out[i] = o.ID
	}
	return out
}
