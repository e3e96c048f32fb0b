//go:build postgres_integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

func TestPostgresOptimizationLifecycle(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}
	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()
	ctx := context.Background()
	require.NoError(t, p.Migrate(ctx))

	created, err := p.CreateOptimization(ctx, sampleRequest(), model.StatusPending)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, created.Status)

	sol := &opt.Solution{Route: sampleRequest().Locations, Algorithm: "hybrid", Violations: []string{}}
	done, err := p.UpdateOptimization(ctx, created.ID, model.StatusCompleted, sol, "")
	require.NoError(t, err)
	require.Equal(t, "hybrid", done.Solution.Algorithm)

	got, err := p.GetOptimization(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, got.Status)
	require.Len(t, got.Request.Locations, 2)

	items, _, err := p.ListOptimizations(ctx, model.StatusCompleted, "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	_, err = p.GetOptimization(ctx, "not-a-uuid")
	require.ErrorIs(t, err, ErrNotFound)
}
