package store

import (
	"context"
	"errors"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

// Store persists optimization requests and their solutions.
type Store interface {
	CreateOptimization(ctx context.Context, req model.OptimizeRequest, status model.Status) (model.Optimization, error)
	GetOptimization(ctx context.Context, id string) (model.Optimization, error)
	// ListOptimizations pages by id; status filters when non-empty.
	ListOptimizations(ctx context.Context, status model.Status, cursor string, limit int) ([]model.Optimization, string, error)
	// UpdateOptimization moves id to status, recording the solution or the error.
	UpdateOptimization(ctx context.Context, id string, status model.Status, sol *opt.Solution, errMsg string) (model.Optimization, error)
	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

const (
	defaultLimit = 100
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}
