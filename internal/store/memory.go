package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"routeopt/internal/model"
	"routeopt/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu   sync.Mutex
	opts map[string]model.Optimization
	ids  []string // sorted; v7 ids sort by creation time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{opts: map[string]model.Optimization{}, now: time.Now}
}

func (m *Memory) CreateOptimization(ctx context.Context, req model.OptimizeRequest, status model.Status) (model.Optimization, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.Optimization{}, fmt.Errorf("new id: %w", err)
	}
	now := m.now().UTC()
	o := model.Optimization{ID: id.String(), Status: status, Request: req, CreatedAt: now, UpdatedAt: now}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts[o.ID] = o
	i := sort.SearchStrings(m.ids, o.ID)
	m.ids = append(m.ids, "")
	copy(m.ids[i+1:], m.ids[i:])
	m.ids[i] = o.ID
	return o, nil
}

func (m *Memory) GetOptimization(ctx context.Context, id string) (model.Optimization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.opts[id]
	if !ok {
		return model.Optimization{}, ErrNotFound
	}
	return o, nil
}

func (m *Memory) ListOptimizations(ctx context.Context, status model.Status, cursor string, limit int) ([]model.Optimization, string, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		start = sort.Search(len(m.ids), func(i int) bool { return m.ids[i] > cursor })
	}
	out := []model.Optimization{}
	for _, id := range m.ids[start:] {
		o := m.opts[id]
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	var next string
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) UpdateOptimization(ctx context.Context, id string, status model.Status, sol *opt.Solution, errMsg string) (model.Optimization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.opts[id]
	if !ok {
		return model.Optimization{}, ErrNotFound
	}
	o.Status = status
	if sol != nil {
		o.Solution = sol
	}
	o.Error = errMsg
	o.UpdatedAt = m.now().UTC()
	m.opts[id] = o
	return o, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

var _ Store = (*Memory)(nil)
