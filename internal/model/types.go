package model

import (
	"time"

	"routeopt/internal/opt"
)

// OptimizeRequest is the body of POST /v1/optimize and the payload persisted
// with every optimization.
type OptimizeRequest struct {
	Locations   []opt.Location  `json:"locations" validate:"required,min=2,dive"`
	Constraints opt.Constraints `json:"constraints"`
	Options     opt.Options     `json:"options"`
	Async       bool            `json:"async,omitempty"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Done reports whether s is terminal.
func (s Status) Done() bool { return s == StatusCompleted || s == StatusFailed }

type Optimization struct {
	ID        string          `json:"id"`
	Status    Status          `json:"status"`
	Request   OptimizeRequest `json:"request"`
	Solution  *opt.Solution   `json:"solution,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Event is published on an optimization's channel when it reaches a terminal
// state.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

const (
	EventCompleted = "optimization.completed"
	EventFailed    = "optimization.failed"
)

// EventFor builds the terminal event for o.
func EventFor(o Optimization) Event {
	data := map[string]any{"id": o.ID, "status": o.Status}
	if o.Solution != nil {
		data["algorithm"] = o.Solution.Algorithm
		data["optimizationScore"] = o.Solution.OptimizationScore
		data["totalDistance"] = o.Solution.TotalDistance
		data["totalTime"] = o.Solution.TotalTime
		data["violations"] = len(o.Solution.Violations)
	}
	if o.Status == StatusFailed {
		data["error"] = o.Error
		return Event{Type: EventFailed, Data: data}
	}
	return Event{Type: EventCompleted, Data: data}
}
