package opt

import (
	"errors"
	"time"
)

// Algorithm names a strategy the Solver can run.
type Algorithm string

const (
	NearestNeighbor    Algorithm = "nearest_neighbor"
	Genetic            Algorithm = "genetic"
	SimulatedAnnealing Algorithm = "simulated_annealing"
	Hybrid             Algorithm = "hybrid"
)

// ErrTooFewLocations is the only fatal precondition of Solve.
var ErrTooFewLocations = errors.New("opt: at least 2 locations are required")

// ErrInvalidRoute is returned by an optimizer whose output is not a permutation of its input.
var ErrInvalidRoute = errors.New("opt: route is not a permutation of the input")

type TimeWindow struct {
	EarliestArrival time.Time `json:"earliestArrival"`
	LatestDeparture time.Time `json:"latestDeparture"`
}

type Location struct {
	ID               string      `json:"id" validate:"required"`
	Name             string      `json:"name,omitempty"`
	Lat              float64     `json:"lat" validate:"gte=-90,lte=90"`
	Lng              float64     `json:"lng" validate:"gte=-180,lte=180"`
	TimeWindow       *TimeWindow `json:"timeWindow,omitempty"`
	ServiceTime      float64     `json:"serviceTime,omitempty" validate:"gte=0"` // minutes
	Priority         int         `json:"priority,omitempty" validate:"gte=0,lte=10"`
	CapacityRequired float64     `json:"capacityRequired,omitempty" validate:"gte=0"`
}

type Constraints struct {
	MaxDistance        float64   `json:"maxDistance,omitempty" validate:"gte=0"` // meters
	MaxTime            float64   `json:"maxTime,omitempty" validate:"gte=0"`     // minutes
	VehicleCapacity    float64   `json:"vehicleCapacity,omitempty" validate:"gte=0"`
	RespectTimeWindows bool      `json:"respectTimeWindows,omitempty"`
	StartLocation      *Location `json:"startLocation,omitempty"`
	EndLocation        *Location `json:"endLocation,omitempty"`
	// Hints forwarded to the routing provider only.
	AvoidTolls    bool `json:"avoidTolls,omitempty"`
	AvoidHighways bool `json:"avoidHighways,omitempty"`
}

// Hints returns the provider hints carried by c.
func (c Constraints) Hints() Hints {
	return Hints{AvoidTolls: c.AvoidTolls, AvoidHighways: c.AvoidHighways}
}

type Options struct {
	Algorithm      Algorithm `json:"algorithm,omitempty"`
	MaxIterations  int       `json:"maxIterations,omitempty" validate:"gte=0"`
	TimeLimit      float64   `json:"timeLimit,omitempty" validate:"gte=0"` // seconds, advisory
	PopulationSize int       `json:"populationSize,omitempty" validate:"gte=0"`
	Temperature    float64   `json:"temperature,omitempty" validate:"gte=0"`
	// Seed selects the RNG streams; 0 draws a seed from the clock.
	Seed int64 `json:"seed,omitempty"`
	// DepartureTime is the reference instant for time windows; zero means now.
	DepartureTime time.Time `json:"departureTime,omitempty"`
}

// CandidateSummary describes one optimizer run considered by the Solver.
type CandidateSummary struct {
	Algorithm     Algorithm `json:"algorithm"`
	Score         float64   `json:"score"`
	TotalDistance float64   `json:"totalDistance"`
	TotalTime     float64   `json:"totalTime"`
	Error         string    `json:"error,omitempty"`
}

type Solution struct {
	Route             []Location         `json:"route"`
	TotalDistance     float64            `json:"totalDistance"` // meters
	TotalTime         float64            `json:"totalTime"`     // minutes
	TotalCost         float64            `json:"totalCost"`
	Violations        []string           `json:"violations"`
	Algorithm         string             `json:"algorithm"`
	OptimizationScore float64            `json:"optimizationScore"`
	Seed              int64              `json:"seed"`
	Fallback          bool               `json:"fallback,omitempty"`
	Candidates        []CandidateSummary `json:"candidates,omitempty"`
	ElapsedMs         int64              `json:"elapsedMs"`
}

// IDs returns the route's location ids in visiting order.
func (s *Solution) IDs() []string {
	ids := make([]string, len(s.Route))
	for i, l := range s.Route {
		ids[i] = l.ID
	}
	return ids
}
