package opt

import (
	"fmt"
	"math"
	"time"
)

// Illustrative linear cost model, not real pricing.
const (
	fuelCostPerKm   = 0.12
	timeCostPerHour = 25.0

	maxDistancePenalty = 50.0
	maxTimePenalty     = 50.0

	// violationWeight multiplies the excess over a budget in genetic fitness.
	violationWeight = 1000.0

	scoreEps = 1e-9
)

type Evaluation struct {
	TotalDistance float64 `json:"totalDistance"`
	TotalTime     float64 `json:"totalTime"`
	TotalCost     float64 `json:"totalCost"`
	Score         float64 `json:"score"`
}

func (e Evaluation) energy() float64 { return e.TotalDistance + e.TotalTime }

// better reports whether a ranks strictly above b: higher score first, then
// lower distance plus time.
func better(a, b Evaluation) bool {
	if math.Abs(a.Score-b.Score) > scoreEps {
		return a.Score > b.Score
	}
	return a.energy() < b.energy()-scoreEps
}

func summarize(meters, minutes float64, stops int) Evaluation {
	if stops < 1 {
		stops = 1
	}
	km := meters / 1000
	n := float64(stops)
	distPenalty := math.Min(maxDistancePenalty, 2*km/n)
	timePenalty := math.Min(maxTimePenalty, minutes/(2*n))
	return Evaluation{
		TotalDistance: meters,
		TotalTime:     minutes,
		TotalCost:     km*fuelCostPerKm + minutes/60*timeCostPerHour,
		Score:         math.Max(0, 100-distPenalty-timePenalty),
	}
}

// Evaluator turns routes into totals, scores and violations using the
// oracle's cached legs.
type Evaluator struct {
	oracle *Oracle
	hints  Hints
}

func NewEvaluator(o *Oracle) *Evaluator { return &Evaluator{oracle: o} }

func (e *Evaluator) withHints(h Hints) *Evaluator { return &Evaluator{oracle: e.oracle, hints: h} }

func (e *Evaluator) leg(a, b Location) Leg {
	return e.oracle.lookup(pointOf(a), pointOf(b), e.hints)
}

// Evaluate walks consecutive pairs of route, summing leg distance and time
// plus the service time of each destination.
func (e *Evaluator) Evaluate(route []Location) Evaluation {
	var meters, minutes float64
	for k := 1; k < len(route); k++ {
		leg := e.leg(route[k-1], route[k])
		meters += leg.Meters
		minutes += leg.Minutes + route[k].ServiceTime
	}
	return summarize(meters, minutes, len(route))
}

// Validate compares route against c and describes every breach. The route is
// never modified.
func (e *Evaluator) Validate(route []Location, c Constraints, departure time.Time) []string {
	ev := e.Evaluate(route)
	var out []string
	if c.MaxDistance > 0 && ev.TotalDistance > c.MaxDistance {
		out = append(out, fmt.Sprintf("total distance %.0f m exceeds maximum %.0f m", ev.TotalDistance, c.MaxDistance))
	}
	if c.MaxTime > 0 && ev.TotalTime > c.MaxTime {
		out = append(out, fmt.Sprintf("total time %.1f min exceeds maximum %.1f min", ev.TotalTime, c.MaxTime))
	}
	if c.VehicleCapacity > 0 {
		if load := requiredCapacity(route); load > c.VehicleCapacity {
			out = append(out, fmt.Sprintf("required capacity %.1f exceeds vehicle capacity %.1f", load, c.VehicleCapacity))
		}
	}
	if c.RespectTimeWindows {
		legs := make([]float64, len(route))
		for k := 1; k < len(route); k++ {
			legs[k] = e.leg(route[k-1], route[k]).Minutes
		}
		for k, st := range timings(route, legs, departure) {
			tw := route[k].TimeWindow
			if tw == nil || tw.LatestDeparture.IsZero() || !st.leave.After(tw.LatestDeparture) {
				continue
			}
			out = append(out, fmt.Sprintf("location %q departs at %s, after its time window closed at %s",
				route[k].ID, st.leave.UTC().Format(time.RFC3339), tw.LatestDeparture.UTC().Format(time.RFC3339)))
		}
	}
	return out
}

func requiredCapacity(route []Location) float64 {
	seen := make(map[string]bool, len(route))
	total := 0.0
	for _, l := range route {
		if seen[l.ID] {
			continue
		}
		seen[l.ID] = true
		total += l.CapacityRequired
	}
	return total
}

type stopTiming struct {
	arrive time.Time
	leave  time.Time
}

// timings simulates the schedule from departure. legMinutes[k] is the travel
// time into stop k; service starts no earlier than a stop's window opens.
func timings(stops []Location, legMinutes []float64, departure time.Time) []stopTiming {
	out := make([]stopTiming, len(stops))
	clock := departure
	for k, s := range stops {
		if k > 0 {
			clock = clock.Add(minutes(legMinutes[k]))
		}
		arrive := clock
		if s.TimeWindow != nil && clock.Before(s.TimeWindow.EarliestArrival) {
			clock = s.TimeWindow.EarliestArrival
		}
		clock = clock.Add(minutes(s.ServiceTime))
		out[k] = stopTiming{arrive: arrive, leave: clock}
	}
	return out
}

func minutes(m float64) time.Duration { return time.Duration(m * float64(time.Minute)) }
