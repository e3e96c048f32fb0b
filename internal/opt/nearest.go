package opt

import (
	"math"
	"math/rand"
	"time"
)

const (
	closedWindowPenalty = 1e6
	earlyArrivalPenalty = 1e3
)

type nearestNeighbor struct{}

func (nearestNeighbor) Name() Algorithm { return NearestNeighbor }

func (nearestNeighbor) Optimize(in *instance, _ params, _ *rand.Rand) ([]int, error) {
	return in.nearest(), nil
}

// nearest builds a route greedily from the start pin (or the first free
// node), always moving to the unvisited node with the lowest locationScore.
// Ties go to the earlier input.
func (in *instance) nearest() []int {
	route := append([]int(nil), in.head...)
	remaining := append([]int(nil), in.free...)
	var cur int
	if len(in.head) > 0 {
		cur = in.head[0]
	} else {
		cur = remaining[0]
		remaining = remaining[1:]
		route = append(route, cur)
	}
	clock := in.leave(cur, in.departure)
	for len(remaining) > 0 {
		best, bestScore := 0, math.Inf(1)
		for i, cand := range remaining {
			if s := in.locationScore(cur, cand, clock); s < bestScore {
				best, bestScore = i, s
			}
		}
		next := remaining[best]
		clock = in.leave(next, clock.Add(minutes(in.tbl.minutes[cur][next])))
		route = append(route, next)
		cur = next
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return append(route, in.tail...)
}

// locationScore is the distance to cand, pulled forward by priority and pushed
// back when its time window is missed.
func (in *instance) locationScore(cur, cand int, clock time.Time) float64 {
	loc := in.nodes[cand]
	score := in.tbl.meters[cur][cand]
	if loc.Priority > 0 {
		score /= math.Sqrt(float64(loc.Priority))
	}
	if in.constraints.RespectTimeWindows && loc.TimeWindow != nil {
		arrive := clock.Add(minutes(in.tbl.minutes[cur][cand]))
		switch {
		case !loc.TimeWindow.LatestDeparture.IsZero() && arrive.After(loc.TimeWindow.LatestDeparture):
			score += closedWindowPenalty
		case arrive.Before(loc.TimeWindow.EarliestArrival):
			score += earlyArrivalPenalty
		}
	}
	return score
}

// leave returns the instant service at node ends when arriving at arrive.
func (in *instance) leave(node int, arrive time.Time) time.Time {
	loc := in.nodes[node]
	if loc.TimeWindow != nil && arrive.Before(loc.TimeWindow.EarliestArrival) {
		arrive = loc.TimeWindow.EarliestArrival
	}
	return arrive.Add(minutes(loc.ServiceTime))
}
