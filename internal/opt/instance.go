package opt

import (
	"math"
	"time"
)

// instance is the per-call working set: the nodes to visit, which of them are
// pinned, and the dense distance table the algorithms read from.
type instance struct {
	nodes       []Location
	head        []int // pinned prefix (start)
	tail        []int // pinned suffix (end, or start again for a round trip)
	free        []int // movable nodes in input order
	constraints Constraints
	departure   time.Time
	tbl         *table
}

// layout resolves the start/end pins against locations by id. A pin missing
// from the inputs becomes an extra node.
func layout(locations []Location, c Constraints) *instance {
	nodes := append([]Location(nil), locations...)
	byID := make(map[string]int, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		byID[nodes[i].ID] = i
	}
	resolve := func(pin *Location) int {
		if pin == nil {
			return -1
		}
		if i, ok := byID[pin.ID]; ok {
			return i
		}
		nodes = append(nodes, *pin)
		byID[pin.ID] = len(nodes) - 1
		return len(nodes) - 1
	}
	start := resolve(c.StartLocation)
	end := resolve(c.EndLocation)

	in := &instance{constraints: c}
	if start >= 0 {
		in.head = []int{start}
	}
	switch {
	case end >= 0 && end == start:
		in.tail = []int{start}
	case end >= 0:
		in.tail = []int{end}
	}
	for i := range nodes {
		if i == start || i == end {
			continue
		}
		in.free = append(in.free, i)
	}
	in.nodes = nodes
	return in
}

// route assembles a full visiting order from an arrangement of the free nodes.
func (in *instance) route(free []int) []int {
	out := make([]int, 0, len(in.head)+len(free)+len(in.tail))
	out = append(out, in.head...)
	out = append(out, free...)
	return append(out, in.tail...)
}

// freeOf extracts the movable segment of a full route.
func (in *instance) freeOf(route []int) []int {
	return append([]int(nil), route[len(in.head):len(route)-len(in.tail)]...)
}

func (in *instance) size() int { return len(in.head) + len(in.free) + len(in.tail) }

func (in *instance) evaluate(route []int) Evaluation {
	m, t := in.tbl.totals(route)
	return summarize(m, t, len(route))
}

// valid reports whether route is the pinned head, a permutation of the free
// nodes, and the pinned tail.
func (in *instance) valid(route []int) bool {
	if len(route) != in.size() {
		return false
	}
	for i, v := range in.head {
		if route[i] != v {
			return false
		}
	}
	for i, v := range in.tail {
		if route[len(route)-len(in.tail)+i] != v {
			return false
		}
	}
	want := make(map[int]int, len(in.free))
	for _, v := range in.free {
		want[v]++
	}
	for _, v := range in.freeOf(route) {
		want[v]--
		if want[v] < 0 {
			return false
		}
	}
	return true
}

func (in *instance) locations(route []int) []Location {
	out := make([]Location, len(route))
	for i, idx := range route {
		out[i] = in.nodes[idx]
	}
	return out
}

// penalty is the excess over every violated budget times violationWeight.
func (in *instance) penalty(route []int, ev Evaluation) float64 {
	c := in.constraints
	p := 0.0
	if c.MaxDistance > 0 && ev.TotalDistance > c.MaxDistance {
		p += (ev.TotalDistance - c.MaxDistance) * violationWeight
	}
	if c.MaxTime > 0 && ev.TotalTime > c.MaxTime {
		p += (ev.TotalTime - c.MaxTime) * violationWeight
	}
	if c.VehicleCapacity > 0 {
		if load := requiredCapacity(in.locations(route)); load > c.VehicleCapacity {
			p += (load - c.VehicleCapacity) * violationWeight
		}
	}
	if c.RespectTimeWindows {
		p += in.lateness(route) * violationWeight
	}
	return p
}

// lateness sums, in minutes, how far each stop departs past its window.
func (in *instance) lateness(route []int) float64 {
	stops := in.locations(route)
	legs := make([]float64, len(route))
	for k := 1; k < len(route); k++ {
		legs[k] = in.tbl.minutes[route[k-1]][route[k]]
	}
	late := 0.0
	for k, st := range timings(stops, legs, in.departure) {
		tw := stops[k].TimeWindow
		if tw == nil || tw.LatestDeparture.IsZero() {
			continue
		}
		if d := st.leave.Sub(tw.LatestDeparture); d > 0 {
			late += d.Minutes()
		}
	}
	return math.Max(0, late)
}
