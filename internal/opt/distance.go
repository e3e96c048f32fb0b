package opt

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	earthRadiusM    = 6371000.0
	defaultSpeedKph = 50.0
)

// Point is a coordinate pair used as cache identity, so entries are shared by
// every call that visits the same geography.
type Point struct {
	Lat float64
	Lng float64
}

func pointOf(l Location) Point { return Point{Lat: l.Lat, Lng: l.Lng} }

// Hints are pass-through routing preferences for the Provider.
type Hints struct {
	AvoidTolls    bool
	AvoidHighways bool
}

func (h Hints) profile() uint8 {
	var p uint8
	if h.AvoidTolls {
		p |= 1
	}
	if h.AvoidHighways {
		p |= 2
	}
	return p
}

// PairKey is the order-independent cache key of a location pair.
type PairKey struct {
	A, B    Point
	Profile uint8
}

// NewPairKey orders a and b so that NewPairKey(a, b) == NewPairKey(b, a).
func NewPairKey(a, b Point, h Hints) PairKey {
	if b.Lat < a.Lat || (b.Lat == a.Lat && b.Lng < a.Lng) {
		a, b = b, a
	}
	return PairKey{A: a, B: b, Profile: h.profile()}
}

// String renders k with the shortest exact form of each coordinate, so keys
// collide only when the points are identical.
func (k PairKey) String() string {
	return fmt.Sprintf("%d:%s,%s:%s,%s", k.Profile,
		coord(k.A.Lat), coord(k.A.Lng), coord(k.B.Lat), coord(k.B.Lng))
}

func coord(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Leg is the cached travel cost between two points.
type Leg struct {
	Meters  float64
	Minutes float64
}

// Provider supplies real road distances (meters) and durations (seconds) as
// square matrices indexed like points.
type Provider interface {
	Table(ctx context.Context, points []Point, hints Hints) (meters, seconds [][]float64, err error)
}

// PairStore is a shared cache tier consulted during Precompute.
type PairStore interface {
	GetLegs(ctx context.Context, keys []PairKey) (map[PairKey]Leg, error)
	PutLegs(ctx context.Context, legs map[PairKey]Leg) error
}

type CacheStats struct {
	Distances int `json:"distances"`
	Times     int `json:"times"`
}

// Oracle memoizes pairwise distance and travel time. It is safe for
// concurrent use; entries are only ever added until ClearCache. With a
// Provider configured, great-circle estimates are used but never memoized, so
// a later Precompute asks the provider again.
type Oracle struct {
	mu        sync.RWMutex
	distances map[PairKey]float64
	times     map[PairKey]float64
	provider  Provider
	store     PairStore
	speedKph  float64
}

type OracleOption func(*Oracle)

func WithProvider(p Provider) OracleOption { return func(o *Oracle) { o.provider = p } }

func WithPairStore(s PairStore) OracleOption { return func(o *Oracle) { o.store = s } }

// WithSpeedKph sets the average speed used to derive time from great-circle distance.
func WithSpeedKph(v float64) OracleOption {
	return func(o *Oracle) {
		if v > 0 {
			o.speedKph = v
		}
	}
}

func NewOracle(opts ...OracleOption) *Oracle {
	o := &Oracle{
		distances: map[PairKey]float64{},
		times:     map[PairKey]float64{},
		speedKph:  defaultSpeedKph,
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// Distance returns the distance between a and b in meters.
func (o *Oracle) Distance(a, b Location) float64 {
	return o.lookup(pointOf(a), pointOf(b), Hints{}).Meters
}

// TravelTime returns the travel time between a and b in minutes.
func (o *Oracle) TravelTime(a, b Location) float64 {
	return o.lookup(pointOf(a), pointOf(b), Hints{}).Minutes
}

func (o *Oracle) lookup(a, b Point, h Hints) Leg {
	if a == b {
		return Leg{}
	}
	k := NewPairKey(a, b, h)
	o.mu.RLock()
	d, okD := o.distances[k]
	t, okT := o.times[k]
	o.mu.RUnlock()
	if okD && okT {
		return Leg{Meters: d, Minutes: t}
	}
	est := o.estimate(k.A, k.B)
	if o.provider != nil {
		return est
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if v, ok := o.distances[k]; ok {
		est.Meters = v
	} else {
		o.distances[k] = est.Meters
	}
	if v, ok := o.times[k]; ok {
		est.Minutes = v
	} else {
		o.times[k] = est.Minutes
	}
	return est
}

func (o *Oracle) estimate(a, b Point) Leg {
	m := haversine(a.Lat, a.Lng, b.Lat, b.Lng)
	return Leg{Meters: m, Minutes: o.minutesFor(m)}
}

func (o *Oracle) minutesFor(meters float64) float64 {
	return meters / (o.speedKph * 1000 / 60)
}

// Precompute fills the cache for every pair of locations so the algorithms
// never compute distances in their inner loops. It is the only place the
// Provider and PairStore are consulted. Only provider legs are written to the
// PairStore.
func (o *Oracle) Precompute(ctx context.Context, locations []Location, hints Hints) error {
	index := map[Point]int{}
	points := make([]Point, 0, len(locations))
	for _, l := range locations {
		p := pointOf(l)
		if _, ok := index[p]; ok {
			continue
		}
		index[p] = len(points)
		points = append(points, p)
	}
	var missing []PairKey
	o.mu.RLock()
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			k := NewPairKey(points[i], points[j], hints)
			_, okD := o.distances[k]
			_, okT := o.times[k]
			if !okD || !okT {
				missing = append(missing, k)
			}
		}
	}
	o.mu.RUnlock()
	if len(missing) == 0 {
		return nil
	}

	found := make(map[PairKey]Leg, len(missing))
	if o.store != nil {
		legs, err := o.store.GetLegs(ctx, missing)
		if err != nil {
			log.Warn().Err(err).Int("pairs", len(missing)).Msg("distance store lookup failed")
		}
		for k, leg := range legs {
			found[k] = leg
		}
	}
	fresh := map[PairKey]Leg{}
	if o.provider != nil && len(found) < len(missing) {
		meters, seconds, err := o.provider.Table(ctx, points, hints)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Int("points", len(points)).Msg("routing provider failed, using great-circle estimates")
		case len(meters) != len(points) || len(seconds) != len(points):
			log.Warn().Int("points", len(points)).Int("rows", len(meters)).Msg("routing provider returned a malformed table")
		default:
			for _, k := range missing {
				if _, ok := found[k]; ok {
					continue
				}
				i, j := index[k.A], index[k.B]
				if j >= len(meters[i]) || j >= len(seconds[i]) {
					continue
				}
				m, s := meters[i][j], seconds[i][j]
				if m < 0 || s < 0 || math.IsNaN(m) || math.IsNaN(s) || math.IsInf(m, 0) || math.IsInf(s, 0) {
					continue
				}
				fresh[k] = Leg{Meters: m, Minutes: s / 60}
			}
		}
	}
	estimated := map[PairKey]Leg{}
	if o.provider == nil {
		for _, k := range missing {
			if _, ok := found[k]; !ok {
				estimated[k] = o.estimate(k.A, k.B)
			}
		}
	}

	o.mu.Lock()
	for _, src := range []map[PairKey]Leg{found, fresh, estimated} {
		for k, leg := range src {
			if _, ok := o.distances[k]; !ok {
				o.distances[k] = leg.Meters
			}
			if _, ok := o.times[k]; !ok {
				o.times[k] = leg.Minutes
			}
		}
	}
	o.mu.Unlock()

	if o.store != nil && len(fresh) > 0 {
		if err := o.store.PutLegs(ctx, fresh); err != nil {
			log.Warn().Err(err).Int("pairs", len(fresh)).Msg("distance store write failed")
		}
	}
	return nil
}

// ClearCache drops every memoized pair.
func (o *Oracle) ClearCache() {
	o.mu.Lock()
	o.distances = map[PairKey]float64{}
	o.times = map[PairKey]float64{}
	o.mu.Unlock()
}

func (o *Oracle) CacheStats() CacheStats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return CacheStats{Distances: len(o.distances), Times: len(o.times)}
}

// table is a dense per-call snapshot of the oracle for the working set.
type table struct {
	nodes   []Location
	meters  [][]float64
	minutes [][]float64
}

func (o *Oracle) table(nodes []Location, h Hints) *table {
	n := len(nodes)
	t := &table{nodes: nodes, meters: make([][]float64, n), minutes: make([][]float64, n)}
	for i := range nodes {
		t.meters[i] = make([]float64, n)
		t.minutes[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			leg := o.lookup(pointOf(nodes[i]), pointOf(nodes[j]), h)
			t.meters[i][j], t.meters[j][i] = leg.Meters, leg.Meters
			t.minutes[i][j], t.minutes[j][i] = leg.Minutes, leg.Minutes
		}
	}
	return t
}

// totals sums leg distance and time along route, adding the service time of
// every stop after the first.
func (t *table) totals(route []int) (meters, minutes float64) {
	for k := 1; k < len(route); k++ {
		a, b := route[k-1], route[k]
		meters += t.meters[a][b]
		minutes += t.minutes[a][b] + t.nodes[b].ServiceTime
	}
	return meters, minutes
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
