package opt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluateTotalsAndScore(t *testing.T) {
	e := NewEvaluator(NewOracle())
	route := []Location{
		{ID: "a", Lat: 0, Lng: 0},
		{ID: "b", Lat: 0, Lng: 0.01, ServiceTime: 5},
	}
	ev := e.Evaluate(route)

	km := haversine(0, 0, 0, 0.01) / 1000
	drive := km * 1000 / (50000.0 / 60)
	require.InDelta(t, km*1000, ev.TotalDistance, 1e-6)
	require.InDelta(t, drive+5, ev.TotalTime, 1e-6)
	require.InDelta(t, km*0.12+(drive+5)/60*25, ev.TotalCost, 1e-6)
	require.InDelta(t, 100-2*km/2-(drive+5)/4, ev.Score, 1e-6)
}

func TestScoreIsFloored(t *testing.T) {
	ev := summarize(1e9, 1e9, 2)
	require.Zero(t, ev.Score)
}

func TestBetterBreaksTiesOnEnergy(t *testing.T) {
	a := Evaluation{Score: 50, TotalDistance: 10, TotalTime: 1}
	b := Evaluation{Score: 50, TotalDistance: 20, TotalTime: 1}
	require.True(t, better(a, b))
	require.False(t, better(b, a))
	require.False(t, better(a, a))
	require.True(t, better(Evaluation{Score: 51, TotalDistance: 99}, a))
}

func TestValidateReportsEveryBreach(t *testing.T) {
	e := NewEvaluator(NewOracle())
	departure := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	route := []Location{
		{ID: "a", Lat: 0, Lng: 0, CapacityRequired: 3},
		{ID: "b", Lat: 0, Lng: 1, CapacityRequired: 4, TimeWindow: &TimeWindow{
			EarliestArrival: departure,
			LatestDeparture: departure.Add(30 * time.Minute),
		}},
	}
	c := Constraints{MaxDistance: 1000, MaxTime: 10, VehicleCapacity: 5, RespectTimeWindows: true}

	got := e.Validate(route, c, departure)
	require.Len(t, got, 4)
	require.Contains(t, got[0], "total distance")
	require.Contains(t, got[1], "total time")
	require.Equal(t, "required capacity 7.0 exceeds vehicle capacity 5.0", got[2])
	require.Contains(t, got[3], `location "b"`)

	require.Empty(t, e.Validate(route, Constraints{}, departure))
}

func TestTimingsWaitForWindow(t *testing.T) {
	departure := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	opens := departure.Add(time.Hour)
	stops := []Location{
		{ID: "a"},
		{ID: "b", ServiceTime: 10, TimeWindow: &TimeWindow{EarliestArrival: opens}},
	}
	got := timings(stops, []float64{0, 15}, departure)
	require.Equal(t, departure.Add(15*time.Minute), got[1].arrive)
	require.Equal(t, opens.Add(10*time.Minute), got[1].leave)
}
