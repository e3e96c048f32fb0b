package maintenance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"routeopt/internal/opt"
)

type fakeCache struct {
	pairs   int
	cleared int
}

func (f *fakeCache) CacheStats() opt.CacheStats { return opt.CacheStats{Distances: f.pairs, Times: f.pairs} }

func (f *fakeCache) ClearCache() {
	f.pairs = 0
	f.cleared++
}

type fakeShared struct {
	calls int
	err   error
}

func (f *fakeShared) Clear(ctx context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func TestSweepRespectsThreshold(t *testing.T) {
	c := &fakeCache{pairs: 10}
	shared := &fakeShared{}
	s := NewScheduler(c, shared, "@every 1h", 10)

	cleared, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.False(t, cleared)
	require.Zero(t, c.cleared)

	c.pairs = 11
	cleared, err = s.Sweep(context.Background())
	require.NoError(t, err)
	require.True(t, cleared)
	require.Equal(t, 1, c.cleared)
	require.Equal(t, 1, shared.calls)
}

func TestSweepReportsSharedFailure(t *testing.T) {
	c := &fakeCache{pairs: 1}
	s := NewScheduler(c, &fakeShared{err: errors.New("down")}, "@every 1h", 0)
	cleared, err := s.Sweep(context.Background())
	require.True(t, cleared)
	require.ErrorContains(t, err, "down")
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeCache{}, nil, "every tuesday", 0)
	require.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(&fakeCache{}, nil, "@every 1h", 0)
	require.NoError(t, s.Start())
	s.Stop()
}
