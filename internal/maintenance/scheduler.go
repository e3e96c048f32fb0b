// Package maintenance runs periodic upkeep of the optimizer's distance cache.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"routeopt/internal/metrics"
	"routeopt/internal/opt"
)

// Cache is the part of the solver the scheduler maintains.
type Cache interface {
	CacheStats() opt.CacheStats
	ClearCache()
}

// SharedCache is an optional second tier cleared together with the memory cache.
type SharedCache interface {
	Clear(ctx context.Context) (int, error)
}

// Scheduler clears the distance cache on a cron schedule once it holds more
// than maxPairs entries.
type Scheduler struct {
	cron     *cron.Cron
	cache    Cache
	shared   SharedCache
	schedule string
	maxPairs int
}

func NewScheduler(cache Cache, shared SharedCache, schedule string, maxPairs int) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		cache:    cache,
		shared:   shared,
		schedule: schedule,
		maxPairs: maxPairs,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			log.Error().Err(err).Msg("cache sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	log.Info().Str("schedule", s.schedule).Int("max_pairs", s.maxPairs).Msg("cache maintenance scheduler started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("cache maintenance scheduler stopped")
}

// Sweep clears the caches if the memory cache is over its limit and reports
// whether it did. maxPairs <= 0 clears unconditionally.
func (s *Scheduler) Sweep(ctx context.Context) (bool, error) {
	stats := s.cache.CacheStats()
	metrics.ObserveCache(stats)
	if s.maxPairs > 0 && stats.Distances <= s.maxPairs {
		return false, nil
	}
	s.cache.ClearCache()
	metrics.CacheClears.WithLabelValues("schedule").Inc()
	metrics.ObserveCache(s.cache.CacheStats())
	log.Info().Int("pairs", stats.Distances).Msg("distance cache cleared")
	if s.shared == nil {
		return true, nil
	}
	n, err := s.shared.Clear(ctx)
	if err != nil {
		return true, fmt.Errorf("clear shared cache: %w", err)
	}
	log.Info().Int("keys", n).Msg("shared distance cache cleared")
	return true, nil
}
