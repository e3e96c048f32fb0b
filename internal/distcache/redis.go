// Package distcache shares memoized legs between optimizer instances through
// Redis.
package distcache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"routeopt/internal/opt"
)

const (
	keyPrefix  = "routeopt:leg:"
	DefaultTTL = 7 * 24 * time.Hour
	batchSize  = 500
)

// Redis implements opt.PairStore. Values are "meters,minutes".
type Redis struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func New(rdb redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

func NewFromURL(url string, ttl time.Duration) (*Redis, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(o), ttl), nil
}

func (r *Redis) GetLegs(ctx context.Context, keys []opt.PairKey) (map[opt.PairKey]opt.Leg, error) {
	out := make(map[opt.PairKey]opt.Leg, len(keys))
	for start := 0; start < len(keys); start += batchSize {
		batch := keys[start:min(start+batchSize, len(keys))]
		names := make([]string, len(batch))
		for i, k := range batch {
			names[i] = Key(k)
		}
		vals, err := r.rdb.MGet(ctx, names...).Result()
		if err != nil {
			return out, fmt.Errorf("mget legs: %w", err)
		}
		for i, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue
			}
			leg, err := Decode(s)
			if err != nil {
				log.Warn().Err(err).Str("key", names[i]).Msg("skipping malformed cached leg")
				continue
			}
			out[batch[i]] = leg
		}
	}
	return out, nil
}

func (r *Redis) PutLegs(ctx context.Context, legs map[opt.PairKey]opt.Leg) error {
	if len(legs) == 0 {
		return nil
	}
	_, err := r.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, leg := range legs {
			p.Set(ctx, Key(k), Encode(leg), r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set legs: %w", err)
	}
	return nil
}

// Clear removes every cached leg. It scans rather than flushing the database.
func (r *Redis) Clear(ctx context.Context) (int, error) {
	n := 0
	iter := r.rdb.Scan(ctx, 0, keyPrefix+"*", batchSize).Iterator()
	var batch []string
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		deleted, err := r.rdb.Del(ctx, batch...).Result()
		n += int(deleted)
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return n, fmt.Errorf("delete legs: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("scan legs: %w", err)
	}
	if err := flush(); err != nil {
		return n, fmt.Errorf("delete legs: %w", err)
	}
	return n, nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

func Key(k opt.PairKey) string { return keyPrefix + k.String() }

func Encode(l opt.Leg) string {
	return strconv.FormatFloat(l.Meters, 'f', 3, 64) + "," + strconv.FormatFloat(l.Minutes, 'f', 4, 64)
}

func Decode(s string) (opt.Leg, error) {
	m, t, ok := strings.Cut(s, ",")
	if !ok {
		return opt.Leg{}, fmt.Errorf("leg %q: missing separator", s)
	}
	meters, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return opt.Leg{}, fmt.Errorf("leg %q: %w", s, err)
	}
	minutes, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return opt.Leg{}, fmt.Errorf("leg %q: %w", s, err)
	}
	if meters < 0 || minutes < 0 {
		return opt.Leg{}, fmt.Errorf("leg %q: negative value", s)
	}
	return opt.Leg{Meters: meters, Minutes: minutes}, nil
}

var _ opt.PairStore = (*Redis)(nil)
