// Package api implements the HTTP surface of the route optimizer.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"routeopt/internal/config"
	"routeopt/internal/distcache"
	"routeopt/internal/opt"
	"routeopt/internal/routing"
	"routeopt/internal/store"
	"routeopt/internal/worker"
)

type Server struct {
	Config config.Config
	Store  store.Store
	Solver *opt.Solver
	Broker EventBroker
	Runner *worker.Runner
	// Tasks is nil without Redis; async requests are then rejected.
	Tasks    worker.TaskDistributor
	RedisOpt asynq.RedisConnOpt
	// Shared is the Redis distance cache tier, nil without Redis.
	Shared *distcache.Redis

	validate     *validator.Validate
	maxLocations int
	limiter      *clientLimiter
}

// NewServer wires a Server from cfg. Without DATABASE_URL it uses the
// in-memory store; without REDIS_URL it uses the in-process broker and runs
// every optimization synchronously.
func NewServer(cfg config.Config) (*Server, error) {
	var st store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		st = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := sp.Migrate(context.Background()); err != nil {
			return nil, err
		}
		st = sp
	}

	s := &Server{Config: cfg, Store: st, Broker: NewBroker()}
	oracleOpts := []opt.OracleOption{opt.WithSpeedKph(cfg.Optimizer.SpeedKph)}
	if cfg.Routing.URL != "" {
		oracleOpts = append(oracleOpts, opt.WithProvider(routing.NewClient(cfg.Routing.URL,
			routing.WithProfile(cfg.Routing.Profile),
			routing.WithRateLimit(cfg.Routing.RPS, cfg.Routing.Burst),
			routing.WithHTTPClient(&http.Client{Timeout: cfg.Routing.Timeout}),
		)))
	}
	if cfg.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
			s.Broker = rb
		} else {
			log.Warn().Err(err).Msg("redis broker unavailable, using in-process broker")
		}
		if shared, err := distcache.NewFromURL(cfg.RedisURL, cfg.Cache.TTL); err == nil {
			s.Shared = shared
			oracleOpts = append(oracleOpts, opt.WithPairStore(shared))
		} else {
			log.Warn().Err(err).Msg("shared distance cache unavailable")
		}
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		s.RedisOpt = redisOpt
		s.Tasks = worker.NewRedisTaskDistributor(redisOpt)
	}

	s.Solver = opt.NewSolver(
		opt.WithOracle(opt.NewOracle(oracleOpts...)),
		opt.WithDefaults(cfg.Options()),
	)
	s.init()
	return s, nil
}

// NewServerWith builds a Server around existing components.
func NewServerWith(cfg config.Config, st store.Store, solver *opt.Solver, broker EventBroker, tasks worker.TaskDistributor) *Server {
	s := &Server{Config: cfg, Store: st, Solver: solver, Broker: broker, Tasks: tasks}
	s.init()
	return s
}

func (s *Server) init() {
	s.Runner = worker.NewRunner(s.Store, s.Solver, s.Broker)
	s.validate = newValidator()
	s.maxLocations = s.Config.Optimizer.MaxLocations
	if s.maxLocations <= 0 {
		s.maxLocations = config.Default().Optimizer.MaxLocations
	}
	s.limiter = newClientLimiter(s.Config.Rate.RPS, s.Config.Rate.Burst)
}
