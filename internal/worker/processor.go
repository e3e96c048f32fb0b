package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"routeopt/internal/store"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

type TaskProcessor interface {
	Start() error
	Shutdown()
	ProcessTaskOptimizeRoute(ctx context.Context, task *asynq.Task) error
}

type RedisTaskProcessor struct {
	server *asynq.Server
	runner *Runner
}

func NewRedisTaskProcessor(redisOpt asynq.RedisConnOpt, concurrency int, runner *Runner) *RedisTaskProcessor {
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueCritical: 10,
				QueueDefault:  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).
					Bytes("payload", task.Payload()).Msg("process task failed")
			}),
			Logger:          NewLogger(),
			ShutdownTimeout: 10 * time.Second,
		},
	)
	return &RedisTaskProcessor{server: server, runner: runner}
}

// NewTestTaskProcessor builds a processor without a Redis connection.
func NewTestTaskProcessor(runner *Runner) *RedisTaskProcessor {
	return &RedisTaskProcessor{runner: runner}
}

func (p *RedisTaskProcessor) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOptimizeRoute, p.ProcessTaskOptimizeRoute)
	return p.server.Start(mux)
}

func (p *RedisTaskProcessor) Shutdown() {
	p.server.Shutdown()
}

// ProcessTaskOptimizeRoute solves a pending optimization. Redelivered tasks for
// finished optimizations are acknowledged without solving again.
func (p *RedisTaskProcessor) ProcessTaskOptimizeRoute(ctx context.Context, task *asynq.Task) error {
	var payload PayloadOptimizeRoute
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.OptimizationID == "" {
		return fmt.Errorf("missing optimization id: %w", asynq.SkipRetry)
	}
	o, err := p.runner.store.GetOptimization(ctx, payload.OptimizationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("optimization %s: %w", payload.OptimizationID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("load optimization: %w", err)
	}
	if o.Status.Done() {
		log.Info().Str("optimization_id", o.ID).Str("status", string(o.Status)).Msg("optimization already finished")
		return nil
	}
	_, err = p.runner.Run(ctx, o, "async")
	return err
}

var _ TaskProcessor = (*RedisTaskProcessor)(nil)
