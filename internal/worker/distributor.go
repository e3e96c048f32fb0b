package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const TaskOptimizeRoute = "route:optimize"

type PayloadOptimizeRoute struct {
	OptimizationID string `json:"optimization_id"`
}

// TaskDistributor enqueues background work.
type TaskDistributor interface {
	DistributeTaskOptimizeRoute(ctx context.Context, payload *PayloadOptimizeRoute, opts ...asynq.Option) error
}

type RedisTaskDistributor struct {
	client *asynq.Client
}

func NewRedisTaskDistributor(redisOpt asynq.RedisConnOpt) *RedisTaskDistributor {
	return &RedisTaskDistributor{client: asynq.NewClient(redisOpt)}
}

func (d *RedisTaskDistributor) DistributeTaskOptimizeRoute(ctx context.Context, payload *PayloadOptimizeRoute, opts ...asynq.Option) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(TaskOptimizeRoute, jsonPayload, opts...)
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue task: %w", err)
	}
	log.Debug().
		Str("type", task.Type()).
		Str("queue", info.Queue).
		Str("optimization_id", payload.OptimizationID).
		Msg("enqueued optimization task")
	return nil
}

func (d *RedisTaskDistributor) Close() error { return d.client.Close() }
