package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"routeopt/internal/model"
)

type EventBroker interface {
	Subscribe(id string) chan model.Event
	Unsubscribe(id string, ch chan model.Event)
	Publish(id string, evt model.Event)
	Ping() error
}

// RedisBroker implements EventBroker over Redis Pub/Sub so that events from
// worker processes reach websocket clients on any API replica.
type RedisBroker struct {
	rdb *redis.Client
	mu  sync.Mutex
	ps  map[chan model.Event]*redis.PubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(o), ps: map[chan model.Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(id string) chan model.Event {
	ch := make(chan model.Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(id))
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		log.Warn().Err(err).Str("optimization_id", id).Msg("redis subscribe failed")
	}
	b.mu.Lock()
	b.ps[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

// Unsubscribe closes the Pub/Sub connection; the fan-out goroutine then
// closes ch.
func (b *RedisBroker) Unsubscribe(id string, ch chan model.Event) {
	b.mu.Lock()
	ps := b.ps[ch]
	delete(b.ps, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(id string, evt model.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(id), data).Err(); err != nil {
		log.Warn().Err(err).Str("optimization_id", id).Msg("publish event failed")
	}
}

func (b *RedisBroker) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBroker) chanName(id string) string { return "optimization:" + id }
