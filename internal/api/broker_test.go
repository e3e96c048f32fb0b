package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"routeopt/internal/model"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("o1")
	other := b.Subscribe("o2")

	evt := model.Event{Type: model.EventCompleted, Data: map[string]any{"x": 1}}
	b.Publish("o1", evt)

	select {
	case got := <-ch:
		require.Equal(t, evt.Type, got.Type)
		require.Equal(t, 1, got.Data["x"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	select {
	case got := <-other:
		t.Fatalf("unexpected event on other channel: %+v", got)
	default:
	}

	b.Unsubscribe("o1", ch)
	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")

	// a second unsubscribe is a no-op
	b.Unsubscribe("o1", ch)
	b.Publish("o1", evt)
}
