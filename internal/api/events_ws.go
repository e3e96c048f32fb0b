package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"routeopt/internal/model"
	"routeopt/internal/store"
)

const (
	eventsWait   = 10 * time.Minute
	pingInterval = 20 * time.Second
	writeWait    = 5 * time.Second
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// EventsHandler streams the terminal event of optimization id over a
// WebSocket and then closes the connection.
func (s *Server) EventsHandler(w http.ResponseWriter, r *http.Request, id string) {
	// Subscribe before reading the record so a completion between the two
	// is not missed.
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)

	o, err := s.Store.GetOptimization(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "optimization not found", r.URL.Path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get optimization failed", err.Error(), r.URL.Path)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	send := func(evt model.Event) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(evt); err != nil {
			log.Debug().Err(err).Str("optimization_id", id).Msg("event write failed")
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	}
	if o.Status.Done() {
		send(model.EventFor(o))
		return
	}

	// Reader drains control frames and notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(1 << 10)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	timeout := time.NewTimer(eventsWait)
	defer timeout.Stop()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return
			}
			send(evt)
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-timeout.C:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "timeout"), time.Now().Add(writeWait))
			return
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
