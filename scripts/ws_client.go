// Package main submits an asynchronous optimization and waits for its result
// on the events WebSocket.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"routeopt/internal/model"
)

const demoBody = `{
	"async": true,
	"locations": [
		{"id":"depot","lat":40.7128,"lng":-74.0060},
		{"id":"s1","lat":40.7306,"lng":-73.9866,"priority":5},
		{"id":"s2","lat":40.7580,"lng":-73.9855},
		{"id":"s3","lat":40.7061,"lng":-74.0087,"serviceTime":10},
		{"id":"s4","lat":40.7489,"lng":-73.9680}
	],
	"constraints": {"startLocation":{"id":"depot","lat":40.7128,"lng":-74.0060}},
	"options": {"algorithm":"hybrid"}
}`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	resp, err := http.Post(base+"/v1/optimize", "application/json", bytes.NewReader([]byte(demoBody)))
	if err != nil {
		log.Fatal().Err(err).Msg("submit optimization")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		log.Fatal().Int("status", resp.StatusCode).Msg("async optimization not accepted")
	}
	var accepted struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		log.Fatal().Err(err).Msg("decode response")
	}
	log.Info().Str("id", accepted.ID).Msg("optimization accepted")

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/optimizations/" + accepted.ID + "/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("dial")
	}
	defer func() { _ = c.Close() }()

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Minute))
	var evt model.Event
	if err := c.ReadJSON(&evt); err != nil {
		log.Fatal().Err(err).Msg("read event")
	}
	out, _ := json.MarshalIndent(evt, "", "  ")
	fmt.Println(string(out))
}
