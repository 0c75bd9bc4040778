// Package main runs a demo WebSocket client for dispatch cycles.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// demoSnapshot is a police car and an ambulance near two incidents, the
// second one arriving a second later.
const demoSnapshot = `{
  "cars": [
    {"id": 1, "lat": -31.95, "lon": 115.86, "capability": "A"},
    {"id": 2, "lat": -31.96, "lon": 115.84, "capability": "E"}
  ],
  "emergencies": [
    {"id": 100, "lat": -31.94, "lon": 115.85, "priority": "Urgent", "requirements": [0, 0, 0, 0, 1]},
    {"id": 101, "lat": -31.97, "lon": 115.87, "priority": "Immediate", "requirements": [1, 0, 0, 0, 0], "offset": 1000}
  ]
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Connect WS first so the cycles triggered below are seen.
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/dispatch/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Data))
		}
	}()

	post := func(clockMs int) {
		var snap map[string]any
		_ = json.Unmarshal([]byte(demoSnapshot), &snap)
		snap["clockMs"] = clockMs
		body, _ := json.Marshal(snap)
		resp, err := http.Post(base+"/optimise/", "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		var p struct {
			Cycle       uint64            `json:"cycle"`
			Assignments []json.RawMessage `json:"assignments"`
			Pending     []string          `json:"pending"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&p)
		log.Printf("POST clockMs=%d -> %d: cycle %d, %d assignments, pending %v", clockMs, resp.StatusCode, p.Cycle, len(p.Assignments), p.Pending)
	}
	post(0)
	time.Sleep(500 * time.Millisecond)
	post(1500)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
