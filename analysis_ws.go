package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AnalysisHub streams queue progress events to subscribed clients.
type AnalysisHub struct {
	mu        sync.Mutex
	clients   map[*AnalysisClient]struct{}
	broadcast chan analysisPayload
}

type AnalysisClient struct {
	hub  *AnalysisHub
	conn *websocket.Conn
	send chan []byte
}

func NewAnalysisHub() *AnalysisHub {
	return &AnalysisHub{
		clients:   make(map[*AnalysisClient]struct{}),
		broadcast: make(chan analysisPayload, 64),
	}
}

func (h *AnalysisHub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				client.sendJSON(wsMessage{Type: "analysis", Payload: mustMarshal(payload)})
			}
			h.mu.Unlock()
		}
	}
}

func (h *AnalysisHub) Publish(payload analysisPayload) {
	select {
	case h.broadcast <- payload:
	default:
	}
}

func (h *AnalysisHub) Register(c *AnalysisClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *AnalysisHub) Unregister(c *AnalysisClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (c *AnalysisClient) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func serveAnalysisWS(hub *AnalysisHub, queue *AnalysisQueue, w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &AnalysisClient{hub: hub, conn: conn, send: make(chan []byte, 16)}
	hub.Register(client)

	initial := analysisPayload{
		Event:        "snapshot",
		TotalInQueue: queue.Len(),
		UpdatedAt:    time.Now().UnixMilli(),
	}
	client.sendJSON(wsMessage{Type: "analysis", Payload: mustMarshal(initial)})

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, client.send); err != nil {
			return
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.Unregister(client)
			return
		}
	}
}

func hashToBoardID(hash uint64) string {
	return "0x" + strconv.FormatUint(hash, 16)
}

func boardIDToHash(id string) (uint64, bool) {
	hash, err := strconv.ParseUint(strings.TrimPrefix(id, "0x"), 16, 64)
	return hash, err == nil
}
