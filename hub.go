package main

import (
	"encoding/json"
	"sync"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub fans game updates out to websocket clients. A client subscribed with a
// game ID only receives updates for that game; an empty subscription gets
// everything.
type Hub struct {
	mu            sync.Mutex
	clients       map[*Client]struct{}
	broadcastGame chan GameStateDTO
}

type Client struct {
	hub    *Hub
	gameID string
	send   chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]struct{}),
		broadcastGame: make(chan GameStateDTO, 32),
	}
}

func (h *Hub) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-h.broadcastGame:
			h.mu.Lock()
			for client := range h.clients {
				if client.gameID != "" && client.gameID != payload.ID {
					continue
				}
				client.sendJSON(wsMessage{Type: "game", Payload: mustMarshal(payload)})
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Publish(payload GameStateDTO) {
	select {
	case h.broadcastGame <- payload:
	default:
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (c *Client) sendJSON(msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
