package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"breakout-scanner/internal/bus"
	"breakout-scanner/internal/logger"
)

// Envelope is one WebSocket message.
type Envelope struct {
	Type   string `json:"type"` // "verdict", "replay_done", "pong"
	ScanID string `json:"scan_id,omitempty"`
	Seq    int64  `json:"seq"`
	TS     string `json:"ts"`
	Data   any    `json:"data,omitempty"`
}

// Hub manages WebSocket clients and fans verdicts from the bus out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64

	replay *ReplayBuffer
	log    zerolog.Logger

	// OnClients, when set, is called with the client count after every
	// connect and disconnect.
	OnClients func(n int)
}

// NewHub creates a hub keeping the last replaySize envelopes for new clients.
func NewHub(replaySize int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  NewReplayBuffer(replaySize),
		log:     logger.Component("ws_hub"),
	}
}

// Run broadcasts every bus event until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Publish(ev)
		}
	}
}

// Publish wraps ev in a verdict envelope, stores it for replay and sends it
// to every connected client. Slow clients miss the message.
func (h *Hub) Publish(ev bus.Event) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	data, err := json.Marshal(Envelope{
		Type:   "verdict",
		ScanID: ev.ScanID,
		Seq:    seq,
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Data:   ev.Verdict,
	})
	if err != nil {
		h.mu.Unlock()
		h.log.Error().Err(err).Str("symbol", ev.Verdict.Symbol).Msg("envelope marshal failed")
		return
	}
	// Pushed under the lock so a client registering now sees either the
	// replayed entry or the live send, never neither.
	h.replay.Push(seq, data)
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("symbol", ev.Verdict.Symbol).Msg("ws client too slow, dropping verdict")
		}
	}
	h.mu.Unlock()
}

// Seq returns the sequence number of the last published envelope.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Register starts serving conn, first replaying envelopes newer than afterSeq.
func (h *Hub) Register(conn *websocket.Conn, afterSeq int64) *Client {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
	}

	h.mu.Lock()
	var backlog [][]byte
	for _, e := range h.replay.Since(afterSeq) {
		backlog = append(backlog, e.Data)
	}
	done, _ := json.Marshal(Envelope{Type: "replay_done", Seq: h.seq, TS: time.Now().UTC().Format(time.RFC3339Nano)})
	backlog = append(backlog, done)
	client.queue(backlog)

	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Int("clients", count).Int("replayed", len(backlog)-1).Msg("ws client connected")
	h.clientsChanged(count)

	go client.writePump()
	go client.readPump()
	return client
}

// RemoveClient removes a client from the hub.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Int("clients", count).Msg("ws client disconnected")
	h.clientsChanged(count)
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) clientsChanged(n int) {
	if h.OnClients != nil {
		h.OnClients(n)
	}
}
