package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/your-org/drone-relay/internal/observability"
	"github.com/your-org/drone-relay/internal/state"
)

// Conn is the slice of a websocket connection the hub needs. Satisfied by
// *websocket.Conn; tests substitute fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub tracks connected viewers and broadcasts frames and state updates to all
// of them. A single failing viewer is unregistered and never aborts delivery
// to the rest.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	viewers map[uint64]Conn

	// writeMu serializes all outbound writes so frames reach every viewer in
	// emission order and no two goroutines write one connection concurrently.
	writeMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{viewers: make(map[uint64]Conn)}
}

// Register adds a viewer and returns its assigned id.
func (h *Hub) Register(conn Conn) uint64 {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.viewers[id] = conn
	n := len(h.viewers)
	h.mu.Unlock()

	observability.ViewersConnected.Set(float64(n))
	slog.Info("viewer connected", "viewer_id", id, "viewers", n)
	return id
}

// Unregister removes a viewer. Safe to call repeatedly or for an unknown id.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	_, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	n := len(h.viewers)
	h.mu.Unlock()

	if ok {
		observability.ViewersConnected.Set(float64(n))
		slog.Info("viewer disconnected", "viewer_id", id, "viewers", n)
	}
}

// Count returns the number of registered viewers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.viewers)
}

// Broadcast delivers one video frame to every registered viewer as a binary
// message. The viewer set is snapshotted first, so registration changes during
// delivery are safe. A viewer whose send fails is unregistered in place.
func (h *Hub) Broadcast(frame []byte) {
	h.send(websocket.BinaryMessage, frame)
	observability.FramesBroadcast.Inc()
}

// stateMessage is the textual viewer message carrying telemetry.
type stateMessage struct {
	Type      string          `json:"type"`
	Value     state.Telemetry `json:"value"`
	Timestamp time.Time       `json:"timestamp"`
}

// BroadcastState delivers a droneState message to every registered viewer.
func (h *Hub) BroadcastState(t state.Telemetry) {
	msg := stateMessage{Type: "droneState", Value: t, Timestamp: time.Now()}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal state message", "error", err)
		return
	}
	h.send(websocket.TextMessage, data)
}

func (h *Hub) send(messageType int, data []byte) {
	h.mu.Lock()
	targets := make(map[uint64]Conn, len(h.viewers))
	for id, conn := range h.viewers {
		targets[id] = conn
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	for id, conn := range targets {
		if err := conn.WriteMessage(messageType, data); err != nil {
			slog.Warn("viewer send failed, dropping", "viewer_id", id, "error", err)
			h.Unregister(id)
			_ = conn.Close()
		}
	}
}

// CloseAll disconnects every viewer, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	viewers := h.viewers
	h.viewers = make(map[uint64]Conn)
	h.mu.Unlock()

	for _, conn := range viewers {
		_ = conn.Close()
	}
	observability.ViewersConnected.Set(0)
}
