package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DecisionEvent describes websocket payloads emitted when an arbitration
// completes.
type DecisionEvent struct {
	Type      string       `json:"type"`
	RunID     string       `json:"run_id"`
	Decision  *DecisionDTO `json:"decision,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// DecisionNotifier tracks active websocket clients and broadcasts each
// completed decision to audit dashboards. New clients immediately receive
// the most recent decision.
type DecisionNotifier struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    *DecisionEvent
}

// NewDecisionNotifier constructs a notifier instance.
func NewDecisionNotifier() *DecisionNotifier {
	return &DecisionNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle.
func (n *DecisionNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	last := n.last
	n.mu.Unlock()

	if last != nil {
		_ = client.writeJSON(*last)
	}
	return client
}

// Unregister removes the websocket client and closes the socket.
func (n *DecisionNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the event to all registered clients, dropping any whose
// write fails.
func (n *DecisionNotifier) Broadcast(event DecisionEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type == "decision" {
		snapshot := event
		n.last = &snapshot
	}
	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
