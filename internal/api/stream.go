package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Tier rebuild event types.
const (
	EventStarted   = "started"
	EventProgress  = "progress"
	EventViolation = "violation"
	EventComplete  = "complete"
	EventCancelled = "cancelled"
	EventError     = "error"
)

const streamWriteTimeout = 10 * time.Second

// TierEvent describes websocket payloads emitted during tier rebuilds.
type TierEvent struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Total     int       `json:"total,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Cohorts   int       `json:"cohorts,omitempty"`
	Top       []TierDTO `json:"top,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Terminal reports whether the event ends a rebuild.
func (e TierEvent) Terminal() bool {
	switch e.Type {
	case EventComplete, EventCancelled, EventError:
		return true
	}
	return false
}

// statusEvent reports whether the event describes where a rebuild stands.
// Violation notices are only relayed live.
func statusEvent(eventType string) bool {
	switch eventType {
	case EventStarted, EventProgress, EventComplete, EventCancelled, EventError:
		return true
	}
	return false
}

// streamClient is one websocket subscriber. A non-empty jobID limits the
// client to events of that rebuild.
type streamClient struct {
	conn  *websocket.Conn
	jobID string
	mu    sync.Mutex
}

func (c *streamClient) wants(event TierEvent) bool {
	return c.jobID == "" || c.jobID == event.JobID
}

func (c *streamClient) send(event TierEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// TierNotifier fans rebuild events out to websocket subscribers and keeps
// the latest status so late subscribers and the status endpoint can catch
// up. The status of a finished rebuild keeps its top list.
type TierNotifier struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	status  *TierEvent
}

// NewTierNotifier constructs a notifier instance.
func NewTierNotifier() *TierNotifier {
	return &TierNotifier{clients: make(map[*streamClient]struct{})}
}

// Register subscribes a connection, optionally to one job, and replays the
// latest status when it concerns that job.
func (n *TierNotifier) Register(conn *websocket.Conn, jobID string) *streamClient {
	client := &streamClient{conn: conn, jobID: jobID}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.status
	n.mu.Unlock()

	if status != nil && client.wants(*status) {
		if err := client.send(*status); err != nil {
			n.Unregister(client)
			return nil
		}
	}
	return client
}

// Unregister removes the client and closes the socket.
func (n *TierNotifier) Unregister(client *streamClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	_, ok := n.clients[client]
	delete(n.clients, client)
	n.mu.Unlock()
	if ok {
		_ = client.conn.Close()
	}
}

// Broadcast records status events and sends the event to every interested
// client. Writes happen outside the notifier lock; clients that fail a
// write are dropped.
func (n *TierNotifier) Broadcast(event TierEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if statusEvent(event.Type) {
		recorded := event
		if !event.Terminal() {
			recorded.Top = nil
		}
		n.status = &recorded
	}
	targets := make([]*streamClient, 0, len(n.clients))
	for client := range n.clients {
		if client.wants(event) {
			targets = append(targets, client)
		}
	}
	n.mu.Unlock()

	for _, client := range targets {
		if err := client.send(event); err != nil {
			n.Unregister(client)
		}
	}
}

// LastStatus returns a copy of the latest status event, or nil.
func (n *TierNotifier) LastStatus() *TierEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status == nil {
		return nil
	}
	status := *n.status
	status.Top = append([]TierDTO(nil), n.status.Top...)
	return &status
}

// Subscribers returns the number of connected clients.
func (n *TierNotifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.clients)
}
