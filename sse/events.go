package sse

import (
	"encoding/json"
	"time"
)

// Kind names the SSE event type written on the "event:" line.
type Kind string

const (
	// KindUserCreated is published after a user has been stored.
	KindUserCreated Kind = "user_created"

	// KindUserDeleted is published after a user has been removed.
	KindUserDeleted Kind = "user_deleted"

	// KindConnected is sent once to each stream when it opens. Never buffered.
	KindConnected Kind = "connected"

	// KindGap is sent to a stream whose cursor fell behind the oldest
	// buffered event. Never buffered.
	KindGap Kind = "gap"
)

// Event is an immutable broadcast entry. Index is assigned by the Buffer and
// increases by one per append, starting at zero.
type Event struct {
	Index     uint64          `json:"index"`
	Kind      Kind            `json:"kind"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// ConnectedEvent is the payload of the connected frame.
type ConnectedEvent struct {
	ConnectionID string `json:"connection_id"`
	Status       string `json:"status"`
	Cursor       uint64 `json:"cursor"`
}

// GapEvent is the payload of the gap frame: events From..To-1 were evicted
// before this stream could deliver them.
type GapEvent struct {
	Missed uint64 `json:"missed"`
	From   uint64 `json:"from"`
	To     uint64 `json:"to"`
}
