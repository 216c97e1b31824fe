package ipc

import (
	"time"

	"github.com/google/uuid"
)

// MessageType is the closed set of wire message kinds.
type MessageType string

const (
	TypeTask      MessageType = "task"
	TypeEvent     MessageType = "event"
	TypeHeartbeat MessageType = "heartbeat"
	TypePing      MessageType = "ping"
	TypePong      MessageType = "pong"
)

// Message is one newline-delimited JSON object on the wire.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewMessage fills in ID and Timestamp when absent, per the framing contract.
func NewMessage(typ MessageType, agent string, data map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Type:      typ,
		Agent:     agent,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// TaskStatus is the closed set of outbound task-response statuses.
type TaskStatus string

const (
	StatusDone     TaskStatus = "done"
	StatusFailed   TaskStatus = "failed"
	StatusTimeout  TaskStatus = "timeout"
	StatusRejected TaskStatus = "rejected"
)
