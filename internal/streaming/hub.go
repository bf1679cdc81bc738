// Package streaming fans out flow handoff events to live subscribers.
package streaming

import "context"

// Event types published for handoffs.
const (
	EventPaused = "flow.paused"
	EventEnded  = "flow.ended"
	EventFailed = "flow.failed"
)

// StreamEvent is a real-time event emitted after a launch or resume.
type StreamEvent struct {
	FlowID    string `json:"flow_id"`
	Operation string `json:"operation"`
	EventType string `json:"event_type"`
	View      string `json:"view,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	FlowID     string   `json:"flow_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for handoff events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}
