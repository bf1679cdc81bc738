package streaming

import (
	"context"

	"github.com/rendis/flowbridge/internal/bridge"
	"github.com/rendis/flowbridge/pkg/schema"
)

// HandoffPublisher is a bridge.HandoffObserver that publishes every handoff
// to a hub. Tokens are never published.
type HandoffPublisher struct {
	hub EventHub
}

// NewHandoffPublisher creates a publisher over hub.
func NewHandoffPublisher(hub EventHub) *HandoffPublisher {
	return &HandoffPublisher{hub: hub}
}

func (p *HandoffPublisher) ObserveHandoff(op, flowID string, res *bridge.HandoffResult, err error) {
	ev := StreamEvent{FlowID: flowID, Operation: op}
	switch {
	case err != nil:
		ev.EventType = EventFailed
		ev.Payload = map[string]any{"code": schema.CodeOf(err), "message": err.Error()}
	case res.Ended:
		ev.EventType = EventEnded
		ev.View = res.SelectedView
		ev.Payload = res.Output
	default:
		ev.EventType = EventPaused
		ev.View = res.SelectedView
	}
	_ = p.hub.Publish(context.Background(), ev)
}

var _ bridge.HandoffObserver = (*HandoffPublisher)(nil)
