package events

import "context"

// EventPublisher publishes catalog change events.
type EventPublisher interface {
	PublishChanged(ctx context.Context, event *ChangeEvent) error
}

// NoOpPublisher drops every event. Used when COMMS is not configured.
type NoOpPublisher struct{}

// PublishChanged is a no-op.
func (p *NoOpPublisher) PublishChanged(context.Context, *ChangeEvent) error {
	return nil
}

// CallbackPublisher hands each event to a callback (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *ChangeEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *ChangeEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishChanged calls the callback.
func (p *CallbackPublisher) PublishChanged(ctx context.Context, event *ChangeEvent) error {
	return p.callback(ctx, event)
}
