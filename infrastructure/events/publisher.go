package events

import (
	"context"
	"time"
)

// Event types emitted by the pipeline for downstream consumers.
const (
	TypeMessageReceived = "message.received"
	TypeMessageSent     = "message.sent"
	TypeMessageStatus   = "message.status"
	TypeStateChanged    = "instance.state_changed"
)

type Event struct {
	Type      string         `json:"type"`
	HotelID   string         `json:"hotel_id"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// Publisher fans pipeline events out to an external broker. Delivery is
// best effort; a publish failure never fails the webhook or send path.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, e Event) error { return nil }
func (NoopPublisher) Close() error                               { return nil }
