// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// LogEvent carries a formatted log entry.
	LogEvent EventType = "log"

	// Child process lifecycle events.
	SpawnEvent      EventType = "spawn"
	MessageEvent    EventType = "message"
	InternalEvent   EventType = "internal"
	DisconnectEvent EventType = "disconnect"
	ExitEvent       EventType = "exit"
	SendEvent       EventType = "send"
	ErrorEvent      EventType = "error"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T) int
}
