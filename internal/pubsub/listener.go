package pubsub

import "context"

// Listener is a long-lived subscription that hands events to a callback.
type Listener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewListener subscribes to the broker for the lifetime of ctx.
func NewListener[T any](ctx context.Context, broker *Broker[T]) *Listener[T] {
	return &Listener[T]{
		ctx: ctx,
		ch:  broker.Subscribe(ctx),
	}
}

// Next blocks until the next event arrives. ok is false once the
// subscription has ended.
func (l *Listener[T]) Next() (event Event[T], ok bool) {
	select {
	case <-l.ctx.Done():
		return event, false
	case event, ok = <-l.ch:
		return event, ok
	}
}

// Run calls fn for every event until the subscription ends.
func (l *Listener[T]) Run(fn func(Event[T])) {
	for {
		event, ok := l.Next()
		if !ok {
			return
		}
		fn(event)
	}
}
