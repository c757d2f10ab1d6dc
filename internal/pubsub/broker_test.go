package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBroker_Subscribe(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)

	require.Equal(t, 1, broker.Publish(MessageEvent, "hello"))

	select {
	case event := <-ch:
		require.Equal(t, "hello", event.Payload)
		require.Equal(t, MessageEvent, event.Type)
		require.False(t, event.Timestamp.IsZero())
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "timeout waiting for event")
	}
}

func TestBroker_MultipleSubscribers(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)
	ch3 := broker.Subscribe(ctx)

	require.Equal(t, 3, broker.SubscriberCount())
	require.Equal(t, 3, broker.Publish(ExitEvent, 42))

	for i, ch := range []<-chan Event[int]{ch1, ch2, ch3} {
		select {
		case event := <-ch:
			require.Equal(t, 42, event.Payload, "subscriber %d", i)
			require.Equal(t, ExitEvent, event.Type, "subscriber %d", i)
		case <-time.After(100 * time.Millisecond):
			require.Fail(t, "timeout waiting for event", "subscriber %d", i)
		}
	}
}

func TestBroker_ContextCancellation(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())

	ch := broker.Subscribe(ctx)
	require.Equal(t, 1, broker.SubscriberCount())

	cancel()

	require.Eventually(t, func() bool {
		return broker.SubscriberCount() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_NonBlocking(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())

	require.Equal(t, 1, broker.Publish(MessageEvent, 1))

	done := make(chan int)
	go func() {
		n := broker.Publish(MessageEvent, 2)
		n += broker.Publish(MessageEvent, 3)
		done <- n
	}()

	select {
	case n := <-done:
		require.Zero(t, n, "full subscriber should not receive events")
	case <-time.After(100 * time.Millisecond):
		require.Fail(t, "Publish blocked")
	}

	event := <-ch
	require.Equal(t, 1, event.Payload)
	require.Equal(t, uint64(2), broker.Dropped())
}

func TestBroker_BufferSizeFloor(t *testing.T) {
	broker := NewBrokerWithBuffer[int](0)
	defer broker.Close()

	ch := broker.Subscribe(context.Background())
	require.Equal(t, 1, broker.Publish(MessageEvent, 7))
	require.Equal(t, 7, (<-ch).Payload)
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()

	ctx := context.Background()

	ch1 := broker.Subscribe(ctx)
	ch2 := broker.Subscribe(ctx)

	require.Equal(t, 2, broker.SubscriberCount())

	broker.Close()

	_, ok1 := <-ch1
	_, ok2 := <-ch2

	require.False(t, ok1, "ch1 should be closed")
	require.False(t, ok2, "ch2 should be closed")
	require.Equal(t, 0, broker.SubscriberCount())

	select {
	case <-broker.Done():
	default:
		require.Fail(t, "Done should be closed")
	}

	ch3 := broker.Subscribe(ctx)
	_, ok3 := <-ch3
	require.False(t, ok3, "ch3 should be closed immediately")

	require.Zero(t, broker.Publish(MessageEvent, "test"))
}

func TestBroker_CloseIdempotent(t *testing.T) {
	broker := NewBroker[string]()

	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed")
}

func TestBroker_CancelAfterClose(t *testing.T) {
	broker := NewBroker[string]()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)

	broker.Close()
	cancel()

	_, ok := <-ch
	require.False(t, ok)
}

func TestListener_Run(t *testing.T) {
	broker := NewBroker[string]()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewListener(ctx, broker)

	broker.Publish(LogEvent, "a")
	broker.Publish(LogEvent, "b")

	var got []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(func(e Event[string]) {
			got = append(got, e.Payload)
		})
	}()

	require.Eventually(t, func() bool {
		return broker.SubscriberCount() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	broker.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "listener did not stop after broker close")
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestListener_NextAfterCancel(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	l := NewListener(ctx, broker)
	cancel()

	_, ok := l.Next()
	require.False(t, ok)
}
