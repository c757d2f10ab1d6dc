package childprocess

import (
	"github.com/zjrosen/forknative/internal/ipc"
	"github.com/zjrosen/forknative/internal/pubsub"
)

// Event is a lifecycle notification delivered to observers and subscribers.
// Which fields are set depends on Kind.
type Event struct {
	Kind    pubsub.EventType
	ChildID string
	Pid     int

	// Message is set for MessageEvent, InternalEvent and SendEvent.
	Message ipc.Message

	// Exit is set for ExitEvent.
	Exit ExitStatus

	// Err is set for ErrorEvent.
	Err error
}
