package childprocess

import (
	"fmt"
	"syscall"

	"github.com/zjrosen/forknative/internal/ipc"
)

const defaultMessageBuffer = 64

// SpawnOptions configures Spawn.
type SpawnOptions struct {
	// Stdio is the descriptor table. Missing entries 0-2 are piped.
	Stdio Stdio

	// Env is the child's environment. Nil inherits the parent's.
	Env []string

	// Dir is the working directory. Empty uses the parent's.
	Dir string

	// ExecPath is recorded on the handle. It does not change which
	// program is started.
	ExecPath string

	// Shell, when non-empty, runs the command line through this shell with -c.
	Shell string

	// Detached puts the child in its own process group.
	Detached bool

	// KillSignal is the default signal for Kill. Zero means SIGTERM.
	KillSignal syscall.Signal

	// Serialization is the channel serialization mode. Only "json" (or
	// empty) is supported.
	Serialization string

	// MessageBuffer is the capacity of the Messages channel.
	MessageBuffer int

	// DeliverInternal routes NODE_ prefixed messages to Messages instead of
	// only to observers.
	DeliverInternal bool

	// Observer, when set, is called synchronously for every lifecycle event.
	// It must not block.
	Observer func(Event)
}

func (o SpawnOptions) validate() error {
	if err := o.Stdio.Validate(); err != nil {
		return err
	}
	if o.Serialization != "" && o.Serialization != ipc.SerializationJSON {
		return fmt.Errorf("%w: %q", ErrUnsupportedSerialization, o.Serialization)
	}
	if o.MessageBuffer < 0 {
		return fmt.Errorf("negative message buffer %d", o.MessageBuffer)
	}
	return nil
}

func (o SpawnOptions) killSignal() syscall.Signal {
	if o.KillSignal == 0 {
		return syscall.SIGTERM
	}
	return o.KillSignal
}

func (o SpawnOptions) messageBuffer() int {
	if o.MessageBuffer == 0 {
		return defaultMessageBuffer
	}
	return o.MessageBuffer
}
