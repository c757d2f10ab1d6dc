package childprocess

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpawn matches every *SpawnError.
	ErrSpawn = errors.New("spawn failed")

	// ErrMultipleIPC is returned when a table has more than one IPC entry.
	ErrMultipleIPC = errors.New("child process can have only one ipc channel")

	// ErrUnsupportedSerialization is returned for serialization modes other than json.
	ErrUnsupportedSerialization = errors.New("unsupported serialization mode")

	// ErrChannelClosed is returned when sending on a disconnected channel.
	ErrChannelClosed = errors.New("channel closed")

	// ErrNotConnected is returned by Disconnect when there is no open channel.
	ErrNotConnected = errors.New("ipc channel is already disconnected")

	// ErrNotRunning is returned when signalling a process that is not running.
	ErrNotRunning = errors.New("process not running")
)

// SpawnError reports a failure to start the executable, e.g. not found or
// permission denied. It is delivered asynchronously on ChildProcess.Errors.
type SpawnError struct {
	Path string
	Args []string
	Err  error
}

func (e *SpawnError) Error() string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("spawn %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("spawn %s %s: %v", e.Path, strings.Join(e.Args, " "), e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSpawn) true for every SpawnError.
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawn
}
