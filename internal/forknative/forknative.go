package forknative

import (
	"context"
	"os"

	"github.com/zjrosen/forknative/internal/childprocess"
)

// Re-exported child process surface, so callers need only this package.
type (
	ChildProcess = childprocess.ChildProcess
	ExitStatus   = childprocess.ExitStatus
	Stdio        = childprocess.Stdio
	Descriptor   = childprocess.Descriptor
	SpawnOptions = childprocess.SpawnOptions
	SpawnError   = childprocess.SpawnError
	Output       = childprocess.Output
	Event        = childprocess.Event
	State        = childprocess.State
)

var (
	Inherit = childprocess.Inherit
	Pipe    = childprocess.Pipe
	Ignore  = childprocess.Ignore
	IPC     = childprocess.IPC

	ErrSpawn         = childprocess.ErrSpawn
	ErrChannelClosed = childprocess.ErrChannelClosed
	ErrNotRunning    = childprocess.ErrNotRunning
)

// FD returns a descriptor sharing the parent's descriptor n.
func FD(n int) Descriptor { return childprocess.FD(n) }

// File returns a descriptor sharing f.
func File(f *os.File) Descriptor { return childprocess.File(f) }

// ParseStdio parses a table such as "pipe,pipe,inherit,ipc".
func ParseStdio(spec string) (Stdio, error) { return childprocess.ParseStdio(spec) }

// Spawn starts path without any of Launch's defaults or checks.
func Spawn(path string, args []string, opts SpawnOptions) (*ChildProcess, error) {
	return childprocess.Spawn(path, args, opts)
}

// Exec runs path to completion and captures its output.
func Exec(ctx context.Context, path string, args []string, opts SpawnOptions) (Output, error) {
	return childprocess.Exec(ctx, path, args, opts)
}
