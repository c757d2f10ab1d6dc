package forknative

import (
	"os"

	"github.com/zjrosen/forknative/internal/childprocess"
)

// DefaultExecPath is the executable of the current process, resolved once at
// startup. It is recorded as the ExecPath of children launched without one.
var DefaultExecPath = executable()

func executable() string {
	if p, err := os.Executable(); err == nil {
		return p
	}
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return ""
}

// DefaultStdio returns the table used when no Stdio is given: the parent's
// stdin, stdout and stderr followed by the IPC channel at descriptor 3, or
// three pipes followed by the channel when silent.
func DefaultStdio(silent bool) childprocess.Stdio {
	if silent {
		return childprocess.Stdio{childprocess.Pipe, childprocess.Pipe, childprocess.Pipe, childprocess.IPC}
	}
	return childprocess.Stdio{childprocess.FD(0), childprocess.FD(1), childprocess.FD(2), childprocess.IPC}
}

// Resolve derives spawn options from opts without starting anything. It
// fails with a *MissingChannelError when opts.Stdio is set but has no IPC
// entry. Tables of any length are accepted as long as they carry the marker.
func Resolve(opts Options) (childprocess.SpawnOptions, error) {
	stdio := opts.Stdio.Clone()
	if stdio == nil {
		stdio = DefaultStdio(opts.Silent)
	} else if !stdio.HasIPC() {
		return childprocess.SpawnOptions{}, &MissingChannelError{Stdio: stdio}
	}

	execPath := opts.ExecPath
	if execPath == "" {
		execPath = DefaultExecPath
	}

	var env []string
	if opts.Env != nil {
		env = append([]string{}, opts.Env...)
	}

	return childprocess.SpawnOptions{
		Stdio:           stdio,
		Env:             env,
		Dir:             opts.Dir,
		ExecPath:        execPath,
		Shell:           "",
		Detached:        opts.Detached,
		KillSignal:      opts.KillSignal,
		Serialization:   opts.Serialization,
		MessageBuffer:   opts.MessageBuffer,
		DeliverInternal: opts.DeliverInternal,
	}, nil
}
