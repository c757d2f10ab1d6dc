package childprocess

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitStatus describes how a child process ended. Exactly one of Code and
// Signal is meaningful: Code is -1 when the process was killed by a signal,
// and Signal is 0 when it exited normally.
type ExitStatus struct {
	Code   int
	Signal syscall.Signal
}

// Signaled reports whether the process was terminated by a signal.
func (e ExitStatus) Signaled() bool {
	return e.Signal != 0
}

// Success reports a normal exit with code 0.
func (e ExitStatus) Success() bool {
	return !e.Signaled() && e.Code == 0
}

// SignalName returns the signal's conventional name such as "SIGTERM", or ""
// when the process was not signalled.
func (e ExitStatus) SignalName() string {
	if !e.Signaled() {
		return ""
	}
	if name := unix.SignalName(e.Signal); name != "" {
		return name
	}
	return fmt.Sprintf("signal %d", int(e.Signal))
}

func (e ExitStatus) String() string {
	if e.Signaled() {
		return "signal " + e.SignalName()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func exitStatusOf(ps *os.ProcessState) ExitStatus {
	if ps == nil {
		return ExitStatus{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{Code: -1, Signal: ws.Signal()}
	}
	return ExitStatus{Code: ps.ExitCode()}
}

// SignalByName maps "SIGTERM", "TERM" or "15" to a signal.
func SignalByName(name string) (syscall.Signal, error) {
	if name == "" {
		return 0, nil
	}
	if sig := unix.SignalNum(name); sig != 0 {
		return sig, nil
	}
	if sig := unix.SignalNum("SIG" + name); sig != 0 {
		return sig, nil
	}
	if n, err := strconv.Atoi(name); err == nil && n > 0 {
		return syscall.Signal(n), nil
	}
	return 0, fmt.Errorf("unknown signal %q", name)
}
