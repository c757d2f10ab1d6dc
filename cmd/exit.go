package cmd

import (
	"errors"

	"github.com/zjrosen/forknative/internal/childprocess"
)

// ExitError carries a child's unsuccessful exit so the command can exit the
// same way.
type ExitError struct {
	Status childprocess.ExitStatus
}

func (e *ExitError) Error() string {
	return "child " + e.Status.String()
}

// Code is the shell convention for the status: the exit code, or 128 plus
// the signal number.
func (e *ExitError) Code() int {
	if e.Status.Signaled() {
		return 128 + int(e.Status.Signal)
	}
	return e.Status.Code
}

// ExitCode maps an error from Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code()
	}
	return 1
}
