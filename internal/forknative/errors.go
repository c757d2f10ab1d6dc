package forknative

import (
	"errors"
	"fmt"

	"github.com/zjrosen/forknative/internal/childprocess"
)

var (
	// ErrInvalidArgument matches every *InvalidArgumentError.
	ErrInvalidArgument = errors.New("incorrect value of args option")

	// ErrMissingChannel matches every *MissingChannelError.
	ErrMissingChannel = errors.New("forked processes must have an IPC channel")
)

// InvalidArgumentError reports a second launch parameter that is neither an
// argument list nor an options structure.
type InvalidArgumentError struct {
	Value any
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: %T", ErrInvalidArgument, e.Value)
}

// Is makes errors.Is(err, ErrInvalidArgument) true.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// MissingChannelError reports a caller supplied descriptor table without the
// IPC marker.
type MissingChannelError struct {
	Stdio childprocess.Stdio
}

func (e *MissingChannelError) Error() string {
	return fmt.Sprintf("%s (stdio: %s)", ErrMissingChannel, e.Stdio)
}

// Is makes errors.Is(err, ErrMissingChannel) true.
func (e *MissingChannelError) Is(target error) bool {
	return target == ErrMissingChannel
}
