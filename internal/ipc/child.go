package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

const (
	// ChannelFDEnv names the variable holding the child's channel descriptor.
	ChannelFDEnv = "NODE_CHANNEL_FD"

	// SerializationEnv names the variable holding the serialization mode.
	SerializationEnv = "NODE_CHANNEL_SERIALIZATION_MODE"

	// SerializationJSON is the only supported serialization mode.
	SerializationJSON = "json"
)

var (
	// ErrNoChannel is returned by Open when the process was not started
	// with an IPC channel.
	ErrNoChannel = errors.New("no ipc channel: " + ChannelFDEnv + " is not set")

	// ErrUnsupportedSerialization is returned for serialization modes other
	// than json.
	ErrUnsupportedSerialization = errors.New("unsupported ipc serialization mode")
)

// Open returns the channel this process was started with. The channel
// variables are removed from the environment so they are not inherited by
// grandchildren.
func Open() (*Channel, error) {
	raw, ok := os.LookupEnv(ChannelFDEnv)
	if !ok || raw == "" {
		return nil, ErrNoChannel
	}
	mode := os.Getenv(SerializationEnv)

	_ = os.Unsetenv(ChannelFDEnv)
	_ = os.Unsetenv(SerializationEnv)

	if mode != "" && mode != SerializationJSON {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSerialization, mode)
	}

	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("%w: invalid descriptor %q", ErrNoChannel, raw)
	}

	return FileChannel(os.NewFile(uintptr(fd), "ipc"))
}

// Serve reads messages from ch and passes each one to handler until the peer
// disconnects or ctx is cancelled. It returns nil on an orderly disconnect.
// The channel is closed when Serve returns.
func Serve(ctx context.Context, ch *Channel, handler func(Message)) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ch.Close()
		case <-stop:
		}
	}()
	defer func() { _ = ch.Close() }()

	for {
		msg, err := ch.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, ErrClosed) {
				return ctx.Err()
			}
			return err
		}
		handler(msg)
	}
}
