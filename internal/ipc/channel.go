package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/zjrosen/forknative/internal/log"
)

var (
	// ErrClosed is returned when using a channel that has been closed locally.
	ErrClosed = errors.New("ipc channel closed")

	// ErrFrameTooLarge is returned by Send for documents the peer could not
	// read back.
	ErrFrameTooLarge = errors.New("ipc frame too large")
)

// MaxFrameSize bounds one frame, newline included. Larger lines fail the
// reader and tear down the channel, so Send refuses to write them.
const MaxFrameSize = 8 * 1024 * 1024

const initialLineBuffer = 64 * 1024

// Channel is one end of an IPC channel. Send may be called concurrently;
// Recv must only be called from a single goroutine. Frames are limited to
// MaxFrameSize bytes.
type Channel struct {
	conn    net.Conn
	scanner *bufio.Scanner

	wmu       sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewChannel wraps an already connected stream.
func NewChannel(conn net.Conn) *Channel {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), MaxFrameSize)
	return &Channel{
		conn:    conn,
		scanner: scanner,
	}
}

// FileChannel wraps a socket descriptor. f is closed once the descriptor has
// been duplicated into the returned channel.
func FileChannel(f *os.File) (*Channel, error) {
	conn, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("ipc descriptor %s: %w", f.Name(), err)
	}
	return NewChannel(conn), nil
}

// Send encodes v as JSON and writes it as one line.
func (c *Channel) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes an already encoded JSON document. The document is compacted
// so that it occupies exactly one line.
func (c *Channel) SendRaw(doc []byte) error {
	line, err := frame(doc)
	if err != nil {
		return err
	}
	if len(line) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(line), MaxFrameSize)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if _, err := c.conn.Write(line); err != nil {
		return c.mapErr(err)
	}
	return nil
}

// Recv returns the next message. Blank lines and lines that are not valid
// JSON are skipped. Recv returns io.EOF when the peer closes or resets the
// channel and ErrClosed after a local Close.
func (c *Channel) Recv() (Message, error) {
	for c.scanner.Scan() {
		line := c.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			log.Debug(log.CatIPC, "skipping malformed frame", "bytes", len(line))
			continue
		}
		body := make([]byte, len(line))
		copy(body, line)
		return Message{Body: body, Received: time.Now()}, nil
	}

	if err := c.scanner.Err(); err != nil {
		return Message{}, c.mapErr(err)
	}
	if c.closed.Load() {
		return Message{}, ErrClosed
	}
	return Message{}, io.EOF
}

// Close tears down the channel. It is safe to call more than once.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	return c.closed.Load()
}

func (c *Channel) mapErr(err error) error {
	if c.closed.Load() || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	// A peer that closes with unread data resets the stream.
	if errors.Is(err, syscall.ECONNRESET) {
		return io.EOF
	}
	return err
}
