// Package echoer implements the companion child process used to exercise
// the IPC channel. It answers ping with pong, echoes echo requests back,
// exits on request and exits 0 when the parent disconnects.
package echoer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/sjson"

	"github.com/zjrosen/forknative/internal/ipc"
	"github.com/zjrosen/forknative/internal/log"
)

// Commands understood by the echoer.
const (
	CmdPing = "ping"
	CmdPong = "pong"
	CmdEcho = "echo"
	CmdExit = "exit"
)

// UnknownCommandReply is sent for any message the echoer does not understand.
const UnknownCommandReply = `{"error":"Unknown command"}`

// Main opens the inherited channel and serves it, writing a transcript to
// stdout. It returns the process exit code.
func Main() int {
	ch, err := ipc.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "echoer: %v\n", err)
		return 2
	}
	return Run(context.Background(), ch, os.Stdout)
}

// Run serves ch until the parent disconnects, an exit command arrives or ctx
// is cancelled. It returns the exit code the process should use.
func Run(ctx context.Context, ch *ipc.Channel, out io.Writer) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	code := 0
	exitRequested := false

	err := ipc.Serve(ctx, ch, func(msg ipc.Message) {
		_, _ = fmt.Fprintf(out, "Received message:\n%s\n", msg)

		reply, exit, exitCode := respond(msg)
		if reply != nil {
			if err := ch.SendRaw(reply); err != nil {
				log.ErrorErr(log.CatIPC, "echoer reply failed", err)
				_, _ = fmt.Fprintf(out, "Error: %v\n", err)
			}
		}
		if exit {
			exitRequested = true
			code = exitCode
			cancel()
		}
	})

	switch {
	case exitRequested:
		return code
	case err == nil:
		_, _ = fmt.Fprintln(out, "Disconnected.")
		return 0
	case errors.Is(err, context.Canceled):
		return 0
	default:
		_, _ = fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}
}

// respond computes the reply to msg. exit is set for the exit command, in
// which case reply may be nil.
func respond(msg ipc.Message) (reply []byte, exit bool, code int) {
	switch msg.Cmd() {
	case CmdPing:
		reply, _ = sjson.SetBytes(nil, "cmd", CmdPong)
		return reply, false, 0
	case CmdEcho:
		reply, _ = sjson.SetBytes(nil, "cmd", CmdEcho)
		data := msg.Get("data")
		if data.Exists() {
			reply, _ = sjson.SetRawBytes(reply, "data", []byte(data.Raw))
		} else {
			reply, _ = sjson.SetRawBytes(reply, "data", []byte("null"))
		}
		return reply, false, 0
	case CmdExit:
		return nil, true, int(msg.Get("code").Int())
	default:
		return []byte(UnknownCommandReply), false, 0
	}
}
