package echoer

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/forknative/internal/ipc"
)

type session struct {
	parent *ipc.Channel
	out    *bytes.Buffer
	code   chan int
}

func start(t *testing.T, ctx context.Context) *session {
	t.Helper()
	a, b := net.Pipe()
	s := &session{
		parent: ipc.NewChannel(a),
		out:    &bytes.Buffer{},
		code:   make(chan int, 1),
	}
	child := ipc.NewChannel(b)
	go func() { s.code <- Run(ctx, child, s.out) }()
	t.Cleanup(func() { _ = s.parent.Close() })
	return s
}

func (s *session) exitCode(t *testing.T) int {
	t.Helper()
	select {
	case code := <-s.code:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("echoer did not return")
		return -1
	}
}

func TestRun_PingPong(t *testing.T) {
	s := start(t, context.Background())

	require.NoError(t, s.parent.Send(map[string]string{"cmd": "ping"}))
	reply, err := s.parent.Recv()
	require.NoError(t, err)
	require.JSONEq(t, `{"cmd":"pong"}`, reply.String())

	require.NoError(t, s.parent.Close())
	require.Equal(t, 0, s.exitCode(t))
	require.Contains(t, s.out.String(), "Received message:")
	require.Contains(t, s.out.String(), "Disconnected.")
}

func TestRun_UnknownCommand(t *testing.T) {
	s := start(t, context.Background())

	require.NoError(t, s.parent.Send(map[string]string{"cmd": "invalid"}))
	reply, err := s.parent.Recv()
	require.NoError(t, err)
	require.JSONEq(t, UnknownCommandReply, reply.String())

	require.NoError(t, s.parent.Send(map[string]int{"seq": 1}))
	reply, err = s.parent.Recv()
	require.NoError(t, err)
	require.Equal(t, "Unknown command", reply.Get("error").String())

	require.NoError(t, s.parent.Close())
	require.Equal(t, 0, s.exitCode(t))
}

func TestRun_Echo(t *testing.T) {
	s := start(t, context.Background())

	require.NoError(t, s.parent.SendRaw([]byte(`{"cmd":"echo","data":{"n":[1,2,3]}}`)))
	reply, err := s.parent.Recv()
	require.NoError(t, err)
	require.JSONEq(t, `{"cmd":"echo","data":{"n":[1,2,3]}}`, reply.String())

	require.NoError(t, s.parent.SendRaw([]byte(`{"cmd":"echo"}`)))
	reply, err = s.parent.Recv()
	require.NoError(t, err)
	require.JSONEq(t, `{"cmd":"echo","data":null}`, reply.String())
}

func TestRun_ExitCommand(t *testing.T) {
	s := start(t, context.Background())

	require.NoError(t, s.parent.Send(map[string]any{"cmd": "exit", "code": 7}))
	require.Equal(t, 7, s.exitCode(t))
	require.NotContains(t, s.out.String(), "Disconnected.")
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := start(t, ctx)

	cancel()
	require.Equal(t, 0, s.exitCode(t))
}

func TestRespond(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantBody string
		wantExit bool
		wantCode int
	}{
		{name: "ping", in: `{"cmd":"ping"}`, wantBody: `{"cmd":"pong"}`},
		{name: "non-string cmd", in: `{"cmd":1}`, wantBody: UnknownCommandReply},
		{name: "exit default code", in: `{"cmd":"exit"}`, wantExit: true},
		{name: "exit with code", in: `{"cmd":"exit","code":3}`, wantExit: true, wantCode: 3},
		{name: "echo string", in: `{"cmd":"echo","data":"hi"}`, wantBody: `{"cmd":"echo","data":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, exit, code := respond(ipc.Message{Body: []byte(tt.in)})
			require.Equal(t, tt.wantExit, exit)
			require.Equal(t, tt.wantCode, code)
			if tt.wantBody == "" {
				require.Nil(t, reply)
				return
			}
			require.JSONEq(t, tt.wantBody, string(reply))
		})
	}
}
