package log

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormat_Fields(t *testing.T) {
	ts := time.Date(2026, 10, 17, 10, 45, 0, 0, time.UTC)
	got := Format(ts, LevelInfo, CatLaunch, "spawned", "pid", 42, "path", "./echoer")
	require.Equal(t, "2026-10-17T10:45:00 [INFO] [launch] spawned pid=42 path=./echoer\n", got)
}

func TestFormat_OrphanKey(t *testing.T) {
	ts := time.Date(2026, 10, 17, 10, 45, 0, 0, time.UTC)
	got := Format(ts, LevelWarn, CatIPC, "dropped", "line")
	require.Equal(t, "2026-10-17T10:45:00 [WARN] [ipc] dropped line=<missing>\n", got)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("INFO"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelDebug, ParseLevel("bogus"))
}

func TestLog_WritesWhenInitialized(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	Info(CatProcess, "exited", "code", 0)
	ErrorErr(CatIPC, "send failed", errors.New("broken pipe"))

	out := buf.String()
	require.Contains(t, out, "[INFO] [process] exited code=0")
	require.Contains(t, out, "[ERROR] [ipc] send failed error=broken pipe")
}

func TestLog_MinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	SetMinLevel(LevelWarn)
	Debug(CatLaunch, "hidden")
	Warn(CatLaunch, "shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestLog_Disabled(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	SetEnabled(false)
	Info(CatCLI, "nothing")
	require.Empty(t, buf.String())
}

func TestLog_NoLoggerIsNoop(t *testing.T) {
	cleanup := InitWriter(&bytes.Buffer{})
	cleanup()

	require.NotPanics(t, func() { Info(CatCLI, "dropped") })
	require.Nil(t, NewListener(context.Background()))
}

func TestNewListener_ReceivesEntries(t *testing.T) {
	cleanup := InitWriter(&bytes.Buffer{})
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewListener(ctx)
	require.NotNil(t, l)

	Info(CatConfig, "loaded", "path", "config.yaml")

	event, ok := l.Next()
	require.True(t, ok)
	require.Contains(t, event.Payload, "[config] loaded path=config.yaml")
}

func TestScope_PrefixesFields(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	child := With("id", "abc").With("pid", 7)
	child.Info(CatProcess, "started", "path", "./worker")
	child.ErrorErr(CatIPC, "send failed", errors.New("closed"))

	out := buf.String()
	require.Contains(t, out, "[process] started id=abc pid=7 path=./worker")
	require.Contains(t, out, "[ipc] send failed id=abc pid=7 error=closed")
}

func TestScope_WithDoesNotAlias(t *testing.T) {
	var buf bytes.Buffer
	cleanup := InitWriter(&buf)
	defer cleanup()

	base := With("id", "a")
	one := base.With("n", 1)
	two := base.With("n", 2)
	one.Debug(CatCLI, "one")
	two.Debug(CatCLI, "two")

	require.Contains(t, buf.String(), "one id=a n=1")
	require.Contains(t, buf.String(), "two id=a n=2")
}

// Tearing down an older sink leaves a newer one in place.
func TestInitWriter_StaleCleanup(t *testing.T) {
	var first, second bytes.Buffer
	cleanupFirst := InitWriter(&first)
	cleanupSecond := InitWriter(&second)
	defer cleanupSecond()

	cleanupFirst()
	Info(CatCLI, "still logging")

	require.Empty(t, first.String())
	require.Contains(t, second.String(), "still logging")
}

func TestLevel_String(t *testing.T) {
	require.Equal(t, "WARN", LevelWarn.String())
	require.Equal(t, "UNKNOWN", Level(42).String())
}
