// Package log provides structured logging for forknative.
// Logging is off until InitWithTeaLog or InitWriter is called, which the CLI
// does when --debug or FORKNATIVE_DEBUG is set.
package log

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zjrosen/forknative/internal/pubsub"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelDebug.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelDebug
	}
}

// Category groups related log messages.
type Category string

const (
	CatLaunch  Category = "launch"  // option resolution and validation
	CatProcess Category = "process" // start, exit, kill
	CatIPC     Category = "ipc"     // channel traffic and teardown
	CatConfig  Category = "config"
	CatCLI     Category = "cli"
	CatMetrics Category = "metrics"
	CatTrace   Category = "trace"
)

// sink is where formatted entries go. Every entry is also published on the
// broker so listeners can mirror the log.
type sink struct {
	mu       sync.Mutex
	w        io.Writer
	closer   func()
	enabled  bool
	minLevel Level
	broker   *pubsub.Broker[string]
}

var (
	current   *sink
	currentMu sync.RWMutex
)

// install swaps in a new sink and returns the function that tears it down.
func install(w io.Writer, closer func()) func() {
	s := &sink{
		w:        w,
		closer:   closer,
		enabled:  true,
		minLevel: LevelDebug,
		broker:   pubsub.NewBroker[string](),
	}
	currentMu.Lock()
	current = s
	currentMu.Unlock()

	return func() {
		currentMu.Lock()
		if current == s {
			current = nil
		}
		currentMu.Unlock()
		s.broker.Close()
		if s.closer != nil {
			s.closer()
		}
	}
}

func active() *sink {
	currentMu.RLock()
	defer currentMu.RUnlock()
	return current
}

// InitWithTeaLog opens path through tea.LogToFile and logs there.
// The returned cleanup closes the file.
func InitWithTeaLog(path string, prefix string) (func(), error) {
	f, err := tea.LogToFile(path, prefix)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return install(f, func() { _ = f.Close() }), nil
}

// InitWriter routes log output to w. Used by tests and by the CLI when
// mirroring to stderr without a log file.
func InitWriter(w io.Writer) func() {
	return install(w, nil)
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if s := active(); s != nil {
		s.mu.Lock()
		s.enabled = enabled
		s.mu.Unlock()
	}
}

// SetMinLevel sets the minimum log level.
func SetMinLevel(level Level) {
	if s := active(); s != nil {
		s.mu.Lock()
		s.minLevel = level
		s.mu.Unlock()
	}
}

func Debug(cat Category, msg string, fields ...any) { write(LevelDebug, cat, msg, fields) }
func Info(cat Category, msg string, fields ...any)  { write(LevelInfo, cat, msg, fields) }
func Warn(cat Category, msg string, fields ...any)  { write(LevelWarn, cat, msg, fields) }
func Error(cat Category, msg string, fields ...any) { write(LevelError, cat, msg, fields) }

// ErrorErr logs an error with the error value.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	write(LevelError, cat, msg, append(fields, "error", errString(err)))
}

func errString(err error) string {
	if err == nil {
		return "<nil>"
	}
	return err.Error()
}

// Scope prefixes every entry with a fixed set of fields, such as the id and
// pid of one child process.
type Scope struct {
	fields []any
}

// With returns a Scope carrying fields.
func With(fields ...any) Scope {
	return Scope{fields: fields}
}

// With returns a copy of s with more fields appended.
func (s Scope) With(fields ...any) Scope {
	merged := make([]any, 0, len(s.fields)+len(fields))
	return Scope{fields: append(append(merged, s.fields...), fields...)}
}

func (s Scope) merge(fields []any) []any {
	if len(s.fields) == 0 {
		return fields
	}
	out := make([]any, 0, len(s.fields)+len(fields))
	return append(append(out, s.fields...), fields...)
}

func (s Scope) Debug(cat Category, msg string, fields ...any) {
	write(LevelDebug, cat, msg, s.merge(fields))
}

func (s Scope) Info(cat Category, msg string, fields ...any) {
	write(LevelInfo, cat, msg, s.merge(fields))
}

func (s Scope) Warn(cat Category, msg string, fields ...any) {
	write(LevelWarn, cat, msg, s.merge(fields))
}

func (s Scope) ErrorErr(cat Category, msg string, err error, fields ...any) {
	write(LevelError, cat, msg, append(s.merge(fields), "error", errString(err)))
}

// Format renders an entry the way it is written to the log:
//
//	2026-10-17T10:45:00 [ERROR] [launch] message key=value key2=value2
func Format(ts time.Time, level Level, cat Category, msg string, fields ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] %s", ts.Format("2006-01-02T15:04:05"), level, cat, msg)

	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=<missing>", fields[len(fields)-1])
	}
	b.WriteByte('\n')
	return b.String()
}

func write(level Level, cat Category, msg string, fields []any) {
	s := active()
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || level < s.minLevel {
		return
	}

	entry := Format(time.Now(), level, cat, msg, fields...)
	if s.w != nil {
		_, _ = io.WriteString(s.w, entry)
	}
	s.broker.Publish(pubsub.LogEvent, entry)
}

// LogEvent is a pubsub event containing a log entry.
type LogEvent = pubsub.Event[string]

// LogListener wraps a continuous listener for log events.
type LogListener = pubsub.Listener[string]

// NewListener creates a log event listener that lives until ctx is
// cancelled or logging is torn down. Returns nil when logging is off.
func NewListener(ctx context.Context) *LogListener {
	s := active()
	if s == nil {
		return nil
	}
	return pubsub.NewListener(ctx, s.broker)
}
