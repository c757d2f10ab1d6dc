package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/pubsub"
)

// Span names.
const (
	SpanLaunch  = "forknative.launch"
	SpanProcess = "forknative.process"
)

// Attribute keys.
const (
	AttrExecutable = "process.executable.path"
	AttrArgCount   = "process.args.count"
	AttrPID        = "process.pid"
	AttrChildID    = "child.id"

	AttrStdio    = "launch.stdio"
	AttrIPCIndex = "launch.ipc_index"
	AttrExecPath = "launch.exec_path"
	AttrDetached = "launch.detached"

	AttrExitCode   = "process.exit.code"
	AttrExitSignal = "process.exit.signal"
	AttrMessageCmd = "ipc.message.cmd"
	AttrBytes      = "ipc.message.bytes"

	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span event names.
const (
	EventResolved        = "launch.resolved"
	EventSpawned         = "process.spawned"
	EventMessageReceived = "ipc.message.received"
	EventMessageSent     = "ipc.message.sent"
	EventInternalMessage = "ipc.message.internal"
	EventDisconnected    = "ipc.disconnected"
	EventExited          = "process.exited"
	EventErrorOccurred   = "error.occurred"
)

// LaunchAttributes describes the executable being launched.
func LaunchAttributes(path string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(AttrExecutable, path)}
}

// ArgsAttributes records the argument count. Argument values are not
// recorded since they may carry secrets.
func ArgsAttributes(args []string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.Int(AttrArgCount, len(args))}
}

// ResolvedAttributes describes the derived spawn options.
func ResolvedAttributes(opts childprocess.SpawnOptions) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrStdio, opts.Stdio.String()),
		attribute.Int(AttrIPCIndex, opts.Stdio.IPCIndex()),
		attribute.String(AttrExecPath, opts.ExecPath),
		attribute.Bool(AttrDetached, opts.Detached),
	}
}

// ChildAttributes identifies a started child.
func ChildAttributes(id string, pid int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrChildID, id),
		attribute.Int(AttrPID, pid),
	}
}

// ErrorAttributes classifies a failure.
func ErrorAttributes(errType string, err error) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, errType),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}

// ProcessObserver returns a childprocess observer that records lifecycle
// events on span. The caller ends the span.
func ProcessObserver(span trace.Span) func(childprocess.Event) {
	return func(ev childprocess.Event) {
		switch ev.Kind {
		case pubsub.SpawnEvent:
			span.SetAttributes(ChildAttributes(ev.ChildID, ev.Pid)...)
			span.AddEvent(EventSpawned)
		case pubsub.MessageEvent:
			span.AddEvent(EventMessageReceived, trace.WithAttributes(messageAttributes(ev)...))
		case pubsub.InternalEvent:
			span.AddEvent(EventInternalMessage, trace.WithAttributes(messageAttributes(ev)...))
		case pubsub.SendEvent:
			span.AddEvent(EventMessageSent, trace.WithAttributes(messageAttributes(ev)...))
		case pubsub.DisconnectEvent:
			span.AddEvent(EventDisconnected)
		case pubsub.ExitEvent:
			attrs := []attribute.KeyValue{attribute.Int(AttrExitCode, ev.Exit.Code)}
			if ev.Exit.Signaled() {
				attrs = append(attrs, attribute.String(AttrExitSignal, ev.Exit.SignalName()))
			}
			span.SetAttributes(attrs...)
			span.AddEvent(EventExited, trace.WithAttributes(attrs...))
			if !ev.Exit.Success() {
				span.SetStatus(codes.Error, ev.Exit.String())
			}
		case pubsub.ErrorEvent:
			if ev.Err == nil {
				return
			}
			span.RecordError(ev.Err)
			span.AddEvent(EventErrorOccurred, trace.WithAttributes(attribute.String(AttrErrorMessage, ev.Err.Error())))
			span.SetStatus(codes.Error, ev.Err.Error())
		}
	}
}

func messageAttributes(ev childprocess.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int(AttrBytes, len(ev.Message.Body))}
	if cmd := ev.Message.Cmd(); cmd != "" {
		attrs = append(attrs, attribute.String(AttrMessageCmd, cmd))
	}
	return attrs
}
