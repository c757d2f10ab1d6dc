package forknative

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/log"
	"github.com/zjrosen/forknative/internal/metrics"
	"github.com/zjrosen/forknative/internal/tracing"
)

// Spawner starts a process from fully resolved options.
// *childprocess.Spawner implements it.
type Spawner interface {
	Spawn(path string, args []string, opts childprocess.SpawnOptions) (*childprocess.ChildProcess, error)
}

// Launcher launches children through a Spawner, recording a span and
// metrics for each launch. The zero value uses childprocess.DefaultSpawner
// with tracing and metrics disabled.
type Launcher struct {
	Spawner Spawner
	Tracer  trace.Tracer
	Metrics metrics.Collector
}

var defaultLauncher = &Launcher{}

// Launch starts path as a child with an IPC channel using the default
// Launcher.
func Launch(path string, p Params) (*ChildProcess, error) {
	return defaultLauncher.Launch(context.Background(), path, p)
}

// Launch validates p, derives the spawn options and starts path. Invalid
// parameters and descriptor tables without an IPC entry are rejected before
// any process is created. Errors returned synchronously by the Spawner are
// passed through unchanged; start failures arrive on the handle's Errors
// channel.
func (l *Launcher) Launch(ctx context.Context, path string, p Params) (*ChildProcess, error) {
	ctx, span := l.tracer().Start(ctx, tracing.SpanLaunch,
		trace.WithAttributes(tracing.LaunchAttributes(path)...))
	defer span.End()

	args, opts := Normalize(p)
	span.SetAttributes(tracing.ArgsAttributes(args)...)

	resolved, err := Resolve(opts)
	if err != nil {
		l.reject(span, metrics.ReasonMissingChannel, err)
		return nil, err
	}
	span.AddEvent(tracing.EventResolved, trace.WithAttributes(tracing.ResolvedAttributes(resolved)...))

	log.Debug(log.CatLaunch, "Launching",
		"path", path, "args", len(args), "stdio", resolved.Stdio.String(), "silent", opts.Silent)

	_, procSpan := l.tracer().Start(ctx, tracing.SpanProcess,
		trace.WithAttributes(tracing.LaunchAttributes(path)...))
	observeSpan := tracing.ProcessObserver(procSpan)
	collector := l.metrics()
	resolved.Observer = func(ev childprocess.Event) {
		observeSpan(ev)
		collector.ObserveEvent(ev)
	}

	cp, err := l.spawner().Spawn(path, args, resolved)
	if err != nil {
		procSpan.End()
		l.reject(span, metrics.ReasonInvalidOptions, err)
		return nil, err
	}

	span.SetAttributes(tracing.ChildAttributes(cp.ID(), cp.Pid())...)
	go func() {
		<-cp.Done()
		procSpan.End()
	}()
	return cp, nil
}

// LaunchValue is Launch for a dynamically typed second parameter, resolved
// with ParamsFromValue. opts only applies when args is a sequence.
func (l *Launcher) LaunchValue(ctx context.Context, path string, args any, opts *Options) (*ChildProcess, error) {
	p, err := ParamsFromValue(args, opts)
	if err != nil {
		_, span := l.tracer().Start(ctx, tracing.SpanLaunch,
			trace.WithAttributes(tracing.LaunchAttributes(path)...))
		l.reject(span, metrics.ReasonInvalidArgument, err)
		span.End()
		return nil, err
	}
	return l.Launch(ctx, path, p)
}

func (l *Launcher) reject(span trace.Span, reason string, err error) {
	log.ErrorErr(log.CatLaunch, "Launch rejected", err, "reason", reason)
	l.metrics().LaunchRejected(reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(tracing.ErrorAttributes(reason, err)...)
}

func (l *Launcher) spawner() Spawner {
	if l.Spawner == nil {
		return childprocess.DefaultSpawner
	}
	return l.Spawner
}

func (l *Launcher) tracer() trace.Tracer {
	if l.Tracer == nil {
		return noop.NewTracerProvider().Tracer("forknative")
	}
	return l.Tracer
}

func (l *Launcher) metrics() metrics.Collector {
	if l.Metrics == nil {
		return metrics.NewNoopCollector()
	}
	return l.Metrics
}

// IsValidationError reports whether err was produced by Launch's own
// argument checks rather than by the spawner.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrMissingChannel)
}
