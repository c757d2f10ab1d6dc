package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/config"
	"github.com/zjrosen/forknative/internal/flags"
	"github.com/zjrosen/forknative/internal/forknative"
	"github.com/zjrosen/forknative/internal/log"
	"github.com/zjrosen/forknative/internal/metrics"
	"github.com/zjrosen/forknative/internal/tracing"
)

// environment holds what a command needs to launch children: the launcher
// wired to tracing and metrics, and the feature flags.
type environment struct {
	flags    *flags.Registry
	launcher *forknative.Launcher
	provider *tracing.Provider

	collector   *metrics.PrometheusCollector
	stopMetrics context.CancelFunc
	metricsDone chan error
}

func newEnvironment(ctx context.Context, cfg config.Config, metricsAddr string) (*environment, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	e := &environment{flags: flags.New(cfg.Flags)}
	for _, name := range e.flags.Unknown() {
		log.Warn(log.CatConfig, "Ignoring unknown feature flag", "flag", name)
	}

	provider, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}
	e.provider = provider

	spawner := &childprocess.Spawner{}
	if e.flags.Enabled(flags.FlagLookupCache) {
		spawner.Lookup = childprocess.NewLookupCache(cfg.Launch.LookupCacheTTL)
	}
	e.launcher = &forknative.Launcher{
		Spawner: spawner,
		Tracer:  provider.Tracer(),
	}

	addr := metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		e.collector = metrics.NewPrometheusCollector(cfg.Metrics.Namespace)
		e.launcher.Metrics = e.collector

		serveCtx, cancel := context.WithCancel(context.Background())
		e.stopMetrics = cancel
		e.metricsDone = make(chan error, 1)
		go func() {
			e.metricsDone <- e.collector.Serve(serveCtx, addr)
		}()
	}
	return e, nil
}

// options applies the feature flags to opts.
func (e *environment) options(opts forknative.Options) forknative.Options {
	if e.flags.Enabled(flags.FlagDeliverInternal) {
		opts.DeliverInternal = true
	}
	return opts
}

// Close stops the metrics endpoint and flushes buffered spans.
func (e *environment) Close() {
	if e.stopMetrics != nil {
		e.stopMetrics()
		if err := <-e.metricsDone; err != nil {
			log.ErrorErr(log.CatMetrics, "Metrics endpoint failed", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.provider.Shutdown(ctx); err != nil {
		log.ErrorErr(log.CatTrace, "Tracing shutdown failed", err)
	}
}
