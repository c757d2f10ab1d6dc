package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zjrosen/forknative/internal/childprocess"
	"github.com/zjrosen/forknative/internal/log"
	"github.com/zjrosen/forknative/internal/pubsub"
)

const defaultNamespace = "forknative"

// PrometheusCollector implements Collector on its own registry.
type PrometheusCollector struct {
	launches    *prometheus.CounterVec
	running     prometheus.Gauge
	exits       *prometheus.CounterVec
	lifetime    prometheus.Histogram
	messages    *prometheus.CounterVec
	disconnects prometheus.Counter
	errors      *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time

	registry *prometheus.Registry
}

// NewPrometheusCollector creates a collector whose metric names are prefixed
// with namespace (default "forknative").
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	if namespace == "" {
		namespace = defaultNamespace
	}

	c := &PrometheusCollector{
		started:  make(map[string]time.Time),
		registry: prometheus.NewRegistry(),
	}

	c.launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Launch attempts by result",
		},
		[]string{"result"},
	)
	c.running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "children_running",
			Help:      "Child processes started and not yet reaped",
		},
	)
	c.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Child process exits by outcome",
		},
		[]string{"outcome"},
	)
	c.lifetime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "child_lifetime_seconds",
			Help:      "Time from spawn to exit",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300, 1800},
		},
	)
	c.messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ipc_messages_total",
			Help:      "IPC messages by direction and kind",
		},
		[]string{"direction", "kind"},
	)
	c.disconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ipc_disconnects_total",
			Help:      "IPC channels torn down",
		},
	)
	c.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Asynchronous child process errors by type",
		},
		[]string{"type"},
	)

	c.registry.MustRegister(
		c.launches,
		c.running,
		c.exits,
		c.lifetime,
		c.messages,
		c.disconnects,
		c.errors,
	)
	return c
}

// LaunchRejected implements Collector.
func (c *PrometheusCollector) LaunchRejected(reason string) {
	c.launches.WithLabelValues(reason).Inc()
}

// ObserveEvent implements Collector.
func (c *PrometheusCollector) ObserveEvent(ev childprocess.Event) {
	switch ev.Kind {
	case pubsub.SpawnEvent:
		c.launches.WithLabelValues("started").Inc()
		c.running.Inc()
		c.mu.Lock()
		c.started[ev.ChildID] = time.Now()
		c.mu.Unlock()
	case pubsub.MessageEvent:
		c.messages.WithLabelValues("received", "user").Inc()
	case pubsub.InternalEvent:
		c.messages.WithLabelValues("received", "internal").Inc()
	case pubsub.SendEvent:
		c.messages.WithLabelValues("sent", "user").Inc()
	case pubsub.DisconnectEvent:
		c.disconnects.Inc()
	case pubsub.ExitEvent:
		c.running.Dec()
		c.exits.WithLabelValues(outcome(ev.Exit)).Inc()
		c.mu.Lock()
		start, ok := c.started[ev.ChildID]
		delete(c.started, ev.ChildID)
		c.mu.Unlock()
		if ok {
			c.lifetime.Observe(time.Since(start).Seconds())
		}
	case pubsub.ErrorEvent:
		if errors.Is(ev.Err, childprocess.ErrSpawn) {
			c.launches.WithLabelValues("spawn_error").Inc()
			c.errors.WithLabelValues("spawn").Inc()
			return
		}
		if errors.Is(ev.Err, childprocess.ErrChannelClosed) {
			c.errors.WithLabelValues("send").Inc()
			return
		}
		c.errors.WithLabelValues("other").Inc()
	}
}

func outcome(s childprocess.ExitStatus) string {
	switch {
	case s.Signaled():
		return "signaled"
	case s.Success():
		return "success"
	default:
		return "failure"
	}
}

// Registry returns the registry the metrics are registered on.
func (c *PrometheusCollector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (c *PrometheusCollector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info(log.CatMetrics, "Serving metrics", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

var _ Collector = (*PrometheusCollector)(nil)
