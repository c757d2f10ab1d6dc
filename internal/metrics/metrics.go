// Package metrics exposes Prometheus counters for launches, channel traffic
// and process exits.
package metrics

import (
	"github.com/zjrosen/forknative/internal/childprocess"
)

// Launch rejection reasons.
const (
	ReasonInvalidArgument = "invalid_argument"
	ReasonMissingChannel  = "missing_channel"
	ReasonInvalidOptions  = "invalid_options"
)

// Collector records launch outcomes and child lifecycle events.
type Collector interface {
	// LaunchRejected records a launch refused before any process existed.
	LaunchRejected(reason string)

	// ObserveEvent records a child lifecycle event. It is called
	// synchronously from the child's goroutines and must not block.
	ObserveEvent(ev childprocess.Event)
}

type noopCollector struct{}

func (noopCollector) LaunchRejected(string)           {}
func (noopCollector) ObserveEvent(childprocess.Event) {}

// NewNoopCollector returns a Collector that discards everything.
func NewNoopCollector() Collector {
	return noopCollector{}
}
