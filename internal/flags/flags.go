// Package flags provides feature flags read from the config file's flags
// section. Flags are read-only after initialization and flags set nowhere are
// disabled.
package flags

import (
	"maps"
	"slices"

	"github.com/zjrosen/forknative/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagDeliverInternal delivers NODE_ prefixed channel messages on the
	// message stream instead of only reporting them as internal events.
	FlagDeliverInternal = "deliver-internal-messages"

	// FlagLookupCache memoizes PATH lookups of bare program names for
	// launch.lookup_cache_ttl. When disabled every launch searches PATH.
	FlagLookupCache = "lookup-cache"
)

// defaults apply to flags the config does not mention.
var defaults = map[string]bool{
	FlagDeliverInternal: false,
	FlagLookupCache:     true,
}

// Registry holds feature flag state loaded from configuration.
type Registry struct {
	flags   map[string]bool
	unknown []string
}

// New creates a Registry from a config map layered over the built-in
// defaults. The map is copied. If flags is nil only the defaults apply.
func New(flags map[string]bool) *Registry {
	merged := make(map[string]bool, len(defaults)+len(flags))
	maps.Copy(merged, defaults)
	maps.Copy(merged, flags)
	r := &Registry{flags: merged}
	for name := range flags {
		if _, known := defaults[name]; !known {
			r.unknown = append(r.unknown, name)
		}
	}
	slices.Sort(r.unknown)
	log.Debug(log.CatConfig, "Feature flags initialized", "flags", r.All(), "unknown", r.unknown)
	return r
}

// Unknown lists config flags no code reads, sorted. These are usually typos.
func (r *Registry) Unknown() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.unknown)
}

// Enabled reports whether the named flag is on. Flags set nowhere, and a
// nil registry, report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	return r.flags[name]
}

// All returns a copy of all flags (for debugging/logging).
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
