package childprocess

import (
	"os/exec"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// DefaultLookupTTL is how long a PATH lookup is remembered.
const DefaultLookupTTL = 30 * time.Second

// LookupCache memoizes PATH lookups for bare executable names. Names that
// contain a path separator are never looked up: they are resolved by the OS
// relative to the child's working directory.
type LookupCache struct {
	entries  *cache.Cache
	lookPath func(string) (string, error)
}

// NewLookupCache creates a cache whose entries live for ttl.
func NewLookupCache(ttl time.Duration) *LookupCache {
	if ttl <= 0 {
		ttl = DefaultLookupTTL
	}
	return &LookupCache{
		entries:  cache.New(ttl, 2*ttl),
		lookPath: exec.LookPath,
	}
}

// Resolve returns the path to execute for name. Failed lookups are not cached.
func (l *LookupCache) Resolve(name string) (string, error) {
	if strings.Contains(name, "/") {
		return name, nil
	}
	if v, ok := l.entries.Get(name); ok {
		return v.(string), nil
	}
	resolved, err := l.lookPath(name)
	if err != nil {
		return "", err
	}
	l.entries.SetDefault(name, resolved)
	return resolved, nil
}

// Flush forgets every cached lookup.
func (l *LookupCache) Flush() {
	l.entries.Flush()
}

// Len returns the number of cached lookups.
func (l *LookupCache) Len() int {
	return l.entries.ItemCount()
}
