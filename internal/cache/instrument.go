package cache

import (
	"strings"
	"time"
)

// LookupRecorder receives one observation per cache read.
type LookupRecorder interface {
	ObserveCacheLookup(namespace string, hit bool)
}

// Instrumented wraps a Store and reports hits and misses per key namespace.
type Instrumented struct {
	inner Store
	rec   LookupRecorder
}

var _ Store = (*Instrumented)(nil)

func WithMetrics(inner Store, rec LookupRecorder) *Instrumented {
	return &Instrumented{inner: inner, rec: rec}
}

func (c *Instrumented) Get(key string) (any, bool) {
	v, ok := c.inner.Get(key)
	c.rec.ObserveCacheLookup(namespaceOf(key), ok)
	return v, ok
}

func (c *Instrumented) Set(key string, value any, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
}

// namespaceOf returns the segment before the first ':', the namespace Key
// prepends.
func namespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return key
}
