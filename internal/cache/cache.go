// Package cache provides the process-wide key-value facade used by every
// resolver. Entries are idempotent re-derivations of upstream truth, so
// last-write-wins between concurrent requests is acceptable.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the get/set-with-TTL contract the resolvers depend on.
type Store interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// Memory is an in-process Store backed by go-cache. Safe for concurrent use.
type Memory struct {
	c *gocache.Cache
}

// NewMemory creates a Memory store whose entries default to defaultTTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *Memory) Get(key string) (any, bool) {
	return m.c.Get(key)
}

func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.c.Set(key, value, ttl)
}
