package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemory(5 * time.Minute)

	_, found := store.Get("missing")
	assert.False(t, found)

	store.Set("k", "v", time.Minute)
	got, found := store.Get("k")
	require.True(t, found)
	assert.Equal(t, "v", got)

	// Overwrites replace, never patch.
	store.Set("k", 42, time.Minute)
	got, _ = store.Get("k")
	assert.Equal(t, 42, got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemory(5 * time.Minute)
	store.Set("short", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, found := store.Get("short")
	assert.False(t, found)
}
