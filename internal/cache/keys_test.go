package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPart(t *testing.T) {
	t.Run("lowercases and trims", func(t *testing.T) {
		assert.Equal(t, "paris", KeyPart("  PARIS  "))
	})

	t.Run("whitespace becomes plus", func(t *testing.T) {
		assert.Equal(t, "new+york", KeyPart("New York"))
	})

	t.Run("blank input", func(t *testing.T) {
		assert.Equal(t, "", KeyPart(""))
		assert.Equal(t, "", KeyPart("   "))
	})

	t.Run("non-string input", func(t *testing.T) {
		assert.Equal(t, "", KeyPart(nil))
		assert.Equal(t, "", KeyPart(123))
		assert.Equal(t, "", KeyPart([]string{"x"}))
	})

	t.Run("reserved characters are percent encoded", func(t *testing.T) {
		assert.Equal(t, "a%2fb", KeyPart("a/b"))
		assert.Equal(t, "caf%c3%a9", KeyPart("Café"))
	})

	t.Run("case and surrounding whitespace normalize identically", func(t *testing.T) {
		assert.Equal(t, KeyPart("New York"), KeyPart("  new york "))
	})
}

func TestKeyPartIdempotent(t *testing.T) {
	inputs := []string{
		"New York",
		"São Paulo",
		"a/b c?d",
		"already+normalized",
		"caf%c3%a9",
		"Washington, D.C.",
	}
	for _, in := range inputs {
		once := KeyPart(in)
		assert.Equal(t, once, KeyPart(once), "input %q", in)
	}
}

func TestKey(t *testing.T) {
	assert.Equal(t, "city-detail-base:new+york:ny:us", Key("city-detail-base", "New York", "NY", "US"))
	assert.Equal(t, "countries:americas", Key("countries", "Americas"))
	assert.Equal(t, "cities::", Key("cities", nil, ""))
}
