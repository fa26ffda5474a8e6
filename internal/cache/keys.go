package cache

import (
	"strings"
	"unicode"
)

// KeyPart maps a free-text identifier (city, state, country, region) to a
// stable, case-insensitive, URL-safe cache-key fragment. Non-string and nil
// inputs normalize to the empty string. The mapping is idempotent: lowercase
// letters, digits, '+', '%', '.', '-' and '_' pass through unchanged,
// whitespace becomes '+', and everything else is percent-encoded with
// lowercase hex.
func KeyPart(value any) string {
	s, ok := value.(string)
	if !ok {
		return ""
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte('+')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9',
			r == '+', r == '%', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			for _, octet := range []byte(string(r)) {
				b.WriteByte('%')
				b.WriteByte(lowerHex[octet>>4])
				b.WriteByte(lowerHex[octet&0x0f])
			}
		}
	}
	return b.String()
}

const lowerHex = "0123456789abcdef"

// Key joins normalized fragments under a namespace, e.g.
// Key("city-detail-base", city, state, country).
func Key(namespace string, parts ...any) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, namespace)
	for _, p := range parts {
		segments = append(segments, KeyPart(p))
	}
	return strings.Join(segments, ":")
}
