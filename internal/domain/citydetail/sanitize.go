package citydetail

import (
	"github.com/microcosm-cc/bluemonday"

	"github.com/terradart/terradart-api/internal/providers/activities"
)

// Sanitizer strips markup from the free-text fields of activity records.
// Venue-submitted descriptions are attacker-influenced HTML; everything
// outside a small inline/structural allow-list is removed, not escaped.
type Sanitizer struct {
	policy *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "br", "p", "ul", "ol", "li")
	p.AllowAttrs("href", "title", "rel").OnElements("a")
	p.AllowURLSchemes("http", "https")
	return &Sanitizer{policy: p}
}

// Clean sanitizes one free-text value.
func (s *Sanitizer) Clean(value string) string {
	return s.policy.Sanitize(value)
}

// Activities returns sanitized copies of the given records, dropping nils.
// The inputs are never mutated.
func (s *Sanitizer) Activities(list []*activities.Activity) []*activities.Activity {
	out := make([]*activities.Activity, 0, len(list))
	for _, a := range list {
		if a == nil {
			continue
		}
		clean := *a
		clean.Description = s.Clean(a.Description)
		clean.ShortDescription = s.Clean(a.ShortDescription)
		out = append(out, &clean)
	}
	return out
}
