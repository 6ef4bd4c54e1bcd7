package normalize

import (
	"strings"
	"time"
)

// dateLayouts covers the timestamp shapes the upstream has been observed
// to emit. Tried in order.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseWhen parses an upstream timestamp string, reporting whether it was
// usable.
func ParseWhen(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// When returns the record's presentation timestamp: the canonical
// published field, falling back to raw discovered/attackdate values.
func (r VictimRecord) When() (time.Time, bool) {
	candidates := []*string{r.Published}
	for _, key := range []string{"discovered", "attackdate"} {
		if s, ok := r.Extra[key].(string); ok {
			candidates = append(candidates, &s)
		}
	}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if t, ok := ParseWhen(*c); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// DiscoveredAt returns the record's best-available discovery timestamp,
// preferring the raw discovered field over published over attackdate.
// The notification diff keys on this, not on When.
func (r VictimRecord) DiscoveredAt() (time.Time, bool) {
	var candidates []string
	if s, ok := r.Extra["discovered"].(string); ok {
		candidates = append(candidates, s)
	}
	if r.Published != nil {
		candidates = append(candidates, *r.Published)
	}
	if s, ok := r.Extra["attackdate"].(string); ok {
		candidates = append(candidates, s)
	}
	for _, c := range candidates {
		if t, ok := ParseWhen(c); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// FilterRecent returns the records whose timestamp falls within
// [now-window, now]. Records with missing or unparseable dates are
// excluded, never guessed at.
func FilterRecent(records []VictimRecord, window time.Duration, now time.Time) []VictimRecord {
	cutoff := now.Add(-window)
	var recent []VictimRecord
	for _, r := range records {
		t, ok := r.When()
		if !ok {
			continue
		}
		if t.Before(cutoff) || t.After(now) {
			continue
		}
		recent = append(recent, r)
	}
	return recent
}
