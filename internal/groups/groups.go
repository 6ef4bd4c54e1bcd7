package groups

import (
	"errors"
	"log"
	"regexp"
	"strings"
	"time"
)

// ErrNotArray signals that the upstream group payload was not a collection.
var ErrNotArray = errors.New("upstream group payload is not an array")

// GroupRecord is the derived view of one ransomware group. Active and
// Count are heuristic, not authoritative: the upstream has no stable
// fields for either, so both come from ordered candidate chains. Count 0
// means "no data" as much as "zero victims".
type GroupRecord struct {
	Name   string  `json:"name"`
	Active bool    `json:"active"`
	Count  int     `json:"count"`
	URL    *string `json:"url"`
}

// activeWindow is how far back a location update still counts as a sign
// of life.
const activeWindow = 3 * 30 * 24 * time.Hour

var (
	victimCountRe = regexp.MustCompile(`(?i)(\d+)\s*victims?`)
	orgCountRe    = regexp.MustCompile(`(?i)(\d+)\s*(organizations|companies)`)
	killWords     = []string{"seized", "shutdown", "inactive"}
)

// Aggregate derives group records from the raw upstream group metadata
// stream. Non-array payloads degrade to an empty slice plus ErrNotArray.
func Aggregate(raw any, now time.Time) ([]GroupRecord, error) {
	items, ok := raw.([]any)
	if !ok {
		return []GroupRecord{}, ErrNotArray
	}

	records := make([]GroupRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		records = append(records, aggregateOne(obj, now))
	}
	if skipped > 0 {
		log.Printf("groups: skipped %d non-object elements", skipped)
	}
	return records, nil
}

func aggregateOne(obj map[string]any, now time.Time) GroupRecord {
	g := GroupRecord{Name: groupName(obj)}
	g.Active = deriveActive(obj, now)
	g.Count = deriveCount(obj, g.Name, g.Active)
	if s, ok := obj["url"].(string); ok && strings.TrimSpace(s) != "" {
		u := strings.TrimSpace(s)
		g.URL = &u
	}
	return g
}

func groupName(obj map[string]any) string {
	for _, key := range []string{"name", "group_name", "group"} {
		if s, ok := obj[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return "Unknown Group"
}

// countProducer is one step of the count derivation chain. The first
// producer to return ok wins.
type countProducer func(obj map[string]any, name string, active bool) (int, bool)

var countProducers = []countProducer{
	func(_ map[string]any, name string, _ bool) (int, bool) {
		n, ok := knownCounts[strings.ToLower(name)]
		return n, ok
	},
	func(obj map[string]any, _ string, _ bool) (int, bool) { return numField(obj, "victim_count") },
	func(obj map[string]any, _ string, _ bool) (int, bool) { return numField(obj, "count") },
	func(obj map[string]any, _ string, _ bool) (int, bool) {
		arr, ok := obj["victims"].([]any)
		if !ok {
			return 0, false
		}
		return len(arr), true
	},
	func(obj map[string]any, _ string, _ bool) (int, bool) { return numField(obj, "posts") },
	func(obj map[string]any, _ string, _ bool) (int, bool) { return nestedNum(obj, "stats", "victims") },
	func(obj map[string]any, _ string, _ bool) (int, bool) { return nestedNum(obj, "meta", "victims") },
	func(obj map[string]any, _ string, _ bool) (int, bool) { return descriptionCount(obj) },
	func(obj map[string]any, _ string, active bool) (int, bool) {
		if !active {
			return 0, false
		}
		if locs, ok := obj["locations"].([]any); ok && len(locs) > 0 {
			if est := len(locs) * 15; est > 30 {
				return est, true
			}
		}
		return 30, true
	},
}

func deriveCount(obj map[string]any, name string, active bool) int {
	for _, produce := range countProducers {
		// A zero candidate means "no data", not an answer; it must not
		// stop the chain before the activity estimate.
		if n, ok := produce(obj, name, active); ok && n > 0 {
			return n
		}
	}
	return 0
}

// deriveActive decides whether a group is still operating. Any location
// marked available wins, then any location updated inside the activity
// window. A meta string naming a takedown overrides everything.
func deriveActive(obj map[string]any, now time.Time) bool {
	if meta, ok := obj["meta"].(string); ok {
		lower := strings.ToLower(meta)
		for _, w := range killWords {
			if strings.Contains(lower, w) {
				return false
			}
		}
	}

	locs, ok := obj["locations"].([]any)
	if !ok {
		return false
	}

	for _, l := range locs {
		loc, ok := l.(map[string]any)
		if !ok {
			continue
		}
		if avail, ok := loc["available"].(bool); ok && avail {
			return true
		}
	}

	cutoff := now.Add(-activeWindow)
	for _, l := range locs {
		loc, ok := l.(map[string]any)
		if !ok {
			continue
		}
		s, ok := loc["updated"].(string)
		if !ok {
			continue
		}
		if t, ok := parseUpdated(s); ok && t.After(cutoff) {
			return true
		}
	}
	return false
}

var updatedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseUpdated(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range updatedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func numField(obj map[string]any, key string) (int, bool) {
	return asInt(obj[key])
}

func nestedNum(obj map[string]any, outer, inner string) (int, bool) {
	m, ok := obj[outer].(map[string]any)
	if !ok {
		return 0, false
	}
	return asInt(m[inner])
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0, false
		}
		return int(n), true
	case int:
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func descriptionCount(obj map[string]any) (int, bool) {
	desc, ok := obj["description"].(string)
	if !ok || desc == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{victimCountRe, orgCountRe} {
		if m := re.FindStringSubmatch(desc); m != nil {
			n := 0
			for _, c := range m[1] {
				n = n*10 + int(c-'0')
			}
			return n, true
		}
	}
	return 0, false
}
