package normalize

import (
	"encoding/json"
	"errors"
	"log"

	"github.com/stopransomware/victimfeed/internal/extract"
)

// ErrNotArray signals that the upstream payload was not the expected
// collection shape. Callers degrade to an empty collection; the error is
// informational, not fatal.
var ErrNotArray = errors.New("upstream payload is not an array")

// VictimRecord is the canonical normalized representation of one reported
// ransomware incident. VictimName and GroupName are never empty; the
// remaining fields are nil when no source field carried a value. Published
// is not guaranteed parseable (the upstream supplies garbage dates at
// times), so consumers must validate before treating it as a time.
type VictimRecord struct {
	VictimName string  `json:"victim_name"`
	GroupName  string  `json:"group_name"`
	Published  *string `json:"published"`
	Country    *string `json:"country"`
	Industry   *string `json:"industry"`
	URL        *string `json:"url"`

	// Extra holds raw upstream fields passed through for forward
	// compatibility. Not part of the contract.
	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the object with canonical fields taking
// precedence on key collision.
func (r VictimRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["victim_name"] = r.VictimName
	out["group_name"] = r.GroupName
	out["published"] = r.Published
	out["country"] = r.Country
	out["industry"] = r.Industry
	out["url"] = r.URL
	return json.Marshal(out)
}

// Normalize applies field extraction across a raw upstream collection.
// A payload that is not an array yields an empty slice plus ErrNotArray;
// non-object elements are skipped. Nothing here ever panics or throws
// past this boundary.
func Normalize(raw any, profile extract.Profile) ([]VictimRecord, error) {
	items, ok := raw.([]any)
	if !ok {
		return []VictimRecord{}, ErrNotArray
	}

	records := make([]VictimRecord, 0, len(items))
	skipped := 0
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		records = append(records, fromRaw(obj, profile))
	}
	if skipped > 0 {
		log.Printf("normalize: skipped %d non-object elements", skipped)
	}
	return records, nil
}

func fromRaw(obj map[string]any, profile extract.Profile) VictimRecord {
	f := extract.Extract(obj, profile)
	return VictimRecord{
		VictimName: f.VictimName,
		GroupName:  f.GroupName,
		Published:  f.Published,
		Country:    f.Country,
		Industry:   f.Industry,
		URL:        f.URL,
		Extra:      obj,
	}
}
