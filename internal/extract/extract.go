package extract

import (
	"net/url"
	"strings"
)

// Profile selects which extraction rule set applies to a raw record.
// The per-country endpoints use different field names in practice than
// the general victim endpoints, so each stream gets its own tables.
type Profile string

const (
	ProfileGeneral Profile = "general"
	ProfileCountry Profile = "country"
)

// Sentinels returned when no usable source field exists. "Unknown" is
// distinguishable from real data only by exact match.
const (
	SentinelOrganization = "Unknown Organization"
	SentinelName         = "Unknown"
	SentinelGroup        = "Unknown Group"
)

// upstreamDomain is the provider's own domain. The upstream occasionally
// echoes its marketing URL in victim name fields; those values must never
// be presented as a victim's identity.
const upstreamDomain = "ransomware.live"

// Fields is the canonical field set derived from one raw record.
type Fields struct {
	VictimName string
	GroupName  string
	Published  *string
	Country    *string
	Industry   *string
	URL        *string
}

// rule is one step of an ordered fallback chain: a lookup over the raw
// record plus the validity predicate its candidate must pass.
type rule struct {
	lookup func(map[string]any) (string, bool)
	valid  func(string) bool
}

func field(name string) func(map[string]any) (string, bool) {
	return func(raw map[string]any) (string, bool) {
		s, ok := raw[name].(string)
		return s, ok
	}
}

func nested(outer, inner string) func(map[string]any) (string, bool) {
	return func(raw map[string]any) (string, bool) {
		m, ok := raw[outer].(map[string]any)
		if !ok {
			return "", false
		}
		s, ok := m[inner].(string)
		return s, ok
	}
}

// validString rejects empty, whitespace-only, and null-sentinel values.
func validString(s string) bool {
	t := strings.TrimSpace(s)
	return t != "" && t != "null" && t != "undefined"
}

// validName additionally rejects values echoing the upstream's own domain.
func validName(s string) bool {
	return validString(s) && !strings.Contains(strings.ToLower(s), upstreamDomain)
}

func nameRules(fields ...string) []rule {
	rules := make([]rule, len(fields))
	for i, f := range fields {
		rules[i] = rule{lookup: field(f), valid: validName}
	}
	return rules
}

func plainRules(fields ...string) []rule {
	rules := make([]rule, len(fields))
	for i, f := range fields {
		rules[i] = rule{lookup: field(f), valid: validString}
	}
	return rules
}

var (
	generalNameRules = append(
		nameRules("victim", "domain", "website", "post_title", "victim_name", "company", "title", "name"),
		rule{lookup: hostFromURL, valid: validName},
	)
	countryNameRules = append(
		nameRules("post_title", "website", "victim", "title", "organization", "name"),
		rule{lookup: nested("extrainfos", "company"), valid: validName},
	)
	groupRules     = plainRules("group_name", "group")
	publishedRules = plainRules("discovered", "discovery_date", "published", "date", "leaked", "attackdate")
	countryRules   = plainRules("country", "location")
	industryRules  = plainRules("activity", "industry", "sector", "business_sector")
	urlRules       = plainRules("url", "claim_url", "victim_url", "post_url", "link")
)

// Extract derives canonical fields from one raw upstream record using the
// ordered fallback chains for the given profile. It is a pure transform:
// every failure mode degrades to a sentinel or nil, never an error.
func Extract(raw map[string]any, profile Profile) Fields {
	f := Fields{
		GroupName: firstOr(raw, groupRules, SentinelGroup),
		Published: firstPtr(raw, publishedRules),
		Country:   firstPtr(raw, countryRules),
		Industry:  firstPtr(raw, industryRules),
		URL:       firstPtr(raw, urlRules),
	}

	switch profile {
	case ProfileCountry:
		f.VictimName = prettifyDomainName(firstOr(raw, countryNameRules, SentinelName))
	default:
		f.VictimName = firstOr(raw, generalNameRules, SentinelOrganization)
	}
	return f
}

func first(raw map[string]any, rules []rule) (string, bool) {
	for _, r := range rules {
		if s, ok := r.lookup(raw); ok && r.valid(s) {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}

func firstOr(raw map[string]any, rules []rule, sentinel string) string {
	if s, ok := first(raw, rules); ok {
		return s
	}
	return sentinel
}

func firstPtr(raw map[string]any, rules []rule) *string {
	if s, ok := first(raw, rules); ok {
		return &s
	}
	return nil
}

// hostFromURL derives a victim name from the record's url field hostname,
// with the www. prefix stripped.
func hostFromURL(raw map[string]any) (string, bool) {
	s, ok := raw["url"].(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	return strings.TrimPrefix(u.Hostname(), "www."), true
}

// commonTLDs are stripped when reformatting a bare domain into a display
// name. Two-letter trailing segments are treated as country codes.
var commonTLDs = map[string]struct{}{
	"com": {}, "net": {}, "org": {}, "io": {}, "co": {},
	"gov": {}, "edu": {}, "info": {}, "biz": {},
}

// prettifyDomainName turns a bare domain-like token ("acme.vn") into a
// human-readable title ("Acme"). Values that already contain spaces, or
// contain no dot, pass through unchanged.
func prettifyDomainName(name string) string {
	if !strings.Contains(name, ".") || strings.Contains(name, " ") {
		return name
	}

	parts := strings.Split(strings.ToLower(name), ".")
	for len(parts) > 1 {
		last := parts[len(parts)-1]
		_, known := commonTLDs[last]
		if !known && len(last) != 2 {
			break
		}
		parts = parts[:len(parts)-1]
	}

	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, strings.ToUpper(p[:1])+p[1:])
	}
	if len(words) == 0 {
		return name
	}
	return strings.Join(words, " ")
}
