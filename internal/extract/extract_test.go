package extract

import "testing"

func TestExtractGeneralRecord(t *testing.T) {
	f := Extract(map[string]any{
		"victim":     "Acme Corp",
		"group":      "LockBit",
		"discovered": "2024-01-01T00:00:00Z",
		"country":    "US",
	}, ProfileGeneral)

	if f.VictimName != "Acme Corp" {
		t.Errorf("expected 'Acme Corp', got %q", f.VictimName)
	}
	if f.GroupName != "LockBit" {
		t.Errorf("expected 'LockBit', got %q", f.GroupName)
	}
	if f.Published == nil || *f.Published != "2024-01-01T00:00:00Z" {
		t.Errorf("unexpected published: %v", f.Published)
	}
	if f.Country == nil || *f.Country != "US" {
		t.Errorf("unexpected country: %v", f.Country)
	}
	if f.Industry != nil {
		t.Errorf("expected nil industry, got %q", *f.Industry)
	}
	if f.URL != nil {
		t.Errorf("expected nil url, got %q", *f.URL)
	}
}

func TestExtractFallbackOrder(t *testing.T) {
	// "victim" outranks "domain" outranks "post_title".
	f := Extract(map[string]any{
		"post_title": "from post title",
		"domain":     "from domain",
		"victim":     "from victim",
	}, ProfileGeneral)
	if f.VictimName != "from victim" {
		t.Errorf("expected 'from victim', got %q", f.VictimName)
	}

	f = Extract(map[string]any{
		"post_title": "from post title",
		"domain":     "from domain",
	}, ProfileGeneral)
	if f.VictimName != "from domain" {
		t.Errorf("expected 'from domain', got %q", f.VictimName)
	}
}

func TestExtractSkipsInvalidCandidates(t *testing.T) {
	f := Extract(map[string]any{
		"victim":  "   ",
		"domain":  "null",
		"website": "undefined",
		"title":   "Real Title",
	}, ProfileGeneral)
	if f.VictimName != "Real Title" {
		t.Errorf("expected 'Real Title', got %q", f.VictimName)
	}
}

func TestExtractNonStringCandidates(t *testing.T) {
	f := Extract(map[string]any{
		"victim": 42,
		"domain": []any{"x"},
		"name":   "Fallback Co",
	}, ProfileGeneral)
	if f.VictimName != "Fallback Co" {
		t.Errorf("expected 'Fallback Co', got %q", f.VictimName)
	}
}

func TestExtractSentinelTotality(t *testing.T) {
	f := Extract(map[string]any{}, ProfileGeneral)
	if f.VictimName != SentinelOrganization {
		t.Errorf("expected sentinel, got %q", f.VictimName)
	}
	if f.GroupName != SentinelGroup {
		t.Errorf("expected group sentinel, got %q", f.GroupName)
	}
	if f.Published != nil || f.Country != nil || f.Industry != nil || f.URL != nil {
		t.Error("expected all optional fields nil")
	}
}

func TestExtractSelfReferenceExclusion(t *testing.T) {
	f := Extract(map[string]any{
		"victim": "see https://www.ransomware.live/group/x",
		"domain": "ransomware.live",
		"url":    "https://ransomware.live/victim/y",
	}, ProfileGeneral)
	if f.VictimName != SentinelOrganization {
		t.Errorf("expected sentinel for self-referential names, got %q", f.VictimName)
	}
}

func TestExtractHostnameFromURL(t *testing.T) {
	f := Extract(map[string]any{
		"url": "https://www.example-victim.com/post/1",
	}, ProfileGeneral)
	if f.VictimName != "example-victim.com" {
		t.Errorf("expected hostname-derived name, got %q", f.VictimName)
	}
}

func TestExtractCountryProfile(t *testing.T) {
	f := Extract(map[string]any{
		"website":    "acme.vn",
		"post_title": "",
		"country":    "VN",
	}, ProfileCountry)
	if f.VictimName != "Acme" {
		t.Errorf("expected 'Acme', got %q", f.VictimName)
	}
	if f.Country == nil || *f.Country != "VN" {
		t.Errorf("unexpected country: %v", f.Country)
	}
}

func TestExtractCountryProfileNestedCompany(t *testing.T) {
	f := Extract(map[string]any{
		"extrainfos": map[string]any{"company": "Nested Industries"},
	}, ProfileCountry)
	if f.VictimName != "Nested Industries" {
		t.Errorf("expected nested company, got %q", f.VictimName)
	}

	f = Extract(map[string]any{}, ProfileCountry)
	if f.VictimName != SentinelName {
		t.Errorf("expected %q, got %q", SentinelName, f.VictimName)
	}
}

func TestPrettifyDomainName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"acme.vn", "Acme"},
		{"acme.com", "Acme"},
		{"north-star.com.au", "North-star"},
		{"foo.bar.org", "Foo Bar"},
		{"Already A Name", "Already A Name"},
		{"nodots", "nodots"},
	}
	for _, c := range cases {
		if got := prettifyDomainName(c.in); got != c.want {
			t.Errorf("prettifyDomainName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExtractDateFallbackChain(t *testing.T) {
	f := Extract(map[string]any{
		"published":  "2024-02-02",
		"discovered": "2024-01-01",
	}, ProfileGeneral)
	if f.Published == nil || *f.Published != "2024-01-01" {
		t.Errorf("expected discovered to win, got %v", f.Published)
	}

	f = Extract(map[string]any{"attackdate": "2024-03-03"}, ProfileGeneral)
	if f.Published == nil || *f.Published != "2024-03-03" {
		t.Errorf("expected attackdate fallback, got %v", f.Published)
	}
}
