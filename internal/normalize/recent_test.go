package normalize

import (
	"testing"
	"time"
)

func ptr(s string) *string { return &s }

func victimAt(published string) VictimRecord {
	return VictimRecord{VictimName: "V", GroupName: "G", Published: ptr(published)}
}

func TestFilterRecentBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	inside := victimAt(now.Add(-23*time.Hour - 59*time.Minute - 59*time.Second).Format(time.RFC3339))
	outside := victimAt(now.Add(-24*time.Hour - time.Second).Format(time.RFC3339))

	recent := FilterRecent([]VictimRecord{inside, outside}, 24*time.Hour, now)
	if len(recent) != 1 {
		t.Fatalf("expected 1 recent record, got %d", len(recent))
	}
	if *recent[0].Published != *inside.Published {
		t.Error("expected the in-window record to survive")
	}
}

func TestFilterRecentExcludesUnparseable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	garbage := victimAt("not a date at all")
	missing := VictimRecord{VictimName: "V", GroupName: "G"}

	if got := FilterRecent([]VictimRecord{garbage, missing}, 24*time.Hour, now); len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}

func TestFilterRecentFallbackDate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Published is garbage but discovered is valid and recent.
	r := VictimRecord{
		VictimName: "V",
		GroupName:  "G",
		Published:  ptr("garbage"),
		Extra: map[string]any{
			"discovered": now.Add(-2 * time.Hour).Format("2006-01-02 15:04:05"),
		},
	}

	if got := FilterRecent([]VictimRecord{r}, 24*time.Hour, now); len(got) != 1 {
		t.Errorf("expected fallback date to qualify the record, got %d", len(got))
	}
}

func TestFilterRecentExcludesFuture(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := victimAt(now.Add(2 * time.Hour).Format(time.RFC3339))

	if got := FilterRecent([]VictimRecord{future}, 24*time.Hour, now); len(got) != 0 {
		t.Errorf("expected future-dated record excluded, got %d", len(got))
	}
}

func TestParseWhenLayouts(t *testing.T) {
	cases := []string{
		"2024-01-02T15:04:05Z",
		"2024-01-02 15:04:05.123456",
		"2024-01-02 15:04:05",
		"2024-01-02T15:04:05",
		"2024-01-02",
	}
	for _, c := range cases {
		if _, ok := ParseWhen(c); !ok {
			t.Errorf("expected %q to parse", c)
		}
	}

	for _, c := range []string{"", "  ", "soon", "01/02/2024 maybe"} {
		if _, ok := ParseWhen(c); ok {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestDiscoveredAtPrefersDiscovered(t *testing.T) {
	r := VictimRecord{
		VictimName: "V",
		GroupName:  "G",
		Published:  ptr("2024-03-01"),
		Extra:      map[string]any{"discovered": "2024-03-05"},
	}

	got, ok := r.DiscoveredAt()
	if !ok {
		t.Fatal("expected a usable timestamp")
	}
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected discovered to win, got %v", got)
	}
}
