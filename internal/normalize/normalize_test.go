package normalize

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/stopransomware/victimfeed/internal/extract"
)

func TestNormalizeBasic(t *testing.T) {
	raw := []any{
		map[string]any{
			"victim":     "Acme Corp",
			"group":      "LockBit",
			"discovered": "2024-01-01T00:00:00Z",
			"country":    "US",
		},
	}

	records, err := Normalize(raw, extract.ProfileGeneral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.VictimName != "Acme Corp" || r.GroupName != "LockBit" {
		t.Errorf("unexpected identity fields: %q / %q", r.VictimName, r.GroupName)
	}
	if r.Published == nil || *r.Published != "2024-01-01T00:00:00Z" {
		t.Errorf("unexpected published: %v", r.Published)
	}
	if r.Industry != nil || r.URL != nil {
		t.Error("expected nil industry and url")
	}
}

func TestNormalizeNonArray(t *testing.T) {
	records, err := Normalize(map[string]any{"error": "rate limited"}, extract.ProfileGeneral)
	if !errors.Is(err, ErrNotArray) {
		t.Errorf("expected ErrNotArray, got %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("expected empty slice, got %v", records)
	}

	records, err = Normalize(nil, extract.ProfileGeneral)
	if !errors.Is(err, ErrNotArray) {
		t.Errorf("expected ErrNotArray for nil, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty slice for nil input")
	}
}

func TestNormalizeSkipsNonObjects(t *testing.T) {
	raw := []any{
		"just a string",
		42,
		map[string]any{"victim": "Real Co"},
	}
	records, err := Normalize(raw, extract.ProfileGeneral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].VictimName != "Real Co" {
		t.Errorf("expected only the object element, got %v", records)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := []any{
		map[string]any{"victim": "A", "group": "G", "published": "2024-01-01"},
		map[string]any{"website": "b.com"},
	}

	first, err := Normalize(raw, extract.ProfileGeneral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Normalize(raw, extract.ProfileGeneral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("expected repeated normalization to yield identical output")
	}
}

func TestMarshalCanonicalPrecedence(t *testing.T) {
	records, err := Normalize([]any{
		map[string]any{
			"victim":      "Canonical Name",
			"victim_name": "raw collision value",
			"custom_flag": true,
		},
	}, extract.ProfileGeneral)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(records[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["victim_name"] != "Canonical Name" {
		t.Errorf("expected canonical value to win collision, got %v", out["victim_name"])
	}
	if out["custom_flag"] != true {
		t.Error("expected passthrough field to survive")
	}
	if out["group_name"] != extract.SentinelGroup {
		t.Errorf("expected group sentinel, got %v", out["group_name"])
	}
}
