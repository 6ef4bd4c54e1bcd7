package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestGateway(upstream string) *Gateway {
	return New(upstream, "victimfeed-test/1.0", 5*time.Second)
}

func jsonUpstream(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAllowedPathsAccepted(t *testing.T) {
	accepted := []string{
		"/info",
		"/recentvictims",
		"/groups",
		"/group/lockbit3",
		"/allcyberattacks",
		"/recentcyberattacks",
		"/groupvictims/akira",
		"/searchvictims/acme",
		"/countrycyberattacks/US",
		"/countryvictims/vn",
		"/victims/2024/03",
		"/sectorvictims/healthcare",
		"/sectorvictims/healthcare/US",
		"/certs/DE",
		"/yara/blackbasta",
	}

	upstream := jsonUpstream(t, `[]`)
	g := newTestGateway(upstream.URL)

	for _, path := range accepted {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		g.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("path %s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestDisallowedPathsRejected(t *testing.T) {
	rejected := []string{
		"/stats",
		"/",
		"/groups/../secret",
		"/group/..",
		"/group/.",
		"/yara/..",
		"/group/lockbit3/extra",
		"/victims/2024",
		"/victims/24/03",
		"/countryvictims/USA",
		"/certs/usa",
		"/admin",
	}

	upstream := jsonUpstream(t, `[]`)
	g := newTestGateway(upstream.URL)

	for _, path := range rejected {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		g.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("path %s: expected 404, got %d", path, rec.Code)
			continue
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("path %s: invalid error body: %v", path, err)
			continue
		}
		if body["error"] != "Endpoint not allowed" {
			t.Errorf("path %s: unexpected error %q", path, body["error"])
		}
	}
}

func TestNonGETRejected(t *testing.T) {
	g := newTestGateway("http://unused.invalid")

	req := httptest.NewRequest("POST", "/info", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestOptionsPreflight(t *testing.T) {
	g := newTestGateway("http://unused.invalid")

	req := httptest.NewRequest("OPTIONS", "/info", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Error("expected empty preflight body")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive CORS origin")
	}
}

func TestNonJSONUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>blocked</html>"))
	}))
	defer upstream.Close()

	g := newTestGateway(upstream.URL)
	req := httptest.NewRequest("GET", "/info", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "Upstream returned non-JSON" {
		t.Errorf("unexpected error %q", body["error"])
	}
}

func TestUpstreamUnreachable(t *testing.T) {
	g := newTestGateway("http://127.0.0.1:1")

	req := httptest.NewRequest("GET", "/info", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] == "" {
		t.Error("expected error message in body")
	}
}

func TestQueryStringForwarded(t *testing.T) {
	var gotQuery string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	g := newTestGateway(upstream.URL)
	req := httptest.NewRequest("GET", "/searchvictims/acme?page=2&order=desc", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotQuery != "page=2&order=desc" {
		t.Errorf("expected query forwarded, got %q", gotQuery)
	}
}

func TestUpstreamStatusMirrored(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer upstream.Close()

	g := newTestGateway(upstream.URL)
	req := httptest.NewRequest("GET", "/recentvictims", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected mirrored 429, got %d", rec.Code)
	}
}
