package gateway

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/stopransomware/victimfeed/internal/metrics"
)

// Gateway proxies allow-listed GET requests to the upstream threat-intel
// API. It exists because the upstream has no CORS headers and enforces
// geographic and rate restrictions; every browser-side data call funnels
// through here. Responses are deliberately origin-open: the proxied data
// is public.
type Gateway struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// New creates a Gateway forwarding to the given upstream base URL.
func New(baseURL, userAgent string, timeout time.Duration) *Gateway {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Handler returns the proxy handler. It expects the routing prefix to be
// stripped already (mount with http.StripPrefix).
func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(g.serve)
}

func (g *Gateway) serve(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodGet {
		metrics.GatewayRequests.WithLabelValues("method").Inc()
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := r.URL.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !pathAllowed(path) {
		metrics.GatewayRequests.WithLabelValues("denied").Inc()
		writeError(w, http.StatusNotFound, "Endpoint not allowed")
		return
	}

	target := g.baseURL + path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("upstream_error").Inc()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		metrics.GatewayRequests.WithLabelValues("upstream_error").Inc()
		log.Printf("gateway: upstream request failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		metrics.GatewayRequests.WithLabelValues("non_json").Inc()
		log.Printf("gateway: upstream returned %q for %s", contentType, path)
		writeError(w, http.StatusBadGateway, "Upstream returned non-JSON")
		return
	}

	metrics.GatewayRequests.WithLabelValues("allowed").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("gateway: copying upstream body: %v", err)
	}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
