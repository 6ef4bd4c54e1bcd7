package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stopransomware/victimfeed/internal/extract"
	"github.com/stopransomware/victimfeed/internal/groups"
	"github.com/stopransomware/victimfeed/internal/normalize"
)

// PolicyError marks an upstream rejection that is a restriction, not a
// fault: geographic blocks and rate limits. Consumers surface these
// distinctly so users understand the limitation is external.
type PolicyError struct {
	Status int
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("upstream policy restriction (HTTP %d)", e.Status)
}

// Client fetches raw victim and group data from the upstream API and
// runs it through normalization. All methods fail soft on shape errors:
// a non-array body yields an empty collection, never a panic.
type Client struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewClient creates an upstream API client.
func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// RecentVictims fetches the upstream's recent victim feed.
func (c *Client) RecentVictims(ctx context.Context) ([]normalize.VictimRecord, error) {
	return c.victims(ctx, "/recentvictims", extract.ProfileGeneral)
}

// AllVictims fetches the upstream's full cyberattack feed.
func (c *Client) AllVictims(ctx context.Context) ([]normalize.VictimRecord, error) {
	return c.victims(ctx, "/allcyberattacks", extract.ProfileGeneral)
}

// MonthVictims fetches all victims posted in a given year and month.
func (c *Client) MonthVictims(ctx context.Context, year int, month time.Month) ([]normalize.VictimRecord, error) {
	path := fmt.Sprintf("/victims/%04d/%02d", year, int(month))
	return c.victims(ctx, path, extract.ProfileGeneral)
}

// CountryVictims fetches victims for a two-letter country code. The
// per-country endpoints name fields differently, so these records go
// through the country extraction profile.
func (c *Client) CountryVictims(ctx context.Context, code string) ([]normalize.VictimRecord, error) {
	path := "/countryvictims/" + strings.ToUpper(strings.TrimSpace(code))
	return c.victims(ctx, path, extract.ProfileCountry)
}

// Groups fetches and aggregates the upstream group metadata stream.
func (c *Client) Groups(ctx context.Context) ([]groups.GroupRecord, error) {
	raw, err := c.get(ctx, "/groups")
	if err != nil {
		return nil, err
	}
	records, err := groups.Aggregate(raw, time.Now())
	if err != nil {
		// Shape error: degrade to empty, the caller logs it.
		return records, fmt.Errorf("groups: %w", err)
	}
	return records, nil
}

func (c *Client) victims(ctx context.Context, path string, profile extract.Profile) ([]normalize.VictimRecord, error) {
	raw, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	records, err := normalize.Normalize(raw, profile)
	if err != nil {
		return records, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, &PolicyError{Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: HTTP %d", path, resp.StatusCode)
	}

	var payload any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return payload, nil
}
