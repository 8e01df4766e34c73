// Package resultsapi is the HTTP client for the external authoritative
// match-result service. Battles are looked up by their opaque correlation
// code; a battle that has not been played yet is reported as not found.
package resultsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound means the service has no record for the code (yet).
var ErrNotFound = errors.New("resultsapi: battle not found")

// Player is one participant in an authoritative battle record.
type Player struct {
	Name   string   `json:"name"`
	Winner bool     `json:"winner"`
	Lineup []string `json:"lineup"`
}

// Battle is the authoritative record for one sub-match.
type Battle struct {
	Code     string   `json:"code"`
	Finished bool     `json:"finished"`
	Players  []Player `json:"players"`
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetTimeout overrides the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// GetBattle fetches one battle record by correlation code.
func (c *Client) GetBattle(ctx context.Context, code string) (*Battle, error) {
	endpoint := fmt.Sprintf("%s/battle/%s", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch battle %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("result service returned status %d: %s", resp.StatusCode, string(body))
	}

	var battle Battle
	if err := json.NewDecoder(resp.Body).Decode(&battle); err != nil {
		return nil, fmt.Errorf("failed to decode battle response: %w", err)
	}
	return &battle, nil
}
