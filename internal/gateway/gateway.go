// Package gateway talks to the external payment gateway.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client reads the platform account balance from the gateway's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type balanceResponse struct {
	AvailableCents *int64 `json:"available_cents"`
}

// GetAccountBalance returns the available balance in cents.
func (c *Client) GetAccountBalance(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/balance", nil)
	if err != nil {
		return 0, fmt.Errorf("build balance request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call gateway balance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gateway balance returned status %d", resp.StatusCode)
	}
	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode gateway balance: %w", err)
	}
	if out.AvailableCents == nil {
		return 0, fmt.Errorf("gateway balance missing available_cents")
	}
	return *out.AvailableCents, nil
}

// Static reports a fixed balance. Used when no gateway URL is configured.
type Static int64

func (s Static) GetAccountBalance(context.Context) (int64, error) { return int64(s), nil }
