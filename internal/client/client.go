// Package client reads the activity log from a running recorder.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/actrec/internal/api/v1"
	"github.com/gosuda/actrec/internal/domain"
)

// DefaultPollInterval is how often watchers re-read the log.
const DefaultPollInterval = 2 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// GetLog returns the full log. Any failure yields an empty three-category log
// so a reader keeps rendering while the recorder is unreachable.
func (c *Client) GetLog(ctx context.Context) *domain.ActivityLog {
	var l domain.ActivityLog
	if err := c.getJSON(ctx, "/api/v1/log", &l); err != nil {
		log.Warn().Err(err).Msg("activity log unavailable, showing empty log")
		return domain.NewActivityLog()
	}
	l.Normalize()
	return &l
}

// Summary returns per-category counts.
func (c *Client) Summary(ctx context.Context) (*v1.LogSummary, error) {
	var s v1.LogSummary
	if err := c.getJSON(ctx, "/api/v1/log/summary", &s); err != nil {
		return nil, fmt.Errorf("client.Client.Summary: %w", err)
	}
	return &s, nil
}

// Clear empties every category.
func (c *Client) Clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/log", http.NoBody)
	if err != nil {
		return fmt.Errorf("client.Client.Clear: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client.Client.Clear: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("client.Client.Clear: unexpected status %s", resp.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

// Watch calls fn with a fresh log every interval until ctx is done. The first
// read happens immediately.
func (c *Client) Watch(ctx context.Context, interval time.Duration, fn func(*domain.ActivityLog)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	fn(c.GetLog(ctx))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(c.GetLog(ctx))
		}
	}
}
