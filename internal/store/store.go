// Package store is the client for the remote table-store that owns session
// and message rows. The store speaks a PostgREST-style API: tables are
// endpoints, filters are query parameters, writes return the affected rows.
//
// The gateway is not the durability boundary for connections (sends to a
// gone connection are dropped) but it is for conversations, and that
// durability lives entirely behind this client.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned when a row filter matches nothing.
var ErrNotFound = errors.New("store: not found")

const requestTimeout = 10 * time.Second

// Client issues authenticated requests against the table-store.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New creates a store client. key is the service credential, sent on every
// request; it is unrelated to end-user bearer tokens.
func New(baseURL, key string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// rows issues a request and decodes the JSON array response into out.
func (c *Client) rows(ctx context.Context, method, table string, filters url.Values, body any, out any) error {
	u := c.baseURL + "/rest/v1/" + table
	if len(filters) > 0 {
		u += "?" + filters.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("store: encode body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("store: build request: %w", err)
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		// Ask the store to echo affected rows so callers get ids back.
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("store: %s %s: %w", method, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("store: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("store: %s %s: status %d: %s", method, table, resp.StatusCode, truncate(string(data), 200))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("store: decode response: %w", err)
		}
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

// eq builds a PostgREST equality filter value.
func eq(v any) string {
	return fmt.Sprintf("eq.%v", v)
}
