// Tenantvault - Per-Tenant Storefront Data Backup and Restore
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantvault

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tenantvault/internal/api"
)

// envelope is api.APIResponse with the data left raw.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *api.APIError   `json:"error"`
}

// RemoteError is an error response from the daemon.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

type client struct {
	base string
	http *http.Client
}

func newClient(server string, timeout time.Duration) (*client, error) {
	u, err := url.Parse(server)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q", server)
	}
	return &client{
		base: strings.TrimRight(server, "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

// do sends the request and decodes the envelope's data into out. A 207
// response decodes data and returns a RemoteError, so the caller can show
// the partial result.
func (c *client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", resp.StatusCode, err)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	if resp.StatusCode >= 300 || env.Status != api.StatusSuccess {
		re := &RemoteError{StatusCode: resp.StatusCode, Code: "UNKNOWN", Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			re.Code = env.Error.Code
			re.Message = env.Error.Message
		}
		return re
	}
	return nil
}

func tenantPath(tenantID string, rest ...string) string {
	parts := append([]string{"/api/v1/tenants", url.PathEscape(tenantID)}, rest...)
	return strings.Join(parts, "/")
}
