// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduling exposes a Calendly account as capabilities: event types,
// booking links, scheduled events, invitees and open slots.
package scheduling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Calendly v2 API root.
	DefaultBaseURL = "https://api.calendly.com"

	// DefaultTimeout bounds each upstream call.
	DefaultTimeout = 30 * time.Second

	maxResponseBody = 4 << 20
)

// Config is the scheduling credential triplet. UserURI and OrganizationURI
// are discovered from the token when empty.
type Config struct {
	Token           string
	UserURI         string
	OrganizationURI string
	BaseURL         string
	Timeout         time.Duration
}

// Client is a minimal Calendly v2 REST client.
type Client struct {
	http  *http.Client
	base  string
	token string

	mu   sync.Mutex
	user string
	org  string
}

// NewClient creates a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		http:  httpClient,
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		user:  cfg.UserURI,
		org:   cfg.OrganizationURI,
	}
}

// Identity returns the user and organization URIs, resolving them through
// /users/me on first use.
func (c *Client) Identity(ctx context.Context) (user, org string, err error) {
	c.mu.Lock()
	user, org = c.user, c.org
	c.mu.Unlock()
	if user != "" && org != "" {
		return user, org, nil
	}

	var me struct {
		Resource struct {
			URI                 string `json:"uri"`
			CurrentOrganization string `json:"current_organization"`
		} `json:"resource"`
	}
	if err := c.do(ctx, http.MethodGet, c.base+"/users/me", nil, nil, &me); err != nil {
		return "", "", fmt.Errorf("resolve calendly user: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == "" {
		c.user = me.Resource.URI
	}
	if c.org == "" {
		c.org = me.Resource.CurrentOrganization
	}
	return c.user, c.org, nil
}

// ResourceURI builds the canonical URI of a resource from a uuid or an
// existing URI. Only the last path segment of a URI is kept so requests
// never leave the configured API host.
func (c *Client) ResourceURI(kind, ref string) string {
	return c.base + "/" + kind + "/" + url.PathEscape(lastSegment(ref))
}

func lastSegment(ref string) string {
	ref = strings.TrimSpace(ref)
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" {
		p := strings.TrimRight(u.Path, "/")
		return p[strings.LastIndex(p, "/")+1:]
	}
	return ref
}

// do issues a request. Non-2xx responses become *tools.UpstreamError.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendly %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read calendly response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstream(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode calendly response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, endpoint, query, nil, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, endpoint, nil, body, out)
}
