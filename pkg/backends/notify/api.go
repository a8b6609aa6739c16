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

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teradata-labs/switchboard/pkg/tools"
)

const (
	// DefaultAPIBaseURL is the Resend API root.
	DefaultAPIBaseURL = "https://api.resend.com"

	apiTimeout = 30 * time.Second
)

// APISender posts messages to a Resend-compatible /emails endpoint.
type APISender struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewAPISender creates a sender. Empty baseURL uses DefaultAPIBaseURL; a nil
// client gets a default with a timeout.
func NewAPISender(apiKey, baseURL string, client *http.Client) *APISender {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: apiTimeout}
	}
	return &APISender{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

type apiEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

func (s *APISender) Send(ctx context.Context, msg Message) (string, error) {
	raw, err := json.Marshal(apiEmail{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
	})
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read email response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", tools.NewUpstreamError("email", resp.StatusCode, body)
	}

	var out struct {
		ID string `json:"id"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("decode email response: %w", err)
		}
	}
	return out.ID, nil
}
