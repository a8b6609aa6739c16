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

package gateway

import (
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// DefaultAllowedOrigins admits local clients only.
var DefaultAllowedOrigins = []string{"localhost", "127.0.0.1", "::1"}

// OriginPolicy decides whether a request's Origin host may use the gateway.
//
// Entries are matched against the Origin's host, ignoring scheme and port:
//
//	example.com                 exact host
//	.example.com, *.example.com  any subdomain, and example.com itself
//	*                           any origin
//
// Entries written as URLs ("https://app.example.com") use their host.
type OriginPolicy struct {
	exact    map[string]struct{}
	suffixes []string
	any      bool
}

// NewOriginPolicy parses allow-list entries. Blank entries are ignored.
func NewOriginPolicy(entries []string) *OriginPolicy {
	p := &OriginPolicy{exact: make(map[string]struct{})}
	for _, raw := range entries {
		e := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case e == "":
			continue
		case e == "*":
			p.any = true
		case strings.HasPrefix(e, "*."):
			p.suffixes = append(p.suffixes, e[1:])
		case strings.HasPrefix(e, "."):
			p.suffixes = append(p.suffixes, e)
		default:
			if strings.Contains(e, "://") {
				if u, err := url.Parse(e); err == nil && u.Hostname() != "" {
					e = u.Hostname()
				}
			}
			p.exact[strings.Trim(e, "[]")] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether origin may proceed. An empty origin is allowed;
// same-origin requests and non-browser clients do not send one.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if p.any {
		return true
	}
	host := originHost(origin)
	if host == "" {
		return false
	}
	if _, ok := p.exact[host]; ok {
		return true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(host, suffix) || host == suffix[1:] {
			return true
		}
	}
	return false
}

func originHost(origin string) string {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// WarnIfExposed logs when the listen address is reachable beyond localhost
// without a shared secret configured.
func WarnIfExposed(logger *zap.Logger, addr string, hasSecret bool) {
	if logger == nil || hasSecret {
		return
	}
	host := addr
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		host = addr[:idx]
	}
	host = strings.Trim(host, "[]")
	switch host {
	case "127.0.0.1", "::1", "localhost":
		return
	}
	logger.Warn("gateway reachable beyond localhost without a shared secret",
		zap.String("addr", addr),
		zap.String("recommendation", "set server.shared_secret or bind to 127.0.0.1"))
}
