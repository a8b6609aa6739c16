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
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOriginPolicy(t *testing.T) {
	p := NewOriginPolicy([]string{"localhost", "::1", ".agents.example", "*.ai.example", "https://Portal.Example.org:8443", " "})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://[::1]:8080", true},
		{"https://a.agents.example", true},
		{"https://deep.a.agents.example", true},
		{"https://agents.example", true},
		{"https://x.ai.example", true},
		{"https://portal.example.org", true},
		{"https://evilagents.example", false},
		{"https://agents.example.evil", false},
		{"https://localhost.evil.com", false},
		{"null", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Allowed(tt.origin))
		})
	}
}

func TestOriginPolicy_Wildcard(t *testing.T) {
	p := NewOriginPolicy([]string{"*"})
	assert.True(t, p.Allowed("https://anything.example"))
}

func TestOriginPolicy_EmptyList(t *testing.T) {
	p := NewOriginPolicy(nil)
	assert.True(t, p.Allowed(""))
	assert.False(t, p.Allowed("http://localhost"))
}

func TestWarnIfExposed(t *testing.T) {
	tests := []struct {
		addr      string
		hasSecret bool
		warns     int
	}{
		{addr: "127.0.0.1:8080"},
		{addr: "[::1]:8080"},
		{addr: "localhost:8080"},
		{addr: "0.0.0.0:8080", warns: 1},
		{addr: ":8080", warns: 1},
		{addr: "10.0.0.5:8080", warns: 1},
		{addr: "0.0.0.0:8080", hasSecret: true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			WarnIfExposed(zap.New(core), tt.addr, tt.hasSecret)
			assert.Equal(t, tt.warns, logs.Len())
		})
	}
	WarnIfExposed(nil, "0.0.0.0:1", false)
}
