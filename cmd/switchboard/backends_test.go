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

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/internal/sqlitedriver"
	"github.com/teradata-labs/switchboard/pkg/audit"
	"github.com/teradata-labs/switchboard/pkg/backends/notify"
	"github.com/teradata-labs/switchboard/pkg/backends/records"
	"github.com/teradata-labs/switchboard/pkg/backends/scheduling"
	"github.com/teradata-labs/switchboard/pkg/mcp/gateway"
	"github.com/teradata-labs/switchboard/pkg/tools"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	isolate(t)
	cfg, err := LoadConfig("", nil, nil)
	require.NoError(t, err)
	return cfg
}

func toolNames(r *tools.Registry) []string {
	var names []string
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	return names
}

func TestBuildStack_NothingConfigured(t *testing.T) {
	cfg := testConfig(t)

	st, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	assert.Equal(t, 0, st.Registry.Len())
	assert.Nil(t, st.Journal)
	assert.Same(t, st.Router, st.Provider.Invoker)
}

func TestBuildStack_AllBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Records.WorkbookPath = filepath.Join(t.TempDir(), "customers.xlsx")
	cfg.Calendly.APIToken = "cal-token"
	cfg.Email.APIKey = "re_123"
	cfg.Email.From = "hello@acme.test"

	st, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	names := toolNames(st.Registry)
	assert.Len(t, names, 16)
	// Registration order: records, scheduling, notify.
	assert.Equal(t, records.ToolAdd, names[0])
	assert.Equal(t, scheduling.ToolListEventTypes, names[5])
	assert.Equal(t, notify.ToolConfirmation, names[13])
	assert.Contains(t, names, scheduling.ToolCheckAvailability)
	assert.Contains(t, names, notify.ToolSend)
}

func TestBuildStack_EmailNeedsFrom(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.APIKey = "re_123"

	st, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	assert.Equal(t, 0, st.Registry.Len())
}

func TestBuildStack_AuditWrapsRouter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(t.TempDir(), "nested", "audit.db")
	cfg.Audit.Retention = 30 * 24 * time.Hour

	st, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	require.NotNil(t, st.Journal)
	_, wrapped := st.Provider.Invoker.(*audit.Invoker)
	assert.True(t, wrapped)
	assert.FileExists(t, cfg.Audit.Path)
	assert.NotNil(t, st.pruner)
}

func TestBuildStack_BadPruneSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(t.TempDir(), "audit.db")
	cfg.Audit.Retention = time.Hour
	cfg.Audit.PruneSchedule = "whenever"

	_, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid prune schedule")
}

func TestBuildStack_UnknownEmailProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Email.Provider = "carrier-pigeon"

	_, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown email provider")
}

func TestEmailSender(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EmailConfig
		wantNil bool
		kind    interface{}
	}{
		{name: "api without key", cfg: EmailConfig{Provider: "api"}, wantNil: true},
		{name: "api", cfg: EmailConfig{Provider: "api", APIKey: "re_1"}, kind: &notify.APISender{}},
		{name: "resend alias", cfg: EmailConfig{Provider: "Resend", APIKey: "re_1"}, kind: &notify.APISender{}},
		{name: "empty provider", cfg: EmailConfig{APIKey: "re_1"}, kind: &notify.APISender{}},
		{name: "smtp without host", cfg: EmailConfig{Provider: "smtp"}, wantNil: true},
		{name: "smtp", cfg: EmailConfig{Provider: "smtp", SMTP: SMTPConfig{Host: "smtp.acme.test", Port: 25}}, kind: &notify.SMTPSender{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := emailSender(tt.cfg)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			assert.IsType(t, tt.kind, s)
		})
	}
}

func TestRecordStore_Selection(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	s, err := recordStore(ctx, RecordsConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, s)

	path := filepath.Join(t.TempDir(), "book.xlsx")
	s, err = recordStore(ctx, RecordsConfig{WorkbookPath: path, Sheets: SheetsConfig{SheetName: "Clients"}}, logger)
	require.NoError(t, err)
	wb, ok := s.(*records.WorkbookStore)
	require.True(t, ok)
	assert.Equal(t, path, wb.Path())
}

func TestNewMux_Healthz(t *testing.T) {
	cfg := testConfig(t)
	cfg.Records.WorkbookPath = filepath.Join(t.TempDir(), "customers.xlsx")
	st, err := buildStack(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	gw, err := gateway.New(gateway.Config{
		Name:     serverName,
		Version:  "test",
		Catalog:  st.Registry,
		Provider: st.Provider,
	})
	require.NoError(t, err)
	defer gw.Close()

	srv := httptest.NewServer(newMux("", gw, st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["sessions"])
	assert.Equal(t, float64(5), body["tools"])

	// The gateway is mounted on the default path.
	resp2, err := http.Get(srv.URL + "/mcp")
	require.NoError(t, err)
	_ = resp2.Body.Close()
	assert.NotEqual(t, http.StatusNotFound, resp2.StatusCode)
}

type rpcLine struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func readResponses(t *testing.T, out *bytes.Buffer) map[int]rpcLine {
	t.Helper()
	got := make(map[int]rpcLine)
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var line rpcLine
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line), sc.Text())
		got[line.ID] = line
	}
	return got
}

func TestServeLines_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	cfg.Records.WorkbookPath = filepath.Join(dir, "customers.xlsx")
	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(dir, "audit.db")
	config = cfg
	t.Cleanup(func() { config = nil })

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"add_customer_record","arguments":{"name":"Ada Lovelace","email":"ada@example.com","issue":"Billing question"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"no_such_tool","arguments":{}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, serveLines(ctx, strings.NewReader(in), &out, zap.NewNop()))

	got := readResponses(t, &out)
	require.Len(t, got, 4)

	assert.Nil(t, got[1].Error)
	assert.Contains(t, string(got[1].Result), `"serverInfo"`)

	var list struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(got[2].Result, &list))
	require.Len(t, list.Tools, 5)
	assert.Equal(t, records.ToolAdd, list.Tools[0].Name)

	assert.Nil(t, got[3].Error)
	assert.Contains(t, string(got[3].Result), "CUST-")
	assert.Contains(t, string(got[3].Result), "Ada Lovelace")

	require.NotNil(t, got[4].Error)
	assert.Equal(t, -32601, got[4].Error.Code)

	j, err := audit.Open(context.Background(), sqlitedriver.Config{Path: cfg.Audit.Path}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = j.Close() }()
	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "no_such_tool", entries[0].Capability)
	assert.Equal(t, audit.OutcomeUnknown, entries[0].Outcome)
	assert.Equal(t, records.ToolAdd, entries[1].Capability)
	assert.Equal(t, audit.OutcomeOK, entries[1].Outcome)
	assert.NotEmpty(t, entries[1].SessionID)
	assert.Equal(t, entries[0].SessionID, entries[1].SessionID)
}

func TestPrintTools(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printTools(&buf, nil))
	assert.Contains(t, buf.String(), "No backends are configured")

	buf.Reset()
	a := records.NewAdapter(nil, nil)
	require.NoError(t, printTools(&buf, a.Capabilities()))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "TOOL"))
	assert.Contains(t, out, records.ToolSearch)
	assert.Contains(t, out, "[query]")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	err := printHistory(&buf, []audit.Entry{{
		SessionID:  "0123456789abcdef",
		Capability: records.ToolGet,
		StartedAt:  time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC),
		Duration:   12 * time.Millisecond,
		Outcome:    audit.OutcomeInvalid,
		Error:      strings.Repeat("x", 80),
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "invalid")
	assert.Contains(t, out, strings.Repeat("x", 60)+"...")
}
