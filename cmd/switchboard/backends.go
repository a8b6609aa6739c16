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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/internal/sqlitedriver"
	"github.com/teradata-labs/switchboard/pkg/audit"
	"github.com/teradata-labs/switchboard/pkg/backends/notify"
	"github.com/teradata-labs/switchboard/pkg/backends/records"
	"github.com/teradata-labs/switchboard/pkg/backends/scheduling"
	"github.com/teradata-labs/switchboard/pkg/tools"
)

// stack is the capability surface shared by every transport.
type stack struct {
	Registry *tools.Registry
	Router   *tools.Router
	Provider *tools.Provider
	Journal  *audit.Journal
	pruner   *audit.Retention
}

// Close stops journal retention and releases the journal.
func (s *stack) Close() error {
	if s.pruner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		s.pruner.Stop(ctx)
		cancel()
	}
	if s.Journal != nil {
		return s.Journal.Close()
	}
	return nil
}

// buildStack wires the adapters into a registry and router, decorating the
// router with the audit journal when enabled.
func buildStack(ctx context.Context, cfg *Config, logger *zap.Logger) (*stack, error) {
	store, err := recordStore(ctx, cfg.Records, logger)
	if err != nil {
		return nil, err
	}
	sender, err := emailSender(cfg.Email)
	if err != nil {
		return nil, err
	}

	schedCfg := scheduling.Config{
		Token:           cfg.Calendly.APIToken,
		UserURI:         cfg.Calendly.UserURI,
		OrganizationURI: cfg.Calendly.OrganizationURI,
		BaseURL:         cfg.Calendly.BaseURL,
		Timeout:         cfg.Calendly.Timeout,
	}

	registry, err := tools.NewRegistry(logger,
		records.NewAdapter(store, logger),
		scheduling.NewAdapter(schedCfg, nil, logger),
		notify.NewAdapter(sender, notify.Config{
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
			ReplyTo:  cfg.Email.ReplyTo,
		}, logger),
	)
	if err != nil {
		return nil, err
	}
	router := tools.NewRouter(registry, logger)

	s := &stack{Registry: registry, Router: router}
	var invoker tools.Invoker = router
	if cfg.Audit.Enabled {
		if dir := filepath.Dir(cfg.Audit.Path); dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("create audit directory: %w", err)
			}
		}
		j, err := audit.Open(ctx, sqlitedriver.Config{Path: cfg.Audit.Path, EncryptionKey: cfg.Audit.EncryptionKey}, logger)
		if err != nil {
			return nil, err
		}
		s.Journal = j
		invoker = j.Wrap(router)
		logger.Info("audit journal enabled", zap.String("path", cfg.Audit.Path))

		if cfg.Audit.Retention > 0 {
			r, err := audit.NewRetention(j, cfg.Audit.Retention, cfg.Audit.PruneSchedule)
			if err != nil {
				_ = j.Close()
				return nil, err
			}
			r.Start()
			s.pruner = r
		}
	}
	s.Provider = &tools.Provider{Registry: registry, Invoker: invoker}
	return s, nil
}

// recordStore picks Google Sheets when the credential triplet is complete,
// then a local workbook, then nothing.
func recordStore(ctx context.Context, cfg RecordsConfig, logger *zap.Logger) (records.Store, error) {
	sc := records.SheetsConfig{
		ClientEmail:   cfg.Sheets.ClientEmail,
		PrivateKey:    cfg.Sheets.PrivateKey,
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		SheetName:     cfg.Sheets.SheetName,
	}
	if sc.Configured() {
		s, err := records.NewSheetsStore(ctx, sc)
		if err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
		logger.Info("records backed by Google Sheets", zap.String("spreadsheet_id", sc.SpreadsheetID))
		return s, nil
	}
	if cfg.WorkbookPath != "" {
		w, err := records.NewWorkbookStore(cfg.WorkbookPath, cfg.Sheets.SheetName)
		if err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
		logger.Info("records backed by workbook", zap.String("path", w.Path()))
		return w, nil
	}
	return nil, nil
}

// emailSender returns nil when the selected provider lacks credentials.
func emailSender(cfg EmailConfig) (notify.Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "api", "resend":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return notify.NewAPISender(cfg.APIKey, cfg.BaseURL, nil), nil
	case "smtp":
		if cfg.SMTP.Host == "" {
			return nil, nil
		}
		s, err := notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q (want api or smtp)", cfg.Provider)
	}
}
