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

package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/teradata-labs/switchboard/pkg/tools"
)

const googleTokenURL = "https://oauth2.googleapis.com/token"

// SheetsConfig is the service-account credential triplet plus the target
// worksheet.
type SheetsConfig struct {
	ClientEmail   string
	PrivateKey    string
	SpreadsheetID string
	SheetName     string
}

// Configured reports whether the credential triplet is complete.
func (c SheetsConfig) Configured() bool {
	return c.ClientEmail != "" && c.PrivateKey != "" && c.SpreadsheetID != ""
}

// SheetsStore keeps records in a Google Sheets worksheet.
type SheetsStore struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheet         string
}

// NewSheetsStore authenticates with a service account. Extra client options
// are appended after the authenticated HTTP client.
func NewSheetsStore(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*SheetsStore, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("sheets store requires client email, private key and spreadsheet id")
	}
	conf := &jwt.Config{
		Email: cfg.ClientEmail,
		// Keys pasted into env files usually carry literal \n sequences.
		PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   googleTokenURL,
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(conf.Client(ctx))}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewSheetsStoreFromService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewSheetsStoreFromService wraps an existing service.
func NewSheetsStoreFromService(svc *sheets.Service, spreadsheetID, sheet string) *SheetsStore {
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &SheetsStore{values: svc.Spreadsheets.Values, spreadsheetID: spreadsheetID, sheet: sheet}
}

func (s *SheetsStore) rangeOf(a1 string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(s.sheet, "'", "''"), a1)
}

func (s *SheetsStore) Header(ctx context.Context) ([]string, error) {
	resp, err := s.values.Get(s.spreadsheetID, s.rangeOf("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, sheetsError("read header", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return stringRow(resp.Values[0]), nil
}

func (s *SheetsStore) Rows(ctx context.Context) ([][]string, error) {
	resp, err := s.values.Get(s.spreadsheetID, s.rangeOf("A2:ZZ")).Context(ctx).Do()
	if err != nil {
		return nil, sheetsError("read rows", err)
	}
	rows := make([][]string, len(resp.Values))
	for i, v := range resp.Values {
		rows[i] = stringRow(v)
	}
	return rows, nil
}

func (s *SheetsStore) Append(ctx context.Context, row []string) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{cells(row)}}
	_, err := s.values.Append(s.spreadsheetID, s.rangeOf("A1"), vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return sheetsError("append row", err)
	}
	return nil
}

func (s *SheetsStore) Update(ctx context.Context, index int, row []string) error {
	// Data row 0 is sheet row 2.
	vr := &sheets.ValueRange{Values: [][]interface{}{cells(row)}}
	_, err := s.values.Update(s.spreadsheetID, s.rangeOf(fmt.Sprintf("A%d", index+2)), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return sheetsError("update row", err)
	}
	return nil
}

// sheetsError surfaces API failures as upstream errors carrying status and body.
func sheetsError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return tools.NewUpstreamError("sheets", gerr.Code, []byte(body))
	}
	return fmt.Errorf("sheets %s: %w", op, err)
}

func stringRow(v []interface{}) []string {
	out := make([]string, len(v))
	for i, c := range v {
		if c == nil {
			continue
		}
		out[i] = fmt.Sprint(c)
	}
	return out
}

func cells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}
