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

// Package records exposes a tabular customer-record store as capabilities.
// Rows live in a Google Sheets spreadsheet or a local .xlsx workbook; the
// first row is the header and columns are matched by name.
package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of a customer record.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

// Priority of a customer record.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var (
	statuses   = []string{string(StatusOpen), string(StatusInProgress), string(StatusResolved), string(StatusClosed)}
	priorities = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh), string(PriorityUrgent)}
)

// Columns is the header written to an empty sheet, in column order.
var Columns = []string{"id", "name", "email", "phone", "issue", "status", "priority", "createdAt", "updatedAt", "notes"}

// idPrefix marks generated record identifiers.
const idPrefix = "CUST-"

// Record is one customer row.
type Record struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone,omitempty"`
	Issue     string   `json:"issue"`
	Status    Status   `json:"status"`
	Priority  Priority `json:"priority"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
	Notes     string   `json:"notes,omitempty"`
}

// NewID returns a stable identifier unrelated to row position.
func NewID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return idPrefix + strings.ToUpper(hex[:12])
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// advance returns a timestamp strictly after prev. Clocks with coarse
// resolution are bumped by a millisecond.
func advance(now time.Time, prev string) time.Time {
	p, err := time.Parse(time.RFC3339Nano, prev)
	if err != nil || now.After(p) {
		return now
	}
	return p.Add(time.Millisecond)
}

func (r Record) field(column string) string {
	switch column {
	case "id":
		return r.ID
	case "name":
		return r.Name
	case "email":
		return r.Email
	case "phone":
		return r.Phone
	case "issue":
		return r.Issue
	case "status":
		return string(r.Status)
	case "priority":
		return string(r.Priority)
	case "createdAt":
		return r.CreatedAt
	case "updatedAt":
		return r.UpdatedAt
	case "notes":
		return r.Notes
	}
	return ""
}

func (r *Record) set(column, value string) {
	switch column {
	case "id":
		r.ID = value
	case "name":
		r.Name = value
	case "email":
		r.Email = value
	case "phone":
		r.Phone = value
	case "issue":
		r.Issue = value
	case "status":
		r.Status = Status(value)
	case "priority":
		r.Priority = Priority(value)
	case "createdAt":
		r.CreatedAt = value
	case "updatedAt":
		r.UpdatedAt = value
	case "notes":
		r.Notes = value
	}
}

// toRow lays the record out in header order. Unknown header columns stay empty.
func (r Record) toRow(header []string) []string {
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = r.field(normalizeColumn(col))
	}
	return row
}

// fromRow reads a record from a row laid out per header. Short rows are
// padded; sheets omit trailing empty cells.
func fromRow(header, row []string) Record {
	var r Record
	for i, col := range header {
		if i >= len(row) {
			break
		}
		r.set(normalizeColumn(col), strings.TrimSpace(row[i]))
	}
	return r
}

// normalizeColumn maps a header cell onto a canonical column name so that
// sheets edited by hand ("Created At", "created_at") still line up.
func normalizeColumn(col string) string {
	key := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.TrimSpace(col)))
	for _, c := range Columns {
		if strings.ToLower(c) == key {
			return c
		}
	}
	return key
}

// haystack is the text searched by fuzzy matching.
func (r Record) haystack() string {
	return strings.ToLower(strings.Join([]string{r.Name, r.Email, r.Issue, r.Notes}, " "))
}
