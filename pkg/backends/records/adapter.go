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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/tools"
)

// Capability names.
const (
	ToolAdd    = "add_customer_record"
	ToolGet    = "get_customer_record"
	ToolUpdate = "update_customer_record"
	ToolSearch = "search_customer_records"
	ToolList   = "list_customer_records"
)

// DefaultListLimit bounds list and search results when no limit is given.
const DefaultListLimit = 50

// updatable are the fields update_customer_record may change.
var updatable = []string{"name", "email", "phone", "issue", "status", "priority", "notes"}

// Adapter serves customer-record capabilities from a Store. Writes are
// serialized so row lookups and updates do not interleave.
type Adapter struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *zap.Logger

	mu          sync.Mutex
	descriptors []tools.Descriptor
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithIDGenerator replaces NewID.
func WithIDGenerator(fn func() string) Option {
	return func(a *Adapter) { a.newID = fn }
}

// NewAdapter creates the adapter. A nil store leaves it unconfigured.
func NewAdapter(store Store, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		store:  store,
		now:    time.Now,
		newID:  NewID,
		logger: logger.With(zap.String("component", "records")),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.descriptors = descriptors()
	return a
}

func (a *Adapter) Name() string     { return "records" }
func (a *Adapter) Prefix() string   { return "" }
func (a *Adapter) Configured() bool { return a.store != nil }

func (a *Adapter) Capabilities() []tools.Descriptor {
	out := make([]tools.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

func descriptors() []tools.Descriptor {
	status := func() *tools.Schema {
		return tools.NewStringSchema("Record status").WithEnum(statuses...)
	}
	priority := func() *tools.Schema {
		return tools.NewStringSchema("Record priority").WithEnum(priorities...)
	}
	limit := func() *tools.Schema {
		return tools.NewIntegerSchema("Maximum records to return").WithRange(1, 500).WithDefault(DefaultListLimit)
	}

	return []tools.Descriptor{
		{
			Name:        ToolAdd,
			Description: "Create a customer record. Returns the record with its generated id.",
			InputSchema: tools.NewObjectSchema("New customer record", map[string]*tools.Schema{
				"name":     tools.NewStringSchema("Customer name"),
				"email":    tools.NewStringSchema("Customer email").WithFormat("email"),
				"phone":    tools.NewStringSchema("Customer phone number"),
				"issue":    tools.NewStringSchema("Description of the customer's issue"),
				"status":   status().WithDefault(string(StatusOpen)),
				"priority": priority().WithDefault(string(PriorityMedium)),
				"notes":    tools.NewStringSchema("Free-form notes"),
			}, "name", "email", "issue"),
		},
		{
			Name:        ToolGet,
			Description: "Fetch a customer record by id.",
			InputSchema: tools.NewObjectSchema("Record lookup", map[string]*tools.Schema{
				"id": tools.NewStringSchema("Record id, e.g. CUST-1A2B3C4D5E6F"),
			}, "id"),
		},
		{
			Name:        ToolUpdate,
			Description: "Update fields of a customer record. Fields not given are left unchanged.",
			InputSchema: tools.NewObjectSchema("Partial record update", map[string]*tools.Schema{
				"id":       tools.NewStringSchema("Record id"),
				"name":     tools.NewStringSchema("Customer name"),
				"email":    tools.NewStringSchema("Customer email").WithFormat("email"),
				"phone":    tools.NewStringSchema("Customer phone number"),
				"issue":    tools.NewStringSchema("Issue description"),
				"status":   status(),
				"priority": priority(),
				"notes":    tools.NewStringSchema("Free-form notes"),
			}, "id"),
		},
		{
			Name:        ToolSearch,
			Description: "Fuzzy-search customer records by name, email, issue or notes. Best matches first.",
			InputSchema: tools.NewObjectSchema("Record search", map[string]*tools.Schema{
				"query":    tools.NewStringSchema("Text to search for"),
				"status":   status(),
				"priority": priority(),
				"limit":    limit(),
			}, "query"),
		},
		{
			Name:        ToolList,
			Description: "List customer records, optionally filtered by status or priority.",
			InputSchema: tools.NewObjectSchema("Record listing", map[string]*tools.Schema{
				"status":   status(),
				"priority": priority(),
				"limit":    limit(),
			}),
		},
	}
}

func (a *Adapter) descriptor(name string) (tools.Descriptor, bool) {
	for _, d := range a.descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return tools.Descriptor{}, false
}

func (a *Adapter) Invoke(ctx context.Context, name string, args map[string]interface{}) (*tools.Result, error) {
	d, ok := a.descriptor(name)
	if !ok {
		return nil, &tools.UnknownCapabilityError{Name: name}
	}
	if !a.Configured() {
		return nil, fmt.Errorf("records backend is not configured")
	}
	if err := d.Validate(args); err != nil {
		return nil, err
	}
	in := tools.Args(args)

	switch name {
	case ToolAdd:
		rec, err := a.Add(ctx, in)
		if err != nil {
			return nil, err
		}
		return tools.JSONResult(rec)
	case ToolGet:
		rec, err := a.Get(ctx, in.String("id"))
		if err != nil {
			return nil, err
		}
		return tools.JSONResult(rec)
	case ToolUpdate:
		rec, err := a.Update(ctx, in)
		if err != nil {
			return nil, err
		}
		return tools.JSONResult(rec)
	case ToolSearch:
		found, err := a.Search(ctx, in.String("query"), filterOf(in), in.Int("limit", DefaultListLimit))
		if err != nil {
			return nil, err
		}
		return listing(found)
	default:
		found, err := a.List(ctx, filterOf(in), in.Int("limit", DefaultListLimit))
		if err != nil {
			return nil, err
		}
		return listing(found)
	}
}

func listing(recs []Record) (*tools.Result, error) {
	if recs == nil {
		recs = []Record{}
	}
	return tools.JSONResult(map[string]interface{}{
		"count":   len(recs),
		"records": recs,
	})
}

// Filter narrows listings. Empty fields match everything.
type Filter struct {
	Status   Status
	Priority Priority
}

func filterOf(in tools.Args) Filter {
	return Filter{Status: Status(in.String("status")), Priority: Priority(in.String("priority"))}
}

func (f Filter) match(r Record) bool {
	return (f.Status == "" || r.Status == f.Status) && (f.Priority == "" || r.Priority == f.Priority)
}

// Add appends a new record. createdAt and updatedAt are equal.
func (a *Adapter) Add(ctx context.Context, in tools.Args) (Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	header, err := a.header(ctx)
	if err != nil {
		return Record{}, err
	}
	ts := formatTime(a.now())
	rec := Record{
		ID:        a.newID(),
		Name:      in.String("name"),
		Email:     in.String("email"),
		Phone:     in.String("phone"),
		Issue:     in.String("issue"),
		Status:    StatusOpen,
		Priority:  PriorityMedium,
		CreatedAt: ts,
		UpdatedAt: ts,
		Notes:     in.String("notes"),
	}
	if s := in.String("status"); s != "" {
		rec.Status = Status(s)
	}
	if p := in.String("priority"); p != "" {
		rec.Priority = Priority(p)
	}
	if err := a.store.Append(ctx, rec.toRow(header)); err != nil {
		return Record{}, fmt.Errorf("append record: %w", err)
	}
	a.logger.Info("record added", zap.String("id", rec.ID))
	return rec, nil
}

// Get returns the record with id.
func (a *Adapter) Get(ctx context.Context, id string) (Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, _, err := a.find(ctx, ToolGet, id)
	return rec, err
}

// Update applies the fields present in in to the record named by in["id"].
func (a *Adapter) Update(ctx context.Context, in tools.Args) (Record, error) {
	changed := false
	for _, f := range updatable {
		if in.Has(f) {
			changed = true
			break
		}
	}
	if !changed {
		return Record{}, tools.Invalid(ToolUpdate, "at least one of %v is required", updatable)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	header, err := a.header(ctx)
	if err != nil {
		return Record{}, err
	}
	rec, index, err := a.find(ctx, ToolUpdate, in.String("id"))
	if err != nil {
		return Record{}, err
	}
	for _, f := range updatable {
		if in.Has(f) {
			rec.set(f, in.String(f))
		}
	}
	rec.UpdatedAt = formatTime(advance(a.now(), rec.UpdatedAt))

	if err := a.store.Update(ctx, index, rec.toRow(header)); err != nil {
		return Record{}, fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	a.logger.Info("record updated", zap.String("id", rec.ID))
	return rec, nil
}

// Search ranks matching records by fuzzy score, best first.
func (a *Adapter) Search(ctx context.Context, query string, filter Filter, limit int) ([]Record, error) {
	recs, err := a.all(ctx)
	if err != nil {
		return nil, err
	}
	pool := make(candidates, 0, len(recs))
	for _, r := range recs {
		if filter.match(r) {
			pool = append(pool, r)
		}
	}
	matches := fuzzy.FindFrom(strings.ToLower(query), pool)
	out := make([]Record, 0, len(matches))
	for _, m := range matches {
		out = append(out, pool[m.Index])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// List returns records in storage order.
func (a *Adapter) List(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	recs, err := a.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(recs))
	for _, r := range recs {
		if !filter.match(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// header returns the sheet header, writing Columns to an empty sheet.
func (a *Adapter) header(ctx context.Context) ([]string, error) {
	header, err := a.store.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		return header, nil
	}
	if err := a.store.Append(ctx, Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return Columns, nil
}

func (a *Adapter) all(ctx context.Context) ([]Record, error) {
	header, err := a.store.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, nil
	}
	rows, err := a.store.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		r := fromRow(header, row)
		if r.ID == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// find locates id and its data row index.
func (a *Adapter) find(ctx context.Context, capability, id string) (Record, int, error) {
	header, err := a.store.Header(ctx)
	if err != nil {
		return Record{}, 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		rows, err := a.store.Rows(ctx)
		if err != nil {
			return Record{}, 0, fmt.Errorf("read rows: %w", err)
		}
		for i, row := range rows {
			if r := fromRow(header, row); r.ID == id {
				return r, i, nil
			}
		}
	}
	return Record{}, 0, tools.Invalid(capability, "no customer record with id %q", id)
}

// candidates adapts records to fuzzy.Source.
type candidates []Record

func (c candidates) String(i int) string { return c[i].haystack() }
func (c candidates) Len() int            { return len(c) }
