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

package scheduling

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/tools"
)

// Prefix is shared by every scheduling capability name.
const Prefix = "calendly_"

// Capability names.
const (
	ToolListEventTypes      = Prefix + "list_event_types"
	ToolGetEventType        = Prefix + "get_event_type"
	ToolCreateLink          = Prefix + "create_scheduling_link"
	ToolCreatePrefilledLink = Prefix + "create_prefilled_link"
	ToolListEvents          = Prefix + "list_scheduled_events"
	ToolCancelEvent         = Prefix + "cancel_event"
	ToolGetInvitee          = Prefix + "get_invitee"
	ToolCheckAvailability   = Prefix + "check_availability"
)

// MaxAvailabilityWindow is the widest window Calendly answers for open slots.
const MaxAvailabilityWindow = 7 * 24 * time.Hour

const defaultPageSize = 20

// Adapter serves scheduling capabilities. Booking links are minted fresh on
// every call; nothing is deduplicated.
type Adapter struct {
	client      *Client
	configured  bool
	logger      *zap.Logger
	now         func() time.Time
	descriptors []tools.Descriptor
}

// NewAdapter creates the adapter. It is configured when cfg carries a token.
func NewAdapter(cfg Config, client *Client, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = NewClient(cfg, nil)
	}
	return &Adapter{
		client:      client,
		configured:  strings.TrimSpace(cfg.Token) != "",
		logger:      logger.With(zap.String("component", "scheduling")),
		now:         time.Now,
		descriptors: descriptors(),
	}
}

func (a *Adapter) Name() string     { return "scheduling" }
func (a *Adapter) Prefix() string   { return Prefix }
func (a *Adapter) Configured() bool { return a.configured }

func (a *Adapter) Capabilities() []tools.Descriptor {
	out := make([]tools.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

func descriptors() []tools.Descriptor {
	eventType := func() *tools.Schema {
		return tools.NewStringSchema("Event type uuid or URI")
	}
	event := func() *tools.Schema {
		return tools.NewStringSchema("Scheduled event uuid or URI")
	}
	count := func() *tools.Schema {
		return tools.NewIntegerSchema("Page size").WithRange(1, 100).WithDefault(defaultPageSize)
	}
	ts := func(desc string) *tools.Schema {
		return tools.NewStringSchema(desc).WithFormat("date-time")
	}

	return []tools.Descriptor{
		{
			Name:        ToolListEventTypes,
			Description: "List the appointment types available for booking.",
			InputSchema: tools.NewObjectSchema("Event type listing", map[string]*tools.Schema{
				"active": tools.NewBooleanSchema("Only active event types").WithDefault(true),
				"count":  count(),
			}),
		},
		{
			Name:        ToolGetEventType,
			Description: "Fetch one appointment type.",
			InputSchema: tools.NewObjectSchema("Event type lookup", map[string]*tools.Schema{
				"event_type": eventType(),
			}, "event_type"),
		},
		{
			Name:        ToolCreateLink,
			Description: "Mint a single-use booking link for an appointment type.",
			InputSchema: tools.NewObjectSchema("Booking link", map[string]*tools.Schema{
				"event_type": eventType(),
			}, "event_type"),
		},
		{
			Name:        ToolCreatePrefilledLink,
			Description: "Mint a booking link with invitee details filled in.",
			InputSchema: tools.NewObjectSchema("Prefilled booking link", map[string]*tools.Schema{
				"event_type": eventType(),
				"name":       tools.NewStringSchema("Invitee name"),
				"email":      tools.NewStringSchema("Invitee email").WithFormat("email"),
				"answers":    tools.NewArraySchema("Answers to the event type's custom questions, in order", tools.NewStringSchema("Answer")),
			}, "event_type"),
		},
		{
			Name:        ToolListEvents,
			Description: "List booked meetings, optionally filtered by status, invitee or time range.",
			InputSchema: tools.NewObjectSchema("Scheduled event listing", map[string]*tools.Schema{
				"status":         tools.NewStringSchema("Event status").WithEnum("active", "canceled"),
				"invitee_email":  tools.NewStringSchema("Only events with this invitee").WithFormat("email"),
				"min_start_time": ts("Earliest start time (RFC 3339)"),
				"max_start_time": ts("Latest start time (RFC 3339)"),
				"count":          count(),
			}),
		},
		{
			Name:        ToolCancelEvent,
			Description: "Cancel a booked meeting.",
			InputSchema: tools.NewObjectSchema("Cancellation", map[string]*tools.Schema{
				"event":  event(),
				"reason": tools.NewStringSchema("Reason shown to invitees"),
			}, "event"),
		},
		{
			Name:        ToolGetInvitee,
			Description: "Fetch invitee details for a booked meeting. Without an invitee id, lists every invitee.",
			InputSchema: tools.NewObjectSchema("Invitee lookup", map[string]*tools.Schema{
				"event":   event(),
				"invitee": tools.NewStringSchema("Invitee uuid or URI"),
			}, "event"),
		},
		{
			Name:        ToolCheckAvailability,
			Description: "List open slots for an appointment type within a window of at most 7 days.",
			InputSchema: tools.NewObjectSchema("Availability window", map[string]*tools.Schema{
				"event_type": eventType(),
				"start_time": ts("Window start (RFC 3339)"),
				"end_time":   ts("Window end (RFC 3339)"),
			}, "event_type", "start_time", "end_time"),
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
	if err := d.Validate(args); err != nil {
		return nil, err
	}
	in := tools.Args(args)

	var (
		out interface{}
		err error
	)
	switch name {
	case ToolListEventTypes:
		out, err = a.listEventTypes(ctx, in)
	case ToolGetEventType:
		out, err = a.getEventType(ctx, in.String("event_type"))
	case ToolCreateLink:
		out, err = a.createLink(ctx, in.String("event_type"))
	case ToolCreatePrefilledLink:
		out, err = a.createPrefilledLink(ctx, in)
	case ToolListEvents:
		out, err = a.listEvents(ctx, in)
	case ToolCancelEvent:
		out, err = a.cancelEvent(ctx, in.String("event"), in.String("reason"))
	case ToolGetInvitee:
		out, err = a.invitees(ctx, in.String("event"), in.String("invitee"))
	case ToolCheckAvailability:
		out, err = a.availability(ctx, in)
	}
	if err != nil {
		return nil, err
	}
	return tools.JSONResult(out)
}

func (a *Adapter) listEventTypes(ctx context.Context, in tools.Args) ([]EventType, error) {
	user, _, err := a.client.Identity(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user", user)
	q.Set("count", strconv.Itoa(in.Int("count", defaultPageSize)))
	if in.Bool("active", true) {
		q.Set("active", "true")
	}
	var page collection[EventType]
	if err := a.client.get(ctx, a.client.base+"/event_types", q, &page); err != nil {
		return nil, err
	}
	return nonNil(page.Collection), nil
}

func (a *Adapter) getEventType(ctx context.Context, ref string) (EventType, error) {
	var res resource[EventType]
	if err := a.client.get(ctx, a.client.ResourceURI("event_types", ref), nil, &res); err != nil {
		return EventType{}, err
	}
	return res.Resource, nil
}

// createLink mints a single-use link. Calendly only allows one booking per link.
func (a *Adapter) createLink(ctx context.Context, ref string) (SchedulingLink, error) {
	body := map[string]interface{}{
		"max_event_count": 1,
		"owner":           a.client.ResourceURI("event_types", ref),
		"owner_type":      "EventType",
	}
	var res resource[SchedulingLink]
	if err := a.client.post(ctx, a.client.base+"/scheduling_links", body, &res); err != nil {
		return SchedulingLink{}, err
	}
	a.logger.Info("scheduling link created", zap.String("owner", res.Resource.Owner))
	return res.Resource, nil
}

// createPrefilledLink mints a link and appends Calendly's prefill query
// parameters (name, email, a1..aN).
func (a *Adapter) createPrefilledLink(ctx context.Context, in tools.Args) (SchedulingLink, error) {
	link, err := a.createLink(ctx, in.String("event_type"))
	if err != nil {
		return SchedulingLink{}, err
	}
	u, err := url.Parse(link.BookingURL)
	if err != nil {
		return SchedulingLink{}, fmt.Errorf("parse booking url: %w", err)
	}
	q := u.Query()
	if v := in.String("name"); v != "" {
		q.Set("name", v)
	}
	if v := in.String("email"); v != "" {
		q.Set("email", v)
	}
	for i, ans := range in.Strings("answers") {
		q.Set("a"+strconv.Itoa(i+1), ans)
	}
	u.RawQuery = q.Encode()
	link.BookingURL = u.String()
	return link, nil
}

func (a *Adapter) listEvents(ctx context.Context, in tools.Args) ([]ScheduledEvent, error) {
	user, _, err := a.client.Identity(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("user", user)
	q.Set("count", strconv.Itoa(in.Int("count", defaultPageSize)))
	q.Set("sort", "start_time:asc")
	for _, key := range []string{"status", "invitee_email", "min_start_time", "max_start_time"} {
		if v := in.String(key); v != "" {
			q.Set(key, v)
		}
	}
	var page collection[ScheduledEvent]
	if err := a.client.get(ctx, a.client.base+"/scheduled_events", q, &page); err != nil {
		return nil, err
	}
	return nonNil(page.Collection), nil
}

func (a *Adapter) cancelEvent(ctx context.Context, ref, reason string) (Cancellation, error) {
	var res resource[Cancellation]
	endpoint := a.client.ResourceURI("scheduled_events", ref) + "/cancellation"
	if err := a.client.post(ctx, endpoint, map[string]string{"reason": reason}, &res); err != nil {
		return Cancellation{}, err
	}
	a.logger.Info("event cancelled", zap.String("event", ref))
	return res.Resource, nil
}

func (a *Adapter) invitees(ctx context.Context, eventRef, inviteeRef string) (interface{}, error) {
	base := a.client.ResourceURI("scheduled_events", eventRef) + "/invitees"
	if inviteeRef == "" {
		var page collection[Invitee]
		if err := a.client.get(ctx, base, nil, &page); err != nil {
			return nil, err
		}
		return nonNil(page.Collection), nil
	}
	var res resource[Invitee]
	if err := a.client.get(ctx, base+"/"+url.PathEscape(lastSegment(inviteeRef)), nil, &res); err != nil {
		return nil, err
	}
	return res.Resource, nil
}

func (a *Adapter) availability(ctx context.Context, in tools.Args) ([]AvailableTime, error) {
	start, err := time.Parse(time.RFC3339, in.String("start_time"))
	if err != nil {
		return nil, tools.Invalid(ToolCheckAvailability, "start_time: %v", err)
	}
	end, err := time.Parse(time.RFC3339, in.String("end_time"))
	if err != nil {
		return nil, tools.Invalid(ToolCheckAvailability, "end_time: %v", err)
	}
	if !end.After(start) {
		return nil, tools.Invalid(ToolCheckAvailability, "end_time must be after start_time")
	}
	if end.Sub(start) > MaxAvailabilityWindow {
		return nil, tools.Invalid(ToolCheckAvailability, "window of %s exceeds the 7 day maximum", end.Sub(start))
	}
	// Calendly rejects windows that start in the past.
	if now := a.now(); start.Before(now) {
		start = now.Add(time.Minute)
		if !end.After(start) {
			return nil, tools.Invalid(ToolCheckAvailability, "window has already ended")
		}
	}

	q := url.Values{}
	q.Set("event_type", a.client.ResourceURI("event_types", in.String("event_type")))
	q.Set("start_time", start.UTC().Format(time.RFC3339))
	q.Set("end_time", end.UTC().Format(time.RFC3339))
	var page collection[AvailableTime]
	if err := a.client.get(ctx, a.client.base+"/event_type_available_times", q, &page); err != nil {
		return nil, err
	}
	return nonNil(page.Collection), nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
