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
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/switchboard/pkg/tools"
)

// Capability names.
const (
	ToolConfirmation = "send_confirmation_email"
	ToolReminder     = "send_reminder_email"
	ToolSend         = "send_email"
)

// Config identifies the sending party.
type Config struct {
	From     string
	FromName string
	ReplyTo  string
}

// Adapter serves the email capabilities over a Sender.
type Adapter struct {
	sender       Sender
	cfg          Config
	logger       *zap.Logger
	confirmation *Template
	reminder     *Template
	descriptors  []tools.Descriptor
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTemplates replaces the built-in confirmation and reminder templates.
// A nil template keeps the default.
func WithTemplates(confirmation, reminder *Template) Option {
	return func(a *Adapter) {
		if confirmation != nil {
			a.confirmation = confirmation
		}
		if reminder != nil {
			a.reminder = reminder
		}
	}
}

// NewAdapter creates the adapter. It is configured when a sender and a from
// address are present.
func NewAdapter(sender Sender, cfg Config, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		sender:       sender,
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "notify")),
		confirmation: DefaultConfirmation,
		reminder:     DefaultReminder,
		descriptors:  descriptors(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string     { return "notify" }
func (a *Adapter) Prefix() string   { return "" }
func (a *Adapter) Configured() bool { return a.sender != nil && strings.TrimSpace(a.cfg.From) != "" }

func (a *Adapter) Capabilities() []tools.Descriptor {
	out := make([]tools.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

func descriptors() []tools.Descriptor {
	appointment := func(extra map[string]*tools.Schema) map[string]*tools.Schema {
		props := map[string]*tools.Schema{
			"to":               tools.NewStringSchema("Recipient email address").WithFormat("email"),
			"name":             tools.NewStringSchema("Recipient name"),
			"appointment_time": tools.NewStringSchema("Appointment start, RFC 3339").WithFormat("date-time"),
			"timezone":         tools.NewStringSchema("IANA timezone the time is shown in, e.g. America/New_York"),
			"service":          tools.NewStringSchema("What was booked").WithDefault("appointment"),
			"location":         tools.NewStringSchema("Where the appointment takes place"),
			"booking_link":     tools.NewStringSchema("Link to manage or reschedule the booking").WithFormat("uri"),
		}
		for k, v := range extra {
			props[k] = v
		}
		return props
	}

	return []tools.Descriptor{
		{
			Name:        ToolConfirmation,
			Description: "Email an appointment confirmation to a customer.",
			InputSchema: tools.NewObjectSchema("Confirmation email", appointment(map[string]*tools.Schema{
				"notes": tools.NewStringSchema("Extra text included in the message"),
			}), "to", "name", "appointment_time"),
		},
		{
			Name:        ToolReminder,
			Description: "Email an appointment reminder to a customer.",
			InputSchema: tools.NewObjectSchema("Reminder email", appointment(map[string]*tools.Schema{
				"hours_before": tools.NewIntegerSchema("Hours until the appointment, shown in the subject").WithRange(1, 168),
			}), "to", "name", "appointment_time"),
		},
		{
			Name:        ToolSend,
			Description: "Send an email with a free-form subject and body. At least one of text and html is required.",
			InputSchema: tools.NewObjectSchema("Email", map[string]*tools.Schema{
				"to":       tools.NewStringSchema("Recipient email address").WithFormat("email"),
				"subject":  tools.NewStringSchema("Subject line"),
				"text":     tools.NewStringSchema("Plain text body"),
				"html":     tools.NewStringSchema("HTML body"),
				"markdown": tools.NewBooleanSchema("Render text as markdown into the html part when html is absent").WithDefault(false),
				"reply_to": tools.NewStringSchema("Reply-To address").WithFormat("email"),
			}, "to", "subject"),
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
		return nil, fmt.Errorf("email backend is not configured")
	}
	if err := d.Validate(args); err != nil {
		return nil, err
	}
	in := tools.Args(args)

	var (
		msg Message
		err error
	)
	switch name {
	case ToolConfirmation:
		msg, err = a.templated(name, a.confirmation, in)
	case ToolReminder:
		msg, err = a.templated(name, a.reminder, in)
	default:
		msg, err = a.freeform(in)
	}
	if err != nil {
		return nil, err
	}

	id, err := a.sender.Send(ctx, msg)
	if err != nil {
		return nil, err
	}
	a.logger.Info("email sent",
		zap.String("tool", name),
		zap.Strings("to", msg.To),
		zap.String("message_id", id))
	return tools.JSONResult(map[string]interface{}{
		"sent":    true,
		"id":      id,
		"to":      msg.To,
		"subject": msg.Subject,
	})
}

func (a *Adapter) base() Message {
	return Message{From: FormatAddress(a.cfg.FromName, a.cfg.From), ReplyTo: a.cfg.ReplyTo}
}

func (a *Adapter) templated(capability string, tmpl *Template, in tools.Args) (Message, error) {
	when, err := time.Parse(time.RFC3339, in.String("appointment_time"))
	if err != nil {
		return Message{}, tools.Invalid(capability, "appointment_time must be RFC 3339: %v", err)
	}
	tz := in.String("timezone")
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return Message{}, tools.Invalid(capability, "unknown timezone %q", tz)
		}
	}
	sender := a.cfg.FromName
	if sender == "" {
		sender = a.cfg.From
	}
	out, err := tmpl.Render(Appointment{
		Name:        in.String("name"),
		Service:     in.String("service"),
		When:        when,
		Timezone:    tz,
		Location:    in.String("location"),
		Link:        in.String("booking_link"),
		Notes:       in.String("notes"),
		HoursBefore: in.Int("hours_before", 0),
		Sender:      sender,
	})
	if err != nil {
		return Message{}, fmt.Errorf("%s: %w", capability, err)
	}
	msg := a.base()
	msg.To = []string{in.String("to")}
	msg.Subject = out.Subject
	msg.Text = out.Text
	msg.HTML = out.HTML
	return msg, nil
}

func (a *Adapter) freeform(in tools.Args) (Message, error) {
	msg := a.base()
	msg.To = []string{in.String("to")}
	msg.Subject = in.String("subject")
	msg.Text = in.String("text")
	msg.HTML = in.String("html")
	if r := in.String("reply_to"); r != "" {
		msg.ReplyTo = r
	}
	if msg.Text == "" && msg.HTML == "" {
		return Message{}, tools.Invalid(ToolSend, "one of text or html is required")
	}
	if msg.HTML == "" && in.Bool("markdown", false) {
		html, err := MarkdownToHTML(msg.Text)
		if err != nil {
			return Message{}, err
		}
		msg.HTML = html
	}
	return msg, nil
}
