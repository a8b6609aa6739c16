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
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Appointment is the data behind confirmation and reminder emails.
type Appointment struct {
	Name        string
	Service     string
	When        time.Time
	Timezone    string
	Location    string
	Link        string
	Notes       string
	HoursBefore int
	Sender      string
}

// Rendered is a subject plus both bodies.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Template renders one kind of email.
type Template struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

func funcs() map[string]interface{} {
	return map[string]interface{}{
		// A Caser holds state, so each call gets its own.
		"title": func(s string) string { return cases.Title(language.English).String(s) },
		"when":  formatWhen,
	}
}

// formatWhen renders the appointment time in its own timezone.
func formatWhen(a Appointment) string {
	t := a.When
	if a.Timezone != "" {
		if loc, err := time.LoadLocation(a.Timezone); err == nil {
			t = t.In(loc)
		}
	}
	return t.Format("Monday, January 2, 2006 at 3:04 PM MST")
}

// NewTemplate parses the three parts of an email template.
func NewTemplate(name, subject, text, html string) (*Template, error) {
	st, err := texttemplate.New(name + ".subject").Funcs(funcs()).Parse(subject)
	if err != nil {
		return nil, fmt.Errorf("parse %s subject: %w", name, err)
	}
	tt, err := texttemplate.New(name + ".txt").Funcs(funcs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s text: %w", name, err)
	}
	ht, err := htmltemplate.New(name + ".html").Funcs(funcs()).Parse(html)
	if err != nil {
		return nil, fmt.Errorf("parse %s html: %w", name, err)
	}
	return &Template{subject: st, text: tt, html: ht}, nil
}

// Render executes the template. The html body is escaped by html/template.
func (t *Template) Render(a Appointment) (Rendered, error) {
	if a.Service == "" {
		a.Service = "appointment"
	}
	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, a); err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.text.Execute(&text, a); err != nil {
		return Rendered{}, fmt.Errorf("render text: %w", err)
	}
	if err := t.html.Execute(&html, a); err != nil {
		return Rendered{}, fmt.Errorf("render html: %w", err)
	}
	return Rendered{
		Subject: strings.TrimSpace(subject.String()),
		Text:    strings.TrimSpace(text.String()) + "\n",
		HTML:    html.String(),
	}, nil
}

// MarkdownToHTML converts a markdown body for the html part of send_email.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return buf.String(), nil
}

const confirmationSubject = `Confirmed: your {{.Service}} on {{when .}}`

const confirmationText = `
Hi {{title .Name}},

Your {{.Service}} is confirmed for {{when .}}.
{{- if .Location}}
Location: {{.Location}}
{{- end}}
{{- if .Link}}
Manage your booking: {{.Link}}
{{- end}}
{{- if .Notes}}

{{.Notes}}
{{- end}}

See you then,
{{.Sender}}
`

const confirmationHTML = `<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>Hi {{title .Name}},</p>
<p>Your {{.Service}} is confirmed for <strong>{{when .}}</strong>.</p>
{{- if .Location}}
<p>Location: {{.Location}}</p>
{{- end}}
{{- if .Link}}
<p><a href="{{.Link}}">Manage your booking</a></p>
{{- end}}
{{- if .Notes}}
<p>{{.Notes}}</p>
{{- end}}
<p>See you then,<br>{{.Sender}}</p>
</body></html>
`

const reminderSubject = `Reminder: your {{.Service}} {{if .HoursBefore}}in {{.HoursBefore}} hours{{else}}is coming up{{end}}`

const reminderText = `
Hi {{title .Name}},

This is a reminder that your {{.Service}} is scheduled for {{when .}}.
{{- if .Location}}
Location: {{.Location}}
{{- end}}
{{- if .Link}}
Need to reschedule? {{.Link}}
{{- end}}

{{.Sender}}
`

const reminderHTML = `<!DOCTYPE html>
<html><body style="font-family:sans-serif">
<p>Hi {{title .Name}},</p>
<p>This is a reminder that your {{.Service}} is scheduled for <strong>{{when .}}</strong>.</p>
{{- if .Location}}
<p>Location: {{.Location}}</p>
{{- end}}
{{- if .Link}}
<p><a href="{{.Link}}">Need to reschedule?</a></p>
{{- end}}
<p>{{.Sender}}</p>
</body></html>
`

// DefaultConfirmation and DefaultReminder are the built-in templates.
var (
	DefaultConfirmation = mustTemplate("confirmation", confirmationSubject, confirmationText, confirmationHTML)
	DefaultReminder     = mustTemplate("reminder", reminderSubject, reminderText, reminderHTML)
)

func mustTemplate(name, subject, text, html string) *Template {
	t, err := NewTemplate(name, subject, text, html)
	if err != nil {
		panic(err)
	}
	return t
}
