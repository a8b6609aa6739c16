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

// Package notify sends transactional email: templated appointment
// confirmations and reminders, and free-form messages. Delivery goes through
// a REST email API or plain SMTP.
package notify

import (
	"context"
	"net/mail"
)

// Message is one outgoing email. At least one of Text and HTML is set.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers messages. The returned id is provider-assigned and may be
// empty.
type Sender interface {
	Send(ctx context.Context, msg Message) (id string, err error)
}

// FormatAddress renders "Name <addr>", or the bare address without a name.
func FormatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return (&mail.Address{Name: name, Address: addr}).String()
}
