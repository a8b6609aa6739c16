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

import "github.com/teradata-labs/switchboard/pkg/tools"

// EventType is a bookable appointment type.
type EventType struct {
	URI           string `json:"uri"`
	Name          string `json:"name"`
	Slug          string `json:"slug,omitempty"`
	Active        bool   `json:"active"`
	Duration      int    `json:"duration"`
	Kind          string `json:"kind,omitempty"`
	SchedulingURL string `json:"scheduling_url"`
	Description   string `json:"description_plain,omitempty"`
}

// Location of a scheduled event.
type Location struct {
	Type     string `json:"type,omitempty"`
	Location string `json:"location,omitempty"`
	JoinURL  string `json:"join_url,omitempty"`
}

// ScheduledEvent is a booked meeting.
type ScheduledEvent struct {
	URI       string    `json:"uri"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	EventType string    `json:"event_type"`
	Location  *Location `json:"location,omitempty"`
	CreatedAt string    `json:"created_at,omitempty"`
}

// Answer is one invitee response to a booking question.
type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Invitee is a person booked into a scheduled event.
type Invitee struct {
	URI           string   `json:"uri"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Status        string   `json:"status"`
	Timezone      string   `json:"timezone,omitempty"`
	Event         string   `json:"event,omitempty"`
	CancelURL     string   `json:"cancel_url,omitempty"`
	RescheduleURL string   `json:"reschedule_url,omitempty"`
	CreatedAt     string   `json:"created_at,omitempty"`
	Answers       []Answer `json:"questions_and_answers,omitempty"`
}

// AvailableTime is an open slot for an event type.
type AvailableTime struct {
	Status            string `json:"status"`
	StartTime         string `json:"start_time"`
	InviteesRemaining int    `json:"invitees_remaining"`
	SchedulingURL     string `json:"scheduling_url"`
}

// SchedulingLink is a single-use booking link.
type SchedulingLink struct {
	BookingURL string `json:"booking_url"`
	Owner      string `json:"owner"`
	OwnerType  string `json:"owner_type"`
}

// Cancellation records a cancelled event.
type Cancellation struct {
	CanceledBy   string `json:"canceled_by,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CancelerType string `json:"canceler_type,omitempty"`
}

type resource[T any] struct {
	Resource T `json:"resource"`
}

type collection[T any] struct {
	Collection []T `json:"collection"`
	Pagination struct {
		Count         int    `json:"count"`
		NextPageToken string `json:"next_page_token,omitempty"`
	} `json:"pagination"`
}

func upstream(status int, body []byte) error {
	return tools.NewUpstreamError("calendly", status, body)
}
