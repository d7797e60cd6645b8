// Package model defines the core domain types for the sauna signup service.
package model

import (
	"encoding/json"
	"time"
)

// Event represents a sauna session that visitors can sign up for.
type Event struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	IsOpen        bool       `json:"is_open"`
	StartAt       *time.Time `json:"start_at,omitempty"`
	Capacity      int        `json:"capacity"`
	ApprovedCount int        `json:"approved_count"`
	Version       int64      `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Remaining returns the number of free places.
func (e *Event) Remaining() int {
	if e.Capacity <= 0 || e.ApprovedCount >= e.Capacity {
		return 0
	}
	return e.Capacity - e.ApprovedCount
}

// IsFull reports whether a configured capacity has been reached. An event
// without capacity is never full; it is unconfigured.
func (e *Event) IsFull() bool {
	return e.Capacity > 0 && e.ApprovedCount >= e.Capacity
}

// MarshalJSON adds the derived "remaining" field shown next to the counter.
func (e Event) MarshalJSON() ([]byte, error) {
	type event Event
	return json.Marshal(struct {
		event
		Remaining int `json:"remaining"`
	}{event(e), e.Remaining()})
}

// StartedBy reports whether the event counts as "open now" at t.
// Events without a start time are always open now.
func (e *Event) StartedBy(t time.Time) bool {
	return e.StartAt == nil || !e.StartAt.After(t)
}

// SignupStatus is the review state of a signup request.
type SignupStatus string

const (
	StatusPending  SignupStatus = "pending"
	StatusApproved SignupStatus = "approved"
	StatusRejected SignupStatus = "rejected"
)

// Holds reports whether a signup in this status occupies a place.
func (s SignupStatus) Holds() bool {
	return s == StatusPending || s == StatusApproved
}

// Signup is a visitor's request to attend an event.
type Signup struct {
	ID        string       `json:"id"`
	EventID   string       `json:"event_id"`
	Username  string       `json:"username"`
	Contact   string       `json:"contact"`
	Status    SignupStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	DecidedAt *time.Time   `json:"decided_at,omitempty"`
}

// SignupResult is returned to the caller after a successful submission.
type SignupResult struct {
	SignupID  string       `json:"signup_id"`
	EventID   string       `json:"event_id"`
	Status    SignupStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	Attempts  int          `json:"-"`
}

// OpenEvents splits the open events the way the signup page shows them.
type OpenEvents struct {
	OpenNow  []Event `json:"open_now"`
	Upcoming []Event `json:"upcoming"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title    string     `json:"title"`
	IsOpen   bool       `json:"is_open"`
	StartAt  *time.Time `json:"start_at,omitempty"`
	Capacity int        `json:"capacity"`
}

// UpdateEventRequest is the payload for opening or closing an event.
type UpdateEventRequest struct {
	IsOpen *bool `json:"is_open"`
}

// SignupRequest is the payload for signing up for an event.
type SignupRequest struct {
	Username string `json:"username"`
	Contact  string `json:"contact"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
