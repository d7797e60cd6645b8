package model

import "time"

// OutboxEventType names a state change recorded in the outbox.
type OutboxEventType string

const (
	OutboxSignupRequested OutboxEventType = "signup_requested"
	OutboxSignupApproved  OutboxEventType = "signup_approved"
	OutboxSignupRejected  OutboxEventType = "signup_rejected"
)

// OutboxMessage is written in the same transaction as the change it describes
// and later published to the message stream.
type OutboxMessage struct {
	ID          int64           `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   OutboxEventType `json:"event_type"`
	Payload     []byte          `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

// SignupNotification is the JSON payload of signup outbox messages.
type SignupNotification struct {
	SignupID string       `json:"signup_id"`
	EventID  string       `json:"event_id"`
	Title    string       `json:"title"`
	Username string       `json:"username"`
	Contact  string       `json:"contact"`
	Status   SignupStatus `json:"status"`
}
