// Package repository defines the transactional store the signup service runs
// against, with a PostgreSQL implementation (pgx) and an in-memory one.
package repository

import (
	"context"
	"errors"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
)

// ErrTxConflict is returned by Store.InTx when the transaction could not
// commit because data it read was modified by a concurrent transaction.
// The whole transaction may be retried.
var ErrTxConflict = errors.New("transaction conflict")

// Tx is the set of operations usable inside a transaction. Everything read
// through a Tx is checked for concurrent modification at commit time.
type Tx interface {
	// GetEvent returns model.ErrNotFound when the event does not exist.
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// UpdateEvent writes e and bumps e.Version. It fails with ErrTxConflict
	// when the stored version no longer matches e.Version.
	UpdateEvent(ctx context.Context, e *model.Event) error
	// CreateEvent inserts e and fills in Version and CreatedAt. An id that is
	// already taken fails with ErrTxConflict.
	CreateEvent(ctx context.Context, e *model.Event) error
	// CreateSignup inserts s and fills in the server-assigned CreatedAt.
	CreateSignup(ctx context.Context, s *model.Signup) error
	GetSignup(ctx context.Context, eventID, signupID string) (*model.Signup, error)
	// UpdateSignup persists Status and DecidedAt.
	UpdateSignup(ctx context.Context, s *model.Signup) error
	CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error
}

// Store is the persistence boundary of the service.
type Store interface {
	// InTx runs fn in a transaction and commits it when fn returns nil.
	// Nothing fn wrote is visible to anyone if InTx returns an error.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ListSignups(ctx context.Context, eventID string) ([]model.Signup, error)

	PendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close()
}
