package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/retry"
)

// Recorder receives service-level metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordSignup(result string, attempts int)
	RecordDecision(decision, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordSignup(string, int)      {}
func (nopRecorder) RecordDecision(string, string) {}

// SignupService accepts signup requests against capacity-bounded events.
type SignupService struct {
	store   repository.Store
	policy  retry.Policy
	timeout time.Duration
	metrics Recorder
}

// NewSignupService constructs a SignupService. A nil rec disables metrics.
func NewSignupService(store repository.Store, policy retry.Policy, timeout time.Duration, rec Recorder) *SignupService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &SignupService{store: store, policy: policy, timeout: timeout, metrics: rec}
}

// SubmitSignup validates the request and then, in one transaction, checks that
// the event is open and has room, stores a pending signup and takes a place.
// A transaction that loses a race with another writer is rerun from the read.
func (s *SignupService) SubmitSignup(ctx context.Context, eventID, username, contact string) (*model.SignupResult, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		s.metrics.RecordSignup(ResultLabel(model.ErrValidation), 0)
		return nil, model.NewValidationError("event_id", "is required")
	}
	name, err := cleanUsername(username)
	if err != nil {
		s.metrics.RecordSignup(ResultLabel(err), 0)
		return nil, err
	}
	contact, err = cleanContact(contact)
	if err != nil {
		s.metrics.RecordSignup(ResultLabel(err), 0)
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var result *model.SignupResult
	attempts, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			event, err := tx.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			switch {
			case !event.IsOpen:
				return model.ErrEventClosed
			case event.Capacity <= 0:
				return model.ErrNoCapacityConfigured
			case event.IsFull():
				return model.ErrEventFull
			}

			signup := &model.Signup{
				ID:       uuid.NewString(),
				EventID:  event.ID,
				Username: name,
				Contact:  contact,
				Status:   model.StatusPending,
			}
			if err := tx.CreateSignup(ctx, signup); err != nil {
				return err
			}
			event.ApprovedCount++
			if err := tx.UpdateEvent(ctx, event); err != nil {
				return err
			}
			if err := recordOutbox(ctx, tx, model.OutboxSignupRequested, event, signup); err != nil {
				return err
			}

			result = &model.SignupResult{
				SignupID:  signup.ID,
				EventID:   event.ID,
				Status:    signup.Status,
				CreatedAt: signup.CreatedAt,
			}
			return nil
		})
	})

	s.metrics.RecordSignup(ResultLabel(err), attempts)
	if err != nil {
		if errors.Is(err, model.ErrConflict) || errors.Is(err, model.ErrUnavailable) {
			slog.Warn("signup not committed",
				slog.String("event_id", eventID),
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()),
			)
		}
		return nil, surface(err, "submit signup")
	}

	result.Attempts = attempts
	slog.Info("signup accepted",
		slog.String("event_id", eventID),
		slog.String("signup_id", result.SignupID),
		slog.Int("attempts", attempts),
	)
	return result, nil
}

// recordOutbox writes a notification for signup in the same transaction.
func recordOutbox(ctx context.Context, tx repository.Tx, kind model.OutboxEventType, event *model.Event, signup *model.Signup) error {
	payload, err := json.Marshal(model.SignupNotification{
		SignupID: signup.ID,
		EventID:  event.ID,
		Title:    event.Title,
		Username: signup.Username,
		Contact:  signup.Contact,
		Status:   signup.Status,
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	return tx.CreateOutboxMessage(ctx, &model.OutboxMessage{
		AggregateID: signup.ID,
		EventType:   kind,
		Payload:     payload,
	})
}

// domainErrors are returned to callers unwrapped so handlers can map them.
var domainErrors = []error{
	model.ErrValidation,
	model.ErrNotFound,
	model.ErrEventClosed,
	model.ErrNoCapacityConfigured,
	model.ErrEventFull,
	model.ErrInvalidTransition,
	model.ErrConflict,
	model.ErrUnavailable,
}

func surface(err error, op string) error {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			if d == model.ErrConflict || d == model.ErrUnavailable {
				return fmt.Errorf("%s: %w", op, err)
			}
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				return ve
			}
			return d
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ResultLabel names the outcome of an operation for metrics.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrEventClosed):
		return "closed"
	case errors.Is(err, model.ErrNoCapacityConfigured):
		return "no_capacity"
	case errors.Is(err, model.ErrEventFull):
		return "full"
	case errors.Is(err, model.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
