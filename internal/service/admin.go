package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/retry"
)

// AdminService lets an administrator review signup requests.
type AdminService struct {
	store   repository.Store
	policy  retry.Policy
	metrics Recorder
	now     func() time.Time
}

// NewAdminService constructs an AdminService. A nil rec disables metrics.
func NewAdminService(store repository.Store, policy retry.Policy, rec Recorder) *AdminService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &AdminService{
		store:   store,
		policy:  policy,
		metrics: rec,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ListSignups returns all signups for an event in submission order.
func (s *AdminService) ListSignups(ctx context.Context, eventID string) ([]model.Signup, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, surface(err, "list signups")
	}
	signups, err := s.store.ListSignups(ctx, eventID)
	if err != nil {
		return nil, surface(err, "list signups")
	}
	return signups, nil
}

// Approve moves a pending signup to approved. The place it holds was taken
// when it was submitted, so the counter does not change.
func (s *AdminService) Approve(ctx context.Context, eventID, signupID string) (*model.Signup, error) {
	return s.decide(ctx, eventID, signupID, model.StatusApproved)
}

// Reject moves a pending signup to rejected and gives its place back.
func (s *AdminService) Reject(ctx context.Context, eventID, signupID string) (*model.Signup, error) {
	return s.decide(ctx, eventID, signupID, model.StatusRejected)
}

func (s *AdminService) decide(ctx context.Context, eventID, signupID string, to model.SignupStatus) (*model.Signup, error) {
	decision := "approve"
	kind := model.OutboxSignupApproved
	if to == model.StatusRejected {
		decision = "reject"
		kind = model.OutboxSignupRejected
	}

	var decided *model.Signup
	_, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			event, err := tx.GetEvent(ctx, eventID)
			if err != nil {
				return err
			}
			signup, err := tx.GetSignup(ctx, eventID, signupID)
			if err != nil {
				return err
			}
			if signup.Status != model.StatusPending {
				return model.ErrInvalidTransition
			}

			now := s.now()
			signup.Status = to
			signup.DecidedAt = &now
			if err := tx.UpdateSignup(ctx, signup); err != nil {
				return err
			}
			if !to.Holds() {
				if event.ApprovedCount > 0 {
					event.ApprovedCount--
				}
				if err := tx.UpdateEvent(ctx, event); err != nil {
					return err
				}
			}
			if err := recordOutbox(ctx, tx, kind, event, signup); err != nil {
				return err
			}
			decided = signup
			return nil
		})
	})

	s.metrics.RecordDecision(decision, ResultLabel(err))
	if err != nil {
		return nil, surface(err, decision+" signup")
	}
	slog.Info("signup decided",
		slog.String("event_id", eventID),
		slog.String("signup_id", signupID),
		slog.String("status", string(to)),
	)
	return decided, nil
}
