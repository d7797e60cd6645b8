// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/retry"
)

// EventService orchestrates event-related business operations.
type EventService struct {
	store  repository.Store
	policy retry.Policy
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(store repository.Store, policy retry.Policy) *EventService {
	return &EventService{store: store, policy: policy}
}

// CreateEvent validates the request and delegates to the store.
// A capacity of 0 is accepted and means "not configured yet".
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, model.NewValidationError("title", "is required")
	}
	if err := checkCapacity(req.Capacity); err != nil {
		return nil, err
	}

	event := &model.Event{
		ID:       uuid.NewString(),
		Title:    req.Title,
		IsOpen:   req.IsOpen,
		Capacity: req.Capacity,
	}
	if req.StartAt != nil {
		t := req.StartAt.UTC()
		event.StartAt = &t
	}
	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, surface(err, "create event")
	}
	slog.Info("event created",
		slog.String("event_id", event.ID),
		slog.String("title", event.Title),
		slog.Int("capacity", event.Capacity),
	)
	return event, nil
}

func checkCapacity(c int) error {
	if c < 0 {
		return model.NewValidationError("capacity", "must not be negative")
	}
	if c > maxCapacity {
		return model.NewValidationError("capacity", "cannot exceed 100,000")
	}
	return nil
}

// ListEvents returns all events, newest first.
func (s *EventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, surface(err, "list events")
	}
	return events, nil
}

// ListOpen returns the open events split into those running at now and
// those starting later. Upcoming events are ordered by start time.
func (s *EventService) ListOpen(ctx context.Context, now time.Time) (*model.OpenEvents, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, surface(err, "list events")
	}

	out := &model.OpenEvents{OpenNow: []model.Event{}, Upcoming: []model.Event{}}
	for _, e := range events {
		if !e.IsOpen {
			continue
		}
		if e.StartedBy(now) {
			out.OpenNow = append(out.OpenNow, e)
		} else {
			out.Upcoming = append(out.Upcoming, e)
		}
	}
	sort.SliceStable(out.Upcoming, func(i, j int) bool {
		return out.Upcoming[i].StartAt.Before(*out.Upcoming[j].StartAt)
	})
	return out, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, model.NewValidationError("event_id", "is required")
	}
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, surface(err, "get event")
	}
	return event, nil
}

// SetOpen opens or closes an event for signups.
func (s *EventService) SetOpen(ctx context.Context, id string, open bool) (*model.Event, error) {
	var updated *model.Event
	_, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			event, err := tx.GetEvent(ctx, id)
			if err != nil {
				return err
			}
			if event.IsOpen == open {
				updated = event
				return nil
			}
			event.IsOpen = open
			if err := tx.UpdateEvent(ctx, event); err != nil {
				return err
			}
			updated = event
			return nil
		})
	})
	if err != nil {
		return nil, surface(err, "set event open")
	}
	slog.Info("event availability changed", slog.String("event_id", id), slog.Bool("is_open", open))
	return updated, nil
}

// ImportLegacy loads events exported from the previous document database.
// Every document is normalised before anything is written, and the batch is
// written in one transaction: one bad document, or one id that already
// exists, rejects the whole batch.
func (s *EventService) ImportLegacy(ctx context.Context, docs []map[string]any) ([]model.Event, error) {
	events := make([]*model.Event, 0, len(docs))
	seen := make(map[string]int, len(docs))
	for i, doc := range docs {
		e, err := model.NormalizeLegacyEvent(doc)
		if err != nil {
			var ve *model.ValidationError
			if errors.As(err, &ve) {
				return nil, model.NewValidationError(fmt.Sprintf("documents[%d].%s", i, ve.Field), ve.Reason)
			}
			return nil, err
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if j, dup := seen[e.ID]; dup {
			return nil, model.NewValidationError(fmt.Sprintf("documents[%d].id", i), fmt.Sprintf("duplicates documents[%d]", j))
		}
		seen[e.ID] = i
		events = append(events, e)
	}

	var imported []model.Event
	_, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		imported = make([]model.Event, 0, len(events))
		return s.store.InTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			for i, e := range events {
				_, err := tx.GetEvent(ctx, e.ID)
				switch {
				case err == nil:
					return model.NewValidationError(fmt.Sprintf("documents[%d].id", i), "already exists")
				case !errors.Is(err, model.ErrNotFound):
					return err
				}
				created := *e
				if err := tx.CreateEvent(ctx, &created); err != nil {
					return err
				}
				imported = append(imported, created)
			}
			return nil
		})
	})
	if err != nil {
		return nil, surface(err, "import events")
	}
	slog.Info("legacy events imported", slog.Int("count", len(imported)))
	return imported, nil
}
