// Package outbox relays committed outbox messages to a message stream.
//
// Messages are written by the signup and admin services in the same
// transaction as the state change they describe. The Relay polls for
// unpublished messages and marks each one published only after the
// Publisher accepted it, so delivery is at-least-once.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/rueidis"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
)

// Publisher delivers one outbox message downstream.
type Publisher interface {
	Publish(ctx context.Context, msg model.OutboxMessage) error
}

// StreamPublisher appends messages to a Redis stream with XADD.
type StreamPublisher struct {
	client rueidis.Client
	stream string
}

// NewStreamPublisher returns a Publisher writing to stream.
func NewStreamPublisher(client rueidis.Client, stream string) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream}
}

// NewRedisClient connects to the Redis server at addr.
func NewRedisClient(addr string) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (p *StreamPublisher) Publish(ctx context.Context, msg model.OutboxMessage) error {
	cmd := p.client.B().Xadd().Key(p.stream).Id("*").
		FieldValue().
		FieldValue("event_type", string(msg.EventType)).
		FieldValue("aggregate_id", msg.AggregateID).
		FieldValue("payload", string(msg.Payload)).
		Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// Recorder receives delivery metrics. *metrics.Collector implements it.
type Recorder interface {
	RecordOutbox(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordOutbox(bool) {}

// Relay moves pending outbox messages to a Publisher.
type Relay struct {
	store     repository.Store
	publisher Publisher
	batchSize int
	interval  time.Duration
	metrics   Recorder
}

// NewRelay constructs a Relay. A nil rec disables metrics.
func NewRelay(store repository.Store, publisher Publisher, batchSize int, interval time.Duration, rec Recorder) *Relay {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		metrics:   rec,
	}
}

// ProcessPending publishes one batch and returns how many messages were
// delivered. A message that fails to publish stays pending for the next batch.
func (r *Relay) ProcessPending(ctx context.Context) (int, error) {
	msgs, err := r.store.PendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load pending outbox: %w", err)
	}

	sent := 0
	for _, msg := range msgs {
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.metrics.RecordOutbox(false)
			slog.Warn("outbox publish failed",
				slog.Int64("outbox_id", msg.ID),
				slog.String("event_type", string(msg.EventType)),
				slog.String("error", err.Error()),
			)
			// keep ordering: later messages wait for this one
			break
		}
		if err := r.store.MarkOutboxPublished(ctx, msg.ID); err != nil {
			r.metrics.RecordOutbox(false)
			slog.Error("outbox mark published failed",
				slog.Int64("outbox_id", msg.ID),
				slog.String("error", err.Error()),
			)
			break
		}
		r.metrics.RecordOutbox(true)
		sent++
		slog.Debug("outbox message published",
			slog.Int64("outbox_id", msg.ID),
			slog.String("event_type", string(msg.EventType)),
		)
	}
	return sent, nil
}

// Run polls until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("outbox relay started",
		slog.Duration("interval", r.interval),
		slog.Int("batch_size", r.batchSize),
	)
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.ProcessPending(ctx); err != nil {
				slog.Error("outbox relay", slog.String("error", err.Error()))
			}
		}
	}
}
