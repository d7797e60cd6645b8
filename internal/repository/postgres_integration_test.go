package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/database"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
)

// newTestPostgresStore connects to TEST_DATABASE_URL and skips the test when
// it is unset or unreachable.
func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, database.PoolConfig{URL: url, Attempts: 1})
	if err != nil {
		t.Skipf("cannot reach test database: %v", err)
	}
	require.NoError(t, database.RunMigrations(url))
	_, err = pool.Exec(ctx, `TRUNCATE outbox, signup_requests, events`)
	require.NoError(t, err)

	store := NewPostgresStore(pool)
	t.Cleanup(store.Close)
	return store
}

func TestPostgresStore_VersionGuardedUpdate(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	e := &model.Event{ID: uuid.NewString(), Title: "Sauna", IsOpen: true, Capacity: 2}
	require.NoError(t, store.CreateEvent(ctx, e))
	assert.Equal(t, int64(1), e.Version)

	err := store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.GetEvent(ctx, e.ID)
		if err != nil {
			return err
		}
		got.Version = 42
		return tx.UpdateEvent(ctx, got)
	})
	assert.ErrorIs(t, err, ErrTxConflict)

	err = store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.GetEvent(ctx, e.ID)
		if err != nil {
			return err
		}
		got.ApprovedCount++
		if err := tx.UpdateEvent(ctx, got); err != nil {
			return err
		}
		sg := &model.Signup{ID: uuid.NewString(), EventID: e.ID, Username: "a", Contact: "a@x.dk", Status: model.StatusPending}
		if err := tx.CreateSignup(ctx, sg); err != nil {
			return err
		}
		return tx.CreateOutboxMessage(ctx, &model.OutboxMessage{
			AggregateID: sg.ID, EventType: model.OutboxSignupRequested, Payload: []byte(`{"ok":true}`),
		})
	})
	require.NoError(t, err)

	got, err := store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ApprovedCount)
	assert.Equal(t, int64(2), got.Version)

	msgs, err := store.PendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.NoError(t, store.MarkOutboxPublished(ctx, msgs[0].ID))
	assert.ErrorIs(t, store.MarkOutboxPublished(ctx, msgs[0].ID), model.ErrNotFound)
}

func TestPostgresStore_ConcurrentIncrementsConflict(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	e := &model.Event{ID: uuid.NewString(), Title: "Sauna", IsOpen: true, Capacity: 100}
	require.NoError(t, store.CreateEvent(ctx, e))

	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.InTx(ctx, func(ctx context.Context, tx Tx) error {
				got, err := tx.GetEvent(ctx, e.ID)
				if err != nil {
					return err
				}
				got.ApprovedCount++
				return tx.UpdateEvent(ctx, got)
			})
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, ErrTxConflict), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	got, err := store.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, committed, got.ApprovedCount, "no lost updates")
}

func TestPostgresStore_TxCreateEventIsAtomic(t *testing.T) {
	store := newTestPostgresStore(t)
	ctx := context.Background()

	existing := &model.Event{ID: uuid.NewString(), Title: "Sauna", Capacity: 2}
	require.NoError(t, store.CreateEvent(ctx, existing))

	fresh := uuid.NewString()
	err := store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		e := &model.Event{ID: fresh, Title: "New", Capacity: 3}
		if err := tx.CreateEvent(ctx, e); err != nil {
			return err
		}
		assert.Equal(t, int64(1), e.Version)
		return tx.CreateEvent(ctx, &model.Event{ID: existing.ID, Title: "Again"})
	})
	assert.ErrorIs(t, err, ErrTxConflict)

	_, err = store.GetEvent(ctx, fresh)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
