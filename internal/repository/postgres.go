package repository

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
)

// PostgresStore implements Store on a pgx connection pool.
//
// ─────────────────────────────────────────────────────────────────────────────
// HOW CONCURRENT SIGNUPS ARE KEPT HONEST
// ─────────────────────────────────────────────────────────────────────────────
//
// Two visitors submitting at the same moment both read approved_count = 1 of
// capacity 2. If both wrote approved_count = 2 the event would hold three
// signups with a counter of two.
//
// Every transaction runs at REPEATABLE READ and every event write is guarded
// by the version it read:
//
//	UPDATE events SET ..., version = version + 1 WHERE id = $1 AND version = $2
//
// The second writer either blocks on the first and then fails with SQLSTATE
// 40001, or finds zero rows matching its version. Both surface as
// ErrTxConflict, the caller rereads the event and sees approved_count = 2.
//
// ─────────────────────────────────────────────────────────────────────────────
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, title, is_open, start_at, capacity, approved_count, version, created_at`

const signupColumns = `id, event_id, username, contact, status, created_at, decided_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.IsOpen, &e.StartAt, &e.Capacity, &e.ApprovedCount, &e.Version, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanSignup(row rowScanner) (*model.Signup, error) {
	var s model.Signup
	var status string
	err := row.Scan(&s.ID, &s.EventID, &s.Username, &s.Contact, &status, &s.CreatedAt, &s.DecidedAt)
	if err != nil {
		return nil, err
	}
	s.Status = model.SignupStatus(status)
	return &s, nil
}

// InTx runs fn inside a REPEATABLE READ transaction.
func (r *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", unavailable(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", classify(err))
	}
	return nil
}

// CreateEvent inserts e and fills in the server-assigned columns.
func (r *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO events (id, title, is_open, start_at, capacity, approved_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING version, created_at`,
		e.ID, e.Title, e.IsOpen, e.StartAt, e.Capacity, e.ApprovedCount,
	).Scan(&e.Version, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", classify(err))
	}
	return nil
}

// GetEvent returns a single event or model.ErrNotFound.
func (r *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", classify(err))
	}
	return e, nil
}

// ListEvents returns all events ordered by creation time descending.
func (r *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", classify(err))
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", classify(err))
	}
	return events, nil
}

// ListSignups returns all signups for an event in submission order.
func (r *PostgresStore) ListSignups(ctx context.Context, eventID string) ([]model.Signup, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+signupColumns+`
		 FROM signup_requests
		 WHERE event_id = $1
		 ORDER BY created_at ASC, id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list signups: %w", classify(err))
	}
	defer rows.Close()

	var signups []model.Signup
	for rows.Next() {
		s, err := scanSignup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signup: %w", err)
		}
		signups = append(signups, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signups: %w", classify(err))
	}
	return signups, nil
}

// PendingOutbox returns up to limit unpublished outbox messages, oldest first.
func (r *PostgresStore) PendingOutbox(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM outbox
		 WHERE published_at IS NULL
		 ORDER BY id
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", classify(err))
	}
	defer rows.Close()

	var msgs []model.OutboxMessage
	for rows.Next() {
		var m model.OutboxMessage
		var eventType string
		if err := rows.Scan(&m.ID, &m.AggregateID, &eventType, &m.Payload, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		m.EventType = model.OutboxEventType(eventType)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outbox: %w", classify(err))
	}
	return msgs, nil
}

// MarkOutboxPublished stamps an outbox message as delivered.
func (r *PostgresStore) MarkOutboxPublished(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE outbox SET published_at = now() WHERE id = $1 AND published_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *PostgresStore) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", unavailable(err))
	}
	return nil
}

// Close releases the pool.
func (r *PostgresStore) Close() {
	r.db.Close()
}

// pgTx implements Tx on a live pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("read event: %w", classify(err))
	}
	return e, nil
}

func (t *pgTx) UpdateEvent(ctx context.Context, e *model.Event) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE events
		 SET title = $3, is_open = $4, start_at = $5, capacity = $6,
		     approved_count = $7, version = version + 1
		 WHERE id = $1 AND version = $2`,
		e.ID, e.Version, e.Title, e.IsOpen, e.StartAt, e.Capacity, e.ApprovedCount,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update event %s at version %d: %w", e.ID, e.Version, ErrTxConflict)
	}
	e.Version++
	return nil
}

func (t *pgTx) CreateEvent(ctx context.Context, e *model.Event) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO events (id, title, is_open, start_at, capacity, approved_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING version, created_at`,
		e.ID, e.Title, e.IsOpen, e.StartAt, e.Capacity, e.ApprovedCount,
	).Scan(&e.Version, &e.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return fmt.Errorf("insert event: duplicate id %s: %w", e.ID, ErrTxConflict)
		}
		return fmt.Errorf("insert event: %w", classify(err))
	}
	return nil
}

func (t *pgTx) CreateSignup(ctx context.Context, s *model.Signup) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO signup_requests (id, event_id, username, contact, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		s.ID, s.EventID, s.Username, s.Contact, string(s.Status),
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert signup: %w", classify(err))
	}
	return nil
}

func (t *pgTx) GetSignup(ctx context.Context, eventID, signupID string) (*model.Signup, error) {
	s, err := scanSignup(t.tx.QueryRow(ctx,
		`SELECT `+signupColumns+` FROM signup_requests WHERE id = $1 AND event_id = $2`,
		signupID, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("read signup: %w", classify(err))
	}
	return s, nil
}

func (t *pgTx) UpdateSignup(ctx context.Context, s *model.Signup) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE signup_requests SET status = $3, decided_at = $4
		 WHERE id = $1 AND event_id = $2`,
		s.ID, s.EventID, string(s.Status), s.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("update signup: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO outbox (aggregate_id, event_type, payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		msg.AggregateID, string(msg.EventType), msg.Payload,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", classify(err))
	}
	return nil
}

// classify maps driver errors onto ErrTxConflict and model.ErrUnavailable so
// callers never need to know about SQLSTATEs.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ErrTxConflict, pgErr.Message)
		case "57P01", "57P02", "57P03", "53300": // shutdown, crash, cannot connect now, too many connections
			return fmt.Errorf("%w: %s", model.ErrUnavailable, pgErr.Message)
		}
		return err
	}
	if isConnectivity(err) {
		return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
	}
	return err
}

// unavailable is used where any failure means we never reached the database.
func unavailable(err error) error {
	if c := classify(err); c != err {
		return c
	}
	return fmt.Errorf("%w: %v", model.ErrUnavailable, err)
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// compile-time check
var _ Store = (*PostgresStore)(nil)

