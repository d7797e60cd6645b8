package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
)

// MemoryStore is an in-process Store with optimistic transactions.
//
// A transaction remembers the version of every record it reads and buffers its
// writes. Commit takes the store lock, checks that none of those versions have
// moved, and applies the writes all at once. If anything moved the commit is
// refused with ErrTxConflict.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time

	events   map[string]model.Event
	signups  map[string]memSignup
	seq      int64
	outbox   []model.OutboxMessage
	outboxID int64
}

type memSignup struct {
	signup  model.Signup
	version int64
	seq     int64
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for server-assigned timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		now:     func() time.Time { return time.Now().UTC() },
		events:  make(map[string]model.Event),
		signups: make(map[string]memSignup),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// version used for records that did not exist when read
const absent int64 = -1

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w: %v", model.ErrUnavailable, err)
	}
	tx := &memTx{
		s:            s,
		eventReads:   make(map[string]int64),
		signupReads:  make(map[string]int64),
		eventWrites:  make(map[string]model.Event),
		signupWrites: make(map[string]model.Signup),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w: %v", model.ErrUnavailable, err)
	}
	return tx.commit()
}

func (s *MemoryStore) CreateEvent(_ context.Context, e *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("insert event: duplicate id %s", e.ID)
	}
	e.Version = 1
	e.CreatedAt = s.now()
	s.events[e.ID] = copyEvent(*e)
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := copyEvent(e)
	return &out, nil
}

func (s *MemoryStore) ListEvents(_ context.Context) ([]model.Event, error) {
	s.mu.Lock()
	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, copyEvent(e))
	}
	s.mu.Unlock()

	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.After(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (s *MemoryStore) ListSignups(_ context.Context, eventID string) ([]model.Signup, error) {
	s.mu.Lock()
	var rows []memSignup
	for _, ms := range s.signups {
		if ms.signup.EventID == eventID {
			rows = append(rows, ms)
		}
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	signups := make([]model.Signup, len(rows))
	for i, r := range rows {
		signups[i] = r.signup
	}
	return signups, nil
}

func (s *MemoryStore) PendingOutbox(_ context.Context, limit int) ([]model.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var msgs []model.OutboxMessage
	for _, m := range s.outbox {
		if m.PublishedAt != nil {
			continue
		}
		msgs = append(msgs, m)
		if len(msgs) == limit {
			break
		}
	}
	return msgs, nil
}

func (s *MemoryStore) MarkOutboxPublished(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id && s.outbox[i].PublishedAt == nil {
			now := s.now()
			s.outbox[i].PublishedAt = &now
			return nil
		}
	}
	return model.ErrNotFound
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

type memTx struct {
	s *MemoryStore

	eventReads  map[string]int64
	signupReads map[string]int64

	eventWrites  map[string]model.Event
	signupWrites map[string]model.Signup
	newSignups   []model.Signup
	outbox       []model.OutboxMessage
}

func (t *memTx) GetEvent(_ context.Context, id string) (*model.Event, error) {
	if e, ok := t.eventWrites[id]; ok {
		out := copyEvent(e)
		return &out, nil
	}
	t.s.mu.Lock()
	e, ok := t.s.events[id]
	t.s.mu.Unlock()
	if !ok {
		t.eventReads[id] = absent
		return nil, model.ErrNotFound
	}
	if _, seen := t.eventReads[id]; !seen {
		t.eventReads[id] = e.Version
	}
	out := copyEvent(e)
	return &out, nil
}

func (t *memTx) UpdateEvent(_ context.Context, e *model.Event) error {
	if w, ok := t.eventWrites[e.ID]; ok {
		if w.Version != e.Version {
			return fmt.Errorf("update event %s at version %d: %w", e.ID, e.Version, ErrTxConflict)
		}
	} else {
		read, ok := t.eventReads[e.ID]
		if !ok || read == absent || read != e.Version {
			return fmt.Errorf("update event %s at version %d: %w", e.ID, e.Version, ErrTxConflict)
		}
	}
	e.Version++
	t.eventWrites[e.ID] = copyEvent(*e)
	return nil
}

func (t *memTx) CreateEvent(_ context.Context, e *model.Event) error {
	_, written := t.eventWrites[e.ID]
	t.s.mu.Lock()
	_, exists := t.s.events[e.ID]
	t.s.mu.Unlock()
	if written || exists {
		return fmt.Errorf("insert event: duplicate id %s: %w", e.ID, ErrTxConflict)
	}
	t.eventReads[e.ID] = absent
	e.Version = 1
	e.CreatedAt = t.s.now()
	t.eventWrites[e.ID] = copyEvent(*e)
	return nil
}

func (t *memTx) CreateSignup(_ context.Context, sg *model.Signup) error {
	for _, n := range t.newSignups {
		if n.ID == sg.ID {
			return fmt.Errorf("insert signup: duplicate id %s", sg.ID)
		}
	}
	if _, ok := t.signupReads[sg.ID]; !ok {
		t.signupReads[sg.ID] = absent
	}
	sg.CreatedAt = t.s.now()
	t.newSignups = append(t.newSignups, *sg)
	return nil
}

func (t *memTx) GetSignup(_ context.Context, eventID, signupID string) (*model.Signup, error) {
	if sg, ok := t.signupWrites[signupID]; ok && sg.EventID == eventID {
		out := sg
		return &out, nil
	}
	t.s.mu.Lock()
	ms, ok := t.s.signups[signupID]
	t.s.mu.Unlock()
	if !ok || ms.signup.EventID != eventID {
		if !ok {
			t.signupReads[signupID] = absent
		}
		return nil, model.ErrNotFound
	}
	if _, seen := t.signupReads[signupID]; !seen {
		t.signupReads[signupID] = ms.version
	}
	out := ms.signup
	return &out, nil
}

func (t *memTx) UpdateSignup(_ context.Context, sg *model.Signup) error {
	read, ok := t.signupReads[sg.ID]
	if !ok || read == absent {
		return model.ErrNotFound
	}
	t.signupWrites[sg.ID] = *sg
	return nil
}

func (t *memTx) CreateOutboxMessage(_ context.Context, msg *model.OutboxMessage) error {
	msg.CreatedAt = t.s.now()
	t.outbox = append(t.outbox, *msg)
	return nil
}

func (t *memTx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, read := range t.eventReads {
		current := absent
		if e, ok := s.events[id]; ok {
			current = e.Version
		}
		if current != read {
			return fmt.Errorf("commit transaction: event %s changed: %w", id, ErrTxConflict)
		}
	}
	for id, read := range t.signupReads {
		current := absent
		if ms, ok := s.signups[id]; ok {
			current = ms.version
		}
		if current != read {
			return fmt.Errorf("commit transaction: signup %s changed: %w", id, ErrTxConflict)
		}
	}

	for id, e := range t.eventWrites {
		s.events[id] = e
	}
	for _, sg := range t.newSignups {
		s.seq++
		s.signups[sg.ID] = memSignup{signup: sg, version: 1, seq: s.seq}
	}
	for id, sg := range t.signupWrites {
		ms := s.signups[id]
		ms.signup = sg
		ms.version++
		s.signups[id] = ms
	}
	for _, m := range t.outbox {
		s.outboxID++
		m.ID = s.outboxID
		s.outbox = append(s.outbox, m)
	}
	return nil
}

func copyEvent(e model.Event) model.Event {
	if e.StartAt != nil {
		t := *e.StartAt
		e.StartAt = &t
	}
	return e
}

var _ Store = (*MemoryStore)(nil)
