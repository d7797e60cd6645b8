package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/sauna-signup/internal/model"
	"github.com/Shivanand-hulikatti/sauna-signup/internal/repository"
)

type adminFixture struct {
	store   *repository.MemoryStore
	signups *SignupService
	admin   *AdminService
}

func newAdminFixture(t *testing.T, capacity int) adminFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	newEvent(t, store, "E1", true, capacity, 0)
	return adminFixture{
		store:   store,
		signups: NewSignupService(store, testPolicy(), time.Second, nil),
		admin:   NewAdminService(store, testPolicy(), nil),
	}
}

func (f adminFixture) submit(t *testing.T, name string) string {
	t.Helper()
	res, err := f.signups.SubmitSignup(context.Background(), "E1", name, name+"@x.dk")
	require.NoError(t, err)
	return res.SignupID
}

func (f adminFixture) count(t *testing.T) int {
	t.Helper()
	e, err := f.store.GetEvent(context.Background(), "E1")
	require.NoError(t, err)
	return e.ApprovedCount
}

func TestApprove_KeepsCounter(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t, 2)
	id := f.submit(t, "alice")
	require.Equal(t, 1, f.count(t))

	signup, err := f.admin.Approve(ctx, "E1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, signup.Status)
	require.NotNil(t, signup.DecidedAt)
	assert.Equal(t, 1, f.count(t))

	msgs, _ := f.store.PendingOutbox(ctx, 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.OutboxSignupApproved, msgs[1].EventType)

	var n model.SignupNotification
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &n))
	assert.Equal(t, id, n.SignupID)
	assert.Equal(t, model.StatusApproved, n.Status)
	assert.Equal(t, "alice@x.dk", n.Contact)
}

func TestReject_ReleasesPlace(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t, 1)
	id := f.submit(t, "alice")

	_, err := f.signups.SubmitSignup(ctx, "E1", "bob", "bob@x.dk")
	require.ErrorIs(t, err, model.ErrEventFull)

	signup, err := f.admin.Reject(ctx, "E1", id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, signup.Status)
	assert.Equal(t, 0, f.count(t))

	f.submit(t, "bob")
	assert.Equal(t, 1, f.count(t))
}

func TestDecide_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t, 3)
	approved := f.submit(t, "alice")
	rejected := f.submit(t, "bob")

	_, err := f.admin.Approve(ctx, "E1", approved)
	require.NoError(t, err)
	_, err = f.admin.Reject(ctx, "E1", rejected)
	require.NoError(t, err)
	countBefore := f.count(t)

	_, err = f.admin.Reject(ctx, "E1", approved)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = f.admin.Approve(ctx, "E1", approved)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	_, err = f.admin.Reject(ctx, "E1", rejected)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	assert.Equal(t, countBefore, f.count(t))
}

func TestDecide_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t, 3)
	id := f.submit(t, "alice")

	_, err := f.admin.Approve(ctx, "E1", "no-such-signup")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.admin.Approve(ctx, "other-event", id)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListSignups(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t, 5)
	first := f.submit(t, "alice")
	second := f.submit(t, "bob")
	// duplicates are allowed and stored separately
	third := f.submit(t, "alice")

	signups, err := f.admin.ListSignups(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, signups, 3)
	assert.Equal(t, first, signups[0].ID)
	assert.Equal(t, second, signups[1].ID)
	assert.Equal(t, third, signups[2].ID)

	_, err = f.admin.ListSignups(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestCounterMatchesHeldSignups(t *testing.T) {
	ctx := context.Background()
	f := newAdminFixture(t, 4)
	a := f.submit(t, "a")
	b := f.submit(t, "b")
	f.submit(t, "c")

	_, err := f.admin.Approve(ctx, "E1", a)
	require.NoError(t, err)
	_, err = f.admin.Reject(ctx, "E1", b)
	require.NoError(t, err)

	signups, err := f.admin.ListSignups(ctx, "E1")
	require.NoError(t, err)
	held := 0
	for _, s := range signups {
		if s.Status.Holds() {
			held++
		}
	}
	assert.Equal(t, held, f.count(t))
}
