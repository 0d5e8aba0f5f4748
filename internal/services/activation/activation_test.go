// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package activation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/oliverandrich/lutefisk/internal/accounts"
	"codeberg.org/oliverandrich/lutefisk/internal/events"
	"codeberg.org/oliverandrich/lutefisk/internal/notify"
	"codeberg.org/oliverandrich/lutefisk/internal/repository"
	"codeberg.org/oliverandrich/lutefisk/internal/services/activation"
	"codeberg.org/oliverandrich/lutefisk/internal/services/credential"
	"codeberg.org/oliverandrich/lutefisk/internal/testutil"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "violet-harbour-lamp"

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *activation.Service
	repo   *repository.Repository
	rec    *testutil.Recorder
	clock  *clockwork.FakeClock
	events *[]events.Event
}

func newFixture(t *testing.T, policy accounts.Policy) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	rec := &testutil.Recorder{}
	clock := clockwork.NewFakeClockAt(start)
	bus := events.NewBus()

	var mu sync.Mutex
	var seen []events.Event
	record := func(_ context.Context, ev events.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
	}
	bus.Subscribe(events.SignupComplete, record)
	bus.Subscribe(events.ActivationComplete, record)

	creds := credential.NewService(repo, nil, bcrypt.MinCost)
	svc := activation.NewService(repo, creds, rec, bus, policy, clock)
	return &fixture{svc: svc, repo: repo, rec: rec, clock: clock, events: &seen}
}

func (f *fixture) signup(t *testing.T, email string) (handle, token string) {
	t.Helper()
	identity, err := f.svc.Signup(context.Background(), email, password)
	require.NoError(t, err)
	sent := f.rec.ByTemplate(notify.TemplateActivation)
	require.NotEmpty(t, sent)
	return identity.Handle, sent[len(sent)-1].Data["Token"].(string)
}

func TestSignup(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())

	identity, err := f.svc.Signup(context.Background(), "  new@example.com ", password)

	require.NoError(t, err)
	assert.Len(t, identity.Handle, activation.HandleLength)
	assert.False(t, identity.IsActive)
	assert.Equal(t, "new@example.com", identity.Email)
	assert.Equal(t, start, identity.JoinedAt)

	account := testutil.GetAccount(t, f.repo, identity.Handle)
	assert.False(t, account.IsActive)
	assert.Regexp(t, `^[a-f0-9]{40}$`, account.ActivationToken)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)))

	sent := f.rec.ByTemplate(notify.TemplateActivation)
	require.Len(t, sent, 1)
	assert.Equal(t, "new@example.com", sent[0].Recipient)
	assert.Equal(t, identity.Handle, sent[0].Data["Handle"])
	assert.Equal(t, account.ActivationToken, sent[0].Data["Token"])
	assert.Equal(t, 7, sent[0].Data["ActivationDays"])

	require.Len(t, *f.events, 1)
	assert.Equal(t, events.SignupComplete, (*f.events)[0].Kind)
	assert.Equal(t, identity.ID, (*f.events)[0].Identity.ID)
}

func TestSignup_EmailInUse(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	f.signup(t, "taken@example.com")

	_, err := f.svc.Signup(context.Background(), "TAKEN@example.com", password)

	assert.ErrorIs(t, err, accounts.ErrInUse)
}

func TestSignup_ActivationNotRequired(t *testing.T) {
	policy := accounts.DefaultPolicy()
	policy.ActivationRequired = false
	f := newFixture(t, policy)

	identity, err := f.svc.Signup(context.Background(), "new@example.com", password)

	require.NoError(t, err)
	assert.True(t, identity.IsActive)
	account := testutil.GetAccount(t, f.repo, identity.Handle)
	assert.True(t, account.IsActive)
	assert.Equal(t, policy.ActivatedSentinel, account.ActivationToken)
	assert.Empty(t, f.rec.Sent())
}

func TestSignup_RetriesHandleCollision(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	testutil.NewTestAccount(t, f.repo, testutil.AccountOpts{Handle: "aaaaa", Email: "first@example.com", Active: true})
	handles := []string{"aaaaa", "AAAAA", "bbbbb"}
	f.svc.SetHandleGenerator(func() (string, error) {
		h := handles[0]
		handles = handles[1:]
		return h, nil
	})

	identity, err := f.svc.Signup(context.Background(), "second@example.com", password)

	require.NoError(t, err)
	assert.Equal(t, "bbbbb", identity.Handle)
}

func TestSignup_NoFreeHandle(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	testutil.NewTestAccount(t, f.repo, testutil.AccountOpts{Handle: "aaaaa", Email: "first@example.com", Active: true})
	f.svc.SetHandleGenerator(func() (string, error) { return "aaaaa", nil })

	_, err := f.svc.Signup(context.Background(), "second@example.com", password)

	require.ErrorIs(t, err, activation.ErrNoFreeHandle)
	assert.Empty(t, f.rec.Sent())
}

func TestSignup_NotifierFailureKeepsAccount(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	f.rec.Err = testutil.ErrDeliveryFailed

	identity, err := f.svc.Signup(context.Background(), "new@example.com", password)

	require.NoError(t, err)
	testutil.GetAccount(t, f.repo, identity.Handle)
}

func TestActivate(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")

	identity, err := f.svc.Activate(context.Background(), handle, token)

	require.NoError(t, err)
	assert.True(t, identity.IsActive)
	account := testutil.GetAccount(t, f.repo, handle)
	assert.True(t, account.IsActive)
	assert.Equal(t, accounts.DefaultActivatedSentinel, account.ActivationToken)

	require.Len(t, *f.events, 2)
	assert.Equal(t, events.ActivationComplete, (*f.events)[1].Kind)
}

func TestActivate_TokenUsedOnce(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")
	_, err := f.svc.Activate(context.Background(), handle, token)
	require.NoError(t, err)

	_, err = f.svc.Activate(context.Background(), handle, token)

	assert.ErrorIs(t, err, accounts.ErrNotFound)
	assert.Len(t, *f.events, 2)
}

func TestActivate_Rejects(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")

	tests := []struct {
		name   string
		handle string
		token  string
	}{
		{"malformed", handle, "not-a-token"},
		{"uppercase", handle, "ABCDEF0123456789ABCDEF0123456789ABCDEF01"},
		{"sentinel", handle, accounts.DefaultActivatedSentinel},
		{"unknown token", handle, "0000000000000000000000000000000000000000"},
		{"other handle", "zzzzz", token},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Activate(context.Background(), tt.handle, tt.token)
			assert.ErrorIs(t, err, accounts.ErrNotFound)
		})
	}
	assert.False(t, testutil.GetAccount(t, f.repo, handle).IsActive)
}

func TestActivate_Window(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")

	f.clock.Advance(accounts.DefaultActivationWindow - time.Second)
	_, err := f.svc.Activate(context.Background(), handle, token)

	assert.NoError(t, err)
}

func TestActivate_Expired(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")

	f.clock.Advance(accounts.DefaultActivationWindow)
	_, err := f.svc.Activate(context.Background(), handle, token)

	require.ErrorIs(t, err, accounts.ErrExpired)
	account := testutil.GetAccount(t, f.repo, handle)
	assert.False(t, account.IsActive)
	assert.Equal(t, token, account.ActivationToken)
}

func TestActivate_Concurrent(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Activate(context.Background(), handle, token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, accounts.ErrNotFound)
	}
	assert.Equal(t, 1, wins)
}

func TestActivate_NotifierFailureKeepsActivation(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")
	f.rec.Err = testutil.ErrDeliveryFailed

	_, err := f.svc.Activate(context.Background(), handle, token)

	require.NoError(t, err)
	assert.True(t, testutil.GetAccount(t, f.repo, handle).IsActive)
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	handle, token := f.signup(t, "new@example.com")
	ctx := context.Background()

	f.clock.Advance(24 * time.Hour)
	sent, err := f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "not due before window minus reminder distance")

	f.clock.Advance(24 * time.Hour)
	sent, err = f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	reminders := f.rec.ByTemplate(notify.TemplateActivationReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, "new@example.com", reminders[0].Recipient)
	assert.Equal(t, handle, reminders[0].Data["Handle"])
	assert.Equal(t, token, reminders[0].Data["Token"])
	assert.Equal(t, 5, reminders[0].Data["DaysLeft"])
	assert.True(t, testutil.GetAccount(t, f.repo, handle).ActivationNotified)

	f.clock.Advance(24 * time.Hour)
	sent, err = f.svc.SendReminders(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent, "one reminder per account")
}

func TestSendReminders_SkipsExpiredStaffAndActive(t *testing.T) {
	f := newFixture(t, accounts.DefaultPolicy())
	old := start.Add(-accounts.DefaultActivationWindow)
	testutil.NewTestAccount(t, f.repo, testutil.AccountOpts{Handle: "aaaaa", Email: "a@example.com", Token: "0123456789abcdef0123456789abcdef01234567", JoinedAt: old})
	testutil.NewTestAccount(t, f.repo, testutil.AccountOpts{Handle: "bbbbb", Email: "b@example.com", Token: "0123456789abcdef0123456789abcdef01234567", Staff: true, JoinedAt: start.Add(-3 * 24 * time.Hour)})
	testutil.NewTestAccount(t, f.repo, testutil.AccountOpts{Handle: "ccccc", Email: "c@example.com", Active: true, JoinedAt: start.Add(-3 * 24 * time.Hour)})

	sent, err := f.svc.SendReminders(context.Background())

	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSendReminders_Disabled(t *testing.T) {
	policy := accounts.DefaultPolicy()
	policy.ReminderBefore = 0
	f := newFixture(t, policy)
	f.signup(t, "new@example.com")
	f.clock.Advance(6 * 24 * time.Hour)

	sent, err := f.svc.SendReminders(context.Background())

	require.NoError(t, err)
	assert.Zero(t, sent)
}
