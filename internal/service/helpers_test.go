package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	repo     *store.Memory
	settings *Settings
	clock    *fakeClock
}

// newEnv seeds the default settings on an empty store. The clock starts on
// the default payout day.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := store.NewMemory()
	settings := NewSettings(repo)
	require.NoError(t, settings.Seed(context.Background()))
	return &testEnv{
		repo:     repo,
		settings: settings,
		clock:    &fakeClock{t: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)},
	}
}

func (e *testEnv) set(t *testing.T, key, value string) {
	t.Helper()
	require.NoError(t, e.settings.Set(context.Background(), key, value))
}

func (e *testEnv) addUser(t *testing.T, id, balance int64) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:           id,
		FirstName:    fmt.Sprintf("user%d", id),
		CreatedAt:    e.clock.Now(),
		FxBalance:    balance,
		ReferralCode: fmt.Sprintf("CODE%04d", id),
	}
	require.NoError(t, e.repo.CreateUser(context.Background(), u))
	return e.user(t, id)
}

func (e *testEnv) user(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := e.repo.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (e *testEnv) ledger() *Ledger {
	return NewLedger(e.repo, e.clock.Now)
}

// failingRecords refuses to store requests, so every commit has to
// compensate its debit.
type failingRecords struct {
	store.Repository
}

var errRecordDown = errors.New("request table unavailable")

func (f failingRecords) CreateWithdrawRequest(context.Context, *domain.WithdrawRequest) error {
	return errRecordDown
}

func (f failingRecords) CreateUcRequest(context.Context, *domain.UcRequest) error {
	return errRecordDown
}

func (f failingRecords) WithinTx(ctx context.Context, fn func(store.Repository) error) error {
	return f.Repository.WithinTx(ctx, func(tx store.Repository) error {
		return fn(failingRecords{tx})
	})
}

type recordingNotifier struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[int64]bool
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[userID] {
		return errors.New("bot was blocked by the user")
	}
	n.sent = append(n.sent, Message{UserID: userID, Text: text})
	return nil
}
