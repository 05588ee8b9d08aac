package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/service"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

var now = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestSweepStates(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	for id, age := range map[int64]time.Duration{1: 2 * time.Hour, 2: 10 * time.Minute} {
		require.NoError(t, repo.SetState(ctx, domain.ConversationState{
			UserID:    id,
			Name:      domain.StateMovieCode,
			Data:      []byte("{}"),
			UpdatedAt: now.Add(-age),
		}))
	}

	s, err := New(repo, nil, Options{StateTTL: time.Hour, Now: clock})
	require.NoError(t, err)
	require.Equal(t, 1, s.Entries())

	n, err := s.SweepStates(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = repo.GetState(ctx, 1)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.GetState(ctx, 2)
	require.NoError(t, err)
}

func TestScheduledDropIsNotForced(t *testing.T) {
	ctx := context.Background()
	repo := store.NewMemory()
	settings := service.NewSettings(repo)
	require.NoError(t, settings.Seed(ctx))
	require.NoError(t, repo.CreateUser(ctx, &domain.User{ID: 1, ReferralCode: "AAAA0001", CreatedAt: now}))

	dropper := service.NewDropper(repo, settings, nil, nil, clock)
	s, err := New(repo, dropper, Options{DropSchedule: "0 12 1 * *", Now: clock})
	require.NoError(t, err)
	require.Equal(t, 1, s.Entries())

	report, err := s.RunDrop(ctx)
	require.NoError(t, err)
	require.Equal(t, service.DropCompleted, report.Outcome)

	report, err = s.RunDrop(ctx)
	require.NoError(t, err)
	require.Equal(t, service.DropAlreadyRun, report.Outcome)
}

func TestInvalidDropSchedule(t *testing.T) {
	_, err := New(store.NewMemory(), nil, Options{DropSchedule: "every tuesday"})
	require.Error(t, err)
}

func TestSweepInterval(t *testing.T) {
	require.Equal(t, time.Minute, sweepInterval(30*time.Second))
	require.Equal(t, 15*time.Minute, sweepInterval(30*time.Minute))
	require.Equal(t, time.Hour, sweepInterval(24*time.Hour))
}
