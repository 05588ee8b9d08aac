package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

func TestMineThenCooldown(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 0)
	m := NewMiner(e.repo, e.settings, e.clock.Now)

	res, err := m.Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.True(t, res.Ready)
	require.Equal(t, int64(1), res.Amount)
	require.Equal(t, int64(1), res.Balance)
	require.Equal(t, int64(60), res.CooldownSeconds)

	res, err = m.Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.False(t, res.Ready)
	require.Equal(t, int64(60), res.RemainingSeconds)
	require.Equal(t, int64(1), res.Balance)

	e.clock.Advance(59*time.Second + 500*time.Millisecond)
	res, err = m.Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.False(t, res.Ready)
	require.Equal(t, int64(1), res.RemainingSeconds)

	u := e.user(t, 1)
	require.Equal(t, int64(1), u.FxBalance)
	require.Equal(t, int64(1), u.TotalMined)

	e.clock.Advance(500 * time.Millisecond)
	res, err = m.Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.True(t, res.Ready)
	require.Equal(t, int64(2), res.Balance)
	require.True(t, e.user(t, 1).LastMineAt.Equal(e.clock.Now()))
}

func TestMineNegativeAmountNeverDebits(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.set(t, KeyMineAmount, "-5")
	e.set(t, KeyWebMineAmount, "-5")
	e.addUser(t, 1, 0)
	m := NewMiner(e.repo, e.settings, e.clock.Now)

	res, err := m.Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.True(t, res.Ready)
	require.Equal(t, int64(1), res.Amount)
	require.Equal(t, int64(1), res.Balance)

	res, err = m.Mine(ctx, 1, SourceWeb)
	require.NoError(t, err)
	require.True(t, res.Ready)
	require.Equal(t, int64(0), res.Amount)

	u := e.user(t, 1)
	require.Equal(t, int64(1), u.FxBalance)
	require.Equal(t, int64(1), u.TotalMined)
}

func TestApplyMineRefusesNegativeBalance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 3)

	_, applied, err := e.repo.ApplyMine(ctx, 1, -5, e.clock.Now(), nil)
	require.NoError(t, err)
	require.False(t, applied)
	u := e.user(t, 1)
	require.Equal(t, int64(3), u.FxBalance)
	require.Nil(t, u.LastMineAt)
}

func TestMineRewardTiers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.set(t, KeyWebMineAmount, "5")
	m := NewMiner(e.repo, e.settings, e.clock.Now)

	e.addUser(t, 1, 0)
	e.addUser(t, 2, 0)
	require.NoError(t, e.repo.SetPremiumUntil(ctx, 2, e.clock.Now().Add(time.Hour)))

	res, err := m.Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Amount)
	require.False(t, res.Premium)

	res, err = m.Mine(ctx, 2, SourceBot)
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Amount)
	require.True(t, res.Premium)

	// The web source ignores premium and is not gated by the bot cooldown.
	res, err = m.Mine(ctx, 2, SourceWeb)
	require.NoError(t, err)
	require.True(t, res.Ready)
	require.Equal(t, int64(5), res.Amount)
	require.Equal(t, int64(7), res.Balance)
	require.Equal(t, int64(0), res.CooldownSeconds)
}

func TestMinePremiumExpiresAtBoundary(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 0)
	require.NoError(t, e.repo.SetPremiumUntil(ctx, 1, e.clock.Now()))

	res, err := NewMiner(e.repo, e.settings, e.clock.Now).Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.False(t, res.Premium)
	require.Equal(t, int64(1), res.Amount)
}

func TestMineUnknownUser(t *testing.T) {
	e := newEnv(t)
	_, err := NewMiner(e.repo, e.settings, e.clock.Now).Mine(context.Background(), 404, SourceBot)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestMineStatusIsReadOnly(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.set(t, KeyWebMineCooldownSeconds, "30")
	e.addUser(t, 1, 10)
	m := NewMiner(e.repo, e.settings, e.clock.Now)

	_, err := m.Mine(ctx, 1, SourceWeb)
	require.NoError(t, err)
	e.clock.Advance(10 * time.Second)

	res, err := m.Status(ctx, e.user(t, 1), SourceWeb)
	require.NoError(t, err)
	require.False(t, res.Ready)
	require.Equal(t, int64(20), res.RemainingSeconds)
	require.Equal(t, int64(11), e.user(t, 1).FxBalance)

	e.clock.Advance(time.Minute)
	res, err = m.Status(ctx, e.user(t, 1), SourceWeb)
	require.NoError(t, err)
	require.True(t, res.Ready)
	require.Equal(t, int64(0), res.RemainingSeconds)
}

// staleMines always loses the conditional update.
type staleMines struct {
	store.Repository
}

func (staleMines) ApplyMine(context.Context, int64, int64, time.Time, *time.Time) (int64, bool, error) {
	return 0, false, nil
}

func TestMineContendedReportsNotReady(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 3)

	res, err := NewMiner(staleMines{e.repo}, e.settings, e.clock.Now).Mine(ctx, 1, SourceBot)
	require.NoError(t, err)
	require.False(t, res.Ready)
	require.Equal(t, int64(3), res.Balance)
	require.Equal(t, int64(3), e.user(t, 1).FxBalance)
}
