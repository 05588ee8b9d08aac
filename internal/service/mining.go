package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

// Source is where a mine request came from. Each source has its own
// cooldown and reward settings.
type Source string

const (
	SourceBot Source = "bot"
	SourceWeb Source = "web"
)

const maxMineAttempts = 3

// MineResult is returned for both outcomes. When Ready is false nothing was
// written and RemainingSeconds tells the caller how long to wait.
type MineResult struct {
	Ready            bool
	Amount           int64
	Balance          int64
	CooldownSeconds  int64
	RemainingSeconds int64
	Premium          bool
	LastMineAt       *time.Time
}

type Miner struct {
	repo     store.Repository
	settings *Settings
	now      func() time.Time
}

func NewMiner(repo store.Repository, settings *Settings, now func() time.Time) *Miner {
	if now == nil {
		now = time.Now
	}
	return &Miner{repo: repo, settings: settings, now: now}
}

// elapsedSeconds floors to whole seconds and never goes negative. A user
// who never mined is measured from the Unix epoch.
func elapsedSeconds(last *time.Time, now time.Time) int64 {
	var anchor time.Time
	if last != nil {
		anchor = *last
	} else {
		anchor = time.Unix(0, 0)
	}
	d := int64(now.Sub(anchor) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// Status evaluates the cooldown without mutating anything.
func (m *Miner) Status(ctx context.Context, u *domain.User, src Source) (*MineResult, error) {
	cooldown, err := m.settings.MineCooldown(ctx, src)
	if err != nil {
		return nil, err
	}
	now := m.now()
	remaining := cooldown - elapsedSeconds(u.LastMineAt, now)
	if remaining < 0 {
		remaining = 0
	}
	return &MineResult{
		Ready:            remaining == 0,
		Balance:          u.FxBalance,
		CooldownSeconds:  cooldown,
		RemainingSeconds: remaining,
		Premium:          u.IsPremium(now),
		LastMineAt:       u.LastMineAt,
	}, nil
}

func (m *Miner) Mine(ctx context.Context, userID int64, src Source) (*MineResult, error) {
	for attempt := 0; attempt < maxMineAttempts; attempt++ {
		u, err := m.repo.GetUser(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}

		cooldown, err := m.settings.MineCooldown(ctx, src)
		if err != nil {
			return nil, err
		}
		now := m.now()
		premium := u.IsPremium(now)
		elapsed := elapsedSeconds(u.LastMineAt, now)

		if elapsed < cooldown {
			mineTotal.WithLabelValues(string(src), "cooldown").Inc()
			return &MineResult{
				Balance:          u.FxBalance,
				CooldownSeconds:  cooldown,
				RemainingSeconds: cooldown - elapsed,
				Premium:          premium,
				LastMineAt:       u.LastMineAt,
			}, nil
		}

		amount, err := m.settings.MineAmount(ctx, src, premium)
		if err != nil {
			return nil, err
		}

		balance, applied, err := m.repo.ApplyMine(ctx, u.ID, amount, now, u.LastMineAt)
		if err != nil {
			return nil, err
		}
		if applied {
			mineTotal.WithLabelValues(string(src), "mined").Inc()
			return &MineResult{
				Ready:           true,
				Amount:          amount,
				Balance:         balance,
				CooldownSeconds: cooldown,
				Premium:         premium,
				LastMineAt:      &now,
			}, nil
		}
		// Another mine for this user landed between the read and the write.
		slog.Debug("mine lost race, retrying", "user_id", userID, "attempt", attempt+1)
	}

	u, err := m.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	res, err := m.Status(ctx, u, src)
	if err != nil {
		return nil, err
	}
	res.Ready = false
	mineTotal.WithLabelValues(string(src), "contended").Inc()
	return res, nil
}
