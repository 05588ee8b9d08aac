package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const DropTopN = 10

type DropOutcome int

const (
	DropCompleted DropOutcome = iota
	DropAlreadyRun
	DropNoUsers
)

func (o DropOutcome) String() string {
	switch o {
	case DropCompleted:
		return "completed"
	case DropAlreadyRun:
		return "already_run"
	case DropNoUsers:
		return "no_users"
	}
	return "unknown"
}

type DropReward struct {
	UserID       int64
	Rank         int
	BonusFx      int64
	Balance      int64
	PremiumUntil *time.Time
}

type DropReport struct {
	Outcome     DropOutcome
	Month       int
	Year        int
	BonusFx     int64
	PremiumDays int64
	Rewards     []DropReward
	Deliveries  BatchReport
	Record      *domain.DropRecord
}

// DropMessage renders the congratulation for one reward.
type DropMessage func(DropReward) string

// Dropper rewards the top balance holders once per calendar month.
type Dropper struct {
	// mu serializes runs so overlapping triggers see each other's record.
	mu       sync.Mutex
	repo     store.Repository
	settings *Settings
	notifier Notifier
	message  DropMessage
	now      func() time.Time
}

func NewDropper(repo store.Repository, settings *Settings, notifier Notifier, message DropMessage, now func() time.Time) *Dropper {
	if now == nil {
		now = time.Now
	}
	return &Dropper{repo: repo, settings: settings, notifier: notifier, message: message, now: now}
}

func (d *Dropper) Run(ctx context.Context, force bool) (*DropReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	report := &DropReport{Month: int(now.Month()), Year: now.Year()}

	// 1. Idempotency witness
	_, err := d.repo.GetDropRecord(ctx, report.Month, report.Year)
	switch {
	case err == nil && !force:
		report.Outcome = DropAlreadyRun
		dropRunsTotal.WithLabelValues(report.Outcome.String()).Inc()
		return report, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load drop record: %w", err)
	}

	// 2. Selection
	top, err := d.repo.TopUsers(ctx, DropTopN)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	if len(top) == 0 {
		report.Outcome = DropNoUsers
		dropRunsTotal.WithLabelValues(report.Outcome.String()).Inc()
		return report, nil
	}

	if report.BonusFx, err = d.settings.DropBonusFx(ctx); err != nil {
		return nil, err
	}
	if report.PremiumDays, err = d.settings.DropPremiumDays(ctx); err != nil {
		return nil, err
	}

	// 3. Rewards, one unit of work per user against a freshly locked row.
	for i, candidate := range top {
		reward := DropReward{UserID: candidate.ID, Rank: i + 1, BonusFx: report.BonusFx}
		err := d.repo.WithinTx(ctx, func(tx store.Repository) error {
			u, err := tx.GetUserForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if reward.Balance, err = tx.AdjustBalance(ctx, u.ID, report.BonusFx); err != nil {
				return err
			}
			reward.PremiumUntil = u.PremiumUntil
			if report.PremiumDays > 0 {
				until := ExtendPremium(u.PremiumUntil, now, report.PremiumDays)
				if err := tx.SetPremiumUntil(ctx, u.ID, until); err != nil {
					return err
				}
				reward.PremiumUntil = &until
			}
			return nil
		})
		if err != nil {
			// No record is written so a forced re-run can finish the job.
			dropRunsTotal.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("reward user %d: %w", candidate.ID, err)
		}
		report.Rewards = append(report.Rewards, reward)
	}

	// 4. Best-effort notification
	if d.notifier != nil && d.message != nil {
		msgs := make([]Message, len(report.Rewards))
		for i, r := range report.Rewards {
			msgs[i] = Message{UserID: r.UserID, Text: d.message(r)}
		}
		report.Deliveries = SendBatch(ctx, d.notifier, msgs)
	}

	// 5. Witness
	record := &domain.DropRecord{
		Month:       report.Month,
		Year:        report.Year,
		ProcessedAt: d.now(),
		Notes:       fmt.Sprintf("drop_bonus_fx=%d, drop_premium_days=%d", report.BonusFx, report.PremiumDays),
	}
	if err := d.repo.SaveDropRecord(ctx, record); err != nil {
		dropRunsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("save drop record: %w", err)
	}
	report.Record = record
	report.Outcome = DropCompleted
	dropRunsTotal.WithLabelValues(report.Outcome.String()).Inc()

	slog.Info("drop completed",
		"month", report.Month, "year", report.Year,
		"rewarded", len(report.Rewards), "notified", report.Deliveries.Sent, "notify_failed", report.Deliveries.Failed,
		"forced", force,
	)
	return report, nil
}
