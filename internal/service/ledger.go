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

// Ledger moves balance into withdrawal and UC requests and back out again
// on denial.
type Ledger struct {
	repo store.Repository
	now  func() time.Time
}

func NewLedger(repo store.Repository, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{repo: repo, now: now}
}

// commit debits amount, runs record and credits the exact amount back if
// record fails. All three steps share one unit of work.
func (l *Ledger) commit(ctx context.Context, kind string, userID, amount int64, record func(tx store.Repository) error) error {
	err := l.repo.WithinTx(ctx, func(tx store.Repository) error {
		// 1. Debit
		if _, err := tx.AdjustBalance(ctx, userID, -amount); err != nil {
			switch {
			case errors.Is(err, store.ErrInsufficientFunds):
				return ErrInsufficientBalance
			case errors.Is(err, store.ErrNotFound):
				return ErrUserNotFound
			}
			return fmt.Errorf("debit: %w", err)
		}

		// 2. Record
		recErr := record(tx)
		if recErr == nil {
			return nil
		}

		// 3. Compensate
		if _, err := tx.AdjustBalance(ctx, userID, amount); err != nil {
			slog.Error("compensating credit failed", "kind", kind, "user_id", userID, "amount", amount, "err", err)
			return fmt.Errorf("%w: %v (compensation: %v)", ErrCommitFailed, recErr, err)
		}
		slog.Warn("request record failed, debit compensated", "kind", kind, "user_id", userID, "amount", amount, "err", recErr)
		return fmt.Errorf("%w: %v", ErrCommitFailed, recErr)
	})

	switch {
	case err == nil:
		requestsTotal.WithLabelValues(kind, "submitted").Inc()
	case errors.Is(err, ErrInsufficientBalance):
		requestsTotal.WithLabelValues(kind, "declined").Inc()
	default:
		requestsTotal.WithLabelValues(kind, "failed").Inc()
	}
	return err
}

func (l *Ledger) SubmitWithdraw(ctx context.Context, userID, amount int64, card domain.CardType, cardNumber string) (*domain.WithdrawRequest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var created *domain.WithdrawRequest
	err := l.commit(ctx, "withdraw", userID, amount, func(tx store.Repository) error {
		now := l.now()
		req := &domain.WithdrawRequest{
			UserID:     userID,
			Amount:     amount,
			CardType:   card,
			CardNumber: cardNumber,
			Status:     domain.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.CreateWithdrawRequest(ctx, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("withdraw request created", "request_id", created.ID, "user_id", userID, "amount", amount, "card", created.MaskedCard())
	return created, nil
}

func (l *Ledger) SubmitUc(ctx context.Context, userID, ucAmount, fxCost int64) (*domain.UcRequest, error) {
	if ucAmount <= 0 || fxCost < 0 {
		return nil, ErrInvalidAmount
	}
	var created *domain.UcRequest
	err := l.commit(ctx, "uc", userID, fxCost, func(tx store.Repository) error {
		now := l.now()
		req := &domain.UcRequest{
			UserID:    userID,
			UcAmount:  ucAmount,
			FxCost:    fxCost,
			Status:    domain.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateUcRequest(ctx, req); err != nil {
			return err
		}
		created = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("uc request created", "request_id", created.ID, "user_id", userID, "uc", ucAmount, "fx_cost", fxCost)
	return created, nil
}

func reviewStatus(approve bool) domain.RequestStatus {
	if approve {
		return domain.StatusApproved
	}
	return domain.StatusDenied
}

func reviewErr(err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotPending) {
		return ErrRequestNotFound
	}
	return err
}

// ReviewWithdraw resolves a pending withdrawal. Denial credits the amount
// back in the same unit of work; approval leaves the balance alone.
func (l *Ledger) ReviewWithdraw(ctx context.Context, id int64, approve bool) (*domain.WithdrawRequest, error) {
	status := reviewStatus(approve)
	var resolved *domain.WithdrawRequest
	err := l.repo.WithinTx(ctx, func(tx store.Repository) error {
		r, err := tx.ResolveWithdrawRequest(ctx, id, status, l.now())
		if err != nil {
			return err
		}
		if !approve {
			if _, err := tx.AdjustBalance(ctx, r.UserID, r.Amount); err != nil {
				return fmt.Errorf("refund withdraw %d: %w", id, err)
			}
		}
		resolved = r
		return nil
	})
	if err != nil {
		return nil, reviewErr(err)
	}
	requestsTotal.WithLabelValues("withdraw", string(status)).Inc()
	slog.Info("withdraw request reviewed", "request_id", id, "status", status, "user_id", resolved.UserID)
	return resolved, nil
}

func (l *Ledger) ReviewUc(ctx context.Context, id int64, approve bool) (*domain.UcRequest, error) {
	status := reviewStatus(approve)
	var resolved *domain.UcRequest
	err := l.repo.WithinTx(ctx, func(tx store.Repository) error {
		r, err := tx.ResolveUcRequest(ctx, id, status, l.now())
		if err != nil {
			return err
		}
		if !approve {
			if _, err := tx.AdjustBalance(ctx, r.UserID, r.FxCost); err != nil {
				return fmt.Errorf("refund uc %d: %w", id, err)
			}
		}
		resolved = r
		return nil
	})
	if err != nil {
		return nil, reviewErr(err)
	}
	requestsTotal.WithLabelValues("uc", string(status)).Inc()
	slog.Info("uc request reviewed", "request_id", id, "status", status, "user_id", resolved.UserID)
	return resolved, nil
}

func (l *Ledger) PendingWithdraws(ctx context.Context) ([]domain.WithdrawRequest, error) {
	return l.repo.PendingWithdrawRequests(ctx)
}

func (l *Ledger) PendingUcs(ctx context.Context) ([]domain.UcRequest, error) {
	return l.repo.PendingUcRequests(ctx)
}
