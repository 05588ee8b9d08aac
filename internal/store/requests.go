package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

const withdrawColumns = `id, user_id, amount, card_type, card_number, status, created_at, updated_at`

func scanWithdraw(row pgx.Row) (*domain.WithdrawRequest, error) {
	var r domain.WithdrawRequest
	if err := row.Scan(&r.ID, &r.UserID, &r.Amount, &r.CardType, &r.CardNumber, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (s *Postgres) CreateWithdrawRequest(ctx context.Context, r *domain.WithdrawRequest) error {
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return s.savepoint(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `
			INSERT INTO withdraw_requests (user_id, amount, card_type, card_number, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			r.UserID, r.Amount, string(r.CardType), r.CardNumber, string(r.Status), r.CreatedAt, r.UpdatedAt,
		).Scan(&r.ID)
		return mapErr(err)
	})
}

func (s *Postgres) GetWithdrawRequest(ctx context.Context, id int64) (*domain.WithdrawRequest, error) {
	return scanWithdraw(s.db.QueryRow(ctx, `SELECT `+withdrawColumns+` FROM withdraw_requests WHERE id = $1`, id))
}

func (s *Postgres) PendingWithdrawRequests(ctx context.Context) ([]domain.WithdrawRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+withdrawColumns+` FROM withdraw_requests
		WHERE status = 'pending' ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.WithdrawRequest
	for rows.Next() {
		r, err := scanWithdraw(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Postgres) ResolveWithdrawRequest(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) (*domain.WithdrawRequest, error) {
	r, err := scanWithdraw(s.db.QueryRow(ctx, `
		UPDATE withdraw_requests SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+withdrawColumns, id, string(status), at))
	if !errors.Is(err, ErrNotFound) {
		return r, err
	}
	if _, err := s.GetWithdrawRequest(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotPending
}

const ucColumns = `id, user_id, uc_amount, fx_cost, status, created_at, updated_at`

func scanUc(row pgx.Row) (*domain.UcRequest, error) {
	var r domain.UcRequest
	if err := row.Scan(&r.ID, &r.UserID, &r.UcAmount, &r.FxCost, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (s *Postgres) CreateUcRequest(ctx context.Context, r *domain.UcRequest) error {
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return s.savepoint(ctx, func(q querier) error {
		err := q.QueryRow(ctx, `
			INSERT INTO uc_requests (user_id, uc_amount, fx_cost, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			r.UserID, r.UcAmount, r.FxCost, string(r.Status), r.CreatedAt, r.UpdatedAt,
		).Scan(&r.ID)
		return mapErr(err)
	})
}

func (s *Postgres) GetUcRequest(ctx context.Context, id int64) (*domain.UcRequest, error) {
	return scanUc(s.db.QueryRow(ctx, `SELECT `+ucColumns+` FROM uc_requests WHERE id = $1`, id))
}

func (s *Postgres) PendingUcRequests(ctx context.Context) ([]domain.UcRequest, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ucColumns+` FROM uc_requests
		WHERE status = 'pending' ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.UcRequest
	for rows.Next() {
		r, err := scanUc(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Postgres) ResolveUcRequest(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) (*domain.UcRequest, error) {
	r, err := scanUc(s.db.QueryRow(ctx, `
		UPDATE uc_requests SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+ucColumns, id, string(status), at))
	if !errors.Is(err, ErrNotFound) {
		return r, err
	}
	if _, err := s.GetUcRequest(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotPending
}
