package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

const userColumns = `id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	created_at, fx_balance, premium_until, referral_code, referred_by,
	referrals_count, referral_fx, last_mine_at, total_mined, is_banned`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.FirstName, &u.LastName,
		&u.CreatedAt, &u.FxBalance, &u.PremiumUntil, &u.ReferralCode, &u.ReferredBy,
		&u.ReferralsCount, &u.ReferralFx, &u.LastMineAt, &u.TotalMined, &u.IsBanned,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Postgres) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Postgres) GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (s *Postgres) GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code))
}

func (s *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	return s.savepoint(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO users (id, username, first_name, last_name, created_at, fx_balance, referral_code)
			VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7)`,
			u.ID, u.Username, u.FirstName, u.LastName, u.CreatedAt, u.FxBalance, u.ReferralCode,
		)
		return mapErr(err)
	})
}

func (s *Postgres) UpdateUserIdentity(ctx context.Context, p domain.Profile) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET username = NULLIF($2, ''), first_name = NULLIF($3, ''), last_name = NULLIF($4, '')
		WHERE id = $1`,
		p.ID, p.Username, p.FirstName, p.LastName,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) AdjustBalance(ctx context.Context, id, delta int64) (int64, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `
		UPDATE users SET fx_balance = fx_balance + $2
		WHERE id = $1 AND fx_balance + $2 >= 0
		RETURNING fx_balance`, id, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrNotFound
	}
	return 0, ErrInsufficientFunds
}

func (s *Postgres) SetPremiumUntil(ctx context.Context, id int64, until time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET premium_until = $2 WHERE id = $1`, id, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) ApplyMine(ctx context.Context, id, amount int64, minedAt time.Time, prev *time.Time) (int64, bool, error) {
	var balance int64
	err := s.db.QueryRow(ctx, `
		UPDATE users
		SET fx_balance = fx_balance + $2, last_mine_at = $3, total_mined = total_mined + $2
		WHERE id = $1 AND last_mine_at IS NOT DISTINCT FROM $4::timestamptz AND fx_balance + $2 >= 0
		RETURNING fx_balance`, id, amount, minedAt, prev,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("apply mine: %w", err)
	}
	return balance, true, nil
}

func (s *Postgres) SetReferredBy(ctx context.Context, userID, referrerID int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET referred_by = $2
		WHERE id = $1 AND referred_by IS NULL AND id <> $2`, userID, referrerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) CreditReferral(ctx context.Context, referrerID, bonus int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET fx_balance = fx_balance + $2, referral_fx = referral_fx + $2, referrals_count = referrals_count + 1
		WHERE id = $1`, referrerID, bonus)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) TopUsers(ctx context.Context, limit int) ([]domain.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY fx_balance DESC, id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *Postgres) RankByBalance(ctx context.Context, balance int64) (int64, error) {
	var rank int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM users WHERE fx_balance > $1`, balance).Scan(&rank)
	return rank, err
}

func (s *Postgres) AllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (s *Postgres) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	err := s.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(fx_balance), 0)::BIGINT FROM users`).
		Scan(&st.UserCount, &st.TotalFx)
	return st, err
}
