package store

import (
	"context"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

func (s *Postgres) GetDropRecord(ctx context.Context, month, year int) (*domain.DropRecord, error) {
	var r domain.DropRecord
	err := s.db.QueryRow(ctx, `
		SELECT id, month, year, processed_at, COALESCE(notes, '')
		FROM drops WHERE month = $1 AND year = $2`, month, year,
	).Scan(&r.ID, &r.Month, &r.Year, &r.ProcessedAt, &r.Notes)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

// SaveDropRecord upserts on (month, year) so a forced re-run refreshes the
// existing witness instead of failing.
func (s *Postgres) SaveDropRecord(ctx context.Context, r *domain.DropRecord) error {
	return s.db.QueryRow(ctx, `
		INSERT INTO drops (month, year, processed_at, notes) VALUES ($1, $2, $3, $4)
		ON CONFLICT (month, year) DO UPDATE
		SET processed_at = EXCLUDED.processed_at, notes = EXCLUDED.notes
		RETURNING id`, r.Month, r.Year, r.ProcessedAt, r.Notes,
	).Scan(&r.ID)
}
