package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (s *Postgres) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Postgres) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (s *Postgres) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// SeedSettings inserts defaults that are not present; existing values win.
func (s *Postgres) SeedSettings(ctx context.Context, defaults map[string]string) error {
	batch := &pgx.Batch{}
	for k, v := range defaults {
		batch.Queue(`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`, k, v)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	var br pgx.BatchResults
	switch db := s.db.(type) {
	case pgx.Tx:
		br = db.SendBatch(ctx, batch)
	default:
		br = s.pool.SendBatch(ctx, batch)
	}
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
