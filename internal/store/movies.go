package store

import (
	"context"
	"strconv"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

func (s *Postgres) GetMovieCode(ctx context.Context, code string) (*domain.MovieCode, error) {
	var m domain.MovieCode
	var contentType string
	err := s.db.QueryRow(ctx, `
		SELECT code, content_type, content_value, channel_id, channel_message_id, created_at, added_by
		FROM movie_codes WHERE code = $1`, code,
	).Scan(&m.Code, &contentType, &m.ContentValue, &m.ChannelID, &m.ChannelMessageID, &m.CreatedAt, &m.AddedBy)
	if err != nil {
		return nil, mapErr(err)
	}
	m.ContentType = domain.ContentType(contentType)
	return &m, nil
}

func (s *Postgres) UpsertMovieCode(ctx context.Context, m *domain.MovieCode) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO movie_codes (code, content_type, content_value, channel_id, channel_message_id, created_at, added_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			content_value = EXCLUDED.content_value,
			channel_id = EXCLUDED.channel_id,
			channel_message_id = EXCLUDED.channel_message_id,
			added_by = EXCLUDED.added_by`,
		m.Code, string(m.ContentType), m.ContentValue, m.ChannelID, m.ChannelMessageID, m.CreatedAt, m.AddedBy,
	)
	return err
}

func (s *Postgres) DeleteMovieCode(ctx context.Context, code string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM movie_codes WHERE code = $1`, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// NextMovieCode returns one past the highest purely numeric code.
func (s *Postgres) NextMovieCode(ctx context.Context) (string, error) {
	var max int64
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(code::BIGINT), 0) FROM movie_codes
		WHERE code ~ '^[0-9]{1,18}$'`).Scan(&max)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(max+1, 10), nil
}
