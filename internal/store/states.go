package store

import (
	"context"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

func (s *Postgres) GetState(ctx context.Context, userID int64) (*domain.ConversationState, error) {
	var st domain.ConversationState
	var name string
	err := s.db.QueryRow(ctx, `SELECT user_id, state, data, updated_at FROM user_states WHERE user_id = $1`, userID).
		Scan(&st.UserID, &name, &st.Data, &st.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	st.Name = domain.StateName(name)
	return &st, nil
}

// SetState overwrites whatever step the user was on.
func (s *Postgres) SetState(ctx context.Context, st domain.ConversationState) error {
	var data any
	if len(st.Data) > 0 {
		data = string(st.Data)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_states (user_id, state, data, updated_at) VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		st.UserID, string(st.Name), data, st.UpdatedAt,
	)
	return err
}

func (s *Postgres) ClearState(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM user_states WHERE user_id = $1`, userID)
	return err
}

func (s *Postgres) PurgeStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_states WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
