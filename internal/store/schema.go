package store

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		fx_balance BIGINT NOT NULL DEFAULT 0,
		premium_until TIMESTAMPTZ,
		referral_code TEXT NOT NULL,
		referred_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
		referrals_count BIGINT NOT NULL DEFAULT 0,
		referral_fx BIGINT NOT NULL DEFAULT 0,
		last_mine_at TIMESTAMPTZ,
		total_mined BIGINT NOT NULL DEFAULT 0,
		is_banned BOOLEAN NOT NULL DEFAULT false,
		CONSTRAINT users_referral_code_key UNIQUE (referral_code),
		CONSTRAINT users_balance_non_negative CHECK (fx_balance >= 0),
		CONSTRAINT users_no_self_referral CHECK (referred_by IS NULL OR referred_by <> id)
	)`,
	`CREATE INDEX IF NOT EXISTS users_leaderboard_idx ON users (fx_balance DESC, id ASC)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_states (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		state TEXT NOT NULL,
		data JSONB,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS withdraw_requests (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		amount BIGINT NOT NULL CHECK (amount > 0),
		card_type TEXT NOT NULL,
		card_number TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS withdraw_requests_status_idx ON withdraw_requests (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS uc_requests (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		uc_amount BIGINT NOT NULL CHECK (uc_amount > 0),
		fx_cost BIGINT NOT NULL CHECK (fx_cost >= 0),
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS uc_requests_status_idx ON uc_requests (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS movie_codes (
		code TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		content_value TEXT NOT NULL DEFAULT '',
		channel_id BIGINT,
		channel_message_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		added_by BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS drops (
		id BIGSERIAL PRIMARY KEY,
		month INT NOT NULL,
		year INT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL,
		notes TEXT,
		CONSTRAINT drops_period_key UNIQUE (month, year)
	)`,
}
