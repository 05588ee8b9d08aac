package models

// WebAppUser is the user object embedded in signed web app init data.
type WebAppUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// InitDataRequest is the optional JSON body of profile and mine calls. The
// same payload may arrive in the X-Telegram-Init-Data header instead.
type InitDataRequest struct {
	InitData string `json:"initData"`
}

// PublicUser is the identity block returned to the web front-end.
type PublicUser struct {
	ID        int64   `json:"id"`
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// ProfileResponse is the canonical response of /api/profile.
type ProfileResponse struct {
	OK               bool       `json:"ok"`
	User             PublicUser `json:"user"`
	Balance          int64      `json:"balance"`
	Premium          bool       `json:"premium"`
	CooldownSeconds  int64      `json:"cooldownSeconds"`
	RemainingSeconds int64      `json:"remainingSeconds"`
	LastMineAt       *int64     `json:"lastMineAt"`
}

// MineResponse is the canonical response of /api/mine. Mined is set on
// success, RemainingSeconds when the cooldown is still running.
type MineResponse struct {
	OK               bool   `json:"ok"`
	Mined            *int64 `json:"mined,omitempty"`
	Balance          int64  `json:"balance"`
	CooldownSeconds  int64  `json:"cooldownSeconds"`
	RemainingSeconds *int64 `json:"remainingSeconds,omitempty"`
	Premium          bool   `json:"premium"`
}

// ErrorResponse is returned for rejected calls.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
