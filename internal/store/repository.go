package store

import (
	"context"
	"errors"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotPending        = errors.New("request is not pending")
	ErrDuplicate         = errors.New("record already exists")
	ErrReferralCodeTaken = errors.New("referral code already taken")
)

// UserStore owns the users table. Balance changes are relative and
// conditional so the store never persists a negative balance.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// GetUserForUpdate locks the row until the surrounding unit of work ends.
	GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUserIdentity(ctx context.Context, p domain.Profile) error
	// AdjustBalance adds delta and returns the new balance. A delta that would
	// take the balance below zero fails with ErrInsufficientFunds.
	AdjustBalance(ctx context.Context, id, delta int64) (int64, error)
	SetPremiumUntil(ctx context.Context, id int64, until time.Time) error
	// ApplyMine credits amount only if last_mine_at still equals prev.
	ApplyMine(ctx context.Context, id, amount int64, minedAt time.Time, prev *time.Time) (balance int64, applied bool, err error)
	// SetReferredBy links the user once; it reports false if already linked.
	SetReferredBy(ctx context.Context, userID, referrerID int64) (bool, error)
	CreditReferral(ctx context.Context, referrerID, bonus int64) error
	TopUsers(ctx context.Context, limit int) ([]domain.User, error)
	RankByBalance(ctx context.Context, balance int64) (int64, error)
	AllUserIDs(ctx context.Context) ([]int64, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)
	SeedSettings(ctx context.Context, defaults map[string]string) error
}

type StateStore interface {
	GetState(ctx context.Context, userID int64) (*domain.ConversationState, error)
	SetState(ctx context.Context, st domain.ConversationState) error
	ClearState(ctx context.Context, userID int64) error
	PurgeStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RequestStore holds withdrawal and UC requests. Resolve moves a pending
// request to its final status exactly once.
type RequestStore interface {
	CreateWithdrawRequest(ctx context.Context, r *domain.WithdrawRequest) error
	GetWithdrawRequest(ctx context.Context, id int64) (*domain.WithdrawRequest, error)
	PendingWithdrawRequests(ctx context.Context) ([]domain.WithdrawRequest, error)
	ResolveWithdrawRequest(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) (*domain.WithdrawRequest, error)

	CreateUcRequest(ctx context.Context, r *domain.UcRequest) error
	GetUcRequest(ctx context.Context, id int64) (*domain.UcRequest, error)
	PendingUcRequests(ctx context.Context) ([]domain.UcRequest, error)
	ResolveUcRequest(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) (*domain.UcRequest, error)
}

type DropStore interface {
	GetDropRecord(ctx context.Context, month, year int) (*domain.DropRecord, error)
	SaveDropRecord(ctx context.Context, r *domain.DropRecord) error
}

type MovieStore interface {
	GetMovieCode(ctx context.Context, code string) (*domain.MovieCode, error)
	UpsertMovieCode(ctx context.Context, m *domain.MovieCode) error
	DeleteMovieCode(ctx context.Context, code string) (bool, error)
	NextMovieCode(ctx context.Context) (string, error)
}

// Repository is the single source of truth consumed by the engines.
type Repository interface {
	UserStore
	SettingsStore
	StateStore
	RequestStore
	DropStore
	MovieStore

	// WithinTx runs fn as one unit of work. Returning an error from fn
	// discards the work where the backend supports it.
	WithinTx(ctx context.Context, fn func(Repository) error) error
}
