package service

import (
	"context"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const LeaderboardSize = 10

type ProfileView struct {
	User    *domain.User
	Rank    int64
	Premium bool
}

type AdminStats struct {
	domain.Stats
	PendingWithdraws int
	PendingUcs       int
}

// Queries serves the read-only views.
type Queries struct {
	repo store.Repository
	now  func() time.Time
}

func NewQueries(repo store.Repository, now func() time.Time) *Queries {
	if now == nil {
		now = time.Now
	}
	return &Queries{repo: repo, now: now}
}

// Profile ranks the user as one plus the number of users with a strictly
// higher balance.
func (q *Queries) Profile(ctx context.Context, u *domain.User) (*ProfileView, error) {
	rank, err := q.repo.RankByBalance(ctx, u.FxBalance)
	if err != nil {
		return nil, err
	}
	return &ProfileView{User: u, Rank: rank, Premium: u.IsPremium(q.now())}, nil
}

// Leaderboard uses the same ordering as the drop selection.
func (q *Queries) Leaderboard(ctx context.Context) ([]domain.User, error) {
	return q.repo.TopUsers(ctx, LeaderboardSize)
}

func (q *Queries) AdminStats(ctx context.Context) (*AdminStats, error) {
	st, err := q.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}
	w, err := q.repo.PendingWithdrawRequests(ctx)
	if err != nil {
		return nil, err
	}
	uc, err := q.repo.PendingUcRequests(ctx)
	if err != nil {
		return nil, err
	}
	return &AdminStats{Stats: st, PendingWithdraws: len(w), PendingUcs: len(uc)}, nil
}

func (q *Queries) User(ctx context.Context, id int64) (*domain.User, error) {
	return q.repo.GetUser(ctx, id)
}
