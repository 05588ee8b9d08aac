package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
)

func TestWithdrawDeniedIsRefunded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 2, 500)
	l := e.ledger()

	req, err := l.SubmitWithdraw(ctx, 2, 500, domain.CardUzcard, "8600000011112222")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, req.Status)
	require.Equal(t, int64(0), e.user(t, 2).FxBalance)

	pending, err := l.PendingWithdraws(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, int64(500), pending[0].Amount)

	denied, err := l.ReviewWithdraw(ctx, req.ID, false)
	require.NoError(t, err)
	require.Equal(t, domain.StatusDenied, denied.Status)
	require.Equal(t, int64(500), e.user(t, 2).FxBalance)

	// A second review finds nothing pending and changes nothing.
	_, err = l.ReviewWithdraw(ctx, req.ID, false)
	require.ErrorIs(t, err, ErrRequestNotFound)
	require.Equal(t, int64(500), e.user(t, 2).FxBalance)
}

func TestApprovalNeverTouchesBalance(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 300)
	l := e.ledger()

	w, err := l.SubmitWithdraw(ctx, 1, 100, domain.CardHumo, "9860000011112222")
	require.NoError(t, err)
	uc, err := l.SubmitUc(ctx, 1, 60, 60)
	require.NoError(t, err)
	require.Equal(t, int64(140), e.user(t, 1).FxBalance)

	_, err = l.ReviewWithdraw(ctx, w.ID, true)
	require.NoError(t, err)
	got, err := l.ReviewUc(ctx, uc.ID, true)
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, got.Status)
	require.Equal(t, int64(140), e.user(t, 1).FxBalance)

	_, err = l.ReviewUc(ctx, uc.ID, false)
	require.ErrorIs(t, err, ErrRequestNotFound)
	require.Equal(t, int64(140), e.user(t, 1).FxBalance)
}

func TestUcDeniedRefundsFxCost(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 1000)
	l := e.ledger()

	uc, err := l.SubmitUc(ctx, 1, 325, 650)
	require.NoError(t, err)
	require.Equal(t, int64(350), e.user(t, 1).FxBalance)

	_, err = l.ReviewUc(ctx, uc.ID, false)
	require.NoError(t, err)
	require.Equal(t, int64(1000), e.user(t, 1).FxBalance)
}

func TestReviewUnknownRequest(t *testing.T) {
	e := newEnv(t)
	_, err := e.ledger().ReviewWithdraw(context.Background(), 77, true)
	require.ErrorIs(t, err, ErrRequestNotFound)
	_, err = e.ledger().ReviewUc(context.Background(), 77, false)
	require.ErrorIs(t, err, ErrRequestNotFound)
}

func TestSubmitDeclinedWithoutFunds(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, 1, 50)
	l := e.ledger()

	_, err := l.SubmitWithdraw(ctx, 1, 51, domain.CardHumo, "9860000011112222")
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = l.SubmitUc(ctx, 1, 10, 60)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = l.SubmitWithdraw(ctx, 1, 0, domain.CardHumo, "9860000011112222")
	require.ErrorIs(t, err, ErrInvalidAmount)

	require.Equal(t, int64(50), e.user(t, 1).FxBalance)
	pending, err := l.PendingWithdraws(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestRecordFailureCompensatesExactly(t *testing.T) {
	ctx := context.Background()
	for _, balance := range []int64{1, 17, 500, 1 << 40} {
		e := newEnv(t)
		e.addUser(t, 1, balance)
		l := NewLedger(failingRecords{e.repo}, e.clock.Now)

		_, err := l.SubmitWithdraw(ctx, 1, balance, domain.CardUzcard, "8600000011112222")
		require.ErrorIs(t, err, ErrCommitFailed)
		require.Equal(t, balance, e.user(t, 1).FxBalance)

		_, err = l.SubmitUc(ctx, 1, balance, balance)
		require.ErrorIs(t, err, ErrCommitFailed)
		require.Equal(t, balance, e.user(t, 1).FxBalance)

		w, err := e.repo.PendingWithdrawRequests(ctx)
		require.NoError(t, err)
		require.Empty(t, w)
		uc, err := e.repo.PendingUcRequests(ctx)
		require.NoError(t, err)
		require.Empty(t, uc)
	}
}
