package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

// CancelKeyword aborts any active conversation.
const CancelKeyword = "bekor qilish"

// MaxRequestAmount bounds the FX amount of a withdrawal and the UC amount
// of a purchase.
const MaxRequestAmount = 1_000_000_000

var cardNumberRe = regexp.MustCompile(`^\d{16}$`)

type FlowKind int

const (
	// FlowIdle means no conversation consumed the text.
	FlowIdle FlowKind = iota
	FlowCancelled
	FlowWithdrawClosed
	FlowWithdrawStarted
	FlowInvalidAmount
	FlowInsufficientBalance
	FlowAskCardNumber
	FlowAskCardType
	FlowInvalidCardType
	FlowInvalidCardNumber
	FlowWithdrawSubmitted
	FlowWithdrawDeclined
	FlowUcStarted
	FlowUcInvalidAmount
	FlowUcInsufficient
	FlowUcAskConfirm
	FlowUcAnswerInvalid
	FlowUcSubmitted
	FlowUcDeclined
	FlowCommitFailed
	FlowMovieStarted
	FlowMovieFound
	FlowMovieNotFound
)

var flowKindNames = map[FlowKind]string{
	FlowIdle:                "idle",
	FlowCancelled:           "cancelled",
	FlowWithdrawClosed:      "withdraw_closed",
	FlowWithdrawStarted:     "withdraw_started",
	FlowInvalidAmount:       "invalid_amount",
	FlowInsufficientBalance: "insufficient_balance",
	FlowAskCardType:         "ask_card_type",
	FlowInvalidCardType:     "invalid_card_type",
	FlowAskCardNumber:       "ask_card_number",
	FlowInvalidCardNumber:   "invalid_card_number",
	FlowWithdrawSubmitted:   "withdraw_submitted",
	FlowWithdrawDeclined:    "withdraw_declined",
	FlowUcStarted:           "uc_started",
	FlowUcInvalidAmount:     "uc_invalid_amount",
	FlowUcInsufficient:      "uc_insufficient",
	FlowUcAskConfirm:        "uc_ask_confirm",
	FlowUcAnswerInvalid:     "uc_answer_invalid",
	FlowUcSubmitted:         "uc_submitted",
	FlowUcDeclined:          "uc_declined",
	FlowCommitFailed:        "commit_failed",
	FlowMovieStarted:        "movie_started",
	FlowMovieFound:          "movie_found",
	FlowMovieNotFound:       "movie_not_found",
}

func (k FlowKind) String() string {
	if s, ok := flowKindNames[k]; ok {
		return s
	}
	return "flow(" + strconv.Itoa(int(k)) + ")"
}

// FlowResult tells the transport what happened; it does not carry text.
type FlowResult struct {
	Kind      FlowKind
	Amount    int64
	CardType  domain.CardType
	UcAmount  int64
	FxCost    int64
	Balance   int64
	PayoutDay int64
	Withdraw  *domain.WithdrawRequest
	Uc        *domain.UcRequest
	Movie     *domain.MovieCode
	ShowAd    bool
}

// Handled reports whether the text was consumed by a conversation.
func (r *FlowResult) Handled() bool {
	return r.Kind != FlowIdle
}

// Flow drives the withdrawal, UC purchase and movie lookup conversations.
type Flow struct {
	repo     store.Repository
	settings *Settings
	ledger   *Ledger
	isAdmin  func(int64) bool
	stateTTL time.Duration
	now      func() time.Time
}

type FlowConfig struct {
	IsAdmin func(int64) bool
	// StateTTL expires conversations untouched for longer. Zero keeps them
	// until cancel or completion.
	StateTTL time.Duration
	Now      func() time.Time
}

func NewFlow(repo store.Repository, settings *Settings, ledger *Ledger, cfg FlowConfig) *Flow {
	f := &Flow{
		repo:     repo,
		settings: settings,
		ledger:   ledger,
		isAdmin:  cfg.IsAdmin,
		stateTTL: cfg.StateTTL,
		now:      cfg.Now,
	}
	if f.isAdmin == nil {
		f.isAdmin = func(int64) bool { return false }
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

func (f *Flow) set(ctx context.Context, userID int64, s domain.FlowState) error {
	name, data, err := domain.EncodeState(s)
	if err != nil {
		return err
	}
	return f.repo.SetState(ctx, domain.ConversationState{
		UserID:    userID,
		Name:      name,
		Data:      data,
		UpdatedAt: f.now(),
	})
}

func (f *Flow) clear(ctx context.Context, userID int64) error {
	return f.repo.ClearState(ctx, userID)
}

// Current returns the active step, or nil when the user is idle.
func (f *Flow) Current(ctx context.Context, userID int64) (domain.FlowState, error) {
	st, err := f.repo.GetState(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st.Decode()
}

// StartWithdraw opens the withdrawal dialog. Outside the payout day it is
// refused for non-admins and the current state is left as it was.
func (f *Flow) StartWithdraw(ctx context.Context, user *domain.User) (*FlowResult, error) {
	day, err := f.settings.PayoutDay(ctx)
	if err != nil {
		return nil, err
	}
	if int64(f.now().Day()) != day && !f.isAdmin(user.ID) {
		return &FlowResult{Kind: FlowWithdrawClosed, PayoutDay: day}, nil
	}
	if err := f.set(ctx, user.ID, domain.WithdrawAmount{}); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowWithdrawStarted, PayoutDay: day, Balance: user.FxBalance}, nil
}

func (f *Flow) StartUc(ctx context.Context, user *domain.User) (*FlowResult, error) {
	if err := f.set(ctx, user.ID, domain.UcAmount{}); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowUcStarted, Balance: user.FxBalance}, nil
}

func (f *Flow) StartMovie(ctx context.Context, user *domain.User) (*FlowResult, error) {
	if err := f.set(ctx, user.ID, domain.MovieCodeLookup{}); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowMovieStarted}, nil
}

func (f *Flow) Cancel(ctx context.Context, userID int64) (*FlowResult, error) {
	if err := f.clear(ctx, userID); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowCancelled}, nil
}

// parsePositive accepts a plain base-10 integer greater than zero.
func parsePositive(text string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n <= 0 || n > MaxRequestAmount {
		return 0, false
	}
	return n, true
}

// HandleText feeds free text into the active conversation. A user without
// one gets FlowIdle and the caller falls back to menu dispatch.
func (f *Flow) HandleText(ctx context.Context, user *domain.User, text string) (*FlowResult, error) {
	st, err := f.repo.GetState(ctx, user.ID)
	if errors.Is(err, store.ErrNotFound) {
		return &FlowResult{Kind: FlowIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	if f.stateTTL > 0 && f.now().Sub(st.UpdatedAt) > f.stateTTL {
		slog.Info("conversation expired", "user_id", user.ID, "state", st.Name)
		if err := f.clear(ctx, user.ID); err != nil {
			return nil, err
		}
		return &FlowResult{Kind: FlowIdle}, nil
	}

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, CancelKeyword) {
		return f.Cancel(ctx, user.ID)
	}

	state, err := st.Decode()
	if err != nil {
		slog.Warn("dropping unreadable conversation state", "user_id", user.ID, "state", st.Name, "err", err)
		if err := f.clear(ctx, user.ID); err != nil {
			return nil, err
		}
		return &FlowResult{Kind: FlowIdle}, nil
	}

	switch s := state.(type) {
	case domain.WithdrawAmount:
		return f.withdrawAmount(ctx, user, text)
	case domain.WithdrawCardType:
		return f.withdrawCardType(ctx, user, s, text)
	case domain.WithdrawCardNumber:
		return f.withdrawCardNumber(ctx, user, s, text)
	case domain.UcAmount:
		return f.ucAmount(ctx, user, text)
	case domain.UcConfirm:
		return f.ucConfirm(ctx, user, s, text)
	case domain.MovieCodeLookup:
		return f.movieCode(ctx, user, text)
	}
	return nil, fmt.Errorf("%w: %T", domain.ErrUnknownState, state)
}

func (f *Flow) withdrawAmount(ctx context.Context, user *domain.User, text string) (*FlowResult, error) {
	amount, ok := parsePositive(text)
	if !ok {
		return &FlowResult{Kind: FlowInvalidAmount}, nil
	}
	if amount > user.FxBalance {
		return &FlowResult{Kind: FlowInsufficientBalance, Amount: amount, Balance: user.FxBalance}, nil
	}
	if err := f.set(ctx, user.ID, domain.WithdrawCardType{Amount: amount}); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowAskCardType, Amount: amount}, nil
}

func (f *Flow) withdrawCardType(ctx context.Context, user *domain.User, s domain.WithdrawCardType, text string) (*FlowResult, error) {
	card, ok := domain.ParseCardType(text)
	if !ok {
		return &FlowResult{Kind: FlowInvalidCardType, Amount: s.Amount}, nil
	}
	if err := f.set(ctx, user.ID, domain.WithdrawCardNumber{Amount: s.Amount, CardType: card}); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowAskCardNumber, Amount: s.Amount, CardType: card}, nil
}

func (f *Flow) withdrawCardNumber(ctx context.Context, user *domain.User, s domain.WithdrawCardNumber, text string) (*FlowResult, error) {
	number := strings.Join(strings.Fields(text), "")
	if !cardNumberRe.MatchString(number) {
		return &FlowResult{Kind: FlowInvalidCardNumber, Amount: s.Amount, CardType: s.CardType}, nil
	}

	// Terminal step: the state is gone whatever the commit does.
	if err := f.clear(ctx, user.ID); err != nil {
		return nil, err
	}

	req, err := f.ledger.SubmitWithdraw(ctx, user.ID, s.Amount, s.CardType, number)
	switch {
	case err == nil:
		return &FlowResult{Kind: FlowWithdrawSubmitted, Amount: s.Amount, CardType: s.CardType, Withdraw: req}, nil
	case errors.Is(err, ErrInsufficientBalance):
		return &FlowResult{Kind: FlowWithdrawDeclined, Amount: s.Amount, Balance: user.FxBalance}, nil
	default:
		slog.Error("withdraw commit failed", "user_id", user.ID, "amount", s.Amount, "err", err)
		return &FlowResult{Kind: FlowCommitFailed, Amount: s.Amount}, nil
	}
}

func (f *Flow) ucAmount(ctx context.Context, user *domain.User, text string) (*FlowResult, error) {
	uc, ok := parsePositive(text)
	if !ok {
		return &FlowResult{Kind: FlowUcInvalidAmount}, nil
	}
	rate, err := f.settings.UcFxRate(ctx)
	if err != nil {
		return nil, err
	}
	if rate > 0 && uc > math.MaxInt64/rate {
		return &FlowResult{Kind: FlowUcInvalidAmount}, nil
	}
	cost := uc * rate
	if user.FxBalance < cost {
		// Unlike the withdrawal amount step this abandons the dialog.
		if err := f.clear(ctx, user.ID); err != nil {
			return nil, err
		}
		return &FlowResult{Kind: FlowUcInsufficient, UcAmount: uc, FxCost: cost, Balance: user.FxBalance}, nil
	}
	if err := f.set(ctx, user.ID, domain.UcConfirm{UcAmount: uc, FxCost: cost}); err != nil {
		return nil, err
	}
	return &FlowResult{Kind: FlowUcAskConfirm, UcAmount: uc, FxCost: cost}, nil
}

func (f *Flow) ucConfirm(ctx context.Context, user *domain.User, s domain.UcConfirm, text string) (*FlowResult, error) {
	switch strings.ToLower(text) {
	case "ha":
	case "yoq":
		return f.Cancel(ctx, user.ID)
	default:
		return &FlowResult{Kind: FlowUcAnswerInvalid, UcAmount: s.UcAmount, FxCost: s.FxCost}, nil
	}

	if err := f.clear(ctx, user.ID); err != nil {
		return nil, err
	}
	req, err := f.ledger.SubmitUc(ctx, user.ID, s.UcAmount, s.FxCost)
	switch {
	case err == nil:
		return &FlowResult{Kind: FlowUcSubmitted, UcAmount: s.UcAmount, FxCost: s.FxCost, Uc: req}, nil
	case errors.Is(err, ErrInsufficientBalance):
		return &FlowResult{Kind: FlowUcDeclined, UcAmount: s.UcAmount, FxCost: s.FxCost, Balance: user.FxBalance}, nil
	default:
		slog.Error("uc commit failed", "user_id", user.ID, "fx_cost", s.FxCost, "err", err)
		return &FlowResult{Kind: FlowCommitFailed, UcAmount: s.UcAmount, FxCost: s.FxCost}, nil
	}
}

func (f *Flow) movieCode(ctx context.Context, user *domain.User, text string) (*FlowResult, error) {
	movie, err := f.repo.GetMovieCode(ctx, text)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("lookup movie code: %w", err)
	}
	if err := f.clear(ctx, user.ID); err != nil {
		return nil, err
	}
	if movie == nil {
		return &FlowResult{Kind: FlowMovieNotFound}, nil
	}
	return &FlowResult{Kind: FlowMovieFound, Movie: movie, ShowAd: !user.IsPremium(f.now())}, nil
}
