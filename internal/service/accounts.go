package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/domain"
	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const maxReferralCodeAttempts = 16

// Registration describes what happened on a contact with the bot.
type Registration struct {
	User     *domain.User
	Created  bool
	Referrer *domain.User
	Bonus    int64
}

// PremiumPurchase is the outcome of BuyPremium. Purchased is false when the
// balance did not cover Cost; nothing is written in that case.
type PremiumPurchase struct {
	Purchased bool
	Cost      int64
	Days      int64
	Balance   int64
	Until     time.Time
}

// Accounts owns user creation, referrals and premium.
type Accounts struct {
	repo     store.Repository
	settings *Settings
	now      func() time.Time
	newCode  func() (string, error)
}

func NewAccounts(repo store.Repository, settings *Settings, now func() time.Time) *Accounts {
	if now == nil {
		now = time.Now
	}
	return &Accounts{repo: repo, settings: settings, now: now, newCode: randomReferralCode}
}

// randomReferralCode is 4 random bytes as 8 upper-case hex characters.
func randomReferralCode() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b[:])), nil
}

// ReferralLink builds the deep link, or falls back to the bare code when the
// bot username is not known.
func ReferralLink(botUsername, code string) string {
	if botUsername == "" {
		return "Referral kod: " + code
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, code)
}

// ExtendPremium adds days to the later of now and the current expiry.
func ExtendPremium(current *time.Time, now time.Time, days int64) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.Add(time.Duration(days) * 24 * time.Hour)
}

// EnsureUser returns the stored user, creating it on first contact. Display
// fields are refreshed on every call.
func (a *Accounts) EnsureUser(ctx context.Context, p domain.Profile) (*domain.User, bool, error) {
	u, err := a.repo.GetUser(ctx, p.ID)
	if err == nil {
		if err := a.repo.UpdateUserIdentity(ctx, p); err != nil {
			return nil, false, fmt.Errorf("refresh identity: %w", err)
		}
		u.Username, u.FirstName, u.LastName = p.Username, p.FirstName, p.LastName
		return u, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("load user: %w", err)
	}

	for attempt := 0; attempt < maxReferralCodeAttempts; attempt++ {
		code, err := a.newCode()
		if err != nil {
			return nil, false, fmt.Errorf("generate referral code: %w", err)
		}
		if _, err := a.repo.GetUserByReferralCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, false, err
		}

		nu := &domain.User{
			ID:           p.ID,
			Username:     p.Username,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			CreatedAt:    a.now(),
			ReferralCode: code,
		}
		err = a.repo.CreateUser(ctx, nu)
		switch {
		case err == nil:
			slog.Info("user created", "user_id", nu.ID)
			return nu, true, nil
		case errors.Is(err, store.ErrReferralCodeTaken):
			continue
		case errors.Is(err, store.ErrDuplicate):
			// A concurrent contact created the row first.
			existing, gerr := a.repo.GetUser(ctx, p.ID)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		default:
			return nil, false, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, false, ErrReferralCodeExhausted
}

// Register ensures the user and applies refCode only on first contact.
func (a *Accounts) Register(ctx context.Context, p domain.Profile, refCode string) (*Registration, error) {
	u, created, err := a.EnsureUser(ctx, p)
	if err != nil {
		return nil, err
	}
	reg := &Registration{User: u, Created: created}
	if !created {
		return reg, nil
	}

	referrer, bonus, err := a.ApplyReferral(ctx, u, refCode)
	if err != nil {
		// The account exists either way; a failed referral is not fatal.
		slog.Error("apply referral failed", "user_id", u.ID, "err", err)
		return reg, nil
	}
	if referrer != nil {
		refID := referrer.ID
		u.ReferredBy = &refID
		reg.Referrer, reg.Bonus = referrer, bonus
	}
	return reg, nil
}

// ApplyReferral links user to the owner of code and credits the bonus. An
// unknown code, a self-referral or an already linked user is a no-op and
// returns a nil referrer.
func (a *Accounts) ApplyReferral(ctx context.Context, user *domain.User, code string) (*domain.User, int64, error) {
	code = strings.TrimSpace(code)
	if code == "" || user.ReferredBy != nil {
		return nil, 0, nil
	}
	referrer, err := a.repo.GetUserByReferralCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	if referrer.ID == user.ID {
		return nil, 0, nil
	}

	bonus, err := a.settings.ReferralBonus(ctx)
	if err != nil {
		return nil, 0, err
	}

	var applied bool
	err = a.repo.WithinTx(ctx, func(tx store.Repository) error {
		ok, err := tx.SetReferredBy(ctx, user.ID, referrer.ID)
		if err != nil || !ok {
			return err
		}
		if err := tx.CreditReferral(ctx, referrer.ID, bonus); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("apply referral: %w", err)
	}
	if !applied {
		return nil, 0, nil
	}
	slog.Info("referral applied", "user_id", user.ID, "referrer_id", referrer.ID, "bonus", bonus)
	return referrer, bonus, nil
}

// PremiumOffer returns the configured price and duration.
func (a *Accounts) PremiumOffer(ctx context.Context) (cost, days int64, err error) {
	if cost, err = a.settings.PremiumCost(ctx); err != nil {
		return 0, 0, err
	}
	if days, err = a.settings.PremiumDays(ctx); err != nil {
		return 0, 0, err
	}
	return cost, days, nil
}

func (a *Accounts) BuyPremium(ctx context.Context, userID int64) (*PremiumPurchase, error) {
	cost, days, err := a.PremiumOffer(ctx)
	if err != nil {
		return nil, err
	}
	out := &PremiumPurchase{Cost: cost, Days: days}

	err = a.repo.WithinTx(ctx, func(tx store.Repository) error {
		u, err := tx.GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		out.Balance = u.FxBalance
		if u.FxBalance < cost {
			return nil
		}

		balance, err := tx.AdjustBalance(ctx, userID, -cost)
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil
		}
		if err != nil {
			return err
		}

		until := ExtendPremium(u.PremiumUntil, a.now(), days)
		if err := tx.SetPremiumUntil(ctx, userID, until); err != nil {
			return err
		}
		out.Purchased, out.Balance, out.Until = true, balance, until
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("buy premium: %w", err)
	}
	if out.Purchased {
		slog.Info("premium purchased", "user_id", userID, "cost", cost, "until", out.Until)
	}
	return out, nil
}
