package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dilshodbekbozorov/fxvm-bot/internal/store"
)

const (
	KeyReferralBonus          = "referral_bonus"
	KeyMineAmount             = "mine_amount"
	KeyPremiumMineAmount      = "premium_mine_amount"
	KeyMineCooldownSeconds    = "mine_cooldown_seconds"
	KeyWebMineCooldownSeconds = "web_mine_cooldown_seconds"
	KeyWebMineAmount          = "web_mine_amount"
	KeyPayoutDay              = "payout_day"
	KeyPremiumCost            = "premium_cost"
	KeyPremiumDays            = "premium_days"
	KeyDropBonusFx            = "drop_bonus_fx"
	KeyDropPremiumDays        = "drop_premium_days"
	KeyUcFxRate               = "uc_fx_rate"
)

// DefaultKeys is the seeded key set in display order.
var DefaultKeys = []string{
	KeyReferralBonus,
	KeyMineAmount,
	KeyPremiumMineAmount,
	KeyMineCooldownSeconds,
	KeyPayoutDay,
	KeyPremiumCost,
	KeyPremiumDays,
	KeyDropBonusFx,
	KeyDropPremiumDays,
	KeyUcFxRate,
	KeyWebMineCooldownSeconds,
}

// Defaults are written at boot for keys that have no value yet.
var Defaults = map[string]string{
	KeyReferralBonus:          "100",
	KeyMineAmount:             "1",
	KeyPremiumMineAmount:      "2",
	KeyMineCooldownSeconds:    "60",
	KeyPayoutDay:              "15",
	KeyPremiumCost:            "1000",
	KeyPremiumDays:            "30",
	KeyDropBonusFx:            "500",
	KeyDropPremiumDays:        "7",
	KeyUcFxRate:               "1",
	KeyWebMineCooldownSeconds: "0",
}

// numeric describes how a key resolves when it is unset or unusable.
// With zeroFallback a stored zero is treated like a missing value. A
// negative value falls back too, or becomes zero with clampNegative.
type numeric struct {
	key           string
	fallback      int64
	zeroFallback  bool
	clampNegative bool
}

var (
	referralBonus   = numeric{key: KeyReferralBonus, fallback: 0}
	mineAmount      = numeric{key: KeyMineAmount, fallback: 1, zeroFallback: true}
	premiumAmount   = numeric{key: KeyPremiumMineAmount, fallback: 1, zeroFallback: true}
	mineCooldown    = numeric{key: KeyMineCooldownSeconds, fallback: 60}
	webMineCooldown = numeric{key: KeyWebMineCooldownSeconds, fallback: 0}
	webMineAmount   = numeric{key: KeyWebMineAmount, fallback: 1, clampNegative: true}
	payoutDay       = numeric{key: KeyPayoutDay, fallback: 15, zeroFallback: true}
	premiumCost     = numeric{key: KeyPremiumCost, fallback: 0}
	premiumDays     = numeric{key: KeyPremiumDays, fallback: 30, zeroFallback: true}
	dropBonusFx     = numeric{key: KeyDropBonusFx, fallback: 0}
	dropPremiumDays = numeric{key: KeyDropPremiumDays, fallback: 0}
	ucFxRate        = numeric{key: KeyUcFxRate, fallback: 1, zeroFallback: true}
)

// Settings wraps the key/value store with typed accessors.
type Settings struct {
	store store.SettingsStore
}

func NewSettings(s store.SettingsStore) *Settings {
	return &Settings{store: s}
}

func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	return s.store.GetSetting(ctx, key)
}

func (s *Settings) Set(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("setting key is empty")
	}
	return s.store.SetSetting(ctx, key, strings.TrimSpace(value))
}

func (s *Settings) List(ctx context.Context) (map[string]string, error) {
	return s.store.ListSettings(ctx)
}

func (s *Settings) Seed(ctx context.Context) error {
	return s.store.SeedSettings(ctx, Defaults)
}

func (s *Settings) value(ctx context.Context, n numeric) (int64, error) {
	raw, ok, err := s.store.GetSetting(ctx, n.key)
	if err != nil {
		return 0, fmt.Errorf("read setting %s: %w", n.key, err)
	}
	if !ok {
		return n.fallback, nil
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return n.fallback, nil
	}
	if v < 0 && n.clampNegative {
		return 0, nil
	}
	if v < 0 || (v == 0 && n.zeroFallback) {
		return n.fallback, nil
	}
	return v, nil
}

func (s *Settings) MineCooldown(ctx context.Context, src Source) (int64, error) {
	if src == SourceWeb {
		return s.value(ctx, webMineCooldown)
	}
	return s.value(ctx, mineCooldown)
}

// MineAmount resolves the reward tier. The web source has its own amount
// and does not look at premium.
func (s *Settings) MineAmount(ctx context.Context, src Source, premium bool) (int64, error) {
	switch {
	case src == SourceWeb:
		return s.value(ctx, webMineAmount)
	case premium:
		return s.value(ctx, premiumAmount)
	default:
		return s.value(ctx, mineAmount)
	}
}

func (s *Settings) ReferralBonus(ctx context.Context) (int64, error) {
	return s.value(ctx, referralBonus)
}

func (s *Settings) PayoutDay(ctx context.Context) (int64, error) {
	return s.value(ctx, payoutDay)
}

func (s *Settings) PremiumCost(ctx context.Context) (int64, error) {
	return s.value(ctx, premiumCost)
}

func (s *Settings) PremiumDays(ctx context.Context) (int64, error) {
	return s.value(ctx, premiumDays)
}

func (s *Settings) DropBonusFx(ctx context.Context) (int64, error) {
	return s.value(ctx, dropBonusFx)
}

func (s *Settings) DropPremiumDays(ctx context.Context) (int64, error) {
	return s.value(ctx, dropPremiumDays)
}

func (s *Settings) UcFxRate(ctx context.Context) (int64, error) {
	return s.value(ctx, ucFxRate)
}
