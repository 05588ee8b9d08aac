package domain

import (
	"fmt"
	"strings"
	"time"
)

// User is the durable per-user record. FxBalance never goes below zero; the
// engines enforce that through conditional debits.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username,omitempty"`
	FirstName      string     `json:"first_name,omitempty"`
	LastName       string     `json:"last_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FxBalance      int64      `json:"fx_balance"`
	PremiumUntil   *time.Time `json:"premium_until,omitempty"`
	ReferralCode   string     `json:"referral_code"`
	ReferredBy     *int64     `json:"referred_by,omitempty"`
	ReferralsCount int64      `json:"referrals_count"`
	ReferralFx     int64      `json:"referral_fx"`
	LastMineAt     *time.Time `json:"last_mine_at,omitempty"`
	TotalMined     int64      `json:"total_mined"`
	IsBanned       bool       `json:"is_banned"`
}

// IsPremium reports whether premium is active at now. Expiry equal to now is
// already expired.
func (u *User) IsPremium(now time.Time) bool {
	return u != nil && u.PremiumUntil != nil && u.PremiumUntil.After(now)
}

// DisplayName prefers @username, then the full name, then the numeric id.
func (u *User) DisplayName() string {
	if u == nil {
		return "Noma'lum"
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(strings.Join([]string{u.FirstName, u.LastName}, " "))
	if name != "" {
		return name
	}
	return fmt.Sprintf("ID:%d", u.ID)
}

// Profile carries the display fields delivered by the transport on every
// interaction.
type Profile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

type CardType string

const (
	CardUzcard CardType = "UZCARD"
	CardHumo   CardType = "HUMO"
)

// ParseCardType upper-cases the input and accepts only the supported card
// networks.
func ParseCardType(s string) (CardType, bool) {
	switch ct := CardType(strings.ToUpper(strings.TrimSpace(s))); ct {
	case CardUzcard, CardHumo:
		return ct, true
	}
	return "", false
}

// WithdrawRequest is created only after its amount has been debited.
type WithdrawRequest struct {
	ID         int64         `json:"id"`
	UserID     int64         `json:"user_id"`
	Amount     int64         `json:"amount"`
	CardType   CardType      `json:"card_type"`
	CardNumber string        `json:"card_number"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// MaskedCard keeps the last four digits of the card number.
func (r *WithdrawRequest) MaskedCard() string {
	if len(r.CardNumber) <= 4 {
		return r.CardNumber
	}
	return strings.Repeat("*", len(r.CardNumber)-4) + r.CardNumber[len(r.CardNumber)-4:]
}

// UcRequest is a purchase of in-game UC paid with FxCost.
type UcRequest struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	UcAmount  int64         `json:"uc_amount"`
	FxCost    int64         `json:"fx_cost"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// DropRecord witnesses a completed distribution for one calendar month.
type DropRecord struct {
	ID          int64     `json:"id"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	ProcessedAt time.Time `json:"processed_at"`
	Notes       string    `json:"notes,omitempty"`
}

type ContentType string

const (
	ContentText     ContentType = "text"
	ContentChannel  ContentType = "channel"
	ContentVideo    ContentType = "video"
	ContentPhoto    ContentType = "photo"
	ContentDocument ContentType = "document"
	ContentAudio    ContentType = "audio"
)

// MovieCode maps a lookup code to deliverable content. Channel content is
// served by copying ChannelMessageID out of ChannelID.
type MovieCode struct {
	Code             string      `json:"code"`
	ContentType      ContentType `json:"content_type"`
	ContentValue     string      `json:"content_value"`
	ChannelID        *int64      `json:"channel_id,omitempty"`
	ChannelMessageID *int64      `json:"channel_message_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	AddedBy          *int64      `json:"added_by,omitempty"`
}

// Stats is the admin overview of the economy.
type Stats struct {
	UserCount int64 `json:"user_count"`
	TotalFx   int64 `json:"total_fx"`
}
