package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StateName is the persisted tag of a conversation step.
type StateName string

const (
	StateWithdrawAmount     StateName = "withdraw_amount"
	StateWithdrawCardType   StateName = "withdraw_card_type"
	StateWithdrawCardNumber StateName = "withdraw_card_number"
	StateUcAmount           StateName = "uc_amount"
	StateUcConfirm          StateName = "uc_confirm"
	StateMovieCode          StateName = "movie_code"
)

// FlowState is a conversation step together with the data collected so far.
// The set of implementations is closed to this package.
type FlowState interface {
	StateName() StateName
	flowState()
}

type WithdrawAmount struct{}

type WithdrawCardType struct {
	Amount int64 `json:"amount"`
}

type WithdrawCardNumber struct {
	Amount   int64    `json:"amount"`
	CardType CardType `json:"card_type"`
}

type UcAmount struct{}

type UcConfirm struct {
	UcAmount int64 `json:"uc_amount"`
	FxCost   int64 `json:"fx_cost"`
}

type MovieCodeLookup struct{}

func (WithdrawAmount) StateName() StateName     { return StateWithdrawAmount }
func (WithdrawCardType) StateName() StateName   { return StateWithdrawCardType }
func (WithdrawCardNumber) StateName() StateName { return StateWithdrawCardNumber }
func (UcAmount) StateName() StateName           { return StateUcAmount }
func (UcConfirm) StateName() StateName          { return StateUcConfirm }
func (MovieCodeLookup) StateName() StateName    { return StateMovieCode }

func (WithdrawAmount) flowState()     {}
func (WithdrawCardType) flowState()   {}
func (WithdrawCardNumber) flowState() {}
func (UcAmount) flowState()           {}
func (UcConfirm) flowState()          {}
func (MovieCodeLookup) flowState()    {}

// ConversationState is the stored form of a FlowState: one row per user.
type ConversationState struct {
	UserID    int64
	Name      StateName
	Data      []byte
	UpdatedAt time.Time
}

// ErrUnknownState is returned by Decode for tags this build does not know.
var ErrUnknownState = errors.New("unknown conversation state")

// EncodeState returns the tag and payload to persist. Payload-free states
// store no data.
func EncodeState(s FlowState) (StateName, []byte, error) {
	switch s.(type) {
	case WithdrawAmount, UcAmount, MovieCodeLookup:
		return s.StateName(), nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", s.StateName(), err)
	}
	return s.StateName(), data, nil
}

// Decode rebuilds the typed step from its stored form.
func (c *ConversationState) Decode() (FlowState, error) {
	switch c.Name {
	case StateWithdrawAmount:
		return WithdrawAmount{}, nil
	case StateUcAmount:
		return UcAmount{}, nil
	case StateMovieCode:
		return MovieCodeLookup{}, nil
	case StateWithdrawCardType:
		var s WithdrawCardType
		err := decodePayload(c, &s)
		return s, err
	case StateWithdrawCardNumber:
		var s WithdrawCardNumber
		err := decodePayload(c, &s)
		return s, err
	case StateUcConfirm:
		var s UcConfirm
		err := decodePayload(c, &s)
		return s, err
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownState, c.Name)
}

func decodePayload(c *ConversationState, v any) error {
	if len(c.Data) == 0 {
		return fmt.Errorf("%s: missing payload", c.Name)
	}
	if err := json.Unmarshal(c.Data, v); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}
