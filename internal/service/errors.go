package service

import "errors"

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrRequestNotFound       = errors.New("request not found or already resolved")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrCommitFailed          = errors.New("request could not be recorded")
	ErrReferralCodeExhausted = errors.New("could not allocate a unique referral code")
)
