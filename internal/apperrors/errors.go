package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrTokenInvalid = errors.New("token is invalid or expired")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAmountNotPositive   = errors.New("amount must be positive")
	ErrDuplicateReference  = errors.New("transaction with this reference already recorded")

	ErrReferralNotFound        = errors.New("referral not found")
	ErrReferralNotCompleted    = errors.New("referral is not completed yet")
	ErrReferralAlreadyCredited = errors.New("referral already credited")
)
