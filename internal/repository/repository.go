package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, hashedPassword string) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

// Wallet repository interface
// Only the ledger service is expected to call the mutating methods: every
// credit or debit must flow through it so the transaction log stays complete.
type WalletRepo interface {
	// Create zero balance wallet for the user
	CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Get wallet by owner
	// If wallet not found must return apperrors.ErrWalletNotFound
	// With forUpdate the row stays locked until the surrounding tx ends
	GetWallet(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.Wallet, error)

	// Get the user's wallet, creating a zero balance one if absent.
	// Always returns the row locked, so must be called inside a transaction.
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error)

	// Add amount to balance. With countEarned the amount is added to
	// total_earned too (deposits are excluded from earned accounting).
	ApplyCredit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, countEarned bool) (models.Wallet, error)

	// Subtract amount from balance and add it to total_spent in one
	// conditional update. If the balance is lower than amount nothing is
	// written and apperrors.ErrInsufficientCredits is returned.
	ApplyDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Wallet, error)

	// Append immutable transaction row
	// Duplicated (reference_type, reference_id) pair must return
	// apperrors.ErrDuplicateReference
	CreateTransaction(ctx context.Context, transaction models.Transaction) (models.Transaction, error)

	// List user transactions newest first, optionally filtered by types
	ListTransactions(ctx context.Context, userID uuid.UUID, types []string) ([]models.Transaction, error)
}

// Referral repository interface
type ReferralRepo interface {
	CreateReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string, reward decimal.Decimal) (models.Referral, error)

	// If referral not found must return apperrors.ErrReferralNotFound
	GetReferral(ctx context.Context, referralID uuid.UUID, forUpdate bool) (models.Referral, error)

	ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error)

	UpdateStatus(ctx context.Context, referralID uuid.UUID, status string) (models.Referral, error)
}

// Storage aggregates every repo over the same connection or transaction
type Storage interface {
	User() UserRepo
	Wallet() WalletRepo
	Referral() ReferralRepo

	// Run fn inside a database transaction. The storage passed to fn runs
	// every repo on that transaction. Nested calls use savepoints.
	InTx(ctx context.Context, fn func(Storage) error) error
}
