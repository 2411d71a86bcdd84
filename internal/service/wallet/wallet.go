// Package wallet implements the credit ledger: per user balance plus an
// append only transaction log. All balance mutations anywhere in the
// platform must go through AddCredits or DeductCredits.
package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
	"github.com/venturemart/wallet/internal/repository"
)

type LedgerService struct {
	// Repository to access long term data
	storage repository.Storage
}

func NewService(storage repository.Storage) *LedgerService {
	return &LedgerService{
		storage: storage,
	}
}

// AddCredits credits the user's wallet and appends a transaction row, both
// in one database transaction. The wallet is created lazily if absent.
//
// The transaction type is derived from referenceType: "deposit" and
// "referral_bonus" are recorded as such, anything else as "earn". Deposits
// are capital coming in, not credits earned on the platform, so they are
// excluded from the total_earned counter.
//
// A non empty (referenceType, referenceID) pair must be unique across the
// whole log: a retried call returns apperrors.ErrDuplicateReference and
// leaves the balance unchanged.
func (s *LedgerService) AddCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, referenceType string, referenceID string) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, apperrors.ErrAmountNotPositive
	}

	var wallet models.Wallet
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		before, err := storage.Wallet().GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		countEarned := referenceType != models.ReferenceTypeDeposit
		wallet, err = storage.Wallet().ApplyCredit(ctx, userID, amount, countEarned)
		if err != nil {
			return err
		}

		_, err = storage.Wallet().CreateTransaction(ctx, models.Transaction{
			UserID:        userID,
			Type:          transactionType(referenceType),
			Amount:        amount,
			BalanceBefore: before.Balance,
			BalanceAfter:  wallet.Balance,
			Description:   description,
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
		})

		return err
	})

	if err != nil {
		return models.Wallet{}, fmt.Errorf("can't add credits. Err: %w", err)
	}

	return wallet, nil
}

// DeductCredits debits the user's wallet and appends a "spend" transaction
// row in one database transaction. The wallet row stays locked between the
// balance check and the update, and the debit itself is conditional on
// balance >= amount, so concurrent debits can never overspend.
//
// On apperrors.ErrInsufficientCredits nothing is written: no balance change
// and no transaction row.
func (s *LedgerService) DeductCredits(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string, referenceType string, referenceID string) (models.Wallet, error) {
	if !amount.IsPositive() {
		return models.Wallet{}, apperrors.ErrAmountNotPositive
	}

	var wallet models.Wallet
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		before, err := storage.Wallet().GetOrCreateWallet(ctx, userID)
		if err != nil {
			return err
		}

		wallet, err = storage.Wallet().ApplyDebit(ctx, userID, amount)
		if err != nil {
			return err
		}

		_, err = storage.Wallet().CreateTransaction(ctx, models.Transaction{
			UserID:        userID,
			Type:          models.TransactionTypeSpend,
			Amount:        amount,
			BalanceBefore: before.Balance,
			BalanceAfter:  wallet.Balance,
			Description:   description,
			ReferenceType: referenceType,
			ReferenceID:   referenceID,
		})

		return err
	})

	if err != nil {
		return models.Wallet{}, fmt.Errorf("can't deduct credits. Err: %w", err)
	}

	return wallet, nil
}

// GetWallet returns the user's wallet. Reading never creates a wallet row:
// if the user has no wallet yet apperrors.ErrWalletNotFound is returned.
func (s *LedgerService) GetWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	return s.storage.Wallet().GetWallet(ctx, userID, false)
}

// ListTransactions returns the user's history newest first, optionally
// filtered by transaction types
func (s *LedgerService) ListTransactions(ctx context.Context, userID uuid.UUID, types []string) ([]models.Transaction, error) {
	return s.storage.Wallet().ListTransactions(ctx, userID, types)
}

func transactionType(referenceType string) string {
	switch referenceType {
	case models.ReferenceTypeDeposit:
		return models.TransactionTypeDeposit
	case models.ReferenceTypeReferralBonus:
		return models.TransactionTypeReferralBonus
	default:
		return models.TransactionTypeEarn
	}
}
