// Package referral tracks referral conversions and pays the reward out
// through the credit ledger
package referral

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
	"github.com/venturemart/wallet/internal/repository"
	"github.com/venturemart/wallet/internal/service/wallet"
)

type ReferralService struct {
	// Repository to access long term data
	storage repository.Storage
}

func NewService(storage repository.Storage) *ReferralService {
	return &ReferralService{
		storage: storage,
	}
}

func (s *ReferralService) CreateReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string, reward decimal.Decimal) (models.Referral, error) {
	if reward.IsNegative() {
		return models.Referral{}, apperrors.ErrAmountNotPositive
	}

	referral, err := s.storage.Referral().CreateReferral(ctx, referrerID, referredEmail, reward)
	if err != nil {
		return referral, fmt.Errorf("can't create referral. Err: %w", err)
	}

	return referral, nil
}

func (s *ReferralService) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	return s.storage.Referral().ListReferrals(ctx, referrerID)
}

// MarkCompleted records that the referred contact converted. Completing an
// already completed referral is a no-op, so the conversion callback may be
// retried safely. A credited referral can't go back to completed.
func (s *ReferralService) MarkCompleted(ctx context.Context, referralID uuid.UUID) (models.Referral, error) {
	var referral models.Referral
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		referral, err = storage.Referral().GetReferral(ctx, referralID, true)
		if err != nil {
			return err
		}

		switch referral.Status {
		case models.ReferralStatusCredited:
			return apperrors.ErrReferralAlreadyCredited
		case models.ReferralStatusCompleted:
			return nil
		}

		referral, err = storage.Referral().UpdateStatus(ctx, referralID, models.ReferralStatusCompleted)
		return err
	})

	if err != nil {
		return models.Referral{}, err
	}

	return referral, nil
}

// CreditReferral pays the reward to the referrer's wallet and flips the
// referral to credited. Both happen in one database transaction: the row is
// locked first, so a referral can be credited exactly once. The ledger row
// carries the referral id as its reference, which gives a second guard
// against double payout.
func (s *ReferralService) CreditReferral(ctx context.Context, referralID uuid.UUID) (models.Referral, error) {
	var referral models.Referral
	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		referral, err = storage.Referral().GetReferral(ctx, referralID, true)
		if err != nil {
			return err
		}

		switch referral.Status {
		case models.ReferralStatusPending:
			return apperrors.ErrReferralNotCompleted
		case models.ReferralStatusCredited:
			return apperrors.ErrReferralAlreadyCredited
		}

		// A zero reward flips the status without touching the ledger
		if !referral.RewardAmount.IsPositive() {
			referral, err = storage.Referral().UpdateStatus(ctx, referralID, models.ReferralStatusCredited)
			return err
		}

		// Ledger runs on the same transaction as the status change
		ledger := wallet.NewService(storage)
		_, err = ledger.AddCredits(
			ctx,
			referral.ReferrerID,
			referral.RewardAmount,
			fmt.Sprintf("Referral bonus for %s", referral.ReferredEmail),
			models.ReferenceTypeReferralBonus,
			referral.ID.String(),
		)
		if err != nil {
			return err
		}

		referral, err = storage.Referral().UpdateStatus(ctx, referralID, models.ReferralStatusCredited)
		return err
	})

	if err != nil {
		return models.Referral{}, err
	}

	return referral, nil
}
