package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
)

type ReferralRepo struct {
	DB DBTX
}

const referralColumns = `id, referrer_id, referred_email, status, reward_amount, created_at, updated_at`

const createReferral = `-- name: CreateReferral
INSERT INTO referrals (id, referrer_id, referred_email, reward_amount)
VALUES ($1, $2, $3, $4)
RETURNING id, referrer_id, referred_email, status, reward_amount, created_at, updated_at
`

func (r *ReferralRepo) CreateReferral(ctx context.Context, referrerID uuid.UUID, referredEmail string, reward decimal.Decimal) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, createReferral, uuid.New(), referrerID, referredEmail, reward)
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return referral, apperrors.ErrUserNotFound
		}

		return referral, fmt.Errorf("db error: %w", err)
	}

	return referral, nil
}

func (r *ReferralRepo) GetReferral(ctx context.Context, referralID uuid.UUID, forUpdate bool) (models.Referral, error) {
	getReferral := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`
	if forUpdate {
		getReferral += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getReferral, referralID)
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	switch {
	case err == nil:
		return referral, nil
	case errors.Is(err, pgx.ErrNoRows):
		return referral, apperrors.ErrReferralNotFound
	default:
		return referral, fmt.Errorf("db error: %w", err)
	}
}

const listReferrals = `-- name: ListReferrals
SELECT id, referrer_id, referred_email, status, reward_amount, created_at, updated_at
FROM referrals
WHERE referrer_id = $1
ORDER BY created_at DESC, id
`

func (r *ReferralRepo) ListReferrals(ctx context.Context, referrerID uuid.UUID) ([]models.Referral, error) {
	rows, _ := r.DB.Query(ctx, listReferrals, referrerID)
	referrals, err := pgx.CollectRows(rows, rowToReferral)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return referrals, nil
}

const updateReferralStatus = `-- name: UpdateStatus
UPDATE referrals
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, referrer_id, referred_email, status, reward_amount, created_at, updated_at
`

func (r *ReferralRepo) UpdateStatus(ctx context.Context, referralID uuid.UUID, status string) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, updateReferralStatus, referralID, status)
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	switch {
	case err == nil:
		return referral, nil
	case errors.Is(err, pgx.ErrNoRows):
		return referral, apperrors.ErrReferralNotFound
	default:
		return referral, fmt.Errorf("db error: %w", err)
	}
}

func rowToReferral(row pgx.CollectableRow) (models.Referral, error) {
	var ref models.Referral
	err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredEmail, &ref.Status, &ref.RewardAmount, &ref.CreatedAt, &ref.UpdatedAt)
	return ref, err
}
