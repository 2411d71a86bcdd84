package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/venturemart/wallet/internal/apperrors"
	"github.com/venturemart/wallet/internal/models"
)

type WalletRepo struct {
	DB DBTX
}

const walletColumns = `id, user_id, balance, total_earned, total_spent, updated_at`

const createWallet = `-- name: CreateWallet
INSERT INTO wallets (user_id)
VALUES ($1)
RETURNING id, user_id, balance, total_earned, total_spent, updated_at
`

func (r *WalletRepo) CreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, createWallet, userID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
			return wallet, fmt.Errorf("user wallet already exists: %w", err)
		case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
			return wallet, apperrors.ErrUserNotFound
		default:
			return wallet, fmt.Errorf("db error: %w", err)
		}
	}

	return wallet, nil
}

func (r *WalletRepo) GetWallet(ctx context.Context, userID uuid.UUID, forUpdate bool) (models.Wallet, error) {
	getWallet := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	if forUpdate {
		getWallet += ` FOR UPDATE`
	}

	rows, _ := r.DB.Query(ctx, getWallet, userID)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

// Insert the wallet row if absent, then select it locked. Both statements
// run on the caller's transaction, so concurrent first time mutations for
// the same user serialize instead of racing on creation.
func (r *WalletRepo) GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (models.Wallet, error) {
	const insertIfAbsent = `
	INSERT INTO wallets (user_id)
	VALUES ($1)
	ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.DB.Exec(ctx, insertIfAbsent, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return models.Wallet{}, apperrors.ErrUserNotFound
		}

		return models.Wallet{}, fmt.Errorf("db error: %w", err)
	}

	return r.GetWallet(ctx, userID, true)
}

const applyCredit = `-- name: ApplyCredit
UPDATE wallets
SET balance = balance + $2,
	total_earned = total_earned + CASE WHEN $3 THEN $2 ELSE 0::numeric END,
	updated_at = now()
WHERE user_id = $1
RETURNING id, user_id, balance, total_earned, total_spent, updated_at
`

func (r *WalletRepo) ApplyCredit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, countEarned bool) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, applyCredit, userID, amount, countEarned)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		return wallet, apperrors.ErrWalletNotFound
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

// Conditional update: the WHERE clause keeps the balance from ever dropping
// below zero even when two debits race on the same wallet
const applyDebit = `-- name: ApplyDebit
UPDATE wallets
SET balance = balance - $2,
	total_spent = total_spent + $2,
	updated_at = now()
WHERE user_id = $1 AND balance >= $2
RETURNING id, user_id, balance, total_earned, total_spent, updated_at
`

func (r *WalletRepo) ApplyDebit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.Wallet, error) {
	rows, _ := r.DB.Query(ctx, applyDebit, userID, amount)
	wallet, err := pgx.CollectOneRow(rows, rowToWallet)

	switch {
	case err == nil:
		return wallet, nil
	case errors.Is(err, pgx.ErrNoRows):
		// No row updated: either the wallet is missing or the balance
		// is too low, look the wallet up to tell which
		if _, getErr := r.GetWallet(ctx, userID, false); getErr != nil {
			return wallet, getErr
		}
		return wallet, apperrors.ErrInsufficientCredits
	default:
		return wallet, fmt.Errorf("db error: %w", err)
	}
}

const createTransaction = `-- name: CreateTransaction
INSERT INTO wallet_transactions (
	id, user_id, type, amount, balance_before, balance_after,
	description, reference_type, reference_id, status, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11)
RETURNING id, user_id, type, amount, balance_before, balance_after,
	description, COALESCE(reference_type, ''), COALESCE(reference_id, ''), status, created_at
`

func (r *WalletRepo) CreateTransaction(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.Status == "" {
		t.Status = models.TransactionStatusCompleted
	}

	rows, _ := r.DB.Query(ctx, createTransaction,
		t.ID, t.UserID, t.Type, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Description, t.ReferenceType, t.ReferenceID, t.Status, t.CreatedAt,
	)
	transaction, err := pgx.CollectOneRow(rows, rowToTransaction)

	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == "wallet_transactions_reference_idx":
			return transaction, apperrors.ErrDuplicateReference
		case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation:
			return transaction, apperrors.ErrUserNotFound
		default:
			return transaction, fmt.Errorf("db error: %w", err)
		}
	}

	return transaction, nil
}

const listTransactions = `-- name: ListTransactions
SELECT id, user_id, type, amount, balance_before, balance_after,
	description, COALESCE(reference_type, ''), COALESCE(reference_id, ''), status, created_at
FROM wallet_transactions
WHERE user_id = $1 AND ($2::text[] IS NULL OR type = ANY($2))
ORDER BY created_at DESC, id
`

func (r *WalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, types []string) ([]models.Transaction, error) {
	rows, _ := r.DB.Query(ctx, listTransactions, userID, types)
	transactions, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return transactions, nil
}

func rowToWallet(row pgx.CollectableRow) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.TotalEarned, &w.TotalSpent, &w.UpdatedAt)
	return w, err
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
		&t.Description, &t.ReferenceType, &t.ReferenceID, &t.Status, &t.CreatedAt,
	)
	return t, err
}
