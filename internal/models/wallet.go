package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeDeposit       = "deposit"
	TransactionTypeSpend         = "spend"
	TransactionTypeEarn          = "earn"
	TransactionTypeReferralBonus = "referral_bonus"
)

// Reference types callers attach to a mutation. The transaction type is
// derived from them: "deposit" and "referral_bonus" map to same named
// transaction types, anything else credited is recorded as "earn".
const (
	ReferenceTypeDeposit       = "deposit"
	ReferenceTypeReferralBonus = "referral_bonus"
)

// All ledger written rows are final, there is no pending state at this layer
const TransactionStatusCompleted = "completed"

type Wallet struct {
	ID     uuid.UUID
	UserID uuid.UUID

	// Current spendable credits, never negative
	Balance decimal.Decimal

	// Cumulative counters, monotonically non-decreasing.
	// Deposits are capital-in and deliberately excluded from TotalEarned,
	// so Balance is not required to equal TotalEarned - TotalSpent.
	TotalEarned decimal.Decimal
	TotalSpent  decimal.Decimal

	UpdatedAt time.Time
}

// Transaction is one immutable row per balance mutation.
// Amount is a positive magnitude, the sign is implied by Type.
type Transaction struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Type          string
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	ReferenceType string
	ReferenceID   string
	Status        string
	CreatedAt     time.Time
}
