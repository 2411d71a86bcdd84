package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Referral lifecycle: pending (invite sent) -> completed (referred user
// converted) -> credited (reward paid out to the referrer's wallet)
const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
	ReferralStatusCredited  = "credited"
)

type Referral struct {
	ID            uuid.UUID
	ReferrerID    uuid.UUID
	ReferredEmail string
	Status        string
	RewardAmount  decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
