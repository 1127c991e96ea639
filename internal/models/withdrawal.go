package models

import (
	"time"
)

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Withdrawal snapshots the unpaid balance and payout account at request
// time. pending -> approved and pending -> rejected are the only
// transitions; both are terminal.
type Withdrawal struct {
	ID            uint             `gorm:"primaryKey"`
	BeneficiaryID uint             `gorm:"not null;index"`
	Beneficiary   User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Amount        int64            `gorm:"not null"`
	PayoutAccount string           `gorm:"size:64;not null"`
	Status        WithdrawalStatus `gorm:"size:16;default:'pending';index"`
	Reason        string           `gorm:"size:255"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SettledAt     *time.Time
}
