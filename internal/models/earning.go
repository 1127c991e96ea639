package models

import (
	"time"
)

// Earning is one commission credit. Amounts are whole FCFA; the rate in
// effect when the credit was written is kept for dashboards.
type Earning struct {
	ID            uint    `gorm:"primaryKey"`
	BeneficiaryID uint    `gorm:"not null;index"`
	Amount        int64   `gorm:"not null"`
	Rate          float64 `gorm:"not null"`
	SourceBuyerID uint    `gorm:"not null;index"`
	PurchaseID    uint    `gorm:"not null;uniqueIndex"`
	Paid          bool    `gorm:"default:false;index"`
	CreatedAt     time.Time
}
