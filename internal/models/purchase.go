package models

import (
	"time"
)

// Purchase is one proof-of-purchase submission. Duplicate references are
// allowed and validated independently.
type Purchase struct {
	ID          uint   `gorm:"primaryKey"`
	BuyerID     uint   `gorm:"not null;index"`
	Buyer       User   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Reference   string `gorm:"size:255;not null"`
	Validated   bool   `gorm:"default:false;index"`
	ValidatedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
