package models

import (
	"time"
)

type User struct {
	ID            uint   `gorm:"primaryKey"`
	TelegramID    int64  `gorm:"uniqueIndex;not null"`
	Username      string `gorm:"size:255"`
	FirstName     string `gorm:"size:255"`
	ReferralCode  string `gorm:"size:64;uniqueIndex"`
	ReferrerID    *uint  `gorm:"index"`
	PayoutAccount string `gorm:"size:64"`
	IsOperator    bool   `gorm:"default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
