package ledger

import (
	"context"

	"moneyflows-bot/internal/models"
)

// DashboardStats is what a user sees on /dashboard.
type DashboardStats struct {
	TotalReferred   int64
	ValidatedBuyers int64
	TotalEarned     int64
	UnpaidBalance   int64
	RatePercent     int
}

func (s *Service) Dashboard(ctx context.Context, userID uint) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)

	var stats DashboardStats
	if err := db.Model(&models.User{}).Where("referrer_id = ?", userID).Count(&stats.TotalReferred).Error; err != nil {
		return nil, err
	}

	count, err := validatedBuyerCount(db, userID)
	if err != nil {
		return nil, err
	}
	stats.ValidatedBuyers = count
	stats.RatePercent = int(TierRate(count) * 100)

	if stats.TotalEarned, err = sumEarnings(db, userID, false); err != nil {
		return nil, err
	}
	if stats.UnpaidBalance, err = sumEarnings(db, userID, true); err != nil {
		return nil, err
	}
	return &stats, nil
}

// AdminStats is the operator-wide summary behind /stats.
type AdminStats struct {
	TotalUsers         int64
	ValidatedPurchases int64
	TotalEarnings      int64
	PendingWithdrawals int64
}

func (s *Service) Stats(ctx context.Context, actorID uint) (*AdminStats, error) {
	db := s.db.WithContext(ctx)
	if _, err := requireOperator(db, actorID); err != nil {
		return nil, err
	}

	var stats AdminStats
	if err := db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Purchase{}).Where("validated = ?", true).Count(&stats.ValidatedPurchases).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Earning{}).Select("COALESCE(SUM(amount), 0)").Scan(&stats.TotalEarnings).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Withdrawal{}).Where("status = ?", models.WithdrawalPending).Count(&stats.PendingWithdrawals).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
