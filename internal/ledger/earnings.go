package ledger

import (
	"context"

	"gorm.io/gorm"

	"moneyflows-bot/internal/models"
)

func sumEarnings(tx *gorm.DB, beneficiaryID uint, unpaidOnly bool) (int64, error) {
	q := tx.Model(&models.Earning{}).Where("beneficiary_id = ?", beneficiaryID)
	if unpaidOnly {
		q = q.Where("paid = ?", false)
	}
	var total int64
	err := q.Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// UnpaidBalance is the sum of earnings not yet claimed into a withdrawal.
func (s *Service) UnpaidBalance(ctx context.Context, beneficiaryID uint) (int64, error) {
	return sumEarnings(s.db.WithContext(ctx), beneficiaryID, true)
}

// TotalBalance is the lifetime sum of earnings, paid or not.
func (s *Service) TotalBalance(ctx context.Context, beneficiaryID uint) (int64, error) {
	return sumEarnings(s.db.WithContext(ctx), beneficiaryID, false)
}

// Earnings lists a beneficiary's credits, newest first.
func (s *Service) Earnings(ctx context.Context, beneficiaryID uint) ([]models.Earning, error) {
	var earnings []models.Earning
	err := s.db.WithContext(ctx).
		Where("beneficiary_id = ?", beneficiaryID).
		Order("id DESC").
		Find(&earnings).Error
	if err != nil {
		return nil, err
	}
	return earnings, nil
}
