// Package ledger implements the referral-commission core: the identity
// store, the purchase ledger, the commission engine, the earnings ledger
// and the withdrawal state machine. Every mutating operation is a single
// database transaction; per-beneficiary row locks keep concurrent
// validations and withdrawal requests from corrupting the ledger.
package ledger

import (
	"context"

	"gorm.io/gorm"

	"moneyflows-bot/internal/models"
)

// Notifier receives ledger events for best-effort delivery to users and
// operators. Implementations must not return delivery failures into the
// ledger path; by the time an event fires the transaction has committed.
type Notifier interface {
	NewReferral(ctx context.Context, referrer, referred *models.User)
	PurchaseSubmitted(ctx context.Context, purchase *models.Purchase, buyer *models.User)
	ThresholdReached(ctx context.Context, referrer *models.User, payoutAccountSet bool)
	WithdrawalCreated(ctx context.Context, w *models.Withdrawal, beneficiary *models.User)
	WithdrawalSettled(ctx context.Context, w *models.Withdrawal, beneficiary *models.User)
}

type Service struct {
	db       *gorm.DB
	notifier Notifier

	productPrice      int64
	withdrawThreshold int64
}

func NewService(db *gorm.DB, notifier Notifier, productPrice int64, withdrawThreshold int) *Service {
	return &Service{
		db:                db,
		notifier:          notifier,
		productPrice:      productPrice,
		withdrawThreshold: int64(withdrawThreshold),
	}
}

// ProductPrice is the configured price of the single product, in whole
// currency units.
func (s *Service) ProductPrice() int64 { return s.productPrice }

// WithdrawThreshold is the distinct-validated-buyer count required
// before a withdrawal may be requested.
func (s *Service) WithdrawThreshold() int64 { return s.withdrawThreshold }

// validatedBuyerCount counts the distinct referred users of referrerID
// that have at least one validated purchase. Must run inside the
// caller's transaction so the count observes uncommitted writes of the
// same operation.
func validatedBuyerCount(tx *gorm.DB, referrerID uint) (int64, error) {
	var count int64
	err := tx.Model(&models.Purchase{}).
		Joins("JOIN users ON users.id = purchases.buyer_id").
		Where("users.referrer_id = ? AND purchases.validated = ?", referrerID, true).
		Distinct("purchases.buyer_id").
		Count(&count).Error
	return count, err
}
