package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moneyflows-bot/internal/models"
)

// SubmitPurchase appends a proof-of-purchase submission for the buyer.
// Duplicate references are accepted and validated independently.
func (s *Service) SubmitPurchase(ctx context.Context, buyerID uint, reference string) (*models.Purchase, error) {
	var buyer models.User
	if err := s.db.WithContext(ctx).First(&buyer, buyerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	purchase := models.Purchase{
		BuyerID:   buyerID,
		Reference: reference,
	}
	if err := s.db.WithContext(ctx).Create(&purchase).Error; err != nil {
		return nil, fmt.Errorf("submit purchase for user %d: %w", buyerID, err)
	}

	if s.notifier != nil {
		s.notifier.PurchaseSubmitted(ctx, &purchase, &buyer)
	}
	return &purchase, nil
}

// ValidatePurchase marks the purchase validated and credits the buyer's
// referrer in one transaction. The rate is recomputed from the distinct
// validated-buyer count as of this validation, so a referrer's rate
// escalates over time while earlier credits keep their historical rate.
// Returns the credited amount, 0 when the buyer has no referrer.
func (s *Service) ValidatePurchase(ctx context.Context, actorID, purchaseID uint) (int64, error) {
	var (
		credited int64
		referrer *models.User
		count    int64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireOperator(tx, actorID); err != nil {
			return err
		}

		var purchase models.Purchase
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&purchase, purchaseID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if purchase.Validated {
			return ErrAlreadyValidated
		}

		now := time.Now().UTC()
		purchase.Validated = true
		purchase.ValidatedAt = &now
		if err := tx.Save(&purchase).Error; err != nil {
			return err
		}

		var buyer models.User
		if err := tx.First(&buyer, purchase.BuyerID).Error; err != nil {
			return err
		}
		if buyer.ReferrerID == nil {
			return nil
		}

		// Serialize against concurrent validations in the same
		// referrer's tree and against withdrawal snapshots.
		ref, err := lockUser(tx, *buyer.ReferrerID)
		if err != nil {
			return err
		}

		count, err = validatedBuyerCount(tx, ref.ID)
		if err != nil {
			return err
		}

		rate := TierRate(count)
		credited = CreditAmount(s.productPrice, rate)
		earning := models.Earning{
			BeneficiaryID: ref.ID,
			Amount:        credited,
			Rate:          rate,
			SourceBuyerID: buyer.ID,
			PurchaseID:    purchase.ID,
		}
		if err := tx.Create(&earning).Error; err != nil {
			return err
		}
		referrer = ref
		return nil
	})
	if err != nil {
		return 0, err
	}

	if referrer != nil && count == s.withdrawThreshold && s.notifier != nil {
		s.notifier.ThresholdReached(ctx, referrer, referrer.PayoutAccount != "")
	}
	return credited, nil
}

// PendingPurchases lists unvalidated submissions, oldest first.
func (s *Service) PendingPurchases(ctx context.Context) ([]models.Purchase, error) {
	var pending []models.Purchase
	err := s.db.WithContext(ctx).Preload("Buyer").
		Where("validated = ?", false).
		Order("id").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// PendingPurchasesOlderThan is the worker query: submissions still
// awaiting validation after the given cutoff.
func (s *Service) PendingPurchasesOlderThan(ctx context.Context, cutoff time.Time) ([]models.Purchase, error) {
	var pending []models.Purchase
	err := s.db.WithContext(ctx).Preload("Buyer").
		Where("validated = ? AND created_at < ?", false, cutoff).
		Order("id").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}
