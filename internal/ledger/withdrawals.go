package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moneyflows-bot/internal/models"
)

// RequestWithdrawal turns the beneficiary's unpaid balance into a pending
// withdrawal. The balance snapshot and the paid-flag flip happen in one
// transaction under the beneficiary row lock, so an earning credited
// concurrently lands either fully inside this withdrawal or stays unpaid
// for the next one; it is never split or double-claimed.
func (s *Service) RequestWithdrawal(ctx context.Context, beneficiaryID uint) (*models.Withdrawal, error) {
	var (
		withdrawal  models.Withdrawal
		beneficiary *models.User
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := lockUser(tx, beneficiaryID)
		if err != nil {
			return err
		}

		count, err := validatedBuyerCount(tx, user.ID)
		if err != nil {
			return err
		}
		if count < s.withdrawThreshold {
			return ErrNotEligible
		}
		if user.PayoutAccount == "" {
			return ErrNoPayoutAccount
		}

		amount, err := sumEarnings(tx, user.ID, true)
		if err != nil {
			return err
		}
		if amount == 0 {
			return ErrZeroBalance
		}

		withdrawal = models.Withdrawal{
			BeneficiaryID: user.ID,
			Amount:        amount,
			PayoutAccount: user.PayoutAccount,
			Status:        models.WithdrawalPending,
		}
		if err := tx.Create(&withdrawal).Error; err != nil {
			return err
		}

		// Claim exactly the earnings just snapshotted.
		if err := tx.Model(&models.Earning{}).
			Where("beneficiary_id = ? AND paid = ?", user.ID, false).
			Update("paid", true).Error; err != nil {
			return err
		}
		beneficiary = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.WithdrawalCreated(ctx, &withdrawal, beneficiary)
	}
	return &withdrawal, nil
}

// ApproveWithdrawal settles a pending withdrawal. Operator only. The only
// side effect beyond the status flip is the beneficiary notification.
func (s *Service) ApproveWithdrawal(ctx context.Context, actorID, withdrawalID uint) error {
	return s.settleWithdrawal(ctx, actorID, withdrawalID, models.WithdrawalApproved, "")
}

// RejectWithdrawal marks a pending withdrawal rejected. The earnings
// claimed at request time stay paid; no amounts are restored.
func (s *Service) RejectWithdrawal(ctx context.Context, actorID, withdrawalID uint, reason string) error {
	return s.settleWithdrawal(ctx, actorID, withdrawalID, models.WithdrawalRejected, reason)
}

func (s *Service) settleWithdrawal(ctx context.Context, actorID, withdrawalID uint, status models.WithdrawalStatus, reason string) error {
	var (
		withdrawal  models.Withdrawal
		beneficiary models.User
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := requireOperator(tx, actorID); err != nil {
			return err
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&withdrawal, withdrawalID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if withdrawal.Status != models.WithdrawalPending {
			return ErrInvalidState
		}

		now := time.Now().UTC()
		withdrawal.Status = status
		withdrawal.Reason = reason
		withdrawal.SettledAt = &now
		if err := tx.Save(&withdrawal).Error; err != nil {
			return err
		}
		return tx.First(&beneficiary, withdrawal.BeneficiaryID).Error
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.WithdrawalSettled(ctx, &withdrawal, &beneficiary)
	}
	return nil
}

// Withdrawal returns one withdrawal by id.
func (s *Service) Withdrawal(ctx context.Context, withdrawalID uint) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := s.db.WithContext(ctx).First(&withdrawal, withdrawalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// PendingWithdrawals lists withdrawals awaiting an operator decision.
func (s *Service) PendingWithdrawals(ctx context.Context) ([]models.Withdrawal, error) {
	var pending []models.Withdrawal
	err := s.db.WithContext(ctx).Preload("Beneficiary").
		Where("status = ?", models.WithdrawalPending).
		Order("id").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}
