package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"moneyflows-bot/internal/models"
)

// Register finds or creates the user for a transport identity. Idempotent:
// an existing user is returned unchanged apart from a refreshed display
// name. New users get a referral code on the spot.
func (s *Service) Register(ctx context.Context, telegramID int64, username, firstName string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("telegram_id = ?", telegramID).First(&user).Error; err == nil {
			if username != "" && user.Username != username {
				user.Username = username
				return tx.Save(&user).Error
			}
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = models.User{
			TelegramID:   telegramID,
			Username:     username,
			FirstName:    firstName,
			ReferralCode: uuid.NewString(),
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, fmt.Errorf("register user %d: %w", telegramID, err)
	}
	return &user, nil
}

// UserByTelegramID returns ErrNotFound for unknown identities.
func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) UserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("referral_code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LinkReferrer attaches referrerID to childID if the child has no
// referrer yet. First write wins: the null check and the write are one
// compare-and-set, so two concurrent /start calls with different codes
// cannot both apply. Returns whether the link was written.
func (s *Service) LinkReferrer(ctx context.Context, childID, referrerID uint) (bool, error) {
	if childID == referrerID {
		return false, ErrSelfReferral
	}

	linked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var referrer models.User
		if err := tx.First(&referrer, referrerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND referrer_id IS NULL", childID).
			Update("referrer_id", referrerID)
		if res.Error != nil {
			return res.Error
		}
		linked = res.RowsAffected > 0
		if linked {
			return nil
		}

		// Distinguish "already linked" (a no-op) from a missing child.
		var child models.User
		if err := tx.First(&child, childID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if linked && s.notifier != nil {
		var referrer, child models.User
		if s.db.WithContext(ctx).First(&referrer, referrerID).Error == nil &&
			s.db.WithContext(ctx).First(&child, childID).Error == nil {
			s.notifier.NewReferral(ctx, &referrer, &child)
		}
	}
	return linked, nil
}

// SetPayoutAccount overwrites the payout account; unlike the referrer
// link it may be changed at any time.
func (s *Service) SetPayoutAccount(ctx context.Context, userID uint, account string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("payout_account", account)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantOperator elevates the user. Idempotent; the caller is responsible
// for checking that the requesting identity is pre-authorized.
func (s *Service) GrantOperator(ctx context.Context, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_operator", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Operators lists every operator, used to fan out operator notifications.
func (s *Service) Operators(ctx context.Context) ([]models.User, error) {
	var ops []models.User
	if err := s.db.WithContext(ctx).Where("is_operator = ?", true).Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

// requireOperator loads the acting user under a shared read and checks
// the privilege flag.
func requireOperator(tx *gorm.DB, actorID uint) (*models.User, error) {
	var actor models.User
	if err := tx.First(&actor, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !actor.IsOperator {
		return nil, ErrUnauthorized
	}
	return &actor, nil
}

// lockUser takes the per-beneficiary row lock that serializes tier
// counting, crediting and withdrawal snapshots for one user.
func lockUser(tx *gorm.DB, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
