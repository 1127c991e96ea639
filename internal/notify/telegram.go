// Package notify delivers ledger events to users and operators over
// Telegram. Delivery is best effort: failures are logged and never
// reach the ledger operation that emitted the event.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"moneyflows-bot/internal/models"
)

type TelegramSink struct {
	Bot   *telego.Bot
	DB    *gorm.DB
	Redis *redis.Client
}

func NewTelegramSink(bot *telego.Bot, db *gorm.DB, rdb *redis.Client) *TelegramSink {
	return &TelegramSink{Bot: bot, DB: db, Redis: rdb}
}

func (s *TelegramSink) send(ctx context.Context, telegramID int64, text string) {
	_, err := s.Bot.SendMessage(ctx, tu.Message(tu.ID(telegramID), text))
	if err != nil {
		log.Printf("Failed to notify user %d: %v", telegramID, err)
	}
}

func (s *TelegramSink) sendOperators(ctx context.Context, text string) {
	var operators []models.User
	if err := s.DB.Where("is_operator = ?", true).Find(&operators).Error; err != nil {
		log.Printf("Failed to load operators for notification: %v", err)
		return
	}
	for _, op := range operators {
		s.send(ctx, op.TelegramID, text)
	}
}

// seenBefore marks key in Redis and reports whether it was already set.
// On Redis errors the notification goes out anyway; a duplicate message
// is better than a silently dropped one.
func (s *TelegramSink) seenBefore(ctx context.Context, key string) bool {
	if s.Redis == nil {
		return false
	}
	set, err := s.Redis.SetNX(ctx, key, "1", 0).Result()
	if err != nil {
		log.Printf("Redis dedup failed for %s: %v", key, err)
		return false
	}
	return !set
}

func displayName(u *models.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("utilisateur %d", u.TelegramID)
}

func (s *TelegramSink) NewReferral(ctx context.Context, referrer, referred *models.User) {
	s.send(ctx, referrer.TelegramID, fmt.Sprintf("🎉 Nouveau filleul inscrit : %s", displayName(referred)))
}

func (s *TelegramSink) PurchaseSubmitted(ctx context.Context, purchase *models.Purchase, buyer *models.User) {
	s.sendOperators(ctx, fmt.Sprintf(
		"🧾 Nouvelle référence d'achat à valider : achat #%d / %s / réf: %s",
		purchase.ID, displayName(buyer), purchase.Reference))
}

func (s *TelegramSink) ThresholdReached(ctx context.Context, referrer *models.User, payoutAccountSet bool) {
	if s.seenBefore(ctx, fmt.Sprintf("threshold_notified_%d", referrer.ID)) {
		return
	}
	text := "🏆 Seuil de retrait atteint ! Tu peux demander un retrait avec /retrait."
	if !payoutAccountSet {
		text = "🏆 Seuil de retrait atteint ! Enregistre d'abord ton numéro Mobile Money avec /setmm <numero>."
	}
	s.send(ctx, referrer.TelegramID, text)
}

// WithdrawalCreated goes to the operators; the dispatcher already
// confirms the request to the beneficiary in its reply.
func (s *TelegramSink) WithdrawalCreated(ctx context.Context, w *models.Withdrawal, beneficiary *models.User) {
	s.sendOperators(ctx, fmt.Sprintf(
		"💸 Retrait #%d en attente : %d FCFA pour %s (numéro %s)",
		w.ID, w.Amount, displayName(beneficiary), w.PayoutAccount))
}

func (s *TelegramSink) WithdrawalSettled(ctx context.Context, w *models.Withdrawal, beneficiary *models.User) {
	switch w.Status {
	case models.WithdrawalApproved:
		s.send(ctx, beneficiary.TelegramID, fmt.Sprintf(
			"✅ Ton retrait #%d de %d FCFA a été approuvé. Paiement en cours vers %s.",
			w.ID, w.Amount, w.PayoutAccount))
	case models.WithdrawalRejected:
		text := fmt.Sprintf("❌ Ton retrait #%d de %d FCFA a été refusé.", w.ID, w.Amount)
		if w.Reason != "" {
			text += fmt.Sprintf("\nMotif : %s", w.Reason)
		}
		s.send(ctx, beneficiary.TelegramID, text)
	}
}
