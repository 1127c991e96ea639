package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/redis/go-redis/v9"

	"moneyflows-bot/internal/ledger"
)

// Reminder nudges operators about purchase submissions that sat
// unvalidated for more than a day. Each purchase is reminded once,
// tracked by a Redis key with TTL.
type Reminder struct {
	Ledger *ledger.Service
	Redis  *redis.Client
	Bot    *telego.Bot
}

func NewReminder(svc *ledger.Service, rdb *redis.Client, bot *telego.Bot) *Reminder {
	return &Reminder{
		Ledger: svc,
		Redis:  rdb,
		Bot:    bot,
	}
}

func (r *Reminder) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	log.Println("Background validation reminder worker started")

	// Run once at start
	r.remindPending()

	for range ticker.C {
		r.remindPending()
	}
}

func (r *Reminder) remindPending() {
	ctx := context.Background()
	cutoff := time.Now().Add(-24 * time.Hour)

	log.Println("Running pending-validation reminder cycle...")

	stale, err := r.Ledger.PendingPurchasesOlderThan(ctx, cutoff)
	if err != nil {
		log.Printf("Error querying pending purchases: %v", err)
		return
	}
	if len(stale) == 0 {
		return
	}

	operators, err := r.Ledger.Operators(ctx)
	if err != nil {
		log.Printf("Error querying operators: %v", err)
		return
	}

	for _, purchase := range stale {
		key := fmt.Sprintf("pending_reminded_%d", purchase.ID)
		exists, _ := r.Redis.Exists(ctx, key).Result()
		if exists != 0 {
			continue
		}

		text := fmt.Sprintf(
			"⏳ Achat #%d de @%s (réf %s) attend une validation depuis plus de 24h. /validate_purchase %d",
			purchase.ID, purchase.Buyer.Username, purchase.Reference, purchase.ID)

		delivered := false
		for _, op := range operators {
			_, err := r.Bot.SendMessage(ctx, tu.Message(tu.ID(op.TelegramID), text))
			if err != nil {
				log.Printf("Failed to send reminder to operator %d: %v", op.TelegramID, err)
				continue
			}
			delivered = true
		}
		if delivered {
			r.Redis.Set(ctx, key, "true", 7*24*time.Hour)
			log.Printf("Sent validation reminder for purchase %d", purchase.ID)
		}
	}
}
