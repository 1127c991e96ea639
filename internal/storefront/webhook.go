package storefront

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"moneyflows-bot/internal/ledger"
	"moneyflows-bot/internal/utils"
)

// WebhookHandler receives order.paid events from the shop and records
// them as purchase submissions for the buyer named in the metadata.
// Orders without a telegram_id cannot be attributed and are skipped;
// those buyers submit manually with /confirm_purchase.
type WebhookHandler struct {
	Ledger    *ledger.Service
	Redis     *redis.Client
	AllowedIP []*net.IPNet
}

func NewWebhookHandler(svc *ledger.Service, rdb *redis.Client, allowed []*net.IPNet) *WebhookHandler {
	return &WebhookHandler{Ledger: svc, Redis: rdb, AllowedIP: allowed}
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !utils.IPAllowed(host, h.AllowedIP) {
		log.Printf("Rejected webhook from disallowed IP %s", host)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var notification WebhookNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		log.Printf("Failed to decode webhook: %v", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if notification.Event != EventOrderPaid {
		log.Printf("Ignored event: %s", notification.Event)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.processPaidOrder(r.Context(), notification.Object); err != nil {
		log.Printf("Failed to process paid order %s: %v", notification.Object.ID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) processPaidOrder(ctx context.Context, order Order) error {
	telegramIDStr, ok := order.Metadata["telegram_id"]
	if !ok {
		log.Printf("Order %s has no telegram_id metadata, skipping auto-submit", order.ID)
		return nil
	}
	telegramID, err := strconv.ParseInt(telegramIDStr, 10, 64)
	if err != nil {
		log.Printf("Order %s has invalid telegram_id %q, skipping", order.ID, telegramIDStr)
		return nil
	}

	// The shop retries webhooks; the same order must not produce a
	// second submission.
	if h.Redis != nil {
		key := "storefront_order_" + order.ID
		set, err := h.Redis.SetNX(ctx, key, "1", 30*24*time.Hour).Result()
		if err != nil {
			log.Printf("Redis dedup failed for order %s: %v", order.ID, err)
		} else if !set {
			log.Printf("Order %s already submitted, skipping", order.ID)
			return nil
		}
	}

	buyer, err := h.Ledger.Register(ctx, telegramID, order.Metadata["username"], "")
	if err != nil {
		return err
	}

	_, err = h.Ledger.SubmitPurchase(ctx, buyer.ID, order.Reference)
	return err
}
