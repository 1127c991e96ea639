package main

import (
	"log"
	"net/http"

	"moneyflows-bot/internal/bot"
	"moneyflows-bot/internal/config"
	"moneyflows-bot/internal/database"
	"moneyflows-bot/internal/ledger"
	"moneyflows-bot/internal/notify"
	"moneyflows-bot/internal/storefront"
	"moneyflows-bot/internal/utils"
	"moneyflows-bot/internal/worker"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()

	// Connect to Database
	db, err := database.ConnectPostgres(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}

	// Connect to Redis
	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}

	// Storefront API client (order lookups for /check)
	shop := storefront.NewClient(cfg.StorefrontURL, cfg.StorefrontKey)

	// Telegram dispatcher; the ledger is wired below once the
	// notification sink has a bot instance to send through.
	tgBot, err := bot.NewBot(cfg.BotToken, nil, shop, cfg.OperatorUsername, cfg.PurchaseURL)
	if err != nil {
		log.Fatalf("Could not create bot: %v", err)
	}

	sink := notify.NewTelegramSink(tgBot.Instance, db, rdb)
	svc := ledger.NewService(db, sink, cfg.ProductPrice, cfg.WithdrawThreshold)
	tgBot.Ledger = svc

	// Storefront webhook
	allowed, err := utils.ParseCIDRs(cfg.AllowedWebhookIP)
	if err != nil {
		log.Fatalf("Invalid webhook allowlist: %v", err)
	}
	webhook := storefront.NewWebhookHandler(svc, rdb, allowed)
	go func() {
		http.HandleFunc("/webhook/storefront", webhook.HandleWebhook)
		addr := ":" + cfg.WebhookPort
		log.Printf("Storefront webhook listening on %s", addr)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Webhook server failed: %v", err)
		}
	}()

	// Background reminders for stale pending validations
	reminder := worker.NewReminder(svc, rdb, tgBot.Instance)
	go reminder.Start()

	log.Println("Service started successfully")
	tgBot.Start()
}
