package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBUser        string
	DBPassword    string
	DBName        string
	DBHost        string
	DBPort        string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	BotToken      string

	// OperatorUsername may self-register as operator via /op_register.
	OperatorUsername string

	// ProductPrice is the price of the single product, in whole FCFA.
	ProductPrice int64
	// WithdrawThreshold is the number of distinct validated referred
	// buyers required before a withdrawal may be requested.
	WithdrawThreshold int

	PurchaseURL      string
	StorefrontURL    string
	StorefrontKey    string
	WebhookPort      string
	AllowedWebhookIP []string
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		DBUser:            getEnv("DB_USER", "postgres"),
		DBPassword:        getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "moneyflows_bot"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		BotToken:          getEnv("TELEGRAM_BOT_TOKEN", ""),
		OperatorUsername:  getEnv("OPERATOR_USERNAME", ""),
		ProductPrice:      getEnvInt64("PRODUCT_PRICE", 10000),
		WithdrawThreshold: getEnvInt("WITHDRAW_THRESHOLD", 5),
		PurchaseURL:       getEnv("PURCHASE_URL", "https://sgzxfbtn.mychariow.shop/prd_8ind83"),
		StorefrontURL:     getEnv("STOREFRONT_API_URL", ""),
		StorefrontKey:     getEnv("STOREFRONT_API_KEY", ""),
		WebhookPort:       getEnv("WEBHOOK_PORT", "8080"),
		AllowedWebhookIP:  getEnvList("WEBHOOK_ALLOWED_CIDRS", []string{"0.0.0.0/0", "::/0"}),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid value for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
		log.Printf("Invalid value for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
