package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	LogLevel string

	DBUser     string
	DBPassword string
	DBName     string
	DBHost     string
	DBPort     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	BotToken    string
	AdminChatID int64

	RemnawaveURL    string
	RemnawaveKey    string
	RemnawaveSquads []string
	PanelTimeout    time.Duration

	PaymentProviderToken string
	Currency             string

	HTTPAddr       string
	AllowedOrigins []string

	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	AdminSessionTTL   time.Duration
	SessionBackend    string

	WebhookSecret       string
	WebhookAllowedCIDRs []string

	ClosedMode bool

	PurchaseStaleAfter time.Duration
	SweepSchedule      string

	Pricing Pricing
}

// Pricing holds the environment defaults of the pricing configuration.
// Rows of the settings table override them at runtime.
type Pricing struct {
	BasePrice  float64
	Discount3  float64
	Discount6  float64
	Discount12 float64

	FerrumDiscount      int
	FerrumMaxDiscount   int
	ArgentumDiscount    int
	ArgentumMaxDiscount int
	AurumDiscount       int
	AurumMaxDiscount    int
	PlatinumDiscount    int
	PlatinumMaxDiscount int

	ReferralBonusPercent int
	ReferralMaxBonus     int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		Env:      v.GetString("APP_ENV"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		RedisHost:     v.GetString("REDIS_HOST"),
		RedisPort:     v.GetString("REDIS_PORT"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		BotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
		AdminChatID: v.GetInt64("ADMIN_TG_ID"),

		RemnawaveURL:    strings.TrimRight(v.GetString("REMNAWAVE_API_URL"), "/"),
		RemnawaveKey:    v.GetString("REMNAWAVE_API_KEY"),
		RemnawaveSquads: splitList(v.GetString("REMNAWAVE_SQUADS")),
		PanelTimeout:    v.GetDuration("PANEL_TIMEOUT"),

		PaymentProviderToken: v.GetString("YOOKASSA_TOKEN"),
		Currency:             v.GetString("PAYMENT_CURRENCY"),

		HTTPAddr:       v.GetString("HTTP_ADDR"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),

		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminPassword:     v.GetString("ADMIN_PASSWORD"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		AdminSessionTTL:   v.GetDuration("ADMIN_SESSION_TTL"),
		SessionBackend:    v.GetString("ADMIN_SESSION_BACKEND"),

		WebhookSecret:       v.GetString("WEBHOOK_SECRET_AURA"),
		WebhookAllowedCIDRs: splitList(v.GetString("WEBHOOK_ALLOWED_CIDRS")),

		ClosedMode: v.GetBool("CLOSED_MODE_ENABLED"),

		PurchaseStaleAfter: v.GetDuration("PURCHASE_STALE_AFTER"),
		SweepSchedule:      v.GetString("SWEEP_SCHEDULE"),

		Pricing: Pricing{
			BasePrice:  v.GetFloat64("BASE_PRICE"),
			Discount3:  v.GetFloat64("PRICE_DISCOUNT_3_MONTHS"),
			Discount6:  v.GetFloat64("PRICE_DISCOUNT_6_MONTHS"),
			Discount12: v.GetFloat64("PRICE_DISCOUNT_12_MONTHS"),

			FerrumDiscount:      v.GetInt("LEVEL_FERRUM_DISCOUNT"),
			FerrumMaxDiscount:   v.GetInt("LEVEL_FERRUM_MAX_DISCOUNT"),
			ArgentumDiscount:    v.GetInt("LEVEL_ARGENTUM_DISCOUNT"),
			ArgentumMaxDiscount: v.GetInt("LEVEL_ARGENTUM_MAX_DISCOUNT"),
			AurumDiscount:       v.GetInt("LEVEL_AURUM_DISCOUNT"),
			AurumMaxDiscount:    v.GetInt("LEVEL_AURUM_MAX_DISCOUNT"),
			PlatinumDiscount:    v.GetInt("LEVEL_PLATINUM_DISCOUNT"),
			PlatinumMaxDiscount: v.GetInt("LEVEL_PLATINUM_MAX_DISCOUNT"),

			ReferralBonusPercent: v.GetInt("REFERRAL_BONUS_PERCENT"),
			ReferralMaxBonus:     v.GetInt("REFERRAL_MAX_BONUS"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "aura_bot")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("PANEL_TIMEOUT", 30*time.Second)
	v.SetDefault("PAYMENT_CURRENCY", "RUB")

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("ADMIN_SESSION_TTL", 24*time.Hour)
	v.SetDefault("ADMIN_SESSION_BACKEND", "redis")

	v.SetDefault("CLOSED_MODE_ENABLED", false)
	v.SetDefault("PURCHASE_STALE_AFTER", 7*24*time.Hour)
	v.SetDefault("SWEEP_SCHEDULE", "0 * * * *")

	v.SetDefault("BASE_PRICE", 180)
	v.SetDefault("PRICE_DISCOUNT_3_MONTHS", 0.85)
	v.SetDefault("PRICE_DISCOUNT_6_MONTHS", 0.80)
	v.SetDefault("PRICE_DISCOUNT_12_MONTHS", 0.75)

	v.SetDefault("LEVEL_FERRUM_DISCOUNT", 0)
	v.SetDefault("LEVEL_FERRUM_MAX_DISCOUNT", 25)
	v.SetDefault("LEVEL_ARGENTUM_DISCOUNT", 25)
	v.SetDefault("LEVEL_ARGENTUM_MAX_DISCOUNT", 50)
	v.SetDefault("LEVEL_AURUM_DISCOUNT", 50)
	v.SetDefault("LEVEL_AURUM_MAX_DISCOUNT", 50)
	v.SetDefault("LEVEL_PLATINUM_DISCOUNT", 100)
	v.SetDefault("LEVEL_PLATINUM_MAX_DISCOUNT", 100)

	v.SetDefault("REFERRAL_BONUS_PERCENT", 5)
	v.SetDefault("REFERRAL_MAX_BONUS", 25)
}

func (c *Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "development"
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
