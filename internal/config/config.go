// Package config loads the bot configuration from environment variables.
// envconfig maps environment variables onto the Config struct fields.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds ALL application settings.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // filled manually from AdminIDsRaw

	// --- Database ---
	// Inside Docker "localhost" is almost always wrong, default to the
	// docker-compose service name and override DB_HOST=localhost locally.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"promo_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- M-Pesa Daraja ---
	MpesaConsumerKey    string `envconfig:"MPESA_CONSUMER_KEY" required:"true"`
	MpesaConsumerSecret string `envconfig:"MPESA_CONSUMER_SECRET" required:"true"`
	MpesaShortcode      string `envconfig:"MPESA_SHORTCODE" required:"true"`
	MpesaPasskey        string `envconfig:"MPESA_PASSKEY" required:"true"`
	MpesaCallbackURL    string `envconfig:"MPESA_CALLBACK_URL" required:"true"`
	// Sandbox by default, switch to https://api.safaricom.co.ke when live.
	MpesaBaseURL    string        `envconfig:"MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	MpesaMaxRetries int           `envconfig:"MPESA_MAX_RETRIES" default:"3"`
	MpesaRetryDelay time.Duration `envconfig:"MPESA_RETRY_DELAY" default:"2s"`

	// --- Callback server ---
	ServerPort int `envconfig:"PORT" default:"5000"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Bot runtime ---
	// How many updates are handled in parallel; "go per update" without a
	// cap leaks memory under flood.
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Quiz ---
	QuizRewardShares int64 `envconfig:"QUIZ_REWARD_SHARES" default:"20"`

	// --- Rate limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("PORT must be a valid port, got %d", c.ServerPort)
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT must be > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS must be > 0")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.MpesaMaxRetries <= 0 {
		return fmt.Errorf("MPESA_MAX_RETRIES must be > 0")
	}
	if c.QuizRewardShares <= 0 {
		return fmt.Errorf("QUIZ_REWARD_SHARES must be > 0")
	}
	return nil
}

// Load reads environment variables and fills the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
