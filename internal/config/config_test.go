package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "111, 222")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("MPESA_CONSUMER_KEY", "key")
	t.Setenv("MPESA_CONSUMER_SECRET", "secret")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("MPESA_CALLBACK_URL", "https://example.com/mpesa/callback")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int64{111, 222}, cfg.AdminIDs)
	assert.Equal(t, "postgres", cfg.DBHost)
	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, "https://sandbox.safaricom.co.ke", cfg.MpesaBaseURL)
	assert.Equal(t, 3, cfg.MpesaMaxRetries)
	assert.Equal(t, 2*time.Second, cfg.MpesaRetryDelay)
	assert.Equal(t, int64(20), cfg.QuizRewardShares)
	assert.Equal(t, 64, cfg.BotMaxInflight)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	// t.Setenv("", ...) still counts as set for envconfig, so unset outright.
	t.Setenv("TELEGRAM_BOT_TOKEN", "placeholder")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadBadAdminIDs(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_IDS", "111,not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBUser: "botuser", DBPassword: "pw", DBHost: "db",
		DBPort: 5432, DBName: "promo_bot", DBSSLMode: "disable",
	}
	assert.Equal(t, "postgres://botuser:pw@db:5432/promo_bot?sslmode=disable", cfg.DatabaseDSN())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ServerPort: 5000, BotMaxInflight: 64, BotUpdateTimeoutSeconds: 60,
			DBMaxConns: 25, DBMinConns: 5, MpesaMaxRetries: 3, QuizRewardShares: 20,
		}
	}

	assert.NoError(t, base().Validate())

	bad := base()
	bad.ServerPort = 0
	assert.Error(t, bad.Validate())

	bad = base()
	bad.DBMinConns = 30
	assert.Error(t, bad.Validate())

	bad = base()
	bad.QuizRewardShares = -1
	assert.Error(t, bad.Validate())
}
