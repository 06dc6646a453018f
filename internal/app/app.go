// Package app assembles the application: database pool, repositories,
// services, handlers, filters, the Telegram bot, the HTTP callback
// server and the cron scheduler.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/bot"
	"viralmusic.ke/promo-bot/internal/bot/filters"
	"viralmusic.ke/promo-bot/internal/config"
	"viralmusic.ke/promo-bot/internal/db/postgres"
	"viralmusic.ke/promo-bot/internal/features/accounts"
	"viralmusic.ke/promo-bot/internal/features/admin"
	"viralmusic.ke/promo-bot/internal/features/broadcast"
	"viralmusic.ke/promo-bot/internal/features/groups"
	"viralmusic.ke/promo-bot/internal/features/payments"
	"viralmusic.ke/promo-bot/internal/features/quiz"
	"viralmusic.ke/promo-bot/internal/jobs"
	"viralmusic.ke/promo-bot/internal/mpesa"
	"viralmusic.ke/promo-bot/internal/server"
)

// App holds every long-lived component.
type App struct {
	Bot       *bot.Bot
	Server    *server.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New builds and initializes the application. Order matters: the pool
// and migrations come first, then the Telegram API, then the layers on
// top of both.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram api init failed: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("authorized as @%s", botAPI.Self.UserName)

	gateway := mpesa.New(mpesa.Config{
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		Shortcode:      cfg.MpesaShortcode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
		BaseURL:        cfg.MpesaBaseURL,
		MaxRetries:     cfg.MpesaMaxRetries,
		RetryDelay:     cfg.MpesaRetryDelay,
	})

	accountRepo := accounts.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)
	groupRepo := groups.NewRepository(pool)
	broadcastRepo := broadcast.NewRepository(pool)

	accountService := accounts.NewService(accountRepo)
	groupService := groups.NewService(groupRepo)

	adminFilter := filters.NewAdminFilter(cfg.AdminIDs)
	chatFilter := filters.NewChatFilter()

	accountHandler := accounts.NewHandler(accountService, botAPI)
	groupHandler := groups.NewHandler(groupService, adminFilter, botAPI)
	quizHandler := quiz.NewHandler(accountService, botAPI, cfg.QuizRewardShares)

	// The bot is both a feature consumer and the Notifier behind the
	// payment pipeline, so it is assembled in two steps: handlers that
	// only need the raw API first, then the payment/broadcast layers
	// that need the bot's send methods.
	paymentService := payments.NewService(paymentRepo, gateway, nil, cfg.AdminIDs)
	paymentHandler := payments.NewHandler(paymentService, botAPI)

	adminService := admin.NewService(accountService, paymentService)
	adminHandler := admin.NewHandler(adminService, adminFilter, botAPI)

	b := bot.New(
		botAPI, cfg,
		accountHandler,
		paymentHandler,
		groupHandler,
		nil, // broadcast handler attached below
		quizHandler,
		adminHandler,
		chatFilter,
	)
	paymentService.SetNotifier(b)

	broadcastService := broadcast.NewService(broadcastRepo, accountService, groupService, b.SendToGroup)
	broadcastHandler := broadcast.NewHandler(broadcastService, accountService, botAPI)
	b.SetBroadcastHandler(broadcastHandler)

	httpServer := server.New(cfg.ServerPort, paymentService)
	scheduler := jobs.NewScheduler(adminService, cfg.AdminIDs, b.Notify)

	return &App{
		Bot:       b,
		Server:    httpServer,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations applies all SQL migrations in order.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationsTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Users},
		{2, migration002Payments},
		{3, migration003Groups},
		{4, migration004Broadcasts},
		{5, migration005Packages},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		log.Infof("migration %d applied", m.version)
	}

	return nil
}

// SQL migrations are embedded in code to keep deployment to a single
// binary plus Postgres.

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT UNIQUE NOT NULL,
    unlocked BOOLEAN DEFAULT FALSE,
    shares BIGINT DEFAULT 0,
    quizzes_passed BOOLEAN DEFAULT FALSE,
    promotions_used BIGINT DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_user_id ON users(user_id);
`

var migration002Payments = `
CREATE TABLE IF NOT EXISTS payments (
    id UUID PRIMARY KEY,
    phone VARCHAR(20) NOT NULL,
    amount BIGINT NOT NULL,
    package VARCHAR(50) NOT NULL,
    user_id BIGINT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    merchant_request_id VARCHAR(100),
    checkout_request_id VARCHAR(100),
    receipt VARCHAR(50),
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_checkout_request_id
    ON payments(checkout_request_id);
CREATE INDEX IF NOT EXISTS idx_payments_user_id ON payments(user_id);
CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);
`

var migration003Groups = `
CREATE TABLE IF NOT EXISTS approved_groups (
    chat_id BIGINT PRIMARY KEY,
    title VARCHAR(255),
    username VARCHAR(255),
    added_by BIGINT,
    created_at TIMESTAMP DEFAULT NOW()
);
`

var migration004Broadcasts = `
CREATE TABLE IF NOT EXISTS broadcasts (
    id BIGSERIAL PRIMARY KEY,
    chat_id BIGINT NOT NULL,
    link TEXT NOT NULL,
    user_id BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_broadcasts_user_id ON broadcasts(user_id);
`

var migration005Packages = `
CREATE TABLE IF NOT EXISTS packages (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(50) UNIQUE NOT NULL,
    amount BIGINT UNIQUE NOT NULL,
    shares BIGINT NOT NULL
);
INSERT INTO packages (name, amount, shares) VALUES
    ('BASIC', 20, 20),
    ('PRO', 50, 50),
    ('VIP', 100, 100)
ON CONFLICT (amount) DO NOTHING;
`
