// Package bot owns the Telegram side of the service: the long-polling
// loop, command routing and outgoing notifications.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/bot/filters"
	"viralmusic.ke/promo-bot/internal/bot/middleware"
	"viralmusic.ke/promo-bot/internal/config"
	"viralmusic.ke/promo-bot/internal/features/accounts"
	"viralmusic.ke/promo-bot/internal/features/admin"
	"viralmusic.ke/promo-bot/internal/features/broadcast"
	"viralmusic.ke/promo-bot/internal/features/groups"
	"viralmusic.ke/promo-bot/internal/features/payments"
	"viralmusic.ke/promo-bot/internal/features/quiz"
)

// Bot wires the Telegram API to the feature handlers.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	accountHandler   *accounts.Handler
	paymentHandler   *payments.Handler
	groupHandler     *groups.Handler
	broadcastHandler *broadcast.Handler
	quizHandler      *quiz.Handler
	adminHandler     *admin.Handler

	parser *CommandParser

	// caps concurrent update handling
	inflight chan struct{}
}

func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	accountHandler *accounts.Handler,
	paymentHandler *payments.Handler,
	groupHandler *groups.Handler,
	broadcastHandler *broadcast.Handler,
	quizHandler *quiz.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:              api,
		cfg:              cfg,
		chatFilter:       chatFilter,
		rateLimiter:      middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		accountHandler:   accountHandler,
		paymentHandler:   paymentHandler,
		groupHandler:     groupHandler,
		broadcastHandler: broadcastHandler,
		quizHandler:      quizHandler,
		adminHandler:     adminHandler,
		parser:           NewCommandParser(),
		inflight:         make(chan struct{}, maxInFlight),
	}
}

// SetBroadcastHandler attaches the promote handler after construction.
// The broadcast service sends through the bot, so it cannot exist before
// the bot does.
func (b *Bot) SetBroadcastHandler(h *broadcast.Handler) {
	b.broadcastHandler = h
}

// Start runs the long-polling loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("bot started, waiting for updates")

	for {
		select {
		case <-ctx.Done():
			log.Info("bot stopping (ctx done)")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("updates channel closed, bot stopped")
				return
			}

			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	// Quiz answers arrive as callback queries, not messages.
	if update.CallbackQuery != nil {
		if update.CallbackQuery.From != nil && !b.rateLimiter.Allow(update.CallbackQuery.From.ID) {
			log.WithField("user_id", update.CallbackQuery.From.ID).Debug("rate limited (callback)")
			return
		}
		if !b.quizHandler.HandleCallback(ctx, update.CallbackQuery) {
			log.WithField("data", update.CallbackQuery.Data).Debug("unrecognized callback")
		}
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(message) {
		return
	}

	if !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	if !isCommand {
		return
	}

	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	b.routeCommand(ctx, message, cmd, args)
}

func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch cmd {
	case "start":
		b.accountHandler.HandleStart(ctx, chatID, userID)

	case "help":
		b.sendMessage(chatID, "Commands: /start, /buy, /pay <phone> <amount>, /promote <link>, /register_group")

	case "buy":
		b.paymentHandler.HandleBuy(ctx, chatID)

	case "pay":
		b.paymentHandler.HandlePay(ctx, chatID, userID, args)

	case "promote":
		b.broadcastHandler.HandlePromote(ctx, chatID, userID, message.From.UserName, args)

	case "register_group":
		b.groupHandler.HandleRegisterGroup(ctx, message)

	case "listgroups":
		b.groupHandler.HandleListGroups(ctx, chatID, userID)

	case "stats":
		b.adminHandler.HandleStats(ctx, chatID, userID)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}

// Notify sends a plain-text message to a user or admin. It backs the
// payment confirmation fan-out and the daily revenue digest.
func (b *Bot) Notify(recipient int64, text string) {
	msg := tgbotapi.NewMessage(recipient, text)
	if _, err := b.api.Send(msg); err != nil {
		// Users who never opened a DM with the bot are unreachable;
		// that must not fail the payment pipeline.
		if strings.Contains(err.Error(), "blocked") || strings.Contains(err.Error(), "chat not found") {
			log.WithField("recipient", recipient).Debug("recipient unreachable")
			return
		}
		log.WithError(err).WithField("recipient", recipient).Warn("failed to deliver notification")
	}
}

// SendToGroup delivers broadcast text to a registered group chat.
func (b *Bot) SendToGroup(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
