// Package accounts — handlers.go renders the welcome screen.
package accounts

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/features/quiz"
)

type Handler struct {
	service *Service
	api     *tgbotapi.BotAPI
}

func NewHandler(service *Service, api *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, api: api}
}

// HandleStart greets the user, shows the current balance and offers the
// quiz. Also the point where the account row is lazily created.
func (h *Handler) HandleStart(ctx context.Context, chatID, userID int64) {
	acc, err := h.service.Get(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("failed to load account")
		h.replyPlain(chatID, "❌ Something went wrong, please try /start again.")
		return
	}

	text := fmt.Sprintf(
		"🎶 *Welcome to Viral Music Bot!*\n\n"+
			"🔹 Pass the quiz to get *free shares*\n"+
			"🔹 Or buy more shares via MPESA\n\n"+
			"Your shares: *%d*\n"+
			"Use /promote <link> to share after unlocking.",
		acc.Shares,
	)

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = quiz.StartButton()
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send welcome")
	}
}

func (h *Handler) replyPlain(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}
