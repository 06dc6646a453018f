// Package broadcast — handlers.go renders the /promote command.
package broadcast

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/common"
	"viralmusic.ke/promo-bot/internal/features/accounts"
)

type Handler struct {
	service  *Service
	accounts *accounts.Service
	api      *tgbotapi.BotAPI
}

func NewHandler(service *Service, accountsSvc *accounts.Service, api *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, accounts: accountsSvc, api: api}
}

// HandlePromote consumes one share and broadcasts the link.
func (h *Handler) HandlePromote(ctx context.Context, chatID, userID int64, username string, args []string) {
	if len(args) == 0 {
		h.reply(chatID, "Usage: /promote https://example.com")
		return
	}
	link := args[0]

	sent, err := h.service.Promote(ctx, userID, username, link)
	if err != nil {
		if errors.Is(err, common.ErrInsufficientShares) {
			h.reply(chatID, "🔒 You have no shares left. Buy more with /buy")
			return
		}
		log.WithError(err).WithField("user_id", userID).Error("promotion failed")
		h.reply(chatID, "❌ Failed to use share.")
		return
	}

	remaining := "?"
	if acc, err := h.accounts.Get(ctx, userID); err == nil {
		remaining = common.FormatShares(acc.Shares)
	}
	h.reply(chatID, fmt.Sprintf("✅ Shared to %d groups! Remaining: %s", sent, remaining))
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}
