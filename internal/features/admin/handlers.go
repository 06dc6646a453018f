package admin

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/bot/filters"
)

type Handler struct {
	service *Service
	admins  *filters.AdminFilter
	api     *tgbotapi.BotAPI
}

func NewHandler(service *Service, admins *filters.AdminFilter, api *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, admins: admins, api: api}
}

// HandleStats renders the admin report. Non-admins are silently ignored,
// matching the rest of the admin surface.
func (h *Handler) HandleStats(ctx context.Context, chatID, userID int64) {
	if !h.admins.IsAdmin(userID) {
		return
	}

	stats, err := h.service.Stats(ctx)
	if err != nil {
		log.WithError(err).Error("failed to gather admin stats")
		h.reply(chatID, "❌ Could not load stats.")
		return
	}

	text := fmt.Sprintf(
		"📊 *Admin Stats*\n"+
			"Users: %d\n"+
			"Total Promotions Used: %d\n"+
			"Verified Payments: %d\n"+
			"Revenue: KES %d",
		stats.Users, stats.PromotionsUsed, stats.VerifiedPayments, stats.RevenueKES,
	)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send stats")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}
