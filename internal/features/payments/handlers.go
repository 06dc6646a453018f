// Package payments — handlers.go renders the buy/pay chat commands.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/common"
)

// Handler wires the payment commands to the Telegram API.
type Handler struct {
	service *Service
	api     *tgbotapi.BotAPI
}

func NewHandler(service *Service, api *tgbotapi.BotAPI) *Handler {
	return &Handler{service: service, api: api}
}

// HandleBuy renders the package catalog.
func (h *Handler) HandleBuy(ctx context.Context, chatID int64) {
	var sb strings.Builder
	sb.WriteString("💳 *Choose a Package:*\n")
	for _, p := range Catalog {
		sb.WriteString(fmt.Sprintf("/pay 2547XXXXXXXX %d → %s (%s)\n",
			p.Price, p.Name, common.FormatKES(p.Price)))
	}
	sb.WriteString("\nExample: `/pay 254712345678 50`")
	h.reply(chatID, sb.String(), true)
}

// HandlePay validates the arguments and initiates the STK push.
// Each violation gets its own corrective message before any network call.
func (h *Handler) HandlePay(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) != 2 {
		h.reply(chatID, "Usage: /pay <phone> <amount>\nExample: /pay 254712345678 50", false)
		return
	}

	phone := args[0]
	if err := ValidatePhone(phone); err != nil {
		h.reply(chatID, "📱 Please use format: 2547XXXXXXXX", false)
		return
	}

	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		h.reply(chatID, "🔢 Amount must be a number (20, 50 or 100).", false)
		return
	}
	if !CatalogAmount(amount) {
		h.reply(chatID, "⚠️ Only KES 20, 50 or 100 allowed.", false)
		return
	}

	// The initiation call blocks through the retry loop; we run inside a
	// per-update goroutine, so a slow gateway stalls only this user.
	_, err = h.service.Initiate(ctx, userID, phone, amount)
	if err != nil {
		if errors.Is(err, common.ErrGatewayUnavailable) {
			h.reply(chatID, "❌ Failed to send STK push. Please try again later.", false)
		} else {
			log.WithError(err).WithField("user_id", userID).Error("payment initiation failed")
			h.reply(chatID, "❌ Something went wrong, payment was not started.", false)
		}
		return
	}

	h.reply(chatID, fmt.Sprintf(
		"📲 STK Push sent for %s. Complete the payment on your phone!",
		common.FormatKES(amount)), false)
}

func (h *Handler) reply(chatID int64, text string, markdown bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}
