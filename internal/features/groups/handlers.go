// Package groups — handlers.go renders group registration and the
// admin-only group listing.
package groups

import (
	"context"
	"fmt"
	"strings"

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

// HandleRegisterGroup registers the current chat as a broadcast target.
// Only meaningful inside a group.
func (h *Handler) HandleRegisterGroup(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat.IsPrivate() {
		h.reply(message.Chat.ID, "Use this command in a group.")
		return
	}

	chat := message.Chat
	err := h.service.Register(ctx, chat.ID, chat.Title, chat.UserName, message.From.ID)
	if err != nil {
		log.WithError(err).WithField("chat_id", chat.ID).Error("group registration failed")
		h.reply(chat.ID, "❌ Could not register this group, try again.")
		return
	}
	h.reply(chat.ID, "✅ Group registered for auto-broadcast!")
}

// HandleListGroups renders the registry. Admin-only.
func (h *Handler) HandleListGroups(ctx context.Context, chatID, userID int64) {
	if !h.admins.IsAdmin(userID) {
		return
	}

	list, err := h.service.List(ctx)
	if err != nil {
		log.WithError(err).Error("failed to list groups")
		h.reply(chatID, "❌ Could not load the group list.")
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "No registered groups.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 *Registered Groups:*\n")
	for _, g := range list {
		handle := g.Username
		if handle == "" {
			handle = "private"
		}
		sb.WriteString(fmt.Sprintf("- %s (@%s) [ID: %d]\n", g.Title, handle, g.ChatID))
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send group list")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}
