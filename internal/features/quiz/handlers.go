// Package quiz is the reward quiz: one question about the promoted song,
// a correct answer unlocks the free share quota. The quiz is conceptually
// one-shot but stays re-answerable; crediting is what flips the account's
// unlocked flag, so repeat correct answers simply add more shares.
package quiz

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/common"
)

// Callback data values routed to this handler.
const (
	CallbackStart   = "quiz"
	CallbackCorrect = "quiz_correct"
	CallbackWrong   = "quiz_wrong"
)

// Rewarder credits shares to an account. Implemented by accounts.Service.
type Rewarder interface {
	Credit(ctx context.Context, userID, shares int64) error
}

type Handler struct {
	rewarder     Rewarder
	api          *tgbotapi.BotAPI
	rewardShares int64
}

func NewHandler(rewarder Rewarder, api *tgbotapi.BotAPI, rewardShares int64) *Handler {
	return &Handler{rewarder: rewarder, api: api, rewardShares: rewardShares}
}

// StartButton returns the inline button shown in the welcome message.
func StartButton() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎧 Take Quiz", CallbackStart),
		),
	)
}

// HandleCallback routes a quiz callback query. Returns false when the data
// does not belong to the quiz.
func (h *Handler) HandleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) bool {
	switch query.Data {
	case CallbackStart:
		h.askQuestion(query)
	case CallbackCorrect:
		h.rewardAnswer(ctx, query)
	case CallbackWrong:
		h.answer(query.ID)
		h.reply(query.Message.Chat.ID, "❌ Incorrect. Try listening again!")
	default:
		return false
	}
	return true
}

func (h *Handler) askQuestion(query *tgbotapi.CallbackQuery) {
	h.answer(query.ID)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Mama & Teachers", CallbackCorrect),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Dance Party", CallbackWrong),
		),
	)
	msg := tgbotapi.NewMessage(query.Message.Chat.ID, "What is the song about?")
	msg.ReplyMarkup = kb
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).Error("failed to send quiz question")
	}
}

func (h *Handler) rewardAnswer(ctx context.Context, query *tgbotapi.CallbackQuery) {
	h.answer(query.ID)

	userID := query.From.ID
	if err := h.rewarder.Credit(ctx, userID, h.rewardShares); err != nil {
		log.WithError(err).WithField("user_id", userID).Error("quiz reward credit failed")
		h.reply(query.Message.Chat.ID, "❌ Something went wrong, please try again.")
		return
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"shares":  h.rewardShares,
	}).Info("quiz passed, reward credited")
	h.reply(query.Message.Chat.ID, fmt.Sprintf(
		"✅ Correct! You've been awarded %s promotion %s.",
		strconv.FormatInt(h.rewardShares, 10), common.PluralizeShares(h.rewardShares)))
}

func (h *Handler) answer(callbackID string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		log.WithError(err).Debug("failed to answer callback query")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("failed to send message")
	}
}
