// Package broadcast — service.go consumes one share and delivers the link
// to every approved group.
package broadcast

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/features/accounts"
	"viralmusic.ke/promo-bot/internal/features/groups"
)

// SendFunc delivers one message to a chat. Injected so the service can be
// exercised without a live Telegram client.
type SendFunc func(chatID int64, text string) error

// Service runs the promotion fan-out.
type Service struct {
	repo     *Repository
	accounts *accounts.Service
	groups   *groups.Service
	send     SendFunc
}

func NewService(repo *Repository, accountsSvc *accounts.Service, groupsSvc *groups.Service, send SendFunc) *Service {
	return &Service{
		repo:     repo,
		accounts: accountsSvc,
		groups:   groupsSvc,
		send:     send,
	}
}

// Promote debits one share from the promoter and broadcasts the link to
// every approved group. Returns the number of groups reached. The debit
// happens first and is atomic; individual delivery failures are logged
// and skipped, they do not refund the share.
func (s *Service) Promote(ctx context.Context, userID int64, username, link string) (int, error) {
	if err := s.accounts.UseShare(ctx, userID); err != nil {
		return 0, err
	}

	list, err := s.groups.List(ctx)
	if err != nil {
		return 0, err
	}

	if username == "" {
		username = "user"
	}
	text := fmt.Sprintf("🔥 Viral Link!\n%s\nShared by @%s", link, username)

	sent := 0
	for _, g := range list {
		if err := s.send(g.ChatID, text); err != nil {
			log.WithError(err).WithField("chat_id", g.ChatID).Warn("broadcast delivery failed")
			continue
		}
		if err := s.repo.Record(ctx, &Broadcast{ChatID: g.ChatID, Link: link, UserID: userID}); err != nil {
			log.WithError(err).WithField("chat_id", g.ChatID).Warn("broadcast not recorded")
		}
		sent++
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"groups":  sent,
	}).Info("promotion broadcast complete")
	return sent, nil
}
