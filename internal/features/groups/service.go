package groups

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Service manages the registry of approved broadcast groups.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Register approves a group for promotion broadcasts.
func (s *Service) Register(ctx context.Context, chatID int64, title, username string, addedBy int64) error {
	err := s.repo.Upsert(ctx, &Group{
		ChatID:   chatID,
		Title:    title,
		Username: username,
		AddedBy:  addedBy,
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"chat_id":  chatID,
		"title":    title,
		"added_by": addedBy,
	}).Info("group registered for broadcasts")
	return nil
}

// List returns every approved group.
func (s *Service) List(ctx context.Context) ([]*Group, error) {
	return s.repo.List(ctx)
}
