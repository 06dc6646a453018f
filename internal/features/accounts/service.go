// Package accounts — service.go holds the account-ledger business logic.
package accounts

import (
	"context"

	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/common"
)

// Service manages user accounts and share balances.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the user's account, creating it lazily on first contact.
func (s *Service) Get(ctx context.Context, userID int64) (*Account, error) {
	return s.repo.Get(ctx, userID)
}

// Credit unlocks the account and adds shares. Used by the quiz reward and
// by payment reconciliation.
func (s *Service) Credit(ctx context.Context, userID, shares int64) error {
	if shares <= 0 {
		return common.ErrInvalidAmount
	}
	if err := s.repo.Credit(ctx, userID, shares); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"user_id": userID,
		"shares":  shares,
	}).Info("account credited")
	return nil
}

// UseShare consumes one share. Returns ErrInsufficientShares when the
// balance is empty; counters stay untouched in that case.
func (s *Service) UseShare(ctx context.Context, userID int64) error {
	ok, err := s.repo.UseShare(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrInsufficientShares
	}
	return nil
}

// CountUsers returns the total user count for admin reporting.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.repo.CountUsers(ctx)
}

// TotalPromotionsUsed returns the overall usage counter for admin reporting.
func (s *Service) TotalPromotionsUsed(ctx context.Context) (int64, error) {
	return s.repo.SumPromotionsUsed(ctx)
}
