// Package admin provides the reporting surface for the configured admin
// set: usage statistics and revenue aggregates.
package admin

import (
	"context"

	"viralmusic.ke/promo-bot/internal/features/accounts"
	"viralmusic.ke/promo-bot/internal/features/payments"
)

// Stats is the admin report snapshot.
type Stats struct {
	Users            int64
	PromotionsUsed   int64
	VerifiedPayments int64
	RevenueKES       int64
}

type Service struct {
	accounts *accounts.Service
	payments *payments.Service
}

func NewService(accountsSvc *accounts.Service, paymentsSvc *payments.Service) *Service {
	return &Service{accounts: accountsSvc, payments: paymentsSvc}
}

// Stats gathers the report numbers from the two ledgers.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.accounts.CountUsers(ctx)
	if err != nil {
		return nil, err
	}
	promos, err := s.accounts.TotalPromotionsUsed(ctx)
	if err != nil {
		return nil, err
	}
	pay, err := s.payments.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Users:            users,
		PromotionsUsed:   promos,
		VerifiedPayments: pay.VerifiedCount,
		RevenueKES:       pay.TotalAmount,
	}, nil
}
