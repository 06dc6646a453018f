// Package jobs runs the background cron tasks: the daily revenue digest
// sent to admins.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"viralmusic.ke/promo-bot/internal/features/admin"
)

// Scheduler owns the cron instance, pinned to Nairobi time so the
// digest lands at local midnight.
type Scheduler struct {
	cron     *cron.Cron
	admin    *admin.Service
	adminIDs []int64
	sendFunc func(userID int64, text string)
}

func NewScheduler(adminService *admin.Service, adminIDs []int64, sendFunc func(userID int64, text string)) *Scheduler {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		log.WithError(err).Warn("failed to load Africa/Nairobi, falling back to UTC+3")
		loc = time.FixedZone("EAT", 3*60*60)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		admin:    adminService,
		adminIDs: adminIDs,
		sendFunc: sendFunc,
	}
}

// Start registers and launches all background tasks.
func (s *Scheduler) Start(ctx context.Context) {
	// Revenue digest at midnight Nairobi time
	s.cron.AddFunc("0 0 * * *", func() {
		log.Info("[CRON] daily revenue digest")
		if err := s.sendDigest(ctx); err != nil {
			log.WithError(err).Error("[CRON] digest failed")
		}
	})

	s.cron.Start()
	log.Info("scheduler started (Africa/Nairobi)")
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("scheduler stopped")
}

func (s *Scheduler) sendDigest(ctx context.Context) error {
	stats, err := s.admin.Stats(ctx)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"🌙 Daily Digest\n"+
			"Users: %d\n"+
			"Promotions used: %d\n"+
			"Verified payments: %d\n"+
			"Revenue: KES %d",
		stats.Users, stats.PromotionsUsed, stats.VerifiedPayments, stats.RevenueKES,
	)

	for _, adminID := range s.adminIDs {
		s.sendFunc(adminID, text)
	}
	return nil
}
