// services/scheduler.go
package services

import (
	"context"
	"time"

	"monster-arena-system/models"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// staleQueueAfter is how long a waiting queue entry survives without being
// consumed before the purge job drops it.
const staleQueueAfter = 10 * time.Minute

// StartArenaScheduler runs the periodic maintenance that keeps lazily-expired
// state from piling up: challenge expiry sweeps, stale queue purges, season
// rotation and the leaderboard view rebuild.
func StartArenaScheduler(db *gorm.DB, logger *zap.Logger, challenges *ChallengeService, seasons *SeasonService, leaderboard *LeaderboardService) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	// Every minute: flip overdue pending challenges to expired.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			swept, err := challenges.SweepExpired(db)
			if err != nil {
				logger.Error("[scheduler] challenge expiry sweep failed", zap.Error(err))
				return
			}
			if swept > 0 {
				logger.Info("[scheduler] expired challenges swept", zap.Int64("count", swept))
			}
		}),
	)

	// Every minute: rotate the season once its end date passes.
	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if err := seasons.Rotate(); err != nil {
				logger.Error("[scheduler] season rotation failed", zap.Error(err))
			}
		}),
	)

	// Every 5 minutes: drop queue entries nobody is polling anymore.
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			result := db.Where("status = ? AND enqueued_at <= ?",
				models.QueueStatusWaiting, time.Now().Add(-staleQueueAfter)).
				Delete(&models.QueueEntry{})
			if result.Error != nil {
				logger.Error("[scheduler] stale queue purge failed", zap.Error(result.Error))
				return
			}
			if result.RowsAffected > 0 {
				logger.Info("[scheduler] stale queue entries purged", zap.Int64("count", result.RowsAffected))
			}
		}),
	)

	// Every 5 minutes: rebuild the ranking view from the source of truth.
	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			if err := leaderboard.Rebuild(context.Background()); err != nil {
				logger.Warn("[scheduler] leaderboard rebuild failed", zap.Error(err))
			}
		}),
	)
}
