// services/season_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monster-arena-system/models"
	"monster-arena-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultSeasonLength matches the competitive cadence of the ranked ladder.
	DefaultSeasonLength = 90 * 24 * time.Hour
	// rewardedPlacements is how deep the pending-reward generation goes.
	rewardedPlacements = 100
	titledPlacements   = 10
)

var (
	ErrSeasonAlreadyActive = errors.New("a season is already active")
	ErrRewardCollected     = errors.New("reward already collected")
)

type SeasonService struct {
	DB           *gorm.DB
	Logger       *zap.Logger
	Leaderboard  *LeaderboardService
	SeasonLength time.Duration
}

func NewSeasonService(db *gorm.DB, logger *zap.Logger, leaderboard *LeaderboardService) *SeasonService {
	return &SeasonService{
		DB:           db,
		Logger:       logger,
		Leaderboard:  leaderboard,
		SeasonLength: DefaultSeasonLength,
	}
}

// lockedActiveSeasons selects active seasons with the rows locked for the
// enclosing transaction. Kept as a row select; postgres refuses FOR UPDATE
// combined with count().
func lockedActiveSeasons(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("active = ?", true)
}

// activeSeason returns the single active season.
func activeSeason(db *gorm.DB) (*models.Season, error) {
	var season models.Season
	if err := db.Where("active = ?", true).First(&season).Error; err != nil {
		return nil, err
	}
	return &season, nil
}

// rewardForPlacement maps a final placement to its pending reward. Zero for
// anything outside the rewarded range.
func rewardForPlacement(placement int) (coins, fragments int64) {
	switch {
	case placement == 1:
		return 5000, 50
	case placement == 2:
		return 3000, 30
	case placement == 3:
		return 2000, 20
	case placement <= 10:
		return 1000, 10
	case placement <= rewardedPlacements:
		return 250, 0
	}
	return 0, 0
}

// titleForPlacement names the permanent badge for a top-10 finish.
func titleForPlacement(placement int, seasonName string) string {
	switch placement {
	case 1:
		return seasonName + " Champion"
	case 2:
		return seasonName + " Runner-up"
	case 3:
		return seasonName + " Third Place"
	}
	return fmt.Sprintf("%s Top %d", seasonName, titledPlacements)
}

// closeActiveSeason freezes the ladder in one transaction: standings snapshot,
// placements, pending rewards, titles, deactivation. A partial run is
// impossible; either the season closed with all its derived records or
// nothing happened.
func (s *SeasonService) closeActiveSeason() (*models.Season, error) {
	var season models.Season
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("active = ?", true).First(&season).Error; err != nil {
			return err
		}

		var profiles []models.PlayerProfile
		if err := tx.Order("prestige DESC, user_id ASC").Find(&profiles).Error; err != nil {
			return err
		}

		for i, profile := range profiles {
			placement := i + 1
			if err := tx.Create(&models.SeasonHistory{
				SeasonID:  season.ID,
				UserID:    profile.UserID,
				Prestige:  profile.Prestige,
				Placement: placement,
			}).Error; err != nil {
				return err
			}

			coins, fragments := rewardForPlacement(placement)
			if coins > 0 || fragments > 0 {
				if err := tx.Create(&models.PendingReward{
					SeasonID:  season.ID,
					UserID:    profile.UserID,
					Placement: placement,
					Coins:     coins,
					Fragments: fragments,
				}).Error; err != nil {
					return err
				}
			}

			if placement <= titledPlacements {
				if err := tx.Create(&models.Title{
					SeasonID:  season.ID,
					UserID:    profile.UserID,
					Name:      titleForPlacement(placement, season.Name),
					Placement: placement,
				}).Error; err != nil {
					return err
				}
			}
		}

		season.Active = false
		return tx.Save(&season).Error
	})
	if err != nil {
		return nil, err
	}

	// Post-commit side effects are best effort; the close already happened.
	if err := utils.ArchiveSeason(context.Background(), s.DB, &season); err != nil {
		s.Logger.Warn("season archive upload failed", zap.String("season_id", season.ID), zap.Error(err))
	}
	if s.Leaderboard != nil {
		s.Leaderboard.Reset(context.Background(), season.ID)
	}

	s.Logger.Info("season closed", zap.String("season_id", season.ID), zap.String("name", season.Name))
	return &season, nil
}

// createSeason opens a new active season. Refuses while another is active;
// after a close this restores the one-active-season invariant.
func (s *SeasonService) createSeason(name string) (*models.Season, error) {
	var season models.Season
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var active []models.Season
		if err := lockedActiveSeasons(tx).Find(&active).Error; err != nil {
			return err
		}
		if len(active) > 0 {
			return ErrSeasonAlreadyActive
		}

		if name == "" {
			var total int64
			if err := tx.Model(&models.Season{}).Count(&total).Error; err != nil {
				return err
			}
			name = fmt.Sprintf("Season %d", total+1)
		}

		now := time.Now()
		season = models.Season{
			Name:      name,
			Slug:      slug.Make(name),
			StartDate: now,
			EndDate:   now.Add(s.SeasonLength),
			Active:    true,
		}
		return tx.Create(&season).Error
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("season created", zap.String("season_id", season.ID), zap.String("name", season.Name))
	return &season, nil
}

// CloseSeason is the admin endpoint wrapping closeActiveSeason.
func (s *SeasonService) CloseSeason(c *fiber.Ctx) error {
	season, err := s.closeActiveSeason()
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active season"})
		}
		s.Logger.Error("failed to close season", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to close season", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"success": true, "season": season})
}

// CreateSeason is the admin endpoint wrapping createSeason.
func (s *SeasonService) CreateSeason(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	season, err := s.createSeason(req.Name)
	if err != nil {
		if errors.Is(err, ErrSeasonAlreadyActive) {
			return c.Status(fiber.StatusBadRequest).JSON(ProcResult{Success: false, Message: err.Error()})
		}
		s.Logger.Error("failed to create season", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create season", "details": err.Error()})
	}

	if s.Leaderboard != nil {
		if err := s.Leaderboard.Rebuild(context.Background()); err != nil {
			s.Logger.Warn("leaderboard rebuild after season create failed", zap.Error(err))
		}
	}
	return c.Status(fiber.StatusCreated).JSON(season)
}

// Rotate closes the active season once its end date passes and immediately
// opens the next one. If the create step fails the system tolerates a
// temporary zero-active-season state rather than rolling back the close.
func (s *SeasonService) Rotate() error {
	season, err := activeSeason(s.DB)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_, err = s.createSeason("")
			return err
		}
		return err
	}
	if season.EndDate.After(time.Now()) {
		return nil
	}

	if _, err := s.closeActiveSeason(); err != nil {
		return err
	}
	if _, err := s.createSeason(""); err != nil {
		s.Logger.Error("season rotation left no active season", zap.Error(err))
		return err
	}
	if s.Leaderboard != nil {
		if err := s.Leaderboard.Rebuild(context.Background()); err != nil {
			s.Logger.Warn("leaderboard rebuild after rotation failed", zap.Error(err))
		}
	}
	return nil
}

// ClaimReward credits a pending reward exactly once. The collected flag only
// ever flips false to true, inside the same transaction as the credit.
func (s *SeasonService) ClaimReward(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	rewardID := c.Params("id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var reward models.PendingReward
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&reward, "id = ? AND user_id = ?", rewardID, userID).Error; err != nil {
			return err
		}
		if reward.Collected {
			return ErrRewardCollected
		}

		if err := tx.Model(&models.PlayerProfile{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"coins":     gorm.Expr("coins + ?", reward.Coins),
				"fragments": gorm.Expr("fragments + ?", reward.Fragments),
			}).Error; err != nil {
			return err
		}

		now := time.Now()
		reward.Collected = true
		reward.CollectedAt = &now
		return tx.Save(&reward).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "reward not found"})
		case errors.Is(err, ErrRewardCollected):
			return c.Status(fiber.StatusBadRequest).JSON(ProcResult{Success: false, Message: err.Error()})
		}
		s.Logger.Error("failed to claim reward", zap.String("reward_id", rewardID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to claim reward", "details": err.Error()})
	}

	return c.JSON(fiber.Map{"success": true, "reward": reward})
}

// GetHistory lists the caller's frozen standings across closed seasons.
func (s *SeasonService) GetHistory(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var history []models.SeasonHistory
	if err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&history).Error; err != nil {
		s.Logger.Error("failed to fetch season history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch season history", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"history": history})
}

// GetRewards lists the caller's pending rewards, uncollected first.
func (s *SeasonService) GetRewards(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var rewards []models.PendingReward
	if err := s.DB.Where("user_id = ?", userID).Order("collected ASC, created_at DESC").Find(&rewards).Error; err != nil {
		s.Logger.Error("failed to fetch rewards", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch rewards", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"rewards": rewards})
}

// GetTitles lists the caller's permanent titles.
func (s *SeasonService) GetTitles(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var titles []models.Title
	if err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&titles).Error; err != nil {
		s.Logger.Error("failed to fetch titles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch titles", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"titles": titles})
}
