// services/matchmaking_service.go
package services

import (
	"errors"

	"monster-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// powerBandPercent is the matchmaking tolerance: an opponent qualifies when
// their total power is within ±30% of the requesting player's power.
const powerBandPercent = 30

func withinPowerBand(requesterPower, candidatePower int64) bool {
	if requesterPower <= 0 {
		return false
	}
	low := requesterPower * (100 - powerBandPercent) / 100
	high := requesterPower * (100 + powerBandPercent) / 100
	return candidatePower >= low && candidatePower <= high
}

type MatchmakingService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewMatchmakingService(db *gorm.DB, logger *zap.Logger) *MatchmakingService {
	return &MatchmakingService{DB: db, Logger: logger}
}

// tryPair scans waiting entries in insertion order and pairs the requester
// with the first one inside the power band. Runs under the caller's
// transaction with the candidate rows locked, so two concurrent joins cannot
// both grab the same opponent. Returns nil when nobody qualifies.
func (s *MatchmakingService) tryPair(tx *gorm.DB, userID string, power int64) (*models.BattleRoom, error) {
	var candidates []models.QueueEntry
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND user_id <> ?", models.QueueStatusWaiting, userID).
		Order("enqueued_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if !withinPowerBand(power, candidate.TotalPower) {
			continue
		}

		// First eligible candidate wins; no score-distance ranking.
		// The waiting player was enqueued first, so they take slot 1.
		room, err := createBattleRoom(tx, candidate.UserID, userID, models.BattleTypePvP)
		if err != nil {
			return nil, err
		}

		// The opponent's entry flips to matched and holds the match reference
		// until their next poll consumes it.
		if err := tx.Model(&models.QueueEntry{}).
			Where("id = ?", candidate.ID).
			Updates(map[string]interface{}{
				"status":   models.QueueStatusMatched,
				"match_id": room.ID,
			}).Error; err != nil {
			return nil, err
		}
		return room, nil
	}
	return nil, nil
}

// JoinQueue removes any prior entry for the caller, attempts an immediate
// pairing, and otherwise inserts a waiting entry.
func (s *MatchmakingService) JoinQueue(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req struct {
		AvatarID   string `json:"avatar_id"`
		Level      int    `json:"level"`
		TotalPower int64  `json:"total_power"`
		Prestige   int64  `json:"prestige"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if userID == "" || req.AvatarID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id and avatar_id are required"})
	}

	var room *models.BattleRoom
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.QueueEntry{}).Error; err != nil {
			return err
		}

		var err error
		room, err = s.tryPair(tx, userID, req.TotalPower)
		if err != nil {
			return err
		}
		if room != nil {
			return nil
		}

		return tx.Create(&models.QueueEntry{
			UserID:     userID,
			AvatarID:   req.AvatarID,
			Level:      req.Level,
			TotalPower: req.TotalPower,
			Prestige:   req.Prestige,
			Status:     models.QueueStatusWaiting,
		}).Error
	})
	if err != nil {
		s.Logger.Error("failed to join queue", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to join queue", "details": err.Error()})
	}

	if room != nil {
		s.Logger.Info("queue pairing made",
			zap.String("match_id", room.ID),
			zap.String("player1", room.Player1UserID),
			zap.String("player2", room.Player2UserID),
		)
		return c.JSON(fiber.Map{"matched": true, "match_id": room.ID})
	}
	return c.JSON(fiber.Map{"matched": false, "queued": true})
}

// LeaveQueue removes the caller's entry. Idempotent: leaving while not queued
// is not an error.
func (s *MatchmakingService) LeaveQueue(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	if err := s.DB.Where("user_id = ?", userID).Delete(&models.QueueEntry{}).Error; err != nil {
		s.Logger.Error("failed to leave queue", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to leave queue", "details": err.Error()})
	}
	return c.JSON(fiber.Map{"queued": false})
}

// PollQueue reports pairing progress. A matched entry hands over its match
// reference and is consumed; a waiting entry re-attempts pairing.
func (s *MatchmakingService) PollQueue(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	matched := false
	matchID := ""
	queued := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.QueueEntry
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&entry, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if entry.Status == models.QueueStatusMatched && entry.MatchID != nil {
			matched = true
			matchID = *entry.MatchID
			return tx.Delete(&entry).Error
		}

		room, err := s.tryPair(tx, userID, entry.TotalPower)
		if err != nil {
			return err
		}
		if room != nil {
			matched = true
			matchID = room.ID
			return tx.Delete(&entry).Error
		}

		queued = true
		return nil
	})
	if err != nil {
		s.Logger.Error("failed to poll queue", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to poll queue", "details": err.Error()})
	}

	if matched {
		return c.JSON(fiber.Map{"matched": true, "match_id": matchID})
	}
	return c.JSON(fiber.Map{"matched": false, "queued": queued})
}
