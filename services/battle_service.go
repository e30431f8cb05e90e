// services/battle_service.go
package services

import (
	"errors"
	"time"

	"monster-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Prestige movement per ranked battle outcome. The loser never drops below zero.
const (
	PrestigeWinDelta  = 25
	PrestigeLossDelta = 10
)

// DefaultAbandonAfter is how long an ActiveBattle record may sit untouched
// before the next check treats it as a disconnect.
const DefaultAbandonAfter = 30 * time.Minute

// AbandonPenalty is what the caller applies to the abandoning player's
// persistent avatar. The defaults are identical for every battle type; the
// type tag is preserved so that can change per type later.
type AbandonPenalty struct {
	HPLoss     int  `json:"hp_loss"`
	Exhaustion int  `json:"exhaustion"`
	ForcedLoss bool `json:"forced_loss"`
}

var defaultAbandonPenalty = AbandonPenalty{HPLoss: 20, Exhaustion: 2, ForcedLoss: true}

type BattleService struct {
	DB           *gorm.DB
	Logger       *zap.Logger
	Leaderboard  *LeaderboardService
	AbandonAfter time.Duration
}

func NewBattleService(db *gorm.DB, logger *zap.Logger, leaderboard *LeaderboardService) *BattleService {
	return &BattleService{
		DB:           db,
		Logger:       logger,
		Leaderboard:  leaderboard,
		AbandonAfter: DefaultAbandonAfter,
	}
}

// createBattleRoom inserts a fresh waiting room plus the ActiveBattle markers
// for both players. Shared by matchmaking and challenge acceptance; must run
// inside the caller's transaction.
func createBattleRoom(tx *gorm.DB, player1UserID, player2UserID, battleType string) (*models.BattleRoom, error) {
	room := &models.BattleRoom{
		Player1UserID: player1UserID,
		Player2UserID: player2UserID,
		Status:        models.BattleStatusWaiting,
		CurrentPlayer: 1,
		CurrentTurn:   0,
		BattleData: models.BattleData{
			Actions: []models.ActionEntry{},
			HP:      models.BattleHP{Player1: MaxBattleHP, Player2: MaxBattleHP},
		},
	}
	if err := tx.Create(room).Error; err != nil {
		return nil, err
	}

	for _, userID := range []string{player1UserID, player2UserID} {
		// One active battle per user: replace any leftover marker.
		if err := tx.Where("user_id = ?", userID).Delete(&models.ActiveBattle{}).Error; err != nil {
			return nil, err
		}
		if err := tx.Create(&models.ActiveBattle{
			UserID:     userID,
			MatchID:    room.ID,
			BattleType: battleType,
		}).Error; err != nil {
			return nil, err
		}
	}
	return room, nil
}

// roomIDParam validates the :id path segment before it reaches the database.
func roomIDParam(c *fiber.Ctx) (string, bool) {
	parsed, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// GetRoom serves the polling reads from the sync clients.
func (s *BattleService) GetRoom(c *fiber.Ctx) error {
	id, ok := roomIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid battle id"})
	}

	var room models.BattleRoom
	if err := s.DB.First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "battle room not found"})
		}
		s.Logger.Error("failed to fetch battle room", zap.String("room_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch battle room", "details": err.Error()})
	}
	return c.JSON(room)
}

// MarkReady sets the caller's ready flag. Idempotent; the room flips to active
// once both flags are set while it is still waiting. This is also the safety
// net for a duplicate challenge-claim retry: re-marking ready is harmless.
func (s *BattleService) MarkReady(c *fiber.Ctx) error {
	id, ok := roomIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid battle id"})
	}
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var room models.BattleRoom
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", id).Error; err != nil {
			return err
		}
		switch room.PlayerNumber(userID) {
		case 1:
			room.Player1Ready = true
			room.Player1Connected = true
		case 2:
			room.Player2Ready = true
			room.Player2Connected = true
		default:
			return ErrNotAParticipant
		}
		if room.Status == models.BattleStatusWaiting && room.Player1Ready && room.Player2Ready {
			room.Status = models.BattleStatusActive
		}
		return tx.Save(&room).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "battle room not found"})
		}
		if errors.Is(err, ErrNotAParticipant) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user is not a participant in this battle"})
		}
		s.Logger.Error("failed to mark ready", zap.String("room_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to mark ready", "details": err.Error()})
	}
	return c.JSON(room)
}

// SubmitAction appends one turn to the battle. The whole read-validate-write
// sequence runs with the room row locked, so two near-simultaneous calls
// serialize and the loser of the race gets a turn-ownership rejection instead
// of corrupting the log.
func (s *BattleService) SubmitAction(c *fiber.Ctx) error {
	id, ok := roomIDParam(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid battle id"})
	}
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var req struct {
		Action models.ActionPayload `json:"action"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.Action) == 0 || req.Action.Type() == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "action with a type is required"})
	}

	var room models.BattleRoom
	won := false
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, "id = ?", id).Error; err != nil {
			return err
		}

		now := time.Now()
		var err error
		won, err = applyAction(&room, userID, req.Action, now)
		if err != nil {
			return err
		}

		if won {
			loserID := room.OpponentUserID(userID)
			if err := tx.Where("match_id = ?", room.ID).Delete(&models.ActiveBattle{}).Error; err != nil {
				return err
			}
			if err := applyPrestigeDeltas(tx, userID, loserID); err != nil {
				return err
			}
		} else {
			// The match is demonstrably alive; keep both markers out of the
			// abandonment window.
			if err := tx.Model(&models.ActiveBattle{}).
				Where("match_id = ?", room.ID).
				Update("last_action_at", now).Error; err != nil {
				return err
			}
		}

		// Everything lands in one write: log, hp, turn counters, status.
		return tx.Save(&room).Error
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "battle room not found"})
		case errors.Is(err, ErrNotAParticipant):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user is not a participant in this battle"})
		case errors.Is(err, ErrBattleNotActive):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "battle is not active"})
		case errors.Is(err, ErrNotYourTurn):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "not your turn"})
		}
		s.Logger.Error("failed to submit action", zap.String("room_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to submit action", "details": err.Error()})
	}

	if won && s.Leaderboard != nil {
		// Ranking view nudge is best effort; the battle result is already
		// committed and must not be reported as failed.
		s.Leaderboard.RefreshUsers(c.Context(), userID, room.OpponentUserID(userID))
	}

	return c.JSON(fiber.Map{
		"room":     room,
		"finished": won,
	})
}

func applyPrestigeDeltas(tx *gorm.DB, winnerID, loserID string) error {
	if err := tx.Model(&models.PlayerProfile{}).
		Where("user_id = ?", winnerID).
		Update("prestige", gorm.Expr("prestige + ?", PrestigeWinDelta)).Error; err != nil {
		return err
	}
	return tx.Model(&models.PlayerProfile{}).
		Where("user_id = ?", loserID).
		Update("prestige", gorm.Expr("GREATEST(prestige - ?, 0)", PrestigeLossDelta)).Error
}

// Disconnect is the best-effort teardown notification from a sync client.
// It never reports failure to the caller.
func (s *BattleService) Disconnect(c *fiber.Ctx) error {
	id := c.Params("id")
	userID, _ := c.Locals("user_id").(string)

	var room models.BattleRoom
	if err := s.DB.First(&room, "id = ?", id).Error; err == nil {
		column := ""
		switch room.PlayerNumber(userID) {
		case 1:
			column = "player1_connected"
		case 2:
			column = "player2_connected"
		}
		if column != "" {
			if err := s.DB.Model(&room).Update(column, false).Error; err != nil {
				s.Logger.Warn("failed to record disconnect", zap.String("room_id", id), zap.Error(err))
			}
		}
	}
	return c.JSON(fiber.Map{"ok": true})
}

// abandonExpired reports whether the marker has gone stale. Measured from the
// last accepted action, not from battle start, so a long match with both
// players still trading turns is never treated as abandoned.
func abandonExpired(record *models.ActiveBattle, now time.Time, window time.Duration) bool {
	return now.Sub(record.LastActionAt) >= window
}

// CheckAbandoned implements lazy disconnect recovery: no server-side timer,
// the stale marker is detected and penalized on the next read.
func (s *BattleService) CheckAbandoned(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	var record models.ActiveBattle
	if err := s.DB.First(&record, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"active": false, "expired": false})
		}
		s.Logger.Error("failed to check active battle", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to check active battle", "details": err.Error()})
	}

	if !abandonExpired(&record, time.Now(), s.AbandonAfter) {
		return c.JSON(fiber.Map{
			"active":      true,
			"expired":     false,
			"match_id":    record.MatchID,
			"battle_type": record.BattleType,
		})
	}

	if err := s.DB.Delete(&record).Error; err != nil {
		s.Logger.Error("failed to clear expired battle record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to clear expired battle record", "details": err.Error()})
	}

	s.Logger.Info("expired active battle detected",
		zap.String("user_id", userID),
		zap.String("match_id", record.MatchID),
		zap.String("battle_type", record.BattleType),
	)
	return c.JSON(fiber.Map{
		"active":      false,
		"expired":     true,
		"match_id":    record.MatchID,
		"battle_type": record.BattleType,
		"penalty":     defaultAbandonPenalty,
	})
}
