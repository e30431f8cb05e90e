// services/challenge_service.go
package services

import (
	"errors"
	"time"

	"monster-arena-system/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultChallengeTTL is how long a challenge stays pending before the expiry
// sweep flips it to expired.
const DefaultChallengeTTL = 24 * time.Hour

var (
	ErrDuplicateChallenge  = errors.New("a pending challenge already exists between these players")
	ErrChallengeNotPending = errors.New("challenge is no longer pending")
	ErrChallengeExpired    = errors.New("challenge has expired")
	ErrNotChallengedParty  = errors.New("only the challenged player can respond")
)

type ChallengeService struct {
	DB     *gorm.DB
	Logger *zap.Logger
	TTL    time.Duration
}

func NewChallengeService(db *gorm.DB, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{DB: db, Logger: logger, TTL: DefaultChallengeTTL}
}

// pendingChallengesBetween selects the live pending challenges between two
// players, either direction, with the rows locked for the enclosing
// transaction.
func pendingChallengesBetween(tx *gorm.DB, userA, userB string) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ? AND expires_at > ?", models.ChallengeStatusPending, time.Now()).
		Where(
			tx.Where("challenger_user_id = ? AND challenged_user_id = ?", userA, userB).
				Or("challenger_user_id = ? AND challenged_user_id = ?", userB, userA),
		)
}

// SweepExpired flips every overdue pending challenge to expired. Called before
// each pending read and by the scheduler; an expired challenge can never be
// accepted afterwards.
func (s *ChallengeService) SweepExpired(db *gorm.DB) (int64, error) {
	result := db.Model(&models.Challenge{}).
		Where("status = ? AND expires_at <= ?", models.ChallengeStatusPending, time.Now()).
		Update("status", models.ChallengeStatusExpired)
	return result.RowsAffected, result.Error
}

// Create inserts a new challenge with a stat snapshot. Uniqueness (no second
// pending challenge between the same two players, either direction) is
// enforced inside the same transaction as the insert, so two concurrent
// creations cannot both succeed.
func (s *ChallengeService) Create(c *fiber.Ctx) error {
	challengerID, _ := c.Locals("user_id").(string)

	var req struct {
		ChallengedUserID string `json:"challenged_user_id"`
		AvatarID         string `json:"avatar_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if challengerID == "" || req.ChallengedUserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "challenger and challenged user ids are required"})
	}
	if req.AvatarID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar_id is required"})
	}
	if challengerID == req.ChallengedUserID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot challenge yourself"})
	}

	var challenge models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// Row lock, not a locked aggregate: postgres refuses FOR UPDATE
		// combined with count().
		var existing []models.Challenge
		if err := pendingChallengesBetween(tx, challengerID, req.ChallengedUserID).
			Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrDuplicateChallenge
		}

		var profile models.PlayerProfile
		if err := tx.First(&profile, "user_id = ?", challengerID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		var avatar models.Avatar
		if err := tx.First(&avatar, "id = ?", req.AvatarID).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		challenge = models.Challenge{
			ChallengerUserID:   challengerID,
			ChallengerAvatarID: req.AvatarID,
			ChallengedUserID:   req.ChallengedUserID,
			ChallengerLevel:    avatar.Level,
			ChallengerPower:    avatar.TotalPower,
			ChallengerPrestige: profile.Prestige,
			Status:             models.ChallengeStatusPending,
			ExpiresAt:          time.Now().Add(s.TTL),
		}
		return tx.Create(&challenge).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateChallenge) {
			return c.Status(fiber.StatusBadRequest).JSON(ProcResult{Success: false, Message: err.Error()})
		}
		s.Logger.Error("failed to create challenge", zap.String("challenger", challengerID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create challenge", "details": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"challenge": challenge,
	})
}

// respond locks the challenge and applies its single terminal transition.
func (s *ChallengeService) respond(challengeID, userID, avatarID string, accept bool) (*models.Challenge, error) {
	var challenge models.Challenge
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&challenge, "id = ?", challengeID).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := validateChallengeResponse(&challenge, userID, now); err != nil {
			return err
		}

		challenge.RespondedAt = &now
		if !accept {
			challenge.Status = models.ChallengeStatusRejected
			return tx.Save(&challenge).Error
		}

		room, err := createBattleRoom(tx, challenge.ChallengerUserID, challenge.ChallengedUserID, models.BattleTypePvP)
		if err != nil {
			return err
		}
		challenge.Status = models.ChallengeStatusAccepted
		if avatarID != "" {
			challenge.ChallengedAvatarID = &avatarID
		}
		challenge.MatchID = &room.ID
		return tx.Save(&challenge).Error
	})
	if err != nil {
		if errors.Is(err, ErrChallengeExpired) {
			// Record the expiry outside the rolled-back transaction so the
			// row does not keep presenting as pending.
			if flipErr := s.DB.Model(&models.Challenge{}).
				Where("id = ? AND status = ?", challengeID, models.ChallengeStatusPending).
				Update("status", models.ChallengeStatusExpired).Error; flipErr != nil {
				s.Logger.Warn("failed to record late challenge expiry",
					zap.String("challenge_id", challengeID), zap.Error(flipErr))
			}
		}
		return nil, err
	}
	return &challenge, nil
}

func (s *ChallengeService) respondError(c *fiber.Ctx, err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "challenge not found"})
	case errors.Is(err, ErrNotChallengedParty):
		return c.Status(fiber.StatusForbidden).JSON(ProcResult{Success: false, Message: err.Error()})
	case errors.Is(err, ErrChallengeNotPending), errors.Is(err, ErrChallengeExpired):
		return c.Status(fiber.StatusBadRequest).JSON(ProcResult{Success: false, Message: err.Error()})
	}
	s.Logger.Error("challenge response failed", zap.String("op", op), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to " + op + " challenge", "details": err.Error()})
}

// Accept atomically marks the challenge accepted, creates the battle room and
// stamps the match reference. Expired challenges can never be accepted.
func (s *ChallengeService) Accept(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	var req struct {
		AvatarID string `json:"avatar_id"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	challenge, err := s.respond(c.Params("id"), userID, req.AvatarID, true)
	if err != nil {
		return s.respondError(c, err, "accept")
	}
	return c.JSON(ProcResult{Success: true, Message: "challenge accepted", MatchID: *challenge.MatchID})
}

// Reject marks the challenge rejected. Only the challenged party may do so.
func (s *ChallengeService) Reject(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if _, err := s.respond(c.Params("id"), userID, "", false); err != nil {
		return s.respondError(c, err, "reject")
	}
	return c.JSON(ProcResult{Success: true, Message: "challenge rejected"})
}

// List returns the caller's pending challenges, incoming and outgoing, with
// seconds remaining recomputed on this read. The expiry sweep runs first so
// overdue rows never show up.
func (s *ChallengeService) List(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	if _, err := s.SweepExpired(s.DB); err != nil {
		s.Logger.Error("challenge expiry sweep failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list challenges", "details": err.Error()})
	}

	now := time.Now()
	fetch := func(column string) ([]fiber.Map, error) {
		var rows []models.Challenge
		err := s.DB.
			Where(column+" = ? AND status = ? AND expires_at > ?", userID, models.ChallengeStatusPending, now).
			Order("created_at ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		out := make([]fiber.Map, 0, len(rows))
		for _, row := range rows {
			out = append(out, fiber.Map{
				"challenge":      row,
				"time_remaining": row.TimeRemaining(now),
			})
		}
		return out, nil
	}

	incoming, err := fetch("challenged_user_id")
	if err == nil {
		var outgoing []fiber.Map
		outgoing, err = fetch("challenger_user_id")
		if err == nil {
			return c.JSON(fiber.Map{"incoming": incoming, "outgoing": outgoing})
		}
	}
	s.Logger.Error("failed to list challenges", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list challenges", "details": err.Error()})
}

// Claim is the challenger-side pickup of an accepted challenge: one atomic
// conditional delete that returns the match reference. Replaces the old
// read-then-delete pair, so a crashed client simply re-claims nothing on
// retry and rejoins via the idempotent ready endpoint.
func (s *ChallengeService) Claim(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
	}

	claimed := false
	matchID := ""
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var challenge models.Challenge
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("challenger_user_id = ? AND status = ? AND match_id IS NOT NULL",
				userID, models.ChallengeStatusAccepted).
			Order("responded_at ASC").
			First(&challenge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		claimed = true
		matchID = *challenge.MatchID
		return tx.Delete(&challenge).Error
	})
	if err != nil {
		s.Logger.Error("failed to claim challenge", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to claim challenge", "details": err.Error()})
	}

	if !claimed {
		return c.JSON(fiber.Map{"claimed": false})
	}
	return c.JSON(fiber.Map{"claimed": true, "match_id": matchID})
}
