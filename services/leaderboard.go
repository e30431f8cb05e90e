// services/leaderboard.go
package services

import (
	"context"
	"errors"
	"strconv"

	"monster-arena-system/models"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const leaderboardPageSize = 50

// LeaderboardService serves ranked standings from a precomputed redis sorted
// set keyed by season, prestige descending. The set is a view: postgres stays
// the source of truth and every read can fall back to it.
type LeaderboardService struct {
	DB     *gorm.DB
	RDB    *redis.Client
	Logger *zap.Logger
}

func NewLeaderboardService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{DB: db, RDB: rdb, Logger: logger}
}

func leaderboardKey(seasonID string) string {
	return "leaderboard:season:" + seasonID
}

// Rebuild repopulates the active season's ranking view from the profiles
// table. Called by the scheduler and after season rotation.
func (s *LeaderboardService) Rebuild(ctx context.Context) error {
	season, err := activeSeason(s.DB)
	if err != nil {
		return err
	}

	var profiles []models.PlayerProfile
	if err := s.DB.Select("user_id", "prestige").Find(&profiles).Error; err != nil {
		return err
	}

	key := leaderboardKey(season.ID)
	pipe := s.RDB.TxPipeline()
	pipe.Del(ctx, key)
	for _, p := range profiles {
		pipe.ZAdd(ctx, key, &redis.Z{Score: float64(p.Prestige), Member: p.UserID})
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RefreshUsers re-scores the given users in the active season's view after a
// prestige change. Best effort: failures are logged, never surfaced.
func (s *LeaderboardService) RefreshUsers(ctx context.Context, userIDs ...string) {
	season, err := activeSeason(s.DB)
	if err != nil {
		s.Logger.Warn("leaderboard refresh skipped, no active season", zap.Error(err))
		return
	}

	var profiles []models.PlayerProfile
	if err := s.DB.Select("user_id", "prestige").Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		s.Logger.Warn("leaderboard refresh read failed", zap.Error(err))
		return
	}

	key := leaderboardKey(season.ID)
	for _, p := range profiles {
		if err := s.RDB.ZAdd(ctx, key, &redis.Z{Score: float64(p.Prestige), Member: p.UserID}).Err(); err != nil {
			s.Logger.Warn("leaderboard refresh write failed", zap.String("user_id", p.UserID), zap.Error(err))
		}
	}
}

// Reset drops the ranking view for a season, typically right after it closed.
func (s *LeaderboardService) Reset(ctx context.Context, seasonID string) {
	if err := s.RDB.Del(ctx, leaderboardKey(seasonID)).Err(); err != nil {
		s.Logger.Warn("failed to reset leaderboard view", zap.String("season_id", seasonID), zap.Error(err))
	}
}

type leaderboardRow struct {
	Rank     int64  `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Prestige int64  `json:"prestige"`
}

// GetLeaderboard returns one page of the active season's standings plus the
// caller's own placement when it falls outside the page.
func (s *LeaderboardService) GetLeaderboard(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	season, err := activeSeason(s.DB)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active season"})
		}
		s.Logger.Error("failed to resolve active season", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch leaderboard", "details": err.Error()})
	}

	rows, fromView := s.pageFromView(c.Context(), season.ID, page)
	if !fromView {
		rows, err = s.pageFromDB(page)
		if err != nil {
			s.Logger.Error("failed to fetch leaderboard", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch leaderboard", "details": err.Error()})
		}
	}
	s.hydrateUsernames(rows)

	response := fiber.Map{
		"season":    season,
		"page":      page,
		"page_size": leaderboardPageSize,
		"entries":   rows,
	}

	if userID != "" {
		inPage := false
		for _, row := range rows {
			if row.UserID == userID {
				inPage = true
				break
			}
		}
		if !inPage {
			if own, ok := s.ownPlacement(c.Context(), season.ID, userID); ok {
				response["own_placement"] = own
			}
		}
	}

	return c.JSON(response)
}

func (s *LeaderboardService) pageFromView(ctx context.Context, seasonID string, page int) ([]leaderboardRow, bool) {
	start := int64((page - 1) * leaderboardPageSize)
	stop := start + leaderboardPageSize - 1

	zs, err := s.RDB.ZRevRangeWithScores(ctx, leaderboardKey(seasonID), start, stop).Result()
	if err != nil || len(zs) == 0 {
		return nil, false
	}

	rows := make([]leaderboardRow, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		rows = append(rows, leaderboardRow{
			Rank:     start + int64(i) + 1,
			UserID:   member,
			Prestige: int64(z.Score),
		})
	}
	return rows, true
}

func (s *LeaderboardService) pageFromDB(page int) ([]leaderboardRow, error) {
	var profiles []models.PlayerProfile
	err := s.DB.Order("prestige DESC, user_id ASC").
		Offset((page - 1) * leaderboardPageSize).
		Limit(leaderboardPageSize).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}

	rows := make([]leaderboardRow, 0, len(profiles))
	for i, p := range profiles {
		rows = append(rows, leaderboardRow{
			Rank:     int64((page-1)*leaderboardPageSize + i + 1),
			UserID:   p.UserID,
			Username: p.Username,
			Prestige: p.Prestige,
		})
	}
	return rows, nil
}

// ownPlacement fetches the caller's exact rank by direct lookup.
func (s *LeaderboardService) ownPlacement(ctx context.Context, seasonID, userID string) (*leaderboardRow, bool) {
	rank, err := s.RDB.ZRevRank(ctx, leaderboardKey(seasonID), userID).Result()
	if err == nil {
		score, _ := s.RDB.ZScore(ctx, leaderboardKey(seasonID), userID).Result()
		return &leaderboardRow{Rank: rank + 1, UserID: userID, Prestige: int64(score)}, true
	}

	var profile models.PlayerProfile
	if err := s.DB.First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, false
	}
	var ahead int64
	if err := s.DB.Model(&models.PlayerProfile{}).
		Where("prestige > ?", profile.Prestige).
		Count(&ahead).Error; err != nil {
		return nil, false
	}
	return &leaderboardRow{
		Rank:     ahead + 1,
		UserID:   userID,
		Username: profile.Username,
		Prestige: profile.Prestige,
	}, true
}

func (s *LeaderboardService) hydrateUsernames(rows []leaderboardRow) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.Username == "" {
			ids = append(ids, row.UserID)
		}
	}
	if len(ids) == 0 {
		return
	}

	var profiles []models.PlayerProfile
	if err := s.DB.Select("user_id", "username").Where("user_id IN ?", ids).Find(&profiles).Error; err != nil {
		s.Logger.Warn("failed to hydrate leaderboard usernames", zap.Error(err))
		return
	}
	names := make(map[string]string, len(profiles))
	for _, p := range profiles {
		names[p.UserID] = p.Username
	}
	for i := range rows {
		if rows[i].Username == "" {
			rows[i].Username = names[rows[i].UserID]
		}
	}
}
