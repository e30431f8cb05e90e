// handlers/season.go
package handlers

import (
	"monster-arena-system/middleware"
	"monster-arena-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupSeasonRoutes(app *fiber.App, logger *zap.Logger,
	seasons *services.SeasonService,
	leaderboard *services.LeaderboardService) {

	secured := app.Group("/seasons", middleware.UserContextMiddleware(logger))

	secured.Get("/leaderboard", leaderboard.GetLeaderboard)
	secured.Get("/history", seasons.GetHistory)
	secured.Get("/rewards", seasons.GetRewards)
	secured.Post("/rewards/:id/claim", seasons.ClaimReward)
	secured.Get("/titles", seasons.GetTitles)

	// Season lifecycle is normally driven by the scheduler; these exist for
	// operators forcing a rotation out of band.
	admin := secured.Group("/", middleware.AdminOnly())
	admin.Post("/", seasons.CreateSeason)
	admin.Post("/close", seasons.CloseSeason)
}
