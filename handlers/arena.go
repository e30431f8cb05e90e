// handlers/arena.go
package handlers

import (
	"monster-arena-system/middleware"
	"monster-arena-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupArenaRoutes(app *fiber.App, logger *zap.Logger,
	matchmaking *services.MatchmakingService,
	challenges *services.ChallengeService,
	battles *services.BattleService) {

	// Every arena route needs user context; nothing here is public.
	secured := app.Group("/arena", middleware.UserContextMiddleware(logger))

	// Matchmaking queue
	secured.Post("/queue/join", matchmaking.JoinQueue)
	secured.Delete("/queue/leave", matchmaking.LeaveQueue)
	secured.Get("/queue/poll", matchmaking.PollQueue)

	// Direct challenges
	secured.Post("/challenges", challenges.Create)
	secured.Get("/challenges", challenges.List)
	secured.Post("/challenges/claim", challenges.Claim)
	secured.Post("/challenges/:id/accept", challenges.Accept)
	secured.Post("/challenges/:id/reject", challenges.Reject)

	// Battle rooms. The abandoned check must register before the :id routes
	// or fiber will swallow it as a match id.
	secured.Get("/battles/abandoned/check", battles.CheckAbandoned)
	secured.Get("/battles/:id", battles.GetRoom)
	secured.Post("/battles/:id/ready", battles.MarkReady)
	secured.Post("/battles/:id/action", battles.SubmitAction)
	secured.Post("/battles/:id/disconnect", battles.Disconnect)
}
