// handlers/market.go
package handlers

import (
	"monster-arena-system/middleware"
	"monster-arena-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func SetupMarketRoutes(app *fiber.App, logger *zap.Logger, market *services.MarketService) {
	secured := app.Group("/market", middleware.UserContextMiddleware(logger))

	secured.Get("/listings", market.ListListings)
	secured.Post("/listings", market.CreateListing)
	secured.Delete("/listings/:id", market.CancelListing)
	secured.Post("/purchase", market.Purchase)
}
