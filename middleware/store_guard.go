// middleware/store_guard.go
package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StoreGuard short-circuits requests with 503 while the backing store is
// unreachable. The ping result is cached briefly so the guard does not add a
// round trip to every request.
func StoreGuard(db *gorm.DB, logger *zap.Logger) fiber.Handler {
	var mu sync.Mutex
	var lastCheck time.Time
	var healthy = true

	return func(c *fiber.Ctx) error {
		mu.Lock()
		if time.Since(lastCheck) > 5*time.Second {
			lastCheck = time.Now()
			healthy = false
			if sqlDB, err := db.DB(); err == nil {
				healthy = sqlDB.Ping() == nil
			}
			if !healthy {
				logger.Error("store health check failed", zap.String("path", c.Path()))
			}
		}
		ok := healthy
		mu.Unlock()

		if !ok {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "storage backend unavailable",
			})
		}
		return c.Next()
	}
}
