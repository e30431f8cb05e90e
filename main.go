package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"monster-arena-system/handlers"
	"monster-arena-system/middleware"
	"monster-arena-system/models"
	"monster-arena-system/services"
	"monster-arena-system/utils"
	"monster-arena-system/workers"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading environment variables directly")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	db := connectDatabase(logger)

	if err := db.AutoMigrate(
		&models.PlayerProfile{},
		&models.Avatar{},
		&models.QueueEntry{},
		&models.Challenge{},
		&models.BattleRoom{},
		&models.ActiveBattle{},
		&models.TradeListing{},
		&models.Season{},
		&models.SeasonHistory{},
		&models.PendingReward{},
		&models.Title{},
	); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	rdb := connectRedis(logger)

	if err := utils.InitArchive(); err != nil {
		logger.Warn("season archive disabled", zap.Error(err))
	}

	app := fiber.New()

	// Liveness probe stays in front of gateway auth so the orchestrator can
	// reach it without a token.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(middleware.GatewayAuthMiddleware(logger))

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		logger.Warn("ALLOWED_ORIGINS not set, using default http://localhost:3000")
		allowedOrigins = "http://localhost:3000"
	}
	origins := strings.Split(allowedOrigins, ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(middleware.RequestLogger(logger))
	app.Use(middleware.StoreGuard(db, logger))

	leaderboardService := services.NewLeaderboardService(db, rdb, logger)
	matchmakingService := services.NewMatchmakingService(db, logger)
	challengeService := services.NewChallengeService(db, logger)
	battleService := services.NewBattleService(db, logger, leaderboardService)
	marketService := services.NewMarketService(db, logger)
	seasonService := services.NewSeasonService(db, logger, leaderboardService)

	handlers.SetupArenaRoutes(app, logger, matchmakingService, challengeService, battleService)
	handlers.SetupMarketRoutes(app, logger, marketService)
	handlers.SetupSeasonRoutes(app, logger, seasonService, leaderboardService)

	services.StartArenaScheduler(db, logger, challengeService, seasonService, leaderboardService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL != "" {
		serviceToken := os.Getenv("PROFILE_SERVICE_TOKEN")
		syncWorker := workers.NewProfileSyncWorker(db, logger, profileServiceURL, "/api/v1/public/profiles", serviceToken)
		syncWorker.Start(ctx)
	} else {
		logger.Warn("PROFILE_SERVICE_URL not set, profile mirroring disabled")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	logger.Info("arena server running", zap.String("port", port))

	<-ctx.Done()
	logger.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

// connectDatabase opens postgres with a retry loop so the service survives the
// database coming up after it in an orchestrated deploy.
func connectDatabase(logger *zap.Logger) *gorm.DB {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL environment variable not set")
	}

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= 10; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			return db
		}
		logger.Warn("database connection failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	logger.Fatal("failed to connect to database", zap.Error(err))
	return nil
}

func connectRedis(logger *zap.Logger) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	dbNum := 0
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			dbNum = parsed
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       dbNum,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The leaderboard falls back to SQL when redis is away, so this is
		// not fatal.
		logger.Warn("redis unreachable at startup", zap.String("addr", addr), zap.Error(err))
	}
	return rdb
}
