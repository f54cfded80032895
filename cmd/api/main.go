package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"go-stocksync/internal/handler"
	"go-stocksync/internal/lock"
	"go-stocksync/internal/middleware"
	"go-stocksync/internal/model"
	"go-stocksync/internal/platform"
	"go-stocksync/internal/repository"
	"go-stocksync/internal/service"
	"go-stocksync/internal/worker"
	"go-stocksync/internal/ws"
	"go-stocksync/pkg/database"
	"go-stocksync/pkg/logger"
)

func main() {
	// 1. Load Env (absent .env is fine in containerized deployments)
	_ = godotenv.Load()
	log := logger.New(os.Getenv("LOG_LEVEL"))

	// 2. Setup Database
	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := db.AutoMigrate(
		&model.InventoryLocation{},
		&model.InventoryItem{},
		&model.InventoryTransaction{},
		&model.StockReservation{},
		&model.Store{},
		&model.StoreProductMapping{},
		&model.SyncJob{},
		&model.SyncLog{},
	); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// 3. Distributed lock (Redis when configured, in-process otherwise)
	var locker service.Locker
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		locker = lock.NewRedisLocker(redis.NewClient(opts))
		log.Info().Msg("using redis job leases")
	} else {
		locker = lock.NewMemoryLocker()
		log.Warn().Msg("REDIS_URL not set, job leases are process-local")
	}

	// 4. WebSocket hub for low-stock alerts
	wsHub := ws.NewHub(log)
	go wsHub.Run()
	notifier := ws.NewNotifier(wsHub, log)

	// 5. Platform adapters. Concrete marketplace clients register themselves
	// here; a store whose platform key has no adapter cannot sync.
	registry := platform.NewRegistry()

	// 6. Dependency Injection (Wiring Layers)
	itemStore := repository.NewItemStore(db)
	txRepo := repository.NewTransactionRepo(db)
	resRepo := repository.NewReservationRepo(db)
	mappingRepo := repository.NewMappingRepo(db)
	jobRepo := repository.NewSyncJobRepo(db)
	storeRepo := repository.NewStoreRepo(db)
	locationRepo := repository.NewLocationRepo(db)

	pool := worker.NewPool(envInt("WORKER_POOL_SIZE", 4), log)

	ledgerSvc := service.NewLedgerService(itemStore, txRepo, notifier, log)
	reservationSvc := service.NewReservationService(itemStore, resRepo,
		time.Duration(envInt("RESERVATION_TTL_MINUTES", 30))*time.Minute, log)
	syncSvc := service.NewSyncService(storeRepo, mappingRepo, jobRepo, itemStore, locationRepo,
		resRepo, reservationSvc, registry, locker, pool, service.SyncConfig{
			MaxRetries:       envInt("SYNC_MAX_RETRIES", 3),
			Concurrency:      envInt("SYNC_CONCURRENCY", 4),
			FailureThreshold: envFloat("SYNC_FAILURE_THRESHOLD", 0.1),
		}, log)
	conflictSvc := service.NewConflictService(mappingRepo, storeRepo, locationRepo, ledgerSvc, syncSvc, log)

	invHandler := handler.NewInventoryHandler(ledgerSvc, reservationSvc)
	syncHandler := handler.NewSyncHandler(syncSvc, conflictSvc, storeRepo, jobRepo)
	locHandler := handler.NewLocationHandler(locationRepo)

	// 7. Reservation expiry sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweeper := worker.NewSweeper(reservationSvc, locker,
		time.Duration(envInt("SWEEP_INTERVAL_SECONDS", 60))*time.Second, log)
	go sweeper.Run(sweepCtx)

	// 8. Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "StockSync v1.0",
	})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	// 9. Routes
	api := app.Group("/api/v1", middleware.RequireAuth())

	api.Put("/inventory/:variantId/locations/:locationId", invHandler.UpdateStock)
	api.Get("/inventory/:variantId/locations/:locationId/history", invHandler.GetItemHistory)
	api.Get("/inventory/:variantId/available", invHandler.GetAvailableStock)
	api.Post("/inventory/adjustments", invHandler.AdjustInventory)
	api.Get("/inventory/low-stock", invHandler.GetLowStockItems)

	api.Post("/reservations", invHandler.ReserveStock)
	api.Delete("/reservations/:orderId", invHandler.ReleaseReservation)

	api.Post("/locations", locHandler.CreateLocation)
	api.Get("/locations", locHandler.GetLocations)
	api.Put("/locations/:id/default", locHandler.SetDefault)

	api.Post("/stores", syncHandler.CreateStore)
	api.Get("/stores", syncHandler.GetStores)
	api.Post("/stores/:id/sync/inventory", syncHandler.PushInventory)
	api.Post("/stores/:id/sync/products", syncHandler.FetchProducts)
	api.Post("/stores/:id/sync/orders", syncHandler.FetchOrders)
	api.Get("/stores/:id/jobs", syncHandler.ListJobs)
	api.Get("/stores/:id/conflicts", syncHandler.ListConflicts)
	api.Get("/jobs/:id", syncHandler.GetJob)
	api.Get("/jobs/:id/logs", syncHandler.GetJobLogs)
	api.Post("/mappings/:id/resolve", syncHandler.ResolveConflict)

	// WebSocket Route
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		wsHub.Register <- c
		defer func() { wsHub.Unregister <- c }()

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	// 10. Graceful Shutdown
	go func() {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		if err := app.Listen(":" + port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	stopSweep()
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Let in-flight sync jobs drain before exit.
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pool.Wait(drainCtx); err != nil {
		log.Warn().Msg("sync jobs still running at shutdown")
	}
	log.Info().Msg("server exited")
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}
