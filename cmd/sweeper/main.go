// Command sweeper runs the reservation expiry sweep as a standalone process,
// for deployments that keep background reclamation out of the API pods.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"go-stocksync/internal/lock"
	"go-stocksync/internal/repository"
	"go-stocksync/internal/service"
	"go-stocksync/internal/worker"
	"go-stocksync/pkg/database"
	"go-stocksync/pkg/logger"
)

func main() {
	_ = godotenv.Load()
	log := logger.New(os.Getenv("LOG_LEVEL"))

	db, err := database.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}

	var locker service.Locker
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		locker = lock.NewRedisLocker(redis.NewClient(opts))
	} else {
		locker = lock.NewMemoryLocker()
		log.Warn().Msg("REDIS_URL not set, sweep lease is process-local")
	}

	itemStore := repository.NewItemStore(db)
	resRepo := repository.NewReservationRepo(db)
	reservationSvc := service.NewReservationService(itemStore, resRepo, 0, log)

	interval := 60
	if raw := os.Getenv("SWEEP_INTERVAL_SECONDS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			interval = v
		}
	}
	sweeper := worker.NewSweeper(reservationSvc, locker, time.Duration(interval)*time.Second, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Int("interval_seconds", interval).Msg("sweeper started")
	sweeper.Run(ctx)
	log.Info().Msg("sweeper exited")
}
