package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/learnsy/backend/internal/repositories"
	"github.com/learnsy/backend/internal/services"
	"github.com/learnsy/backend/internal/tasks"
	"github.com/learnsy/backend/libs/config"
	"github.com/learnsy/backend/libs/logger"
	"go.uber.org/zap"
)

// lockTTL must stay below the shortest job interval
const lockTTL = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Learnsy Scheduler")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// Test Redis connection
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize repositories and services
	courseRepo := repositories.NewCourseRepository(db)
	sessionService := services.NewStudySessionService(
		repositories.NewStudySessionRepository(db),
		courseRepo,
		cfg.Study.IdleTimeout,
		logger.Logger,
	)
	subscriptionService := services.NewSubscriptionService(
		repositories.NewPricingPlanRepository(db),
		repositories.NewSubscriptionRepository(db, logger.Logger),
		repositories.NewPaymentRepository(db, logger.Logger),
		repositories.NewUserRepository(db, logger.Logger),
		tasks.NewClient(asynqClient),
		cfg.Payments.VerifyDelay,
		logger.Logger,
	)
	tokenRepo := repositories.NewUserTokenRepository(db)

	// Create scheduler instance
	scheduler := NewScheduler(rdb, lockTTL, uuid.NewString(), logger.Logger)
	for _, job := range maintenanceJobs(cfg.Scheduler, sessionService, subscriptionService, tokenRepo, cfg.JWT.RefreshTokenExpiry, time.Now) {
		if err := scheduler.Add(job); err != nil {
			logger.Logger.Fatal("Failed to schedule job", zap.Error(err))
		}
	}

	// Start scheduler
	scheduler.Start()
	defer func() {
		logger.Logger.Info("Shutting down scheduler...")
		scheduler.Stop()
		logger.Logger.Info("Scheduler exited")
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
