package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	_ "github.com/learnsy/backend/docs"
	"github.com/learnsy/backend/internal/handlers"
	"github.com/learnsy/backend/internal/models"
	"github.com/learnsy/backend/internal/repositories"
	"github.com/learnsy/backend/internal/services"
	"github.com/learnsy/backend/internal/storage"
	"github.com/learnsy/backend/internal/tasks"
	"github.com/learnsy/backend/libs/auth/middleware"
	"github.com/learnsy/backend/libs/auth/service"
	"github.com/learnsy/backend/libs/config"
	"github.com/learnsy/backend/libs/logger"
	loggerMiddleware "github.com/learnsy/backend/libs/logger/middleware"
	sharedMiddleware "github.com/learnsy/backend/libs/middlewares"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// jsonBodyLimit caps non-upload request bodies. Material uploads set their own limit.
const jsonBodyLimit = 10 * 1024 * 1024

// @title Learnsy API
// @version 1.0
// @description API for courses, learning materials, progress tracking, study sessions, AI tools and subscriptions
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@learnsy.app

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
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

	logger.Logger.Info("Starting Learnsy API")

	// Connect to database
	db, err := connectDB(cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := runMigrations(db); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Material file store
	store, err := newStorage(cfg.Storage, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	// Create Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()
	taskClient := tasks.NewClient(asynqClient)

	// Initialize JWT token generator
	tokenGenerator := service.NewTokenGenerator(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db, logger.Logger)
	userTokenRepo := repositories.NewUserTokenRepository(db)
	courseRepo := repositories.NewCourseRepository(db)
	materialRepo := repositories.NewMaterialRepository(db)
	enrollmentRepo := repositories.NewEnrollmentRepository(db)
	completionRepo := repositories.NewCompletionRepository(db)
	sessionRepo := repositories.NewStudySessionRepository(db)
	planRepo := repositories.NewPricingPlanRepository(db)
	subscriptionRepo := repositories.NewSubscriptionRepository(db, logger.Logger)
	paymentRepo := repositories.NewPaymentRepository(db, logger.Logger)

	// Initialize services
	authService := services.NewAuthService(userRepo, userTokenRepo, subscriptionRepo, tokenGenerator, taskClient, logger.Logger)
	courseService := services.NewCourseService(courseRepo, materialRepo, store, logger.Logger)
	enrollmentService := services.NewEnrollmentService(courseRepo, enrollmentRepo, userRepo, taskClient, logger.Logger)
	materialService := services.NewMaterialService(
		courseRepo,
		materialRepo,
		enrollmentRepo,
		completionRepo,
		subscriptionRepo,
		store,
		logger.Logger,
		cfg.Storage.MediaBaseURL,
	)
	studySessionService := services.NewStudySessionService(sessionRepo, courseRepo, cfg.Study.IdleTimeout, logger.Logger)
	progressService := services.NewProgressService(courseRepo, enrollmentRepo, completionRepo, materialRepo, studySessionService, logger.Logger)
	aiToolsService := services.NewAIToolsService(materialService)
	subscriptionService := services.NewSubscriptionService(
		planRepo,
		subscriptionRepo,
		paymentRepo,
		userRepo,
		taskClient,
		cfg.Payments.VerifyDelay,
		logger.Logger,
	)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, logger.Logger, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
	courseHandler := handlers.NewCourseHandler(courseService, logger.Logger)
	enrollmentHandler := handlers.NewEnrollmentHandler(enrollmentService, logger.Logger)
	materialHandler := handlers.NewMaterialHandler(materialService, logger.Logger, cfg.Server.MaxUploadSize, cfg.Server.TransferTimeout)
	progressHandler := handlers.NewProgressHandler(progressService, logger.Logger)
	studySessionHandler := handlers.NewStudySessionHandler(studySessionService, logger.Logger)
	aiToolsHandler := handlers.NewAIToolsHandler(aiToolsService, logger.Logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService, logger.Logger)

	// Initialize auth middleware
	authMiddleware := middleware.AuthMiddleware(tokenGenerator)
	facultyMiddleware := middleware.RoleMiddleware(tokenGenerator, int(models.RoleFaculty), int(models.RoleAdmin))
	adminMiddleware := middleware.RoleMiddleware(tokenGenerator, int(models.RoleAdmin))

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(sharedMiddleware.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(sharedMiddleware.RecoveryMiddleware(logger.Logger))
	r.Use(sharedMiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(httprate.LimitByIP(100, time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))

	// Scope router to /api
	r.Route("/api", func(r chi.Router) {
		// Signup and login
		r.Group(func(r chi.Router) {
			r.Use(sharedMiddleware.RequestSizeLimitMiddleware(jsonBodyLimit))
			authHandler.RegisterRoutes(r, authMiddleware)
		})

		// Uploads are limited by the material handler
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			materialHandler.RegisterRoutes(r, facultyMiddleware)
		})

		// Everything else requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(sharedMiddleware.RequestSizeLimitMiddleware(jsonBodyLimit))
			courseHandler.RegisterRoutes(r, facultyMiddleware)
			enrollmentHandler.RegisterRoutes(r)
			progressHandler.RegisterRoutes(r)
			studySessionHandler.RegisterRoutes(r)
			aiToolsHandler.RegisterRoutes(r)
			subscriptionHandler.RegisterRoutes(r, adminMiddleware)
		})
	})

	// Start server
	// Material uploads and downloads move these deadlines to SERVER_TRANSFER_TIMEOUT per request
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

// newStorage creates the material store selected by the configuration
func newStorage(cfg config.StorageConfig, logger *zap.Logger) (services.Storage, error) {
	if cfg.Driver == config.StorageDriverMinIO {
		return storage.NewMinIOStorage(storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, logger)
	}
	if err := os.MkdirAll(cfg.MediaBasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return storage.NewLocalStorage(cfg.MediaBasePath), nil
}

// connectDB connects to the database
func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{
		MigrationsTable: "learnsy_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Get the working directory or use migrations folder relative to the binary
	migrationPath := "file://migrations"
	if _, err := os.Stat("migrations"); os.IsNotExist(err) {
		// Try parent directory if running from cmd
		if _, err := os.Stat("../migrations"); err == nil {
			migrationPath = "file://../migrations"
		} else if _, err := os.Stat("../../migrations"); err == nil {
			migrationPath = "file://../../migrations"
		}
	}

	m, err := migrate.NewWithDatabaseInstance(
		migrationPath,
		"mysql",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
