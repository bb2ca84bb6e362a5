package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/suteetoe/geoprofile/internal/blacklist"
	"github.com/suteetoe/geoprofile/internal/handler"
	"github.com/suteetoe/geoprofile/internal/mailer"
	"github.com/suteetoe/geoprofile/internal/middleware"
	"github.com/suteetoe/geoprofile/internal/model"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/internal/repository"
	"github.com/suteetoe/geoprofile/internal/scheduler"
	"github.com/suteetoe/geoprofile/internal/serializer"
	"github.com/suteetoe/geoprofile/internal/storage"
	"github.com/suteetoe/geoprofile/pkg/config"
	"github.com/suteetoe/geoprofile/pkg/database"
	"github.com/suteetoe/geoprofile/pkg/jwtutil"
	"github.com/suteetoe/geoprofile/pkg/logger"
	"github.com/suteetoe/geoprofile/prometheus"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load("geoprofile")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(cfg); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()
	log.Info("Starting geoprofile service...", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database object", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize JWT utility
	jwtUtil := jwtutil.NewJWTUtil(&cfg.JWT)
	log.Info("JWT utility initialized")

	prometheus.SetServiceInfo(cfg.ServiceName)

	// Token blacklist: redis when configured, in-process otherwise
	var revoked blacklist.Store
	if cfg.Redis.Addr != "" {
		redisStore := blacklist.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Fatal("Failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		defer redisStore.Close()
		revoked = redisStore
		log.Info("Token blacklist backed by redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		revoked = blacklist.NewMemoryStore()
		log.Warn("REDIS_ADDR not set, token blacklist is kept in memory")
	}

	files, err := storage.NewLocalStorage(cfg.Media.Root)
	if err != nil {
		log.Fatal("Failed to initialize media storage", zap.Error(err))
	}
	passwords := password.NewValidator(cfg.Password.MinLength, cfg.Password.MinEntropy)

	// Repositories
	userRepo := repository.NewUserRepository(db)
	interestRepo := repository.NewOwnedRepository[model.AreaOfInterest](db)
	distanceRepo := repository.NewOwnedRepository[model.WorkDistance](db)
	documentRepo := repository.NewOwnedRepository[model.Document](db)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true
	e.Validator = serializer.NewValidator()

	// Every /api route is declared with a trailing slash
	e.Pre(echomiddleware.AddTrailingSlashWithConfig(echomiddleware.TrailingSlashConfig{
		Skipper: func(c echo.Context) bool {
			return !strings.HasPrefix(c.Request().URL.Path, "/api/")
		},
	}))

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.BodyLimit(cfg.Media.MaxUploadSize))
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	handler.RegisterRoutes(e, &handler.Handlers{
		Users:         handler.NewUserHandler(userRepo, documentRepo, files, passwords),
		Interests:     handler.NewInterestHandler(interestRepo, userRepo),
		WorkDistances: handler.NewWorkDistanceHandler(distanceRepo, userRepo),
		Documents:     handler.NewDocumentHandler(documentRepo, userRepo, files),
		Tokens:        handler.NewTokenHandler(userRepo, jwtUtil, revoked),
		Health:        handler.NewHealthHandler(sqlDB),
	}, middleware.AuthMiddleware(jwtUtil, userRepo))

	// Birthday greetings
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatal("Invalid scheduler timezone", zap.String("tz", cfg.Scheduler.Timezone), zap.Error(err))
	}
	job := scheduler.NewBirthdayJob(userRepo, mailer.NewSMTPSender(&cfg.Mail), cfg.Mail.From, loc, log)
	cronRunner, err := scheduler.New(cfg.Scheduler.BirthdaySpec, cfg.Scheduler.Timezone, job, log)
	if err != nil {
		log.Fatal("Failed to initialize scheduler", zap.Error(err))
	}
	cronRunner.Start()

	// Start server
	port := cfg.Server.Port
	go func() {
		log.Info("Starting server", zap.String("port", port))
		if err := e.Start(":" + port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-cronRunner.Stop().Done():
	case <-ctx.Done():
		log.Warn("Scheduled job still running at shutdown")
	}

	if err := sqlDB.Close(); err != nil {
		log.Error("Failed to close database", zap.Error(err))
	}
	log.Info("Server exited")
}
