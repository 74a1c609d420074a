// Package main runs the meeting transcript HTTP API with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/recallcontext/backend/config"
	"github.com/recallcontext/backend/internal/actions"
	"github.com/recallcontext/backend/internal/analysis"
	"github.com/recallcontext/backend/internal/auth"
	"github.com/recallcontext/backend/internal/events"
	"github.com/recallcontext/backend/internal/meetings"
	"github.com/recallcontext/backend/internal/middleware"
	"github.com/recallcontext/backend/internal/settings"
	"github.com/recallcontext/backend/pkg/database"
	"github.com/recallcontext/backend/pkg/queue"
	"github.com/recallcontext/backend/pkg/redis"
	"github.com/recallcontext/backend/pkg/response"
	"github.com/recallcontext/backend/pkg/storage"
	"github.com/recallcontext/backend/pkg/utils"
)

const (
	shutdownGrace    = 15 * time.Second
	interruptedGrace = time.Minute
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var presigner meetings.Presigner
	if cfg.Archive.Enabled {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			presigner = s3Client
		}
	}

	// Settings (encrypted API key)
	cipher := utils.NewCredentialCipher(cfg.Encryption.Secret)
	settingsSvc := settings.NewService(settings.NewRepository(pool), cipher, logger)
	settingsHandler := settings.NewHandler(settingsSvc, logger)

	// Meetings (ingestion + reads)
	pubsub := events.NewRedisPubSub(rdb.Client, logger)
	opts := []meetings.Option{meetings.WithStatusPublisher(pubsub)}
	if cfg.Archive.Enabled {
		opts = append(opts, meetings.WithArchive(queue.NewQueue(rdb.Client, logger)))
	}
	meetingSvc := meetings.NewService(
		meetings.NewRepository(pool),
		settingsSvc,
		analysis.NewClient(cfg.Anthropic, logger),
		analysis.NewExtractor(logger),
		logger,
		opts...,
	)
	// Uploads cut off by a previous crash or deploy would otherwise stay PROCESSING forever.
	// Anything younger than one analysis may still belong to another live instance.
	if n, err := meetingSvc.FailInterrupted(ctx, cfg.Anthropic.Timeout()+interruptedGrace); err != nil {
		logger.Error("fail interrupted meetings", zap.Error(err))
	} else if n > 0 {
		logger.Warn("failed interrupted meetings", zap.Int("count", n))
	}
	meetingHandler := meetings.NewHandler(meetingSvc, presigner, cfg.Upload.MaxContentBytes, logger)
	streamHandler := events.NewStreamHandler(meetingSvc.Status, pubsub, middleware.OriginAllowed(cfg.Server.CORSAllowedOrigins), logger)

	// Action items
	actionHandler := actions.NewHandler(actions.NewService(actions.NewRepository(pool), logger), logger)

	// Auth: disabled means every request runs as the default identity.
	var jwtService *auth.JWTService
	if cfg.JWT.Enabled {
		jwtService = auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(hctx); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(hctx); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	if jwtService != nil {
		authHandler := auth.NewHandler(jwtService, cfg.JWT.AdminPasswordHash, cfg.JWT.DefaultIdentity, logger)
		router.POST("/auth/token", authHandler.Token)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(jwtService, cfg.JWT.DefaultIdentity))
	{
		// Meetings
		api.POST("/meetings", meetingHandler.Upload)
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/:id", meetingHandler.Get)
		api.GET("/meetings/:id/processing-status", meetingHandler.Status)
		api.GET("/meetings/:id/events", streamHandler.Stream)
		api.GET("/meetings/:id/transcript-url", meetingHandler.TranscriptURL)
		api.DELETE("/meetings/:id", meetingHandler.Delete)

		// Action items
		api.GET("/actions", actionHandler.List)
		api.GET("/actions/:id", actionHandler.Get)
		api.PUT("/actions/:id", actionHandler.Update)
		api.PATCH("/actions/:id/status", actionHandler.UpdateStatus)

		// Settings
		api.POST("/settings/api-key", settingsHandler.SaveAPIKey)
		api.GET("/settings/api-key/status", settingsHandler.Status)
		api.DELETE("/settings/api-key", settingsHandler.DeleteAPIKey)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.Bool("auth_enabled", cfg.JWT.Enabled), zap.Bool("archive_enabled", cfg.Archive.Enabled))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Let in-flight uploads finish their analysis and reach COMPLETED or FAILED.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Anthropic.Timeout()+shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
