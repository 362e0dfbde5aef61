// cmd/server/main.go - Civic issue tracker backend server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civic-tracker/internal/config"
	"civic-tracker/internal/database"
	"civic-tracker/internal/handlers"
	"civic-tracker/internal/middleware"
	"civic-tracker/internal/services"
	"civic-tracker/internal/websocket"
	"civic-tracker/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	serverStartTime = time.Now()

	appVersion = "1.0.0"
	buildTime  = "unknown"
	gitCommit  = "unknown"
)

func main() {
	cfg := config.Load()

	logger := setupLogging(cfg)
	printStartupInfo(cfg)

	store, closeStore := openStore(cfg)
	defer closeStore()

	jwtManager := auth.NewJWTManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTExpiration)*time.Hour,
	)

	wsHub := websocket.NewHub(cfg.PushBufferSize)

	notificationService := services.NewNotificationService(store, wsHub)
	deps := handlers.Dependencies{
		Config:        cfg,
		Store:         store,
		Hub:           wsHub,
		JWTManager:    jwtManager,
		Issues:        services.NewIssueService(store, notificationService),
		Nearby:        services.NewNearbyService(store),
		Notifications: notificationService,
		Dashboard:     services.NewDashboardService(store),
		Users:         services.NewUserService(store, jwtManager),
		Logger:        logger,
		StartedAt:     serverStartTime,
		Version:       appVersion,
	}

	if cfg.RateLimitEnabled {
		deps.RateLimiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		defer deps.RateLimiter.Stop()
	}

	if cfg.RedisURL != "" {
		redisClient, err := middleware.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Warn("Redis unavailable, issue creation limit disabled")
		} else {
			defer redisClient.Close()
			deps.IssueLimiter = middleware.NewIssueLimiter(redisClient, cfg.IssueDailyLimit, 24*time.Hour)
			logrus.Infof("Issue creation limit: %d per user per day", cfg.IssueDailyLimit)
		}
	}

	router := handlers.SetupRouter(deps)

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logrus.Infof("Civic tracker server v%s listening on http://%s:%s", appVersion, cfg.Host, cfg.Port)
		logrus.Infof("Live notifications: ws://%s:%s/ws/notifications", cfg.Host, cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wsHub.Shutdown()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server forced to shutdown")
	} else {
		logrus.Info("Server gracefully stopped")
	}
}

func setupLogging(cfg *config.Config) *logrus.Logger {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		gin.SetMode(gin.DebugMode)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func printStartupInfo(cfg *config.Config) {
	logrus.WithFields(logrus.Fields{
		"version":     appVersion,
		"build":       buildTime,
		"commit":      gitCommit,
		"environment": cfg.Env,
		"host":        cfg.Host,
		"port":        cfg.Port,
		"store":       cfg.StoreBackend,
		"database":    cfg.DatabaseName,
		"origins":     cfg.AllowedOrigins,
	}).Info("Civic tracker backend starting")

	if cfg.StoreBackend == config.StoreMongo && !cfg.MongoTransactions {
		logrus.Warn("MONGO_TRANSACTIONS is off: an issue change whose notifications fail to save is not rolled back. Enable it on a replica set.")
	}

	if cfg.RateLimitEnabled {
		logrus.Infof("Rate limit: %d requests per %s", cfg.RateLimitRequests, cfg.RateLimitWindow)
	}
}

// openStore connects the configured backend and returns it with its cleanup.
func openStore(cfg *config.Config) (database.Store, func()) {
	if cfg.StoreBackend == config.StoreMemory {
		logrus.Warn("Using in-memory store, data is lost on restart")
		return database.NewMemoryStore(), func() {}
	}

	logrus.Info("Connecting to MongoDB...")
	db, err := database.NewMongoDB(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to MongoDB")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.CreateIndexes(ctx); err != nil {
		logrus.WithError(err).Warn("Failed to create some indexes")
	}

	store := database.NewMongoStore(db, cfg.MongoTransactions)
	return store, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logrus.WithError(err).Warn("Error disconnecting from MongoDB")
		} else {
			logrus.Info("Disconnected from MongoDB")
		}
	}
}
