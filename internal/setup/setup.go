// Package setup provides initialization and cleanup of shared application
// state for the bot and worker entrypoints.
package setup

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veilguard/doppel/internal/database"
	"github.com/veilguard/doppel/internal/redis"
	"github.com/veilguard/doppel/internal/setup/config"
)

// App bundles the shared dependencies both entrypoints need.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DBLogger     *zap.Logger
	DB           database.Client
	RedisManager *redis.Manager
}

// InitializeApp loads configuration, sets up logging, and connects to the
// backing stores. The caller is responsible for calling Cleanup.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	cfg, configPath, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, dbLogger, err := GetLoggers(logDir, cfg.Common.Debug.LogLevel, cfg.Common.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loggers: %w", err)
	}

	logger.Info("Loaded configuration", zap.String("path", configPath))

	db, err := database.NewConnection(ctx, &cfg.Common.PostgreSQL, dbLogger, true)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisManager := redis.NewManager(&cfg.Common.Redis, logger)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
	}, nil
}

// Cleanup releases all resources held by the application.
func (a *App) Cleanup(ctx context.Context) {
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	a.RedisManager.Close()

	_ = a.Logger.Sync()
	_ = a.DBLogger.Sync()
}
