package main

import (
	"fmt"
	"os"

	"coffeeshop/internal/config"
	"coffeeshop/internal/database"
	"coffeeshop/internal/logger"
	"coffeeshop/internal/router"
)

// @title           Coffee Shop API
// @version         1.0
// @description     Storefront authentication, account lockout and staff administration.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name access_token

func main() {
	// The logger is reconfigured once the config is known.
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.InitWithOptions(cfg.Env, logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	log := logger.Get()

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	engine := router.New(cfg, dbManager.DB(), router.Deps{})

	log.Infow("starting coffeeshop api",
		"port", cfg.Port,
		"env", cfg.Env,
		"db_driver", cfg.DBDriver,
		"lock_max_attempts", cfg.LockMaxAttempts,
		"lock_duration", cfg.LockDuration.String(),
	)
	return engine.Run(":" + cfg.Port)
}
