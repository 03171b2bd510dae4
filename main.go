package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"mt-trading-dashboard/config"
	"mt-trading-dashboard/internal/api"
	"mt-trading-dashboard/internal/auth"
	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/events"
	"mt-trading-dashboard/internal/logging"
	"mt-trading-dashboard/internal/vault"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger := logging.New("info", true)
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.LoggingConfig.Level, cfg.LoggingConfig.JSONFormat)
	logger.Info().Msg("configuration loaded")

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable, cooldown persistence disabled")
			redisClient = nil
		}
		cancel()
	}
	cooldowns := database.NewRedisCooldownStore(redisClient)

	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vault client")
	}
	if cfg.VaultConfig.Enabled {
		logger.Info().Str("addr", cfg.VaultConfig.Address).Msg("vault enabled for broker credentials")
	}

	eventBus := events.NewEventBus()

	tokenMinutes := cfg.AuthConfig.AccessTokenMinutes
	if tokenMinutes <= 0 {
		tokenMinutes = 60
	}
	jwtManager := auth.NewJWTManager(cfg.AuthConfig.JWTSecret,
		time.Duration(tokenMinutes)*time.Minute)
	passwordManager := auth.NewPasswordManager(cfg.AuthConfig.BcryptCost, auth.MinPasswordLength)
	authService := auth.NewService(db, passwordManager, jwtManager)

	server := api.NewServer(cfg, db, cooldowns, eventBus, authService, jwtManager, vaultClient, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("stopped")
}
