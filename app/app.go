// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"go-auth-api/client"
	"go-auth-api/config"
	"go-auth-api/db"
	"go-auth-api/handler"
	"go-auth-api/logger"
	"go-auth-api/repository"
	"go-auth-api/router"
	"go-auth-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func Run() {
	logger.Init()
	logger.Log.Info("Logger initialized")

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	logger.SetLevel(cfg.Log.Level)
	logger.Log.Info("Configuration loaded successfully")

	database, err := db.Connect(cfg)
	if err != nil {
		logger.Log.Fatalf("Error connecting to the database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(cfg.Database.MigrationsPath, db.ConnString(cfg)); err != nil {
		logger.Log.Fatalf("Error running migrations: %v", err)
	}

	checks := map[string]handler.HealthCheck{"database": database.PingContext}

	// Refresh token store
	var tokenRepo repository.ITokenRepository
	switch cfg.Store.Driver {
	case config.StoreDriverRedis:
		rdb, err := db.ConnectRedis(context.Background(), cfg)
		if err != nil {
			logger.Log.Fatalf("Error connecting to redis: %v", err)
		}
		defer rdb.Close()
		tokenRepo = repository.NewRedisTokenRepository(rdb, cfg.Store.Retention)
		checks["redis"] = redisPing(rdb)
	default:
		tokenRepo = repository.NewTokenRepository(database)
	}

	hasher := service.NewBcryptHasher(cfg.Hasher.Cost, cfg.Hasher.Timeout)
	directory, userHandler := buildDirectory(cfg, database, hasher)

	attemptRepo := repository.NewLoginAttemptRepository(database)
	authService := service.NewAuthService(cfg, directory, hasher, tokenRepo, attemptRepo)

	authHandler := handler.NewAuthHandler(authService)
	healthHandler := handler.NewHealthHandler(checks)
	authenticator := handler.NewAuthenticator(authService)

	r := router.NewRouter(authHandler, userHandler, healthHandler, authenticator)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	janitorDone := make(chan struct{})
	go func() {
		defer close(janitorDone)
		runJanitor(janitorCtx, authService, cfg.Store.PurgeInterval, cfg.Store.Retention, time.Now)
	}()

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")

	stopJanitor()
	<-janitorDone

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Log.Info("Server exited properly")
}

// buildDirectory picks the user directory. The local postgres directory also
// exposes the user provisioning routes; the remote one does not.
func buildDirectory(cfg *config.Config, database *sql.DB, hasher service.Hasher) (service.Directory, *handler.UserHandler) {
	if cfg.Directory.Driver == config.DirectoryDriverPostgres {
		userRepo := repository.NewUserRepository(database, cfg.Directory.Timeout)
		userService := service.NewUserService(userRepo, hasher)
		return userRepo, handler.NewUserHandler(userService)
	}
	return client.NewUserClient(cfg.Directory.BaseURL, cfg.Directory.Timeout, nil), nil
}

func redisPing(rdb *redis.Client) handler.HealthCheck {
	return func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}
}
