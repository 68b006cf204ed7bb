// Command admissions-api serves login, token re-validation and revocation
// for the admissions console.
//
// @title                       Admissions API
// @version                     1.0
// @description                 Credential authority of the university admissions dashboard.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/unidash/admissions-console/docs"
	"github.com/unidash/admissions-console/internal/api"
	"github.com/unidash/admissions-console/internal/api/handler"
	"github.com/unidash/admissions-console/internal/core/service"
	"github.com/unidash/admissions-console/internal/infrastructure/db/mongo"
	"github.com/unidash/admissions-console/internal/infrastructure/db/redis"
	"github.com/unidash/admissions-console/internal/infrastructure/queue"
	"github.com/unidash/admissions-console/internal/pkg/config"
	"github.com/unidash/admissions-console/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Service: "admissions-api", Level: cfg.LogLevel, Pretty: cfg.IsDevelopment()})

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo unavailable")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}
	defer rdb.Close()

	users := mongo.NewAuthRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("ensure user indexes")
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	audit := queue.NewDispatcher(cfg.Workers, mongo.NewAuditRepository(db), log)
	audit.Start(workerCtx)

	revoker := redis.NewRevocationList(rdb)
	authService := service.NewAuthService(users, revoker, audit, cfg.JWTSecret, cfg.TokenTTL, log)
	if err := authService.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin")
	}

	e := api.NewRouter(api.APIDeps{
		Auth:      authService,
		Revoker:   revoker,
		JWTSecret: cfg.JWTSecret,
		Health: map[string]handler.Pinger{
			"mongodb": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
			"redis":   func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
		Log: log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Msg("admissions api listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	stopWorkers()
	audit.Wait()
}
