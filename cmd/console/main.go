// Command console is the admissions dashboard gateway. It keeps each
// browser's credentials and session flag in Redis and guards the dashboard
// pages by role.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unidash/admissions-console/internal/api"
	"github.com/unidash/admissions-console/internal/core/service"
	"github.com/unidash/admissions-console/internal/infrastructure/backend"
	"github.com/unidash/admissions-console/internal/infrastructure/db/redis"
	"github.com/unidash/admissions-console/internal/pkg/config"
	"github.com/unidash/admissions-console/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Service: "console", Level: cfg.LogLevel, Pretty: cfg.IsDevelopment()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis unavailable")
	}
	defer rdb.Close()

	sessions := service.NewSessionManager(
		backend.NewClient(cfg.Console.APIBaseURL, cfg.Console.RequestTimeout),
		redis.NewKeyValueStore(rdb, "console:device", cfg.Console.CredentialTTL),
		redis.NewKeyValueStore(rdb, "console:session", cfg.Console.SessionTTL),
		log,
	)
	guards := api.NewGuards(log,
		service.WithRevalidateInterval(cfg.Console.RevalidateInterval),
		service.WithCheckTimeout(cfg.Console.RequestTimeout),
	)

	e := api.NewConsoleRouter(api.ConsoleDeps{
		Sessions:      sessions,
		Guards:        guards,
		SecureCookies: cfg.Console.SecureCookies,
		Ready:         func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Log:           log,
	})

	go func() {
		log.Info().Str("port", cfg.Console.Port).Str("api", cfg.Console.APIBaseURL).Msg("console listening")
		if err := e.Start(":" + cfg.Console.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	guards.Close()
}
