package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sigmundftw/educabot/db"
	"github.com/sigmundftw/educabot/internal/app"
	"github.com/sigmundftw/educabot/internal/config"
	"github.com/sigmundftw/educabot/internal/logger"
	"github.com/sigmundftw/educabot/internal/slack"
	"github.com/sigmundftw/educabot/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	ctx := context.Background()
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logg.Fatal("record store unavailable", "backend", cfg.StoreBackend, "error", err.Error())
	}
	defer backend.Close()

	chat := slack.NewClient(cfg.SlackAPIURL, cfg.SlackBotToken, &http.Client{Timeout: cfg.RequestTimeout})
	service := app.New(cfg, backend, chat, logg)

	httpServer := app.NewHTTPServer(service, logg, cfg.RequestTimeout)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logg.Info("educabot listening", "addr", cfg.Addr, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal("server failed", "error", err.Error())
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Warn("shutdown error", "error", err.Error())
	}
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return store.NewRedisBackend(cfg.RedisURL, cfg.RedisPrefix)
	case config.BackendPostgres:
		sqlDB, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		var migrations fs.FS = db.Migrations
		dir := db.MigrationsDir
		if cfg.MigrationsDir != "" {
			migrations, dir = os.DirFS(cfg.MigrationsDir), "."
		}
		if err := store.ApplyMigrations(ctx, sqlDB, migrations, dir); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return store.NewPostgresBackend(sqlDB), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.StoreBackend)
	}
}
