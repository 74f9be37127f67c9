package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/thread/internal/backend"
	"github.com/ButyrinIA/thread/internal/config"
	"github.com/ButyrinIA/thread/internal/server"
	"github.com/ButyrinIA/thread/internal/storage"
	"github.com/ButyrinIA/thread/internal/storage/memory"
	"github.com/ButyrinIA/thread/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "memory", "тип хранилища: memory или postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.NewLogger("info").Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Log.Level)

	var store storage.Storage
	switch *storageType {
	case "postgres":
		logger.Info("using postgres storage")
		store, err = postgres.New(cfg.Postgres.DSN)
		if err != nil {
			logger.Error("failed to init postgres", "error", err)
			os.Exit(1)
		}
	case "memory":
		logger.Info("using memory storage")
		store = memory.New()
	default:
		logger.Error("unknown storage type", "storage", *storageType)
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, backend.New(store, logger), logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
