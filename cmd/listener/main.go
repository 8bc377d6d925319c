package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/LJTian/ToramListener/internal/api"
	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/LJTian/ToramListener/internal/config"
	"github.com/LJTian/ToramListener/internal/logger"
	"github.com/LJTian/ToramListener/internal/notify"
	"github.com/LJTian/ToramListener/internal/processor"
	"github.com/LJTian/ToramListener/internal/scheduler"
	"github.com/LJTian/ToramListener/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}
	logger.Setup(cfg.SlogLevel())

	store, err := storage.Open(cfg.StorageOptions())
	if err != nil {
		slog.Error("init watermark store failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	loop := scheduler.NewLoop(
		collector.NewListingReader(cfg.ListingURL, cfg.Location(), cfg.HTTPTimeout),
		collector.NewDetailExtractor(cfg.DetailURLTemplate, cfg.HTTPTimeout),
		processor.NewFormatter(),
		notify.NewWebhook(cfg.WebhookURL, cfg.WebhookSuccessStatus, cfg.HTTPTimeout),
		store,
	)

	s, err := scheduler.New(cfg.PollInterval, loop)
	if err != nil {
		slog.Error("init scheduler failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 探活服务与投递循环互不相干，单独跑
	if cfg.HTTPServer {
		gin.SetMode(gin.ReleaseMode)
		go func() {
			if err := api.Run(ctx, cfg.Addr()); err != nil {
				slog.Error("liveness server exit", "err", err)
			}
		}()
	}

	s.Start()
	<-ctx.Done()
	slog.Info("shutdown signal received, stopping polling")
	s.Stop()
}
