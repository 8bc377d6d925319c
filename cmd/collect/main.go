package main

import (
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/LJTian/ToramListener/internal/collector"
	"github.com/LJTian/ToramListener/internal/config"
	"github.com/LJTian/ToramListener/internal/logger"
	"github.com/LJTian/ToramListener/internal/notify"
	"github.com/LJTian/ToramListener/internal/processor"
	"github.com/LJTian/ToramListener/internal/scheduler"
	"github.com/LJTian/ToramListener/internal/storage"
)

// 只执行一轮轮询的命令行入口：适合手动触发或交给外部 cron
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

	report := s.RunOnce()
	slog.Info("single cycle finished",
		"today", len(report.Listing),
		"pending", len(report.Pending),
		"watermark", string(report.Watermark),
		"advanced", report.Advanced,
	)
}
