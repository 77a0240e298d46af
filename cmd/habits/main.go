package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habits/internal/auth"
	"habits/internal/config"
	"habits/internal/db"
	httpx "habits/internal/http"
	"habits/internal/jobs"
	"habits/internal/logger"
	"habits/internal/metrics"
	"habits/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect db", "error", err)
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal("migrate db", "error", err)
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	tg := notify.NewClient(cfg.TelegramAPIBase, cfg.TelegramBotToken)
	linker := &notify.Linker{DB: gdb, Client: tg, Log: log.With("component", "telegram-link")}

	r := httpx.NewRouter(httpx.Deps{
		Config:  cfg,
		DB:      gdb,
		JWT:     auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL),
		Log:     log,
		Metrics: m,
		Linker:  linker,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SCAN_INTERVAL=0 leaves scanning to an external cron running habitsctl scan
	if cfg.ScanInterval > 0 {
		worker := &jobs.Worker{
			ID: "scanner-1",
			Scanner: &jobs.Scanner{
				DB:          gdb,
				Notifier:    &notify.Sender{DB: gdb, Client: tg, Log: log.With("component", "sender")},
				Location:    cfg.Location,
				Concurrency: cfg.ScanConcurrency,
				Log:         log.With("component", "scanner"),
				Metrics:     m,
			},
			Interval: cfg.ScanInterval,
			Log:      log,
		}
		go worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", "error", err)
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
}
