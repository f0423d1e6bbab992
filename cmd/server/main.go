package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"IchimokuScanner/internal/app"
	"IchimokuScanner/internal/config"
	"IchimokuScanner/internal/logger"
	"IchimokuScanner/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	flush, err := logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		log.Fatalf("[FATAL] init logger: %v", err)
	}
	defer flush()

	zap.L().Info("Ichimoku scanner starting...")

	a, err := app.New(cfg)
	if err != nil {
		zap.L().Fatal("init app", zap.Error(err))
	}
	defer a.Close()
	zap.L().Info("collaborators ready",
		zap.String("data_source", a.Fetcher.Name()),
		zap.String("history", cfg.History.Backend),
		zap.Bool("telegram", a.Telegram != nil))

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := server.NewHub()
	sched := a.Scheduler(ctx)
	sched.OnProgress = hub.Broadcast
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		zap.L().Fatal("register cron task", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	if a.Telegram != nil {
		go a.Telegram.StartPolling(ctx, sched.HandleCommand)
		zap.L().Info("Telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		zap.L().Info("RUN_ON_START enabled, executing scan now")
		go sched.RunScanNow()
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.NewHandler(sched, a.Metrics, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.L().Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zap.L().Info("shutdown signal received, stopping...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("http shutdown", zap.Error(err))
	}
	zap.L().Info("Ichimoku scanner stopped")
}
