package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"riskscreen-backend/internal/config"
	"riskscreen-backend/internal/db"
	httpapi "riskscreen-backend/internal/http"
	"riskscreen-backend/internal/logging"
	"riskscreen-backend/internal/migrations"
	"riskscreen-backend/internal/notify"
	"riskscreen-backend/internal/services"
	"riskscreen-backend/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logFile, err := logging.NewDailyFile(cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file setup failed: %v\n", err)
	} else {
		defer logFile.Close()
		go logFile.Run(ctx)
	}
	logger := logging.New(logFile)
	defer func() { _ = logger.Sync() }()

	st, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}

	var notifier services.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTP(notify.SMTPConfig{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			User:       cfg.SMTPUser,
			Pass:       cfg.SMTPPass,
			From:       cfg.SMTPFrom,
			BackendURL: cfg.BackendURL,
		}, logger)
	} else {
		logger.Info("SMTP_HOST not set, notifications are logged only")
		notifier = notify.NewLog(logger, cfg.BackendURL)
	}

	hub := services.NewAlertHub(logger)
	go hub.Run(ctx)

	server := httpapi.NewServer(cfg, st, notifier, hub, logger)
	go server.Dashboard.Run(ctx, time.Duration(cfg.MetricsSampleSeconds)*time.Second)

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("store", cfg.StoreDriver))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	logger.Info("shutdown complete")
}

func openStore(cfg config.Config, logger *zap.Logger) (services.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	case config.StoreDriverPostgres:
		database, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		if err := migrations.Apply(database); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		return store.NewPostgres(database), nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
