package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"github.com/iurnickita/bogstatus/internal/auth"
	"github.com/iurnickita/bogstatus/internal/config"
	"github.com/iurnickita/bogstatus/internal/handler"
	"github.com/iurnickita/bogstatus/internal/logger"
	"github.com/iurnickita/bogstatus/internal/metrics"
	"github.com/iurnickita/bogstatus/internal/service"
	"github.com/iurnickita/bogstatus/internal/store"
)

const metricsNamespace = "bogstatus"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig(os.Args[1:])
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	metrics := metrics.New(metricsNamespace)
	service, err := service.NewService(cfg.Service, store, metrics, zaplog)
	if err != nil {
		return err
	}
	defer service.Close()

	// без секрета админские маршруты отключены
	var adminAuth auth.Auth
	if cfg.Handler.AdminSecret != "" {
		adminAuth = auth.NewAuth(cfg.Handler.AdminSecret)
	}

	go func() {
		err := config.Watch(ctx, cfg, zaplog, func(next config.Config) {
			service.SetPolling(next.Service.Poll)
		})
		if err != nil {
			zaplog.Warn("config watch stopped", zap.Error(err))
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		zaplog.Warn("systemd notify failed", zap.Error(err))
	}
	zaplog.Info("starting server",
		zap.String("addr", cfg.Handler.ServerAddr),
		zap.String("gateway", cfg.Service.Gateway.BaseURL))

	err = handler.Serve(ctx, cfg.Handler, adminAuth, service, metrics, zaplog)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	return err
}
