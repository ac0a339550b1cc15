package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"holewatch/internal/config"
	"holewatch/internal/db"
	"holewatch/internal/logging"
	"holewatch/internal/router"
	"holewatch/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "holewatch",
	Short:         "Community road-defect reports with weighted crowd validation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Path to the TOML config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app 各命令共用的基础设施
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *gorm.DB
	registry *prometheus.Registry
	metrics  *services.Metrics
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Server.Debug)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(cfg.Database, cfg.Server.Debug, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       conn,
		registry: registry,
		metrics:  services.NewMetrics(registry),
	}, nil
}

// services 组装核心服务，notifier 为空时只打日志
func (a *app) services(notifier services.ParticipantNotifier) *services.Services {
	if notifier == nil {
		notifier = services.NewDispatcher(a.db, a.cfg.Notifications, a.logger, a.metrics, services.NewLogNotifier(a.logger))
	}
	return services.New(a.db, a.cfg, notifier, a.logger, a.metrics, nil)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()

	if err := db.Migrate(a.db); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 通知队列：站内信 + 推送占位
	dispatcher := services.NewDispatcher(a.db, a.cfg.Notifications, a.logger, a.metrics,
		services.NewInAppNotifier(a.db, time.Now),
		services.NewLogNotifier(a.logger))
	dispatcher.Start(context.WithoutCancel(ctx))
	defer dispatcher.Stop()

	engine := router.New(router.Deps{
		Config:   a.cfg,
		DB:       a.db,
		Services: a.services(dispatcher),
		Registry: a.registry,
		Logger:   a.logger,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Server.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Holewatch server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
