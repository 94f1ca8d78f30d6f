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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-sync/internal/app"
	"github.com/jwalitptl/clinic-sync/internal/config"
	healthhandler "github.com/jwalitptl/clinic-sync/internal/handler/health"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "clinic-worker",
		Short: "Archives state events, sends notifications and purges old requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupHealthCheck(a *app.App, port int) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	healthhandler.NewHandler(a.Hub, a.DB).RegisterRoutes(&engine.RouterGroup)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("health check server failed")
		}
	}()
	return srv
}

func run(configPath string) error {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.State.Backend != "redis" {
		return errors.New("the worker needs state.backend redis; the api runs workers in-process with the memory backend")
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Logging.JSON,
	})
	log.Logger = *appLog.Zerolog()

	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, appLog.With("process", "worker"), nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.StartWorkers(ctx); err != nil {
		return err
	}

	go func() {
		if err := a.Hub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("state relay stopped")
		}
	}()

	health := setupHealthCheck(a, cfg.Worker.HealthPort)
	log.Info().Int("health_port", cfg.Worker.HealthPort).Msg("worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return health.Shutdown(shutdownCtx)
}
