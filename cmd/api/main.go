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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-sync/internal/app"
	"github.com/jwalitptl/clinic-sync/internal/config"
	"github.com/jwalitptl/clinic-sync/internal/handler"
	advisorhandler "github.com/jwalitptl/clinic-sync/internal/handler/advisor"
	authhandler "github.com/jwalitptl/clinic-sync/internal/handler/auth"
	doctorhandler "github.com/jwalitptl/clinic-sync/internal/handler/doctor"
	healthhandler "github.com/jwalitptl/clinic-sync/internal/handler/health"
	pharmacyhandler "github.com/jwalitptl/clinic-sync/internal/handler/pharmacy"
	requesthandler "github.com/jwalitptl/clinic-sync/internal/handler/requests"
	shophandler "github.com/jwalitptl/clinic-sync/internal/handler/shop"
	streamhandler "github.com/jwalitptl/clinic-sync/internal/handler/stream"
	"github.com/jwalitptl/clinic-sync/internal/middleware"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/observer"
	"github.com/jwalitptl/clinic-sync/internal/repository/postgres"
	"github.com/jwalitptl/clinic-sync/internal/router"
	"github.com/jwalitptl/clinic-sync/internal/service/confirmation"
	"github.com/jwalitptl/clinic-sync/internal/service/pharmacy"
	"github.com/jwalitptl/clinic-sync/internal/service/request"
	"github.com/jwalitptl/clinic-sync/internal/service/shop"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-api",
		Short: "Clinique Gamma appointment and emergency API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(resetDemoCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled() {
				return errors.New("database.host is not configured")
			}

			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func resetDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-demo",
		Short: "Remove every appointment request and the emergency flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLog, err := load()
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, appLog, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := request.NewService(a.Hub, appLog).ResetDemo(cmd.Context()); err != nil {
				return err
			}
			if cfg.State.Backend == "memory" {
				fmt.Println("Memory backend: only this process was reset.")
				return nil
			}
			fmt.Println("Demo state cleared.")
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var (
		poll      bool
		requestID int64
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the shared state from a terminal dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLog, err := load()
			if err != nil {
				return err
			}
			if cfg.State.Backend != "redis" {
				return errors.New("watch needs state.backend redis to see another instance")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, appLog, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			go func() {
				if err := a.Hub.Run(ctx); err != nil {
					appLog.Error(err, "state relay stopped")
				}
			}()

			if requestID > 0 {
				return watchRequest(ctx, a, requestID, poll)
			}
			return watchStaff(ctx, a, poll)
		},
	}
	cmd.Flags().BoolVar(&poll, "poll", false, "read snapshots on an interval instead of subscribing")
	cmd.Flags().Int64Var(&requestID, "request", 0, "follow one request as the patient view does")
	return cmd
}

func watchStaff(ctx context.Context, a *app.App, poll bool) error {
	alarm := observer.NewLoopingAlarm(2*time.Second, func(patientName string) {
		fmt.Printf("\a*** URGENCE: %s ***\n", patientName)
	})
	obs := observer.New("terminal", a.Hub, alarm, a.Logger)
	obs.OnAlert = func(patientName string) {
		fmt.Printf("Urgence signalée pour %s\n", patientName)
	}

	if poll {
		obs.Poll(ctx, a.Config.State.StaffPollInterval)
	} else {
		obs.Watch(ctx)
		<-ctx.Done()
	}
	alarm.Stop()
	return nil
}

func watchRequest(ctx context.Context, a *app.App, id int64, poll bool) error {
	tracker := observer.NewTracker(a.Hub, id)
	tracker.OnChange = func(status observer.TrackerStatus, req model.AppointmentRequest) {
		switch status {
		case observer.TrackConfirmed:
			fmt.Printf("Demande %d confirmée: %s avec %s\n", id, req.Slot(), req.Doctor)
		case observer.TrackPending:
			fmt.Printf("Demande %d en attente (%s)\n", id, req.Service.Label())
		default:
			fmt.Printf("Demande %d introuvable\n", id)
		}
	}

	if poll {
		tracker.Poll(ctx, a.Config.State.PatientPollInterval)
		return nil
	}
	tracker.Watch(ctx)
	<-ctx.Done()
	return nil
}

// load reads the configuration and installs the process logger, which the
// gin middleware also uses through the global zerolog logger.
func load() (*config.Config, *logger.Logger, error) {
	var paths []string
	if configPath != "" {
		paths = append(paths, configPath)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Logging.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Logging.JSON,
	})
	log.Logger = *appLog.Zerolog()
	return cfg, appLog, nil
}

func runServer() error {
	cfg, appLog, err := load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, appLog, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	if cfg.Demo.Seed {
		if err := a.SeedDemo(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
	}

	if err := middleware.RegisterValidation(a.Hub.Slots); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	go func() {
		if err := a.Hub.Run(ctx); err != nil {
			log.Error().Err(err).Msg("state relay stopped")
		}
	}()

	// With redis the worker process owns archiving and cleanup.
	if cfg.State.Backend == "memory" {
		if err := a.StartWorkers(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start workers")
		}
	}

	// Initialize services
	requestSvc := request.NewService(a.Hub, appLog.With("service", "request"))
	confirmationSvc := confirmation.NewService(a.Hub, appLog.With("service", "confirmation"))
	pharmacySvc := pharmacy.NewService(a.Medicines, a.Advisor, appLog.With("service", "pharmacy"))
	shopSvc := shop.NewService(shop.DefaultCatalog(), appLog.With("service", "shop"))

	// Initialize handlers
	handlers := router.Handlers{
		Root:     handler.NewHandler(),
		Health:   healthhandler.NewHandler(a.Hub, a.DB),
		Auth:     authhandler.NewHandler(a.Auth),
		Requests: requesthandler.NewHandler(requestSvc),
		Doctor:   doctorhandler.NewHandler(confirmationSvc, a.Archive),
		Stream:   streamhandler.NewHandler(a.Hub, appLog),
		Pharmacy: pharmacyhandler.NewHandler(pharmacySvc),
		Shop:     shophandler.NewHandler(shopSvc),
		Advisor:  advisorhandler.NewHandler(a.Advisor, requestSvc),
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(a.Auth), handlers, router.RouterConfig{
		Mode:          cfg.Server.Mode,
		RateLimit:     cfg.RateLimit.RPS,
		RateBurst:     cfg.RateLimit.Burst,
		CORSOrigins:   cfg.CORS.AllowOrigins,
		Timeout:       time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		MetricsPrefix: cfg.Monitoring.MetricsNamespace,
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("backend", cfg.State.Backend).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server exited properly")
	return nil
}
