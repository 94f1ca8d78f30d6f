package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/clinic-sync/internal/config"
	"github.com/jwalitptl/clinic-sync/internal/email"
	"github.com/jwalitptl/clinic-sync/internal/model"
	"github.com/jwalitptl/clinic-sync/internal/repository"
	"github.com/jwalitptl/clinic-sync/internal/repository/memory"
	"github.com/jwalitptl/clinic-sync/internal/repository/postgres"
	redisrepo "github.com/jwalitptl/clinic-sync/internal/repository/redis"
	"github.com/jwalitptl/clinic-sync/internal/service/advisor"
	authsvc "github.com/jwalitptl/clinic-sync/internal/service/auth"
	"github.com/jwalitptl/clinic-sync/internal/service/notification"
	"github.com/jwalitptl/clinic-sync/internal/state"
	"github.com/jwalitptl/clinic-sync/internal/worker"
	"github.com/jwalitptl/clinic-sync/pkg/auth"
	"github.com/jwalitptl/clinic-sync/pkg/logger"
	"github.com/jwalitptl/clinic-sync/pkg/messaging"
	msgredis "github.com/jwalitptl/clinic-sync/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-sync/pkg/metrics"
	"github.com/jwalitptl/clinic-sync/pkg/security"
	pkgworker "github.com/jwalitptl/clinic-sync/pkg/worker"
)

const memoryBrokerBuffer = 256

// App holds the dependencies shared by the api and worker processes.
type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	DB     *sqlx.DB
	Broker messaging.Broker
	KV     repository.KVStore
	Hub    *state.Hub

	Users     repository.UserRepository
	Medicines repository.MedicineRepository
	Archive   repository.RequestArchiveRepository

	Auth     *authsvc.Service
	Advisor  *advisor.Service
	Notifier notification.Service

	closers []func() error
}

// New connects the configured backends. Without redis the hub, store and
// broker stay in this process; without a database the repositories are
// in-memory.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*App, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.New(cfg.Monitoring.MetricsNamespace, reg),
	}

	if err := a.initState(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initRepositories(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initServices(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) initState(ctx context.Context) error {
	cfg := a.Config

	if cfg.State.Backend == "redis" {
		client, err := msgredis.NewClient(ctx, msgredis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err != nil {
			return err
		}
		a.KV = redisrepo.NewKVStore(client, 0, a.Metrics)
		broker := msgredis.NewBroker(client, *a.Logger.With("component", "redis_broker").Zerolog())
		a.Broker = broker
		a.closers = append(a.closers, broker.Close)
		a.Logger.Info("state backend ready", "backend", "redis")
	} else {
		a.KV = memory.NewKVStore(0)
		broker := messaging.NewMemoryBroker(memoryBrokerBuffer)
		a.Broker = broker
		a.closers = append(a.closers, broker.Close)
		a.Logger.Info("state backend ready", "backend", "memory")
	}

	opts := state.OptionsFromConfig(cfg.State)
	opts.Broker = a.Broker
	a.Hub = state.NewHub(state.NewStore(a.KV, a.Logger, a.Metrics), opts, a.Logger, a.Metrics)
	return nil
}

func (a *App) initRepositories(ctx context.Context) error {
	cfg := a.Config

	if !cfg.Database.Enabled() {
		a.Users = memory.NewUserRepository()
		a.Medicines = memory.NewMedicineRepository(memory.SeedInventory())
		a.Archive = memory.NewRequestArchiveRepository()
		return nil
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	sealer, err := security.NewAESEncryptorFromSecret(cfg.Security.EncryptionSecret)
	if err != nil {
		return fmt.Errorf("failed to create archive encryptor: %w", err)
	}

	base := postgres.NewBaseRepository(db)
	a.Users = postgres.NewUserRepository(base)
	a.Medicines = postgres.NewMedicineRepository(base)
	a.Archive = postgres.NewRequestArchiveRepository(base, sealer)
	return nil
}

func (a *App) initServices(ctx context.Context) error {
	cfg := a.Config

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry(), cfg.JWT.Issuer)
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost)
	a.Auth = authsvc.NewService(a.Users, jwtSvc, hasher, cfg.Security.StaffAccessKey, a.Logger.With("service", "auth"))

	var gen advisor.Generator
	if cfg.AI.APIKey != "" {
		g, err := advisor.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return fmt.Errorf("failed to create AI client: %w", err)
		}
		gen = g
	} else {
		a.Logger.Warn("no AI API key configured, advisory features return fixed replies")
	}
	a.Advisor = advisor.NewService(gen, cfg.AI.Timeout, a.Logger.With("service", "advisor"), a.Metrics)

	mailer := email.New(cfg.SMTP, a.Logger.With("service", "email"))
	a.Notifier = notification.NewService(mailer, a.Broker, cfg.SMTP.NotifyTo, a.Logger.With("service", "notification"))
	return nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() error {
	var errs []string
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err.Error())
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("failed to close: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Ping checks the shared store and, when configured, the database.
func (a *App) Ping(ctx context.Context) error {
	if err := a.KV.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

type demoUser struct {
	name  string
	email string
	role  model.Role
}

var demoUsers = []demoUser{
	{name: "Administrateur", email: "admin@gamma.clinic", role: model.RoleAdmin},
	{name: "Dr. Kossi", email: "kossi@gamma.clinic", role: model.RoleDoctor},
	{name: "Pharmacie Centrale", email: "pharmacie@gamma.clinic", role: model.RolePharmacist},
	{name: "Mensah Alain", email: "mensah.alain@gamma.clinic", role: model.RolePatient},
}

// SeedDemo creates the demo accounts and fills an empty inventory.
// Existing accounts and stock are left alone.
func (a *App) SeedDemo(ctx context.Context) error {
	for _, u := range demoUsers {
		if err := a.Auth.EnsureUser(ctx, u.name, u.email, a.Config.Demo.Password, u.role); err != nil {
			return fmt.Errorf("failed to seed %s: %w", u.email, err)
		}
	}

	stock, err := a.Medicines.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list inventory: %w", err)
	}
	if len(stock) > 0 {
		return nil
	}
	for _, m := range memory.SeedInventory() {
		if err := a.Medicines.Create(ctx, m); err != nil {
			return fmt.Errorf("failed to seed %s: %w", m.Name, err)
		}
	}
	a.Logger.Info("demo inventory seeded", "items", len(memory.SeedInventory()))
	return nil
}

// StartWorkers runs the event consumer and the cleanup loop until ctx is
// done. The api calls it only with the in-memory backend; with redis the
// worker process owns them.
func (a *App) StartWorkers(ctx context.Context) error {
	cfg := a.Config
	log := a.Logger.With("component", "worker")

	retry := pkgworker.DefaultRetryConfig()
	if cfg.Worker.RetryAttempts > 0 {
		retry.Attempts = uint64(cfg.Worker.RetryAttempts)
	}

	adapter := messaging.NewBrokerAdapter(a.Broker, func(topic string, err error) {
		log.Error(err, "failed to handle message", "topic", topic)
	})
	consumer := worker.NewConsumer(adapter, retry, log)
	consumer.Register("archive", worker.NewArchiver(a.Archive, a.Metrics))
	consumer.Register("notify", a.Notifier)
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	cleanup := worker.NewCleanupWorker(a.Hub, a.Archive, worker.CleanupConfig{
		Retention:        cfg.Worker.Retention(),
		ArchiveRetention: cfg.Worker.ArchiveRetention(),
		Interval:         cfg.Worker.CleanupInterval,
	}, log, a.Metrics)
	go cleanup.Start(ctx)

	return nil
}
