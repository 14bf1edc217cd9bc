// Package control wires the database layer, boot checks and health surfaces
// into one process lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/G0th1/brandsphere1-sub001/internal/core/config"
	"github.com/G0th1/brandsphere1-sub001/internal/core/retry"
	"github.com/G0th1/brandsphere1-sub001/internal/core/worker"
	"github.com/G0th1/brandsphere1-sub001/internal/health"
	redisclient "github.com/G0th1/brandsphere1-sub001/internal/infra/redis"
	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage"
	"github.com/G0th1/brandsphere1-sub001/internal/infra/storage/postgres"
	"github.com/G0th1/brandsphere1-sub001/internal/startup"
)

const poolStatsInterval = 10 * time.Second

// App is the main application struct that manages the service lifecycle.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	manager *postgres.Manager[*postgres.DB]
	store   *postgres.Store[*postgres.DB]
	Users   storage.UserRepository
	Posts   storage.PostRepository

	verifier   *startup.Verifier
	monitor    *health.Monitor
	httpServer *health.Server
	grpcServer *health.GRPCServer
	redis      *redisclient.Client
	publisher  *worker.Publisher

	mu       sync.Mutex
	cancel   context.CancelFunc
	started  bool
	stopOnce sync.Once
	stopErr  error
}

// NewApp creates the application. Nothing connects until Verify or Start.
func NewApp(cfg *config.AppConfig, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{cfg: cfg, log: log}

	// 1. Optional cache
	if cfg.Redis.Enabled() {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		a.redis = rc
	}

	// 2. gRPC health first so it can follow manager transitions
	opts := []postgres.ManagerOption{postgres.WithLogger(log)}
	if cfg.Server.GRPCPort > 0 {
		a.grpcServer = health.NewGRPCServer(cfg.Server.GRPCPort)
		opts = append(opts, postgres.WithStatusListener(a.grpcServer.OnTransition))
	}

	// 3. Database
	a.manager = postgres.NewManager(postgres.NewOpener(cfg.Database), cfg.Database.ManagerConfig(), opts...)
	a.store = postgres.NewStore(a.manager, retry.Policy{
		MaxRetries:   cfg.Database.MaxRetries,
		InitialDelay: cfg.Database.RetryDelay,
	}, log)
	a.Users = postgres.NewUserRepo(a.store)
	a.Posts = postgres.NewPostRepo(a.store)

	// 4. Boot checks and health surfaces
	a.verifier = startup.NewVerifier(cfg.Mode, cfg.Startup.CheckTimeout, log)
	a.monitor = health.NewMonitor(a.manager, cfg.Server.HealthCacheTTL)
	a.httpServer = health.NewServer(a.monitor, a.verifier, cfg.Server.Port, cfg.Server.CORSOrigins)

	if a.redis != nil {
		a.publisher = worker.NewPublisher(cfg.Publisher.Interval, a.manager, a.redis, log)
	}

	return a, nil
}

// Manager exposes the connection manager.
func (a *App) Manager() *postgres.Manager[*postgres.DB] {
	return a.manager
}

// Verify runs the boot checks against a dedicated pool so a failing check
// never disturbs the managed connection.
func (a *App) Verify(ctx context.Context) startup.BootResult {
	var (
		prober  startup.Prober
		counter startup.TableCounter
		pinger  startup.Pinger
	)

	db, err := postgres.Open(a.cfg.Database)
	if err != nil {
		a.log.Debug("Boot checks running without database", "error", err)
	} else {
		defer db.Close()
		prober, counter = db, db
	}
	if a.redis != nil {
		pinger = a.redis
	}

	checks := []startup.Check{
		startup.NewEnvCheck(a.cfg.Environment),
		startup.NewDatabaseCheck(prober),
		startup.NewSchemaCheck(counter, a.cfg.Startup.SchemaTable),
		startup.NewAuthCheck(a.cfg.Auth),
		startup.NewCacheCheck(pinger),
	}
	a.verifier.SetChecks(checks...)
	return a.verifier.Run(ctx)
}

// Start connects to the database and starts background services.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return errors.New("app already started")
	}
	a.started = true
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.mu.Unlock()

	// Start Health Server
	go func() {
		a.log.Info("Health server listening", "port", a.cfg.Server.Port)
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.grpcServer != nil {
		go func() {
			a.log.Info("gRPC health server listening", "port", a.cfg.Server.GRPCPort)
			if err := a.grpcServer.Start(); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Queries reconnect on demand, so a failed first connect is not fatal.
	if err := a.manager.Connect(ctx); err != nil {
		a.log.Error("Initial database connection failed", "error", err)
	} else if a.cfg.Database.AutoMigrate {
		if err := a.migrate(ctx); err != nil {
			return err
		}
	}

	a.manager.StartPoolStatsCollector(bgCtx, poolStatsInterval)

	if a.publisher != nil {
		if err := a.publisher.Start(bgCtx); err != nil {
			a.log.Warn("Health publisher disabled", "error", err)
		}
	}

	return nil
}

func (a *App) migrate(ctx context.Context) error {
	db, err := a.manager.Client()
	if err != nil {
		return err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

// Stop shuts down in reverse dependency order. Safe to call more than once.
func (a *App) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.log.Info("Stopping service...")
		var errs []error

		if a.publisher != nil {
			a.publisher.Stop(ctx)
		}
		if err := a.httpServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
		if a.grpcServer != nil {
			a.grpcServer.Stop(ctx)
		}

		a.mu.Lock()
		if a.cancel != nil {
			a.cancel()
		}
		a.mu.Unlock()

		if err := a.manager.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}

		// Close Redis
		if a.redis != nil {
			if err := a.redis.Close(); err != nil {
				a.log.Warn("Failed to close Redis", "error", err)
			}
		}

		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}
