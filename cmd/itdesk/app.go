package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/itdesk-io/itdesk/internal/api"
	"github.com/itdesk-io/itdesk/internal/auth"
	"github.com/itdesk-io/itdesk/internal/cache"
	"github.com/itdesk-io/itdesk/internal/config"
	"github.com/itdesk-io/itdesk/internal/database"
	"github.com/itdesk-io/itdesk/internal/metrics"
	"github.com/itdesk-io/itdesk/internal/render"
	"github.com/itdesk-io/itdesk/internal/repository"
	"github.com/itdesk-io/itdesk/internal/repository/memory"
	"github.com/itdesk-io/itdesk/internal/service"
	"github.com/itdesk-io/itdesk/internal/storage"
)

// app holds the wired services for one process.
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	repos    *repository.Repositories
	counters cache.CounterStore
	limiter  *auth.LoginRateLimiter
	quota    *storage.UploadQuota
	metrics  *metrics.Metrics

	users      *service.UserService
	auth       *service.AuthService
	tickets    *service.TicketService
	dashboards *service.DashboardService

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if err := a.openCounters(); err != nil {
		a.Close()
		return nil, err
	}
	backend, err := a.openBackend(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := auth.NewPolicy()
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	uploadPolicy := storage.DefaultUploadPolicy()
	if cfg.Storage.MaxUploadSize > 0 {
		uploadPolicy.MaxSize = cfg.Storage.MaxUploadSize
	}

	a.limiter = auth.NewLoginRateLimiter(a.counters, cfg.Security.LoginAttempts, cfg.Security.LoginWindow)
	a.quota = storage.NewUploadQuota(a.counters, cfg.Security.UploadLimit, cfg.Security.UploadWindow)
	a.metrics = metrics.New()

	a.users = service.NewUserService(a.repos.Users, hasher, policy)
	a.auth = service.NewAuthService(
		auth.NewAuthenticator(a.repos.Users, hasher),
		auth.NewSessionManager(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer),
		a.limiter,
		a.repos.Users,
		policy,
		cfg.Auth.SessionTTL, cfg.Auth.RememberMeTTL,
	)
	a.tickets = service.NewTicketService(a.repos, policy, storage.NewService(backend, uploadPolicy), render.NewMarkdown())
	a.dashboards = service.NewDashboardService(a.repos.Tickets, policy)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	dbCfg := a.cfg.Database
	if dbCfg.InMemory() {
		log.Println("Using in-memory store; data is lost on restart")
		a.repos = memory.NewStore().Repositories()
		return nil
	}
	db, err := database.Open(ctx, database.Config{
		Driver:          dbCfg.Driver,
		DSN:             dbCfg.GetDSN(),
		MaxOpenConns:    dbCfg.MaxOpenConns,
		MaxIdleConns:    dbCfg.MaxIdleConns,
		ConnMaxLifetime: dbCfg.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.repos = repository.NewSQLRepositories(database.NewQueryBuilderFromDB(db))
	log.Printf("Connected to %s database", dbCfg.Driver)
	return nil
}

func (a *app) openCounters() error {
	rc := a.cfg.Redis
	if !rc.Enabled {
		local := cache.NewLocalCounterStore()
		pruner, err := schedulePrune(local)
		if err != nil {
			return fmt.Errorf("failed to schedule counter pruning: %w", err)
		}
		pruner.Start()
		a.counters = local
		a.closers = append(a.closers, func() error {
			<-pruner.Stop().Done()
			return nil
		})
		return nil
	}
	store, err := cache.NewRedisCounterStore(&cache.RedisConfig{
		Addr:         rc.GetRedisAddr(),
		Password:     rc.Password,
		DB:           rc.DB,
		KeyPrefix:    rc.KeyPrefix,
		PoolSize:     rc.PoolSize,
		MinIdleConns: rc.MinIdleConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.counters = store
	a.closers = append(a.closers, store.Close)
	log.Printf("Rate-limit counters stored in redis at %s", rc.GetRedisAddr())
	return nil
}

// pruneSchedule is how often expired in-process counters are dropped.
const pruneSchedule = "@every 10m"

func schedulePrune(store *cache.LocalCounterStore) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(pruneSchedule, func() {
		if n := store.Prune(); n > 0 {
			log.Printf("Pruned %d expired rate-limit counters", n)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) openBackend(ctx context.Context) (storage.Backend, error) {
	sc := a.cfg.Storage
	switch strings.ToLower(sc.Type) {
	case "minio", "s3":
		backend, err := storage.NewMinioBackend(ctx, storage.MinioConfig{
			Endpoint:  sc.Minio.Endpoint,
			AccessKey: sc.Minio.AccessKey,
			SecretKey: sc.Minio.SecretKey,
			Bucket:    sc.Minio.Bucket,
			UseSSL:    sc.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open object storage: %w", err)
		}
		return backend, nil
	default:
		backend, err := storage.NewLocalBackend(sc.Local.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open upload directory: %w", err)
		}
		return backend, nil
	}
}

// migrate applies pending schema migrations. The in-memory store needs none.
func (a *app) migrate(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	applied, err := database.Migrate(ctx, a.db)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Printf("Applied %d migration(s)", applied)
	return nil
}

func (a *app) deps() api.Deps {
	deps := api.Deps{
		Users:            a.users,
		Auth:             a.auth,
		Tickets:          a.tickets,
		Dashboards:       a.dashboards,
		Limiter:          a.limiter,
		Quota:            a.quota,
		Metrics:          a.metrics,
		SuspiciousAgents: a.cfg.Security.SuspiciousAgents,
		AdminIPWhitelist: a.cfg.Security.AdminIPWhitelist,
		TrustedProxies:   a.cfg.Security.TrustedProxies,
		MaxBodyBytes:     a.cfg.Server.MaxBodySize,
	}
	if a.cfg.Metrics.Enabled {
		deps.MetricsPath = a.cfg.Metrics.Path
	}
	if a.db != nil {
		deps.DB = a.db
	}
	return deps
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}
	a.closers = nil
}
