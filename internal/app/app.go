// Package app wires configuration into a running score hub: the store, the
// optional cache, the event bus and the command and query handlers. The
// server and worker binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/config"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/command"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/eventhandler"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/query"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/stats"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/messaging"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/persistence/memory"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/persistence/postgres"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/persistence/redis"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/scheduler"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/mahjong-hub/mahjong-score-hub/internal/interface/http"
	"github.com/mahjong-hub/mahjong-score-hub/internal/interface/http/handlers"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/circuitbreaker"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/retry"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/timeutil"
)

// App holds the wired components.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	Slog   *slog.Logger

	Store ledger.UnitOfWork
	Bus   *messaging.InMemoryEventBus

	// Commands
	RegisterPlayer *command.RegisterPlayerHandler
	SaveGame       *command.SaveGameHandler
	DeleteGame     *command.DeleteGameHandler
	RebuildDaily   *command.RebuildDailyHandler

	// Queries
	ListPlayers     *query.ListPlayersHandler
	GetPlayerStats  *query.GetPlayerStatsHandler
	GetLeaderboards *query.GetLeaderboardsHandler
	GetGame         *query.GetGameHandler
	ListGames       *query.ListGamesHandler
	GetDaily        *query.GetDailySummariesHandler
	GetDashboard    *query.GetDashboardHandler

	Health *handlers.CompositeHealthChecker

	cached  bool
	closers []func()
}

// Options controls what Build requires.
type Options struct {
	// RequireDatabase refuses the in-memory fallback.
	RequireDatabase bool

	// Version is reported by the health endpoint.
	Version string
}

// Build connects the store and the cache and creates every handler. Call
// Close when done, also after an error.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, slogger *slog.Logger, opts Options) (*App, error) {
	a := &App{
		Config: cfg,
		Log:    log,
		Slog:   slogger,
		Health: handlers.NewCompositeHealthChecker(opts.Version),
	}
	game.SetInvariantLogger(slogger)

	if err := a.openStore(ctx, opts.RequireDatabase); err != nil {
		return a, err
	}
	statsCache := a.openCache(ctx)

	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = slogger
	a.Bus = messaging.NewInMemoryEventBus(busCfg)
	a.closers = append(a.closers, func() {
		if err := a.Bus.Close(); err != nil {
			log.Warn("event bus close failed", logger.Err(err))
		}
	})

	// nil interfaces, not typed nil pointers, when the cache is off
	var (
		readCache   query.StatsCache
		invalidator eventhandler.StatsInvalidator
	)
	if statsCache != nil {
		a.cached = true
		readCache = statsCache
		invalidator = statsCache
	}
	if err := eventhandler.NewOnScoresChangedHandler(invalidator, slogger).Register(a.Bus); err != nil {
		return a, fmt.Errorf("register event handlers: %w", err)
	}

	builder := stats.NewBuilder(cfg.Leaderboard.MinGamesForRates)
	clock := timeutil.NewClock(cfg.App.Location)

	a.RegisterPlayer = command.NewRegisterPlayerHandler(a.Store, a.Bus, log)
	a.SaveGame = command.NewSaveGameHandler(a.Store, a.Bus, log)
	a.DeleteGame = command.NewDeleteGameHandler(a.Store, a.Bus, log)
	a.RebuildDaily = command.NewRebuildDailyHandler(a.Store, a.Bus, log)

	a.ListPlayers = query.NewListPlayersHandler(a.Store)
	a.GetPlayerStats = query.NewGetPlayerStatsHandler(a.Store, readCache, log)
	a.GetLeaderboards = query.NewGetLeaderboardsHandler(a.Store, builder, readCache, log)
	a.GetGame = query.NewGetGameHandler(a.Store)
	a.ListGames = query.NewListGamesHandler(a.Store)
	a.GetDaily = query.NewGetDailySummariesHandler(a.Store)
	a.GetDashboard = query.NewGetDashboardHandler(a.Store, builder, clock)

	return a, nil
}

func (a *App) openStore(ctx context.Context, requireDatabase bool) error {
	cfg := a.Config
	if cfg.UseMemoryStore() && !requireDatabase {
		a.Log.Warn("DATABASE_URL is empty, using the in-memory store")
		a.Store = memory.NewStore()
		return nil
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	pgCfg := postgres.DefaultConfig(cfg.Database.URL)
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	a.Log.Info("connecting to database")
	conn, err := retry.DoWithData(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		conn, err := postgres.NewConnection(ctx, pgCfg)
		switch {
		case err == nil:
			return conn, nil
		case errors.Is(err, postgres.ErrInvalidConfig):
			return nil, retry.Permanent(err)
		default:
			return nil, retry.Retryable(err)
		}
	},
		retry.WithMaxAttempts(5),
		retry.WithInitialDelay(500*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			a.Log.Warn("database not reachable yet",
				logger.Int("attempt", attempt),
				logger.Duration("retry_in", delay),
				logger.Err(err),
			)
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, conn.Close)

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		a.Log.Info("database schema is up to date")
	}

	store := postgres.NewStore(conn, cfg.Database.QueryTimeout)
	a.Store = store
	a.Health.AddCheck("database", handlers.NewPingCheck(store))
	return nil
}

// openCache connects Redis. A failure disables caching instead of failing
// startup.
func (a *App) openCache(ctx context.Context) *redis.StatsCache {
	rc := a.Config.Redis
	if rc.Disabled {
		a.Log.Info("cache disabled")
		return nil
	}

	cfg := redis.DefaultConfig()
	cfg.URL = rc.URL
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout

	cache, err := redis.NewCache(cfg)
	if err != nil {
		a.Log.Warn("failed to connect to Redis, caching disabled", logger.Err(err))
		return nil
	}
	a.closers = append(a.closers, func() { _ = cache.Close() })
	a.Health.AddCheck("cache", handlers.NewPingCheck(cache))

	a.Log.Info("Redis connection established", logger.String("addr", cfg.Addr()))
	breaker := redis.NewCacheBreaker(func(name string, from, to circuitbreaker.State) {
		a.Log.Warn("cache circuit state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return redis.NewStatsCache(cache, a.Config.Leaderboard.CacheTTL).WithBreaker(breaker)
}

// HTTPServer creates the API server.
func (a *App) HTTPServer() (*httpapi.Server, error) {
	hc := a.Config.HTTP
	cfg := httpapi.DefaultConfig()
	cfg.Addr = hc.Addr
	cfg.ReadTimeout = hc.ReadTimeout
	cfg.WriteTimeout = hc.WriteTimeout
	cfg.IdleTimeout = hc.IdleTimeout
	cfg.AdminKeyHash = hc.AdminKeyHash

	return httpapi.NewServer(cfg, httpapi.Dependencies{
		RegisterPlayer:  a.RegisterPlayer,
		SaveGame:        a.SaveGame,
		DeleteGame:      a.DeleteGame,
		ListPlayers:     a.ListPlayers,
		GetPlayerStats:  a.GetPlayerStats,
		GetLeaderboards: a.GetLeaderboards,
		GetGame:         a.GetGame,
		ListGames:       a.ListGames,
		GetDaily:        a.GetDaily,
		GetDashboard:    a.GetDashboard,
		Logger:          a.Log,
		HealthChecker:   a.Health,
	})
}

// Scheduler creates the job scheduler with the maintenance jobs registered.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	sc := a.Config.Scheduler
	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = a.Slog
	schedCfg.Timezone = a.Config.App.Location
	if sc.MaxConcurrentJobs > 0 {
		schedCfg.MaxConcurrentJobs = sc.MaxConcurrentJobs
	}
	if sc.JobTimeout > 0 {
		schedCfg.JobTimeout = sc.JobTimeout
	}
	s := scheduler.NewScheduler(schedCfg)

	rebuild := jobs.NewRebuildDailyJob(a.RebuildDaily, a.Slog)
	if err := s.Register(rebuild, scheduler.NewIntervalSchedule(sc.RebuildDailyInterval), true); err != nil {
		return nil, err
	}
	if ttl := a.Config.Leaderboard.CacheTTL; a.cached && ttl >= 2*time.Second {
		warm := jobs.NewWarmLeaderboardsJob(a.GetLeaderboards, a.Slog)
		if err := s.Register(warm, scheduler.NewIntervalSchedule(ttl/2), false); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewLoggers builds the structured logger and the slog logger used by the
// event bus and the scheduler from the same settings.
func NewLoggers(cfg *config.Config) (*logger.Logger, *slog.Logger) {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	log := logger.New(logger.Options{Level: level, AddCaller: cfg.Observability.LogCaller})

	opts := &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: cfg.Observability.LogCaller}
	switch level {
	case logger.LevelDebug:
		opts.Level = slog.LevelDebug
	case logger.LevelWarn:
		opts.Level = slog.LevelWarn
	case logger.LevelError:
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slogger := slog.New(handler)
	slog.SetDefault(slogger)
	return log, slogger
}
