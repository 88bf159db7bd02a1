package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahjong-hub/mahjong-score-hub/config"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/command"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/query"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/persistence/memory"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

func devConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Environment:     config.EnvDevelopment,
			Location:        time.UTC,
			ShutdownTimeout: time.Second,
		},
		Database:    config.DatabaseConfig{MaxConns: 1},
		Redis:       config.RedisConfig{Disabled: true},
		HTTP:        config.HTTPConfig{Addr: ":0"},
		Scheduler:   config.SchedulerConfig{Enabled: true, RebuildDailyInterval: time.Hour, MaxConcurrentJobs: 1, JobTimeout: time.Minute},
		Leaderboard: config.LeaderboardConfig{MinGamesForRates: 5, CacheTTL: time.Minute},
	}
}

func TestBuild_MemoryStoreInDevelopment(t *testing.T) {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), devConfig(), logger.Discard(), slogger, Options{Version: "test"})
	defer a.Close()
	require.NoError(t, err)

	_, ok := a.Store.(*memory.Store)
	assert.True(t, ok)

	ctx := context.Background()
	p, err := a.RegisterPlayer.Handle(ctx, command.RegisterPlayerCommand{Name: "Aki"})
	require.NoError(t, err)
	players, err := a.ListPlayers.Handle(ctx, query.ListPlayersQuery{})
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, p.ID, players[0].ID)

	srv, err := a.HTTPServer()
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler())

	sched, err := a.Scheduler()
	require.NoError(t, err)
	jobs := sched.ListJobs()
	require.Len(t, jobs, 1, "no cache warming without a cache")
	assert.Equal(t, "rebuild_daily_summaries", jobs[0].Name)

	assert.True(t, a.Health.Check(ctx).Healthy)
}

func TestBuild_WorkerNeedsDatabase(t *testing.T) {
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := Build(context.Background(), devConfig(), logger.Discard(), slogger, Options{RequireDatabase: true})
	defer a.Close()
	assert.ErrorContains(t, err, "DATABASE_URL")
}
