package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "APP_TIMEZONE", "DATABASE_URL", "DB_HOST", "ADMIN_KEY_HASH",
		"LEADERBOARD_MIN_GAMES_FOR_RATES", "SCHEDULER_REBUILD_DAILY_INTERVAL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.True(t, cfg.UseMemoryStore())
	assert.Equal(t, "Asia/Tokyo", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)
	assert.Equal(t, 5, cfg.Leaderboard.MinGamesForRates)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.RebuildDailyInterval)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "club")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("LEADERBOARD_MIN_GAMES_FOR_RATES", "10")
	t.Setenv("LEADERBOARD_CACHE_TTL", "90s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://club:secret@db:5432/postgres?sslmode=disable", cfg.Database.URL)
	assert.False(t, cfg.UseMemoryStore())
	assert.Equal(t, 10, cfg.Leaderboard.MinGamesForRates)
	assert.Equal(t, 90*time.Second, cfg.Leaderboard.CacheTTL)
	assert.Equal(t, 0, cfg.Redis.DB)
}

func TestLoad_UnknownTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := &Config{
		App:         AppConfig{Environment: EnvProduction},
		Database:    DatabaseConfig{MaxConns: 1},
		HTTP:        HTTPConfig{},
		Leaderboard: LeaderboardConfig{MinGamesForRates: 0},
		Scheduler:   SchedulerConfig{Enabled: true, RebuildDailyInterval: time.Second},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"DATABASE_URL is required",
		"ADMIN_KEY_HASH is required",
		"LEADERBOARD_MIN_GAMES_FOR_RATES",
		"SCHEDULER_REBUILD_DAILY_INTERVAL",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_RejectsPlainAdminKey(t *testing.T) {
	cfg := &Config{
		App:         AppConfig{Environment: EnvDevelopment},
		Database:    DatabaseConfig{MaxConns: 1},
		HTTP:        HTTPConfig{AdminKeyHash: "hunter2"},
		Leaderboard: LeaderboardConfig{MinGamesForRates: 5},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bcrypt")
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
