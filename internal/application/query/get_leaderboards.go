// Package query contains read operations following CQRS pattern.
// Queries never modify state. Statistics and leaderboards are recomputed from
// a fresh snapshot of round results and daily summaries on every cache miss.
package query

import (
	"context"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/stats"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

// StatsCache stores computed read models. A miss is reported as ok=false
// with a nil error; errors mean the cache itself is unreachable.
//
// Every Get also returns the generation it looked in. A model loaded after a
// miss is stored with that generation, so a load that raced an invalidation
// never becomes visible.
type StatsCache interface {
	GetLeaderboards(ctx context.Context) (boards stats.Leaderboards, gen int64, ok bool, err error)
	SetLeaderboards(ctx context.Context, gen int64, boards stats.Leaderboards) error
	GetPlayerProfile(ctx context.Context, playerID string) (p *stats.PlayerProfile, gen int64, ok bool, err error)
	SetPlayerProfile(ctx context.Context, gen int64, p *stats.PlayerProfile) error
}

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARDS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardsQuery selects views. An empty View returns all six.
type GetLeaderboardsQuery struct {
	View string
}

// GetLeaderboardsResult contains the requested views.
type GetLeaderboardsResult struct {
	Views       stats.Leaderboards `json:"views"`
	MinGames    int                `json:"min_games_for_rates"`
	FromCache   bool               `json:"from_cache"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// GetLeaderboardsHandler handles GetLeaderboardsQuery.
type GetLeaderboardsHandler struct {
	repos   ledger.Repositories
	builder stats.Builder
	cache   StatsCache
	log     *logger.Logger
}

// NewGetLeaderboardsHandler creates a new handler. cache may be nil.
func NewGetLeaderboardsHandler(uow ledger.UnitOfWork, builder stats.Builder, cache StatsCache, log *logger.Logger) *GetLeaderboardsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetLeaderboardsHandler{
		repos:   uow.Repositories(),
		builder: builder,
		cache:   cache,
		log:     log.With(logger.Component("get_leaderboards")),
	}
}

// Handle returns the leaderboard views, from cache when possible.
func (h *GetLeaderboardsHandler) Handle(ctx context.Context, q GetLeaderboardsQuery) (*GetLeaderboardsResult, error) {
	var only stats.View
	if q.View != "" {
		v, err := stats.ParseView(q.View)
		if err != nil {
			return nil, invalidInput("leaderboard", "GetLeaderboards", err)
		}
		only = v
	}

	boards, gen, fromCache, storable := h.cached(ctx)
	if !fromCache {
		all, err := loadAllStats(ctx, h.repos)
		if err != nil {
			return nil, err
		}
		boards = h.builder.Build(all)
		if storable {
			if err := h.cache.SetLeaderboards(ctx, gen, boards); err != nil {
				h.log.Warn("leaderboard cache write failed", logger.Err(err))
			}
		}
	}

	if only != "" {
		boards = stats.Leaderboards{only: boards[only]}
	}
	return &GetLeaderboardsResult{
		Views:       boards,
		MinGames:    h.builder.Threshold(),
		FromCache:   fromCache,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// cached returns the cached views when hit is true. On a miss storable
// reports whether gen may be used to store a fresh load.
func (h *GetLeaderboardsHandler) cached(ctx context.Context) (boards stats.Leaderboards, gen int64, hit, storable bool) {
	if h.cache == nil {
		return nil, 0, false, false
	}
	boards, gen, ok, err := h.cache.GetLeaderboards(ctx)
	if err != nil {
		h.log.Warn("leaderboard cache read failed", logger.Err(err))
		return nil, 0, false, false
	}
	if !ok || boards == nil {
		return nil, gen, false, true
	}
	return boards, gen, true, false
}

// loadAllStats computes statistics for every player from one read of each
// collection.
func loadAllStats(ctx context.Context, repos ledger.Repositories) ([]stats.PlayerStatistics, error) {
	players, err := repos.Players.List(ctx)
	if err != nil {
		return nil, err
	}
	results, err := repos.Results.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := repos.Daily.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return stats.ComputeAll(players, results, summaries), nil
}
