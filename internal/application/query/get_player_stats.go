package query

import (
	"context"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/stats"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PLAYER STATS QUERY
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// GetPlayerStatsQuery asks for one player's lifetime statistics.
type GetPlayerStatsQuery struct {
	PlayerID string

	// RecentLimit caps the recent results list (default 10, max 100).
	RecentLimit int
}

// GetPlayerStatsResult contains the statistics and recent activity.
type GetPlayerStatsResult struct {
	Stats  stats.PlayerStatistics `json:"stats"`
	Recent []game.RoundResult     `json:"recent_results"`
	Days   []daily.Summary        `json:"daily_summaries"`
}

// GetPlayerStatsHandler handles GetPlayerStatsQuery.
type GetPlayerStatsHandler struct {
	repos ledger.Repositories
	cache StatsCache
	log   *logger.Logger
}

// NewGetPlayerStatsHandler creates a new handler. cache may be nil.
func NewGetPlayerStatsHandler(uow ledger.UnitOfWork, cache StatsCache, log *logger.Logger) *GetPlayerStatsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetPlayerStatsHandler{
		repos: uow.Repositories(),
		cache: cache,
		log:   log.With(logger.Component("get_player_stats")),
	}
}

// Handle returns the player's statistics, newest results first.
func (h *GetPlayerStatsHandler) Handle(ctx context.Context, q GetPlayerStatsQuery) (*GetPlayerStatsResult, error) {
	if q.PlayerID == "" {
		return nil, shared.NewDomainError("player", "GetStats", shared.ErrInvalidID, "player id is required")
	}
	limit := q.RecentLimit
	switch {
	case limit <= 0:
		limit = defaultRecentLimit
	case limit > maxRecentLimit:
		limit = maxRecentLimit
	}

	profile, err := h.profile(ctx, q.PlayerID)
	if err != nil {
		return nil, err
	}
	recent := profile.Recent
	if len(recent) > limit {
		recent = recent[:limit]
	}
	return &GetPlayerStatsResult{Stats: profile.Stats, Recent: recent, Days: profile.Days}, nil
}

// profile serves the cached profile or builds one from a single read of the
// player's results and summaries. Stats, recent results and days always come
// from the same snapshot.
func (h *GetPlayerStatsHandler) profile(ctx context.Context, playerID string) (*stats.PlayerProfile, error) {
	var (
		gen      int64
		storable bool
	)
	if h.cache != nil {
		cached, g, ok, err := h.cache.GetPlayerProfile(ctx, playerID)
		switch {
		case err != nil:
			h.log.Warn("player stats cache read failed", logger.PlayerID(playerID), logger.Err(err))
		case ok && cached != nil:
			return cached, nil
		default:
			gen, storable = g, true
		}
	}

	p, err := h.repos.Players.Get(ctx, playerID)
	if err != nil {
		return nil, err
	}
	results, err := h.repos.Results.ListByPlayer(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	summaries, err := h.repos.Daily.ListByPlayer(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	built := stats.NewProfile(p.ID, p.Name, results, summaries, maxRecentLimit)
	if storable {
		if err := h.cache.SetPlayerProfile(ctx, gen, &built); err != nil {
			h.log.Warn("player stats cache write failed", logger.PlayerID(p.ID), logger.Err(err))
		}
	}
	return &built, nil
}
