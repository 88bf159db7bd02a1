package query

import (
	"context"
	"math"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/stats"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/timeutil"
)

const dashboardTopN = 5

// HighScore is the best single-round score ever recorded.
type HighScore struct {
	Score      int         `json:"score"`
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name"`
	GameID     string      `json:"game_id"`
	Date       shared.Date `json:"date"`
}

// Dashboard is the club overview.
type Dashboard struct {
	TotalGames   int           `json:"total_games"`
	MonthlyGames int           `json:"monthly_games"`
	TotalPlayers int           `json:"total_players"`
	AverageScore int           `json:"average_score"`
	HighestScore *HighScore    `json:"highest_score"`
	TopPlayers   []stats.Entry `json:"top_players"`
}

// GetDashboardQuery has no parameters; the month is taken from the clock.
type GetDashboardQuery struct{}

// GetDashboardHandler handles GetDashboardQuery.
type GetDashboardHandler struct {
	repos   ledger.Repositories
	builder stats.Builder
	clock   timeutil.Clock
}

// NewGetDashboardHandler creates a new GetDashboardHandler.
func NewGetDashboardHandler(uow ledger.UnitOfWork, builder stats.Builder, clock timeutil.Clock) *GetDashboardHandler {
	return &GetDashboardHandler{repos: uow.Repositories(), builder: builder, clock: clock}
}

// Handle computes the overview. The average is over every round result,
// rounded half up. Ties for the highest score go to the earliest result.
func (h *GetDashboardHandler) Handle(ctx context.Context, _ GetDashboardQuery) (*Dashboard, error) {
	games, err := h.repos.Games.List(ctx)
	if err != nil {
		return nil, err
	}
	monthStart := shared.Date(timeutil.MonthStartDate(h.clock.Now(), h.clock.Location()))
	monthly, err := h.repos.Games.CountSince(ctx, monthStart)
	if err != nil {
		return nil, err
	}
	players, err := h.repos.Players.List(ctx)
	if err != nil {
		return nil, err
	}
	results, err := h.repos.Results.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	summaries, err := h.repos.Daily.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := player.Names(players)

	d := &Dashboard{
		TotalGames:   len(games),
		MonthlyGames: monthly,
		TotalPlayers: len(players),
	}

	if len(results) > 0 {
		sum := 0
		best := results[0]
		for _, r := range results {
			sum += r.Score
			if r.Score > best.Score {
				best = r
			}
		}
		d.AverageScore = int(math.Floor(float64(sum)/float64(len(results)) + 0.5))
		d.HighestScore = &HighScore{
			Score:      best.Score,
			PlayerID:   best.PlayerID,
			PlayerName: names[best.PlayerID],
			GameID:     best.GameID,
			Date:       best.Date,
		}
	}

	top := h.builder.BuildView(stats.ViewTotalScore, stats.ComputeAll(players, results, summaries))
	if len(top) > dashboardTopN {
		top = top[:dashboardTopN]
	}
	d.TopPlayers = top
	return d, nil
}
