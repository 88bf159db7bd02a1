package query

import (
	"context"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// GetDailySummariesQuery asks for the standings of one calendar day.
type GetDailySummariesQuery struct {
	Date string
}

// DailyEntry is a summary with the player's display name.
type DailyEntry struct {
	daily.Summary
	PlayerName string `json:"player_name"`
}

// GetDailySummariesResult lists the day's summaries by daily rank.
type GetDailySummariesResult struct {
	Date    shared.Date  `json:"date"`
	Entries []DailyEntry `json:"entries"`
}

// GetDailySummariesHandler handles GetDailySummariesQuery.
type GetDailySummariesHandler struct {
	repos ledger.Repositories
}

// NewGetDailySummariesHandler creates a new handler.
func NewGetDailySummariesHandler(uow ledger.UnitOfWork) *GetDailySummariesHandler {
	return &GetDailySummariesHandler{repos: uow.Repositories()}
}

// Handle returns the stored summaries of the date. A date without games
// returns an empty list, not an error.
func (h *GetDailySummariesHandler) Handle(ctx context.Context, q GetDailySummariesQuery) (*GetDailySummariesResult, error) {
	date, err := shared.ParseDate(q.Date)
	if err != nil {
		return nil, err
	}
	summaries, err := h.repos.Daily.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	players, err := h.repos.Players.List(ctx)
	if err != nil {
		return nil, err
	}
	names := player.Names(players)

	entries := make([]DailyEntry, len(summaries))
	for i, s := range summaries {
		entries[i] = DailyEntry{Summary: s, PlayerName: names[s.PlayerID]}
	}
	return &GetDailySummariesResult{Date: date, Entries: entries}, nil
}
