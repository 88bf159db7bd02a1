package query

import (
	"context"
	"slices"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

func invalidInput(domain, op string, err error) error {
	return shared.WrapError(domain, op, shared.ErrInvalidInput, "invalid query", err)
}

// SeatDTO is one player's line in a round.
type SeatDTO struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Score      int    `json:"score"`
	Rank       int    `json:"rank"`
	Point      int    `json:"point"`
}

// RoundDTO is one round of a game, seats in roster order.
type RoundDTO struct {
	Number int       `json:"number"`
	Seats  []SeatDTO `json:"seats"`
}

// ══════════════════════════════════════════════════════════════════════════════
// GET GAME QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetGameQuery asks for one game with its rounds.
type GetGameQuery struct {
	GameID string
}

// GetGameResult contains a game, its rounds and per-player totals.
type GetGameResult struct {
	Game   *game.Game         `json:"game"`
	Names  map[string]string  `json:"player_names"`
	Rounds []RoundDTO         `json:"rounds"`
	Totals []game.PlayerTotal `json:"totals"`
}

// GetGameHandler handles GetGameQuery.
type GetGameHandler struct {
	repos ledger.Repositories
}

// NewGetGameHandler creates a new GetGameHandler.
func NewGetGameHandler(uow ledger.UnitOfWork) *GetGameHandler {
	return &GetGameHandler{repos: uow.Repositories()}
}

// Handle loads the game and regroups its results by round.
func (h *GetGameHandler) Handle(ctx context.Context, q GetGameQuery) (*GetGameResult, error) {
	g, err := h.repos.Games.Get(ctx, q.GameID)
	if err != nil {
		return nil, err
	}
	results, err := h.repos.Results.ListByGame(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	players, err := h.repos.Players.List(ctx)
	if err != nil {
		return nil, err
	}
	names := player.Names(players)

	rosterNames := make(map[string]string, len(g.Roster))
	for _, id := range g.Roster {
		rosterNames[id] = names[id]
	}

	return &GetGameResult{
		Game:   g,
		Names:  rosterNames,
		Rounds: roundsOf(g.Roster, results, names),
		Totals: game.Totals(g.Roster, results),
	}, nil
}

func roundsOf(roster []string, results []game.RoundResult, names map[string]string) []RoundDTO {
	seat := make(map[string]int, len(roster))
	for i, id := range roster {
		seat[id] = i
	}

	byNumber := make(map[int]*RoundDTO)
	for _, r := range results {
		rd, ok := byNumber[r.RoundNumber]
		if !ok {
			rd = &RoundDTO{Number: r.RoundNumber, Seats: make([]SeatDTO, len(roster))}
			byNumber[r.RoundNumber] = rd
		}
		i, ok := seat[r.PlayerID]
		if !ok {
			continue
		}
		rd.Seats[i] = SeatDTO{
			PlayerID:   r.PlayerID,
			PlayerName: names[r.PlayerID],
			Score:      r.Score,
			Rank:       r.Rank.Int(),
			Point:      r.Point.Int(),
		}
	}

	rounds := make([]RoundDTO, 0, len(byNumber))
	for _, rd := range byNumber {
		rounds = append(rounds, *rd)
	}
	slices.SortFunc(rounds, func(a, b RoundDTO) int { return a.Number - b.Number })
	return rounds
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST GAMES QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GameListItem is a game header with its round count and first-round winners.
type GameListItem struct {
	Game         *game.Game `json:"game"`
	RoundCount   int        `json:"round_count"`
	FirstWinners []string   `json:"first_round_winners"`
	WinnerNames  []string   `json:"first_round_winner_names"`
}

// ListGamesQuery lists games newest first.
type ListGamesQuery struct {
	// Limit of zero returns every game.
	Limit int
}

// ListGamesHandler handles ListGamesQuery.
type ListGamesHandler struct {
	repos ledger.Repositories
}

// NewListGamesHandler creates a new ListGamesHandler.
func NewListGamesHandler(uow ledger.UnitOfWork) *ListGamesHandler {
	return &ListGamesHandler{repos: uow.Repositories()}
}

// Handle lists games newest first.
func (h *ListGamesHandler) Handle(ctx context.Context, q ListGamesQuery) ([]GameListItem, error) {
	if q.Limit < 0 {
		return nil, shared.NewDomainError("game", "List", shared.ErrValueOutOfRange, "limit cannot be negative")
	}
	games, err := h.repos.Games.List(ctx)
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(games) > q.Limit {
		games = games[:q.Limit]
	}
	results, err := h.repos.Results.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	players, err := h.repos.Players.List(ctx)
	if err != nil {
		return nil, err
	}
	names := player.Names(players)

	byGame := make(map[string][]game.RoundResult)
	for _, r := range results {
		byGame[r.GameID] = append(byGame[r.GameID], r)
	}

	items := make([]GameListItem, 0, len(games))
	for _, g := range games {
		item := GameListItem{Game: g, FirstWinners: []string{}, WinnerNames: []string{}}
		rounds := make(map[int]struct{})
		for _, r := range byGame[g.ID] {
			rounds[r.RoundNumber] = struct{}{}
			if r.RoundNumber == 1 && r.Rank == shared.FirstPlace {
				item.FirstWinners = append(item.FirstWinners, r.PlayerID)
				item.WinnerNames = append(item.WinnerNames, names[r.PlayerID])
			}
		}
		item.RoundCount = len(rounds)
		items = append(items, item)
	}
	return items, nil
}
