package query

import (
	"context"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
)

// ListPlayersQuery lists every registered player by name.
type ListPlayersQuery struct{}

// ListPlayersHandler handles ListPlayersQuery.
type ListPlayersHandler struct {
	repos ledger.Repositories
}

// NewListPlayersHandler creates a new ListPlayersHandler.
func NewListPlayersHandler(uow ledger.UnitOfWork) *ListPlayersHandler {
	return &ListPlayersHandler{repos: uow.Repositories()}
}

// Handle returns the players, never nil.
func (h *ListPlayersHandler) Handle(ctx context.Context, _ ListPlayersQuery) ([]*player.Player, error) {
	players, err := h.repos.Players.List(ctx)
	if err != nil {
		return nil, err
	}
	if players == nil {
		players = []*player.Player{}
	}
	return players, nil
}
