package command

import (
	"context"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

// DeleteGameCommand removes a game with all its results.
type DeleteGameCommand struct {
	GameID        string
	CorrelationID string
}

// DeleteGameResult reports what was removed.
type DeleteGameResult struct {
	GameID         string
	Date           shared.Date
	RemovedResults int
}

// DeleteGameHandler handles DeleteGameCommand.
type DeleteGameHandler struct {
	uow       ledger.UnitOfWork
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewDeleteGameHandler creates a new DeleteGameHandler.
func NewDeleteGameHandler(uow ledger.UnitOfWork, publisher shared.EventPublisher, log *logger.Logger) *DeleteGameHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DeleteGameHandler{
		uow:       uow,
		publisher: publisher,
		log:       log.With(logger.Component("delete_game")),
	}
}

// Handle deletes the game and recomputes the summaries of its date. No other
// date is touched. The game is read under its lock inside the unit, so a move
// committed just before is honoured.
func (h *DeleteGameHandler) Handle(ctx context.Context, cmd DeleteGameCommand) (*DeleteGameResult, error) {
	if cmd.GameID == "" {
		return nil, shared.NewDomainError("game", "Delete", shared.ErrInvalidID, "game id is required")
	}

	var (
		g       *game.Game
		result  *DeleteGameResult
		players int
	)
	err := runUnit(ctx, h.uow, h.log, "game", cmd.GameID, nil, func(ctx context.Context, repos ledger.Repositories) error {
		var err error
		g, err = repos.Games.GetForUpdate(ctx, cmd.GameID)
		if err != nil {
			return err
		}
		if err := repos.Locks.LockDates(ctx, []shared.Date{g.Date}); err != nil {
			return err
		}
		result = &DeleteGameResult{GameID: g.ID, Date: g.Date}

		existing, err := repos.Results.ListByGame(ctx, g.ID)
		if err != nil {
			return err
		}
		result.RemovedResults = len(existing)

		if err := repos.Results.DeleteForGame(ctx, g.ID); err != nil {
			return err
		}
		if err := repos.Games.Delete(ctx, g.ID); err != nil {
			return err
		}
		counts, err := recomputeDates(ctx, repos, []shared.Date{g.Date})
		players = counts[g.Date]
		return err
	})
	if err != nil {
		h.log.Error("delete game failed", logger.GameID(cmd.GameID), logger.Err(err))
		return nil, err
	}

	h.log.Info("game deleted",
		logger.GameID(g.ID),
		logger.Date(g.Date.String()),
		logger.Int("removed_results", result.RemovedResults),
	)

	deleted := shared.NewGameDeletedEvent(g.ID, g.Date.String(), g.Roster)
	if cmd.CorrelationID != "" {
		deleted.BaseEvent = deleted.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	publishAll(h.publisher, h.log, []shared.Event{
		deleted,
		shared.NewDailyRecomputedEvent(g.Date.String(), players),
	})

	return result, nil
}
