package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAVE GAME COMMAND
// Creates a game or edits an existing one. Round results are recomputed from
// the full set of rounds and replace the stored ones as a unit; the daily
// summaries of the game's date (and of its old date when it moved) follow in
// the same unit.
// ══════════════════════════════════════════════════════════════════════════════

// SaveGameCommand contains the data to create or edit a game.
type SaveGameCommand struct {
	// GameID is empty to create a new game.
	GameID string

	// Date is the calendar day, YYYY-MM-DD.
	Date string

	// Venue is an optional label.
	Venue string

	// Roster lists the four players. On edit it may be left empty; when
	// given it must match the stored roster.
	Roster []string

	// Rounds holds one score map per round, in play order.
	Rounds []game.Scores

	// CorrelationID for tracing.
	CorrelationID string
}

// SaveGameResult contains the committed game and its results.
type SaveGameResult struct {
	Game            *game.Game
	Results         []game.RoundResult
	Created         bool
	RecomputedDates []shared.Date
}

// SaveGameHandler handles SaveGameCommand.
type SaveGameHandler struct {
	uow       ledger.UnitOfWork
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewSaveGameHandler creates a new SaveGameHandler.
func NewSaveGameHandler(uow ledger.UnitOfWork, publisher shared.EventPublisher, log *logger.Logger) *SaveGameHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SaveGameHandler{
		uow:       uow,
		publisher: publisher,
		log:       log.With(logger.Component("save_game")),
		now:       ledger.Stamp,
		newID:     uuid.NewString,
	}
}

// Handle validates every round, then replaces the game's results and the
// affected daily summaries in one unit of work. On edit the stored game is
// re-read under its lock inside the unit, so the old date is the one last
// committed, not the one seen before the unit started.
func (h *SaveGameHandler) Handle(ctx context.Context, cmd SaveGameCommand) (*SaveGameResult, error) {
	now := h.now()
	created := cmd.GameID == ""

	// Validate against a draft without touching the store.
	var (
		draft *game.Game
		date  shared.Date
		err   error
	)
	if created {
		draft, err = game.NewGame(game.NewGameParams{
			ID:     h.newID(),
			Date:   cmd.Date,
			Venue:  cmd.Venue,
			Roster: cmd.Roster,
			Now:    now,
		})
		if err != nil {
			return nil, err
		}
		date = draft.Date
	} else {
		draft, err = h.uow.Repositories().Games.Get(ctx, cmd.GameID)
		if err != nil {
			return nil, err
		}
		if len(cmd.Roster) > 0 && !draft.SameRoster(cmd.Roster) {
			return nil, shared.ErrRosterImmutable
		}
		date, err = shared.ParseDate(cmd.Date)
		if err != nil {
			return nil, err
		}
		draft.Reschedule(date, cmd.Venue, now)
	}
	if _, err := game.Aggregate(draft, cmd.Rounds); err != nil {
		return nil, err
	}

	var (
		target   *game.Game
		prevDate shared.Date
		results  []game.RoundResult
		dates    []shared.Date
		counts   map[shared.Date]int
	)
	err = runUnit(ctx, h.uow, h.log, "game", draft.ID, nil, func(ctx context.Context, repos ledger.Repositories) error {
		prevDate = ""
		if created {
			g := *draft
			target = &g
		} else {
			stored, err := repos.Games.GetForUpdate(ctx, draft.ID)
			if err != nil {
				return err
			}
			if !stored.SameRoster(draft.Roster) {
				return shared.ErrRosterImmutable
			}
			prevDate = stored.Reschedule(date, cmd.Venue, now)
			target = stored
		}

		var err error
		results, err = game.Aggregate(target, cmd.Rounds)
		if err != nil {
			return err
		}
		dates = affectedDates(target.Date, prevDate)
		if err := repos.Locks.LockDates(ctx, dates); err != nil {
			return err
		}

		for _, id := range target.Roster {
			if _, err := repos.Players.Get(ctx, id); err != nil {
				if shared.IsNotFound(err) {
					return shared.NewDomainError("game", "Save", shared.ErrInvalidInput,
						fmt.Sprintf("roster player %q is not registered", id))
				}
				return err
			}
		}

		if err := repos.Games.Save(ctx, target); err != nil {
			return err
		}
		if err := repos.Results.ReplaceForGame(ctx, target.ID, results); err != nil {
			return err
		}
		counts, err = recomputeDates(ctx, repos, dates)
		return err
	})
	if err != nil {
		h.log.Error("save game failed",
			logger.GameID(draft.ID),
			logger.Date(date.String()),
			logger.Err(err),
		)
		return nil, err
	}

	h.log.Info("game saved",
		logger.GameID(target.ID),
		logger.Date(target.Date.String()),
		logger.Int("rounds", len(cmd.Rounds)),
		logger.Bool("created", created),
	)

	var moved string
	if !prevDate.IsZero() && prevDate != target.Date {
		moved = prevDate.String()
	}
	saved := shared.NewGameSavedEvent(target.ID, target.Date.String(), moved, target.Roster, len(cmd.Rounds), created)
	if cmd.CorrelationID != "" {
		saved.BaseEvent = saved.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	events := []shared.Event{saved}
	for _, d := range dates {
		events = append(events, shared.NewDailyRecomputedEvent(d.String(), counts[d]))
	}
	publishAll(h.publisher, h.log, events)

	return &SaveGameResult{
		Game:            target,
		Results:         results,
		Created:         created,
		RecomputedDates: dates,
	}, nil
}
