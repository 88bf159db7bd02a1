package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

// RegisterPlayerCommand adds a club member.
type RegisterPlayerCommand struct {
	Name string
}

// RegisterPlayerHandler handles RegisterPlayerCommand.
type RegisterPlayerHandler struct {
	players   ledger.PlayerRepository
	publisher shared.EventPublisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewRegisterPlayerHandler creates a new RegisterPlayerHandler.
func NewRegisterPlayerHandler(uow ledger.UnitOfWork, publisher shared.EventPublisher, log *logger.Logger) *RegisterPlayerHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RegisterPlayerHandler{
		players:   uow.Repositories().Players,
		publisher: publisher,
		log:       log.With(logger.Component("register_player")),
		now:       ledger.Stamp,
		newID:     uuid.NewString,
	}
}

// Handle validates the name and stores the new player.
func (h *RegisterPlayerHandler) Handle(ctx context.Context, cmd RegisterPlayerCommand) (*player.Player, error) {
	p, err := player.New(h.newID(), cmd.Name, h.now())
	if err != nil {
		return nil, err
	}
	if err := h.players.Create(ctx, p); err != nil {
		return nil, err
	}

	h.log.Info("player registered", logger.PlayerID(p.ID), logger.String("name", p.Name))
	publishAll(h.publisher, h.log, []shared.Event{shared.NewPlayerRegisteredEvent(p.ID, p.Name)})
	return p, nil
}
