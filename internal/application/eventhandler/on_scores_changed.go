// Package eventhandler contains domain event subscribers. They run after a
// unit of work has committed and only touch derived, disposable state such
// as caches.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// StatsInvalidator drops cached read models.
type StatsInvalidator interface {
	InvalidateLeaderboards(ctx context.Context) error
	InvalidateAllPlayerStats(ctx context.Context) error
}

// ═══════════════════════════════════════════════════════════════════════════
// ON SCORES CHANGED HANDLER
// Any saved or deleted game can move daily ranks of players outside the
// game, so both the leaderboards and every cached player record go stale.
// A rebuild run reports once for all its dates; per-date daily.recomputed
// events follow a game event and need no second invalidation.
// ═══════════════════════════════════════════════════════════════════════════

// OnScoresChangedHandler invalidates caches after score changes.
type OnScoresChangedHandler struct {
	cache   StatsInvalidator
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnScoresChangedHandler creates the handler. A nil cache makes it a no-op.
func NewOnScoresChangedHandler(cache StatsInvalidator, logger *slog.Logger) *OnScoresChangedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnScoresChangedHandler{
		cache:   cache,
		logger:  logger.With("handler", "on_scores_changed"),
		timeout: 5 * time.Second,
	}
}

// EventTypes lists the events this handler subscribes to.
func (h *OnScoresChangedHandler) EventTypes() []shared.EventType {
	return []shared.EventType{
		shared.EventGameSaved,
		shared.EventGameDeleted,
		shared.EventDailyRebuilt,
	}
}

// Handle implements shared.EventHandler. Cache failures are logged and
// swallowed: a stale cache expires by TTL and is never a reason to fail a
// committed write.
func (h *OnScoresChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch event.EventType() {
	case shared.EventGameSaved, shared.EventGameDeleted, shared.EventDailyRebuilt:
	default:
		h.logger.Debug("ignoring event", "event_type", event.EventType())
		return nil
	}

	if err := h.cache.InvalidateLeaderboards(ctx); err != nil {
		h.logger.Warn("failed to invalidate leaderboards",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
	if err := h.cache.InvalidateAllPlayerStats(ctx); err != nil {
		h.logger.Warn("failed to invalidate player stats",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}

	h.logger.Debug("caches invalidated",
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
	)
	return nil
}

// Register subscribes the handler to its events.
func (h *OnScoresChangedHandler) Register(sub shared.EventSubscriber) error {
	for _, t := range h.EventTypes() {
		if err := sub.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}
