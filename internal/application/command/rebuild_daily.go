package command

import (
	"context"
	"errors"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

// RebuildDailyCommand recomputes daily summaries from round results. With no
// dates every date that has results or summaries is rebuilt, which also
// clears summaries left behind for dates without results.
type RebuildDailyCommand struct {
	Dates []shared.Date
}

// RebuildDailyResult reports the outcome of a rebuild.
type RebuildDailyResult struct {
	Rebuilt  int
	Cleared  int
	Failed   int
	Duration time.Duration
}

// RebuildDailyHandler handles RebuildDailyCommand.
type RebuildDailyHandler struct {
	uow       ledger.UnitOfWork
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewRebuildDailyHandler creates a new RebuildDailyHandler.
func NewRebuildDailyHandler(uow ledger.UnitOfWork, publisher shared.EventPublisher, log *logger.Logger) *RebuildDailyHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RebuildDailyHandler{
		uow:       uow,
		publisher: publisher,
		log:       log.With(logger.Component("rebuild_daily")),
	}
}

// Handle rebuilds each date in its own unit of work. A failing date does not
// stop the others; all failures are returned joined.
func (h *RebuildDailyHandler) Handle(ctx context.Context, cmd RebuildDailyCommand) (*RebuildDailyResult, error) {
	start := time.Now()

	dates := cmd.Dates
	if len(dates) == 0 {
		var err error
		if dates, err = h.allDates(ctx); err != nil {
			return nil, err
		}
	}

	result := &RebuildDailyResult{}
	var errs []error
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var players int
		err := runUnit(ctx, h.uow, h.log, "daily", date.String(), []shared.Date{date}, func(ctx context.Context, repos ledger.Repositories) error {
			counts, err := recomputeDates(ctx, repos, []shared.Date{date})
			players = counts[date]
			return err
		})
		if err != nil {
			result.Failed++
			errs = append(errs, err)
			h.log.Error("daily rebuild failed", logger.Date(date.String()), logger.Err(err))
			continue
		}

		if players == 0 {
			result.Cleared++
		} else {
			result.Rebuilt++
		}
		publishAll(h.publisher, h.log, []shared.Event{shared.NewDailyRecomputedEvent(date.String(), players)})
	}

	if result.Rebuilt+result.Cleared > 0 {
		publishAll(h.publisher, h.log, []shared.Event{shared.NewDailyRebuiltEvent(result.Rebuilt, result.Cleared)})
	}

	result.Duration = time.Since(start)
	h.log.Info("daily summaries rebuilt",
		logger.Int("rebuilt", result.Rebuilt),
		logger.Int("cleared", result.Cleared),
		logger.Int("failed", result.Failed),
		logger.Latency(result.Duration),
	)
	return result, errors.Join(errs...)
}

func (h *RebuildDailyHandler) allDates(ctx context.Context) ([]shared.Date, error) {
	repos := h.uow.Repositories()
	results, err := repos.Results.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	withSummaries, err := repos.Daily.Dates(ctx)
	if err != nil {
		return nil, err
	}
	return affectedDates(append(daily.Dates(results), withSummaries...)...), nil
}
