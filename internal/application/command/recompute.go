// Package command contains write operations (CQRS - Commands).
//
// Every command that changes round results runs as one ledger unit of work:
// the game replace and the daily rollups of every affected date commit
// together or not at all.
package command

import (
	"context"
	"slices"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/retry"
)

// recomputeDates replaces the summaries of each date with a fresh rollup of
// every result on that date. It returns the number of players per date.
func recomputeDates(ctx context.Context, repos ledger.Repositories, dates []shared.Date) (map[shared.Date]int, error) {
	counts := make(map[shared.Date]int, len(dates))
	for _, date := range dates {
		results, err := repos.Results.ListByDate(ctx, date)
		if err != nil {
			return nil, err
		}
		summaries := daily.Rollup(date, results)
		if err := repos.Daily.ReplaceForDate(ctx, date, summaries); err != nil {
			return nil, err
		}
		counts[date] = len(summaries)
	}
	return counts, nil
}

// affectedDates returns the distinct non-zero dates, ascending.
func affectedDates(dates ...shared.Date) []shared.Date {
	out := make([]shared.Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() || slices.Contains(out, d) {
			continue
		}
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// runUnit executes fn as one unit of work, retried on serialization failures.
// Errors that are not caller mistakes come back as RecomputeFailedError; the
// store has rolled the unit back by then.
func runUnit(
	ctx context.Context,
	uow ledger.UnitOfWork,
	log *logger.Logger,
	scope, key string,
	dates []shared.Date,
	fn func(ctx context.Context, repos ledger.Repositories) error,
) error {
	err := retry.Do(ctx, func(ctx context.Context) error {
		return uow.Do(ctx, dates, fn)
	}, append(retry.StoreOptions(shared.IsRetryable),
		retry.WithOnRetry(func(attempt int, err error, _ time.Duration) {
			log.Warn("unit of work retried",
				logger.Operation(scope),
				logger.String("key", key),
				logger.Int("attempt", attempt),
				logger.Err(err),
			)
		}))...)
	if err == nil {
		return nil
	}
	if shared.IsValidation(err) || shared.IsNotFound(err) || shared.IsAlreadyExists(err) {
		return err
	}
	return &shared.RecomputeFailedError{Scope: scope, Key: key, Err: err}
}

func publishAll(pub shared.EventPublisher, log *logger.Logger, events []shared.Event) {
	if pub == nil {
		return
	}
	for _, ev := range events {
		if err := pub.Publish(ev); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(ev.EventType())),
				logger.Err(err),
			)
		}
	}
}
