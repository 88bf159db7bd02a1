// Package jobs contains the periodic maintenance jobs of the score hub.
package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/application/command"
)

// DailyRebuilder recomputes stored daily summaries.
type DailyRebuilder interface {
	Handle(ctx context.Context, cmd command.RebuildDailyCommand) (*command.RebuildDailyResult, error)
}

// RebuildDailyStats contains statistics from the last run.
type RebuildDailyStats struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Rebuilt    int
	Cleared    int
	Failed     int
}

// RebuildDailyJob repairs drift between round results and daily summaries
// by rebuilding every known date.
type RebuildDailyJob struct {
	rebuilder DailyRebuilder
	logger    *slog.Logger
	lastStats atomic.Pointer[RebuildDailyStats]
}

// NewRebuildDailyJob creates a new RebuildDailyJob.
func NewRebuildDailyJob(rebuilder DailyRebuilder, logger *slog.Logger) *RebuildDailyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RebuildDailyJob{
		rebuilder: rebuilder,
		logger:    logger.With("job", "rebuild_daily_summaries"),
	}
}

// Name returns the job name.
func (j *RebuildDailyJob) Name() string {
	return "rebuild_daily_summaries"
}

// Description returns the job description.
func (j *RebuildDailyJob) Description() string {
	return "Recomputes daily summaries of every date from round results"
}

// Run executes the job. Dates that fail are reported through the returned
// error; the rest are still rebuilt.
func (j *RebuildDailyJob) Run(ctx context.Context) error {
	st := &RebuildDailyStats{StartedAt: time.Now()}
	defer func() {
		st.FinishedAt = time.Now()
		j.lastStats.Store(st)
	}()

	result, err := j.rebuilder.Handle(ctx, command.RebuildDailyCommand{})
	if result != nil {
		st.Rebuilt = result.Rebuilt
		st.Cleared = result.Cleared
		st.Failed = result.Failed
	}
	if err != nil {
		j.logger.Error("rebuild finished with errors",
			"rebuilt", st.Rebuilt,
			"failed", st.Failed,
			"error", err,
		)
		return err
	}

	j.logger.Info("rebuild finished",
		"rebuilt", st.Rebuilt,
		"cleared", st.Cleared,
	)
	return nil
}

// LastStats returns statistics from the last run, or nil before the first.
func (j *RebuildDailyJob) LastStats() *RebuildDailyStats {
	return j.lastStats.Load()
}
