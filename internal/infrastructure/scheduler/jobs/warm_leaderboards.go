package jobs

import (
	"context"
	"log/slog"

	"github.com/mahjong-hub/mahjong-score-hub/internal/application/query"
)

// LeaderboardReader reads leaderboards, filling the cache on a miss.
type LeaderboardReader interface {
	Handle(ctx context.Context, q query.GetLeaderboardsQuery) (*query.GetLeaderboardsResult, error)
}

// WarmLeaderboardsJob refills the leaderboard cache after invalidation so
// the first reader does not pay for the full recomputation.
type WarmLeaderboardsJob struct {
	reader LeaderboardReader
	logger *slog.Logger
}

// NewWarmLeaderboardsJob creates a new WarmLeaderboardsJob.
func NewWarmLeaderboardsJob(reader LeaderboardReader, logger *slog.Logger) *WarmLeaderboardsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarmLeaderboardsJob{reader: reader, logger: logger.With("job", "warm_leaderboards")}
}

// Name returns the job name.
func (j *WarmLeaderboardsJob) Name() string {
	return "warm_leaderboards"
}

// Description returns the job description.
func (j *WarmLeaderboardsJob) Description() string {
	return "Recomputes leaderboards into the cache when missing"
}

// Run executes the job.
func (j *WarmLeaderboardsJob) Run(ctx context.Context) error {
	res, err := j.reader.Handle(ctx, query.GetLeaderboardsQuery{})
	if err != nil {
		return err
	}
	if !res.FromCache {
		j.logger.Debug("leaderboards recomputed", "views", len(res.Views))
	}
	return nil
}
