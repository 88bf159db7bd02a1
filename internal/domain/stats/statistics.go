// Package stats computes lifetime player statistics and the leaderboard
// views built on them. Nothing here is persisted: every call re-scans the
// snapshot it is given, which keeps the numbers free of counter drift.
package stats

import (
	"cmp"
	"slices"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// PlayerStatistics is the lifetime record of one player.
// GamesPlayed counts round results, not sittings.
type PlayerStatistics struct {
	PlayerID         string  `json:"player_id"`
	PlayerName       string  `json:"player_name"`
	GamesPlayed      int     `json:"games_played"`
	TotalScore       int     `json:"total_score"`
	AverageScore     float64 `json:"average_score"`
	AverageRank      float64 `json:"average_rank"`
	FirstPlaceCount  int     `json:"first_place_count"`
	FourthPlaceCount int     `json:"fourth_place_count"`
	FirstPlaceRate   float64 `json:"first_place_rate"`
	FourthPlaceRate  float64 `json:"fourth_place_rate"`
	TotalPoint       int     `json:"total_point"`
	TotalRankPoints  int     `json:"total_rank_points"`
	CombinedScore    int     `json:"combined_score"`
}

// Compute builds the statistics of one player. Results and summaries of
// other players are skipped. With no results every ratio is 0.
func Compute(playerID, name string, results []game.RoundResult, summaries []daily.Summary) PlayerStatistics {
	s := PlayerStatistics{PlayerID: playerID, PlayerName: name}

	rankSum := 0
	for _, r := range results {
		if r.PlayerID != playerID {
			continue
		}
		s.GamesPlayed++
		s.TotalScore += r.Score
		s.TotalPoint += r.Point.Int()
		rankSum += r.Rank.Int()
		switch r.Rank {
		case shared.FirstPlace:
			s.FirstPlaceCount++
		case shared.FourthPlace:
			s.FourthPlaceCount++
		}
	}
	for _, d := range summaries {
		if d.PlayerID == playerID {
			s.TotalRankPoints += d.RankPoint
		}
	}

	if s.GamesPlayed > 0 {
		n := float64(s.GamesPlayed)
		s.AverageScore = float64(s.TotalScore) / n
		s.AverageRank = float64(rankSum) / n
		s.FirstPlaceRate = float64(s.FirstPlaceCount) / n * 100
		s.FourthPlaceRate = float64(s.FourthPlaceCount) / n * 100
	}
	s.CombinedScore = s.TotalScore + s.TotalRankPoints
	return s
}

// ComputeAll builds statistics for every registered player, including those
// without results, ordered by player id.
func ComputeAll(players []*player.Player, results []game.RoundResult, summaries []daily.Summary) []PlayerStatistics {
	resultsBy := make(map[string][]game.RoundResult, len(players))
	for _, r := range results {
		resultsBy[r.PlayerID] = append(resultsBy[r.PlayerID], r)
	}
	summariesBy := make(map[string][]daily.Summary, len(players))
	for _, d := range summaries {
		summariesBy[d.PlayerID] = append(summariesBy[d.PlayerID], d)
	}

	all := make([]PlayerStatistics, 0, len(players))
	for _, p := range players {
		all = append(all, Compute(p.ID, p.Name, resultsBy[p.ID], summariesBy[p.ID]))
	}
	slices.SortFunc(all, func(a, b PlayerStatistics) int {
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	return all
}

// PlayerProfile is one player's statistics together with the activity they
// were computed from, newest first.
type PlayerProfile struct {
	Stats  PlayerStatistics   `json:"stats"`
	Recent []game.RoundResult `json:"recent_results"`
	Days   []daily.Summary    `json:"daily_summaries"`
}

// NewProfile builds a profile from one read of the player's results and
// summaries, both in chronological order. Recent keeps the newest maxRecent
// results; zero or less keeps them all.
func NewProfile(playerID, name string, results []game.RoundResult, summaries []daily.Summary, maxRecent int) PlayerProfile {
	recent := slices.Clone(results)
	slices.Reverse(recent)
	if maxRecent > 0 && len(recent) > maxRecent {
		recent = recent[:maxRecent]
	}
	days := slices.Clone(summaries)
	slices.Reverse(days)
	return PlayerProfile{
		Stats:  Compute(playerID, name, results, summaries),
		Recent: recent,
		Days:   days,
	}
}
