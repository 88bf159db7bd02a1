// Package daily rolls round results up into one summary per player and
// calendar day, ranks the players active that day and awards the daily
// rank-point bonus.
//
// A rollup is always a full recompute over every result of the date. It never
// applies deltas, so any game saved, edited or deleted on a date can shift
// the standing of players who were not in that game.
package daily

import (
	"cmp"
	"slices"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// Summary is the derived record for one (date, player) pair.
type Summary struct {
	Date            shared.Date `json:"date"`
	PlayerID        string      `json:"player_id"`
	RoundsPlayed    int         `json:"rounds_played"`
	TotalScore      int         `json:"total_score"`
	AverageRank     float64     `json:"average_rank"`
	FirstPlaceCount int         `json:"first_place_count"`
	DailyRank       int         `json:"daily_rank"`
	RankPoint       int         `json:"rank_point"`
}

var rankPointTable = map[int]int{
	1: 10,
	2: 6,
	3: 3,
}

// RankPointFor returns the bonus for a daily rank. Ranks past third earn 0.
func RankPointFor(dailyRank int) int {
	return rankPointTable[dailyRank]
}

// Rollup computes the summaries of date from results. Results dated on other
// days are ignored. The output is ordered by daily rank.
//
// Daily rank is positional over total score descending; players tied on total
// score are ordered by player id, so the bonus assignment never depends on
// input order.
func Rollup(date shared.Date, results []game.RoundResult) []Summary {
	type acc struct {
		Summary
		rankSum int
	}
	byPlayer := make(map[string]*acc)
	for _, r := range results {
		if r.Date != date {
			continue
		}
		a, ok := byPlayer[r.PlayerID]
		if !ok {
			a = &acc{Summary: Summary{Date: date, PlayerID: r.PlayerID}}
			byPlayer[r.PlayerID] = a
		}
		a.RoundsPlayed++
		a.TotalScore += r.Score
		a.rankSum += r.Rank.Int()
		if r.Rank == shared.FirstPlace {
			a.FirstPlaceCount++
		}
	}

	summaries := make([]Summary, 0, len(byPlayer))
	for _, a := range byPlayer {
		a.AverageRank = float64(a.rankSum) / float64(a.RoundsPlayed)
		summaries = append(summaries, a.Summary)
	}

	slices.SortFunc(summaries, func(a, b Summary) int {
		if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
			return c
		}
		return cmp.Compare(a.PlayerID, b.PlayerID)
	})
	for i := range summaries {
		summaries[i].DailyRank = i + 1
		summaries[i].RankPoint = RankPointFor(i + 1)
	}
	return summaries
}

// Dates returns the distinct dates present in results, ascending.
func Dates(results []game.RoundResult) []shared.Date {
	seen := make(map[shared.Date]struct{})
	var dates []shared.Date
	for _, r := range results {
		if _, ok := seen[r.Date]; ok {
			continue
		}
		seen[r.Date] = struct{}{}
		dates = append(dates, r.Date)
	}
	slices.Sort(dates)
	return dates
}

// Sort orders summaries by date, daily rank and player. Stores use it so
// every listing is deterministic.
func Sort(s []Summary) {
	slices.SortFunc(s, func(a, b Summary) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.DailyRank, b.DailyRank),
			cmp.Compare(a.PlayerID, b.PlayerID),
		)
	})
}
