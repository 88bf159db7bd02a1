package stats

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

func result(playerID string, score int, rank shared.Rank) game.RoundResult {
	return game.RoundResult{PlayerID: playerID, Score: score, Rank: rank, Point: game.PointFor(rank)}
}

func TestCompute(t *testing.T) {
	results := []game.RoundResult{
		result("A", 40000, 1),
		result("A", 20000, 4),
		result("A", 30000, 2),
		result("A", 10000, 4),
		result("B", 99999, 1),
	}
	summaries := []daily.Summary{
		{PlayerID: "A", RankPoint: 10},
		{PlayerID: "A", RankPoint: 3},
		{PlayerID: "B", RankPoint: 6},
	}

	s := Compute("A", "Aoi", results, summaries)

	assert.Equal(t, "Aoi", s.PlayerName)
	assert.Equal(t, 4, s.GamesPlayed)
	assert.Equal(t, 100000, s.TotalScore)
	assert.Equal(t, 25000.0, s.AverageScore)
	assert.Equal(t, 2.75, s.AverageRank)
	assert.Equal(t, 1, s.FirstPlaceCount)
	assert.Equal(t, 2, s.FourthPlaceCount)
	assert.Equal(t, 25.0, s.FirstPlaceRate)
	assert.Equal(t, 50.0, s.FourthPlaceRate)
	assert.Equal(t, 12-12+4-12, s.TotalPoint)
	assert.Equal(t, 13, s.TotalRankPoints)
	assert.Equal(t, 100013, s.CombinedScore)
}

func TestCompute_NoResults(t *testing.T) {
	s := Compute("Z", "Zen", nil, nil)

	assert.Equal(t, PlayerStatistics{PlayerID: "Z", PlayerName: "Zen"}, s)
	assert.Zero(t, s.AverageRank)
	assert.Zero(t, s.FirstPlaceRate)
	assert.Zero(t, s.FourthPlaceRate)
	assert.Zero(t, s.CombinedScore)
}

func TestComputeAll_IncludesIdlePlayers(t *testing.T) {
	players := []*player.Player{{ID: "b", Name: "Bo"}, {ID: "a", Name: "Al"}}
	all := ComputeAll(players, []game.RoundResult{result("a", 100, 1)}, nil)

	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].PlayerID)
	assert.Equal(t, 1, all[0].GamesPlayed)
	assert.Equal(t, "b", all[1].PlayerID)
	assert.Zero(t, all[1].GamesPlayed)
}

func statsWith(id string, games, total, rankPoints int, avgRank, firstRate, fourthRate float64) PlayerStatistics {
	return PlayerStatistics{
		PlayerID:        id,
		PlayerName:      "name-" + id,
		GamesPlayed:     games,
		TotalScore:      total,
		TotalRankPoints: rankPoints,
		CombinedScore:   total + rankPoints,
		AverageRank:     avgRank,
		FirstPlaceRate:  firstRate,
		FourthPlaceRate: fourthRate,
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.PlayerID
	}
	return out
}

func TestBuilder_Build(t *testing.T) {
	all := []PlayerStatistics{
		statsWith("p1", 10, 300000, 10, 2.1, 30, 20),
		statsWith("p2", 4, 400000, 30, 1.0, 100, 0),
		statsWith("p3", 5, 250000, 6, 2.6, 20, 40),
		statsWith("p4", 0, 0, 0, 0, 0, 0),
		statsWith("p5", 8, 300000, 10, 2.1, 30, 20),
	}

	boards := NewBuilder(5).Build(all)
	require.Len(t, boards, 6)

	assert.Equal(t, []string{"p2", "p1", "p5", "p3"}, ids(boards[ViewCombinedScore]))
	assert.Equal(t, []string{"p2", "p1", "p5", "p3"}, ids(boards[ViewTotalScore]))
	assert.Equal(t, []string{"p2", "p1", "p5", "p3"}, ids(boards[ViewRankPoints]))
	assert.Equal(t, []string{"p1", "p5", "p3"}, ids(boards[ViewAverageRank]))
	assert.Equal(t, []string{"p1", "p5", "p3"}, ids(boards[ViewFirstPlaceRate]))
	assert.Equal(t, []string{"p1", "p5", "p3"}, ids(boards[ViewFourthPlaceRate]))

	for _, v := range Views {
		for i, e := range boards[v] {
			assert.Equal(t, i+1, e.Position)
			assert.Equal(t, "name-"+e.PlayerID, e.PlayerName)
		}
	}
}

func TestBuilder_FourGamesOnlyInScoreViews(t *testing.T) {
	all := []PlayerStatistics{statsWith("four", 4, 1000, 10, 1, 100, 0)}
	boards := NewBuilder(DefaultMinGamesForRates).Build(all)

	assert.Len(t, boards[ViewCombinedScore], 1)
	assert.Len(t, boards[ViewTotalScore], 1)
	assert.Empty(t, boards[ViewAverageRank])
	assert.Empty(t, boards[ViewFirstPlaceRate])
	assert.Empty(t, boards[ViewFourthPlaceRate])
}

func TestBuilder_ZeroThresholdFallsBackToDefault(t *testing.T) {
	all := []PlayerStatistics{statsWith("x", 4, 1, 0, 1, 0, 0), statsWith("y", 5, 1, 0, 1, 0, 0)}
	assert.Equal(t, []string{"y"}, ids(Builder{}.BuildView(ViewAverageRank, all)))
	assert.Equal(t, DefaultMinGamesForRates, Builder{}.Threshold())
	assert.Equal(t, DefaultMinGamesForRates, NewBuilder(-3).Threshold())
	assert.Equal(t, 2, NewBuilder(2).Threshold())
}

func TestBuilder_TiesBrokenByPlayerID(t *testing.T) {
	var all []PlayerStatistics
	for _, id := range []string{"d", "b", "a", "c"} {
		all = append(all, statsWith(id, 6, 500, 0, 2.5, 25, 25))
	}
	for _, v := range Views {
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(NewBuilder(5).BuildView(v, all)), fmt.Sprint(v))
	}
}

func TestParseView(t *testing.T) {
	v, err := ParseView("first_place_rate")
	require.NoError(t, err)
	assert.Equal(t, ViewFirstPlaceRate, v)

	_, err = ParseView("xp")
	assert.Error(t, err)
}

func TestNewProfile_NewestFirstFromOneSnapshot(t *testing.T) {
	results := []game.RoundResult{
		{PlayerID: "A", Date: "2025-01-01", RoundNumber: 1, Score: 40000, Rank: 1, Point: game.PointFor(1)},
		{PlayerID: "A", Date: "2025-01-02", RoundNumber: 1, Score: 20000, Rank: 3, Point: game.PointFor(3)},
		{PlayerID: "A", Date: "2025-01-02", RoundNumber: 2, Score: 10000, Rank: 4, Point: game.PointFor(4)},
	}
	summaries := []daily.Summary{
		{PlayerID: "A", Date: "2025-01-01", RankPoint: 10},
		{PlayerID: "A", Date: "2025-01-02", RankPoint: 0},
	}

	p := NewProfile("A", "Aki", results, summaries, 2)
	assert.Equal(t, 3, p.Stats.GamesPlayed)
	assert.Equal(t, 10, p.Stats.TotalRankPoints)
	require.Len(t, p.Recent, 2)
	assert.Equal(t, 2, p.Recent[0].RoundNumber)
	assert.Equal(t, shared.Date("2025-01-02"), p.Recent[1].Date)
	require.Len(t, p.Days, 2)
	assert.Equal(t, shared.Date("2025-01-02"), p.Days[0].Date)

	// The caller's slices keep their order.
	assert.Equal(t, 1, results[0].RoundNumber)
	assert.Equal(t, shared.Date("2025-01-01"), summaries[0].Date)

	assert.Len(t, NewProfile("A", "Aki", results, summaries, 0).Recent, 3)
}
