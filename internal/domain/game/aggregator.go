package game

import (
	"cmp"
	"slices"
	"sort"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// RoundResult is the derived record for one (game, round, player) triple.
// Date is carried from the game so per-day rollups need no extra lookup.
type RoundResult struct {
	GameID      string       `json:"game_id"`
	Date        shared.Date  `json:"date"`
	RoundNumber int          `json:"round_number"`
	PlayerID    string       `json:"player_id"`
	Score       int          `json:"score"`
	Rank        shared.Rank  `json:"rank"`
	Point       shared.Point `json:"point"`
}

// ValidateRounds checks every round against the roster without computing
// anything. Round indexes in errors are 1-based.
//
// A round missing a roster player's score fails with IncompleteRoundError.
// A round with a score for someone outside the roster, or with a count other
// than four, fails with InvalidRoundError.
func ValidateRounds(roster []string, rounds []Scores) error {
	if err := ValidateRoster(roster); err != nil {
		return err
	}
	if len(rounds) == 0 {
		return shared.ErrNoRounds
	}

	inRoster := make(map[string]struct{}, len(roster))
	for _, id := range roster {
		inRoster[id] = struct{}{}
	}

	for i, round := range rounds {
		var missing []string
		for _, id := range roster {
			if _, ok := round[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			return &shared.IncompleteRoundError{Round: i + 1, Missing: missing}
		}

		var unknown []string
		for id := range round {
			if _, ok := inRoster[id]; !ok {
				unknown = append(unknown, id)
			}
		}
		if len(unknown) > 0 || len(round) != SeatsPerGame {
			sort.Strings(unknown)
			return &shared.InvalidRoundError{Round: i + 1, Count: len(round), Unknown: unknown}
		}
	}
	return nil
}

// Aggregate turns all rounds of a game into RoundResults, ordered by round
// number and then by roster seat. All rounds are validated before the first
// one is ranked, so an error means nothing was produced.
func Aggregate(g *Game, rounds []Scores) ([]RoundResult, error) {
	if err := ValidateRounds(g.Roster, rounds); err != nil {
		return nil, err
	}

	results := make([]RoundResult, 0, len(rounds)*SeatsPerGame)
	for i, round := range rounds {
		ranks, err := ResolveRanks(round)
		if err != nil {
			if ire, ok := err.(*shared.InvalidRoundError); ok {
				ire.Round = i + 1
			}
			return nil, err
		}
		for _, playerID := range g.Roster {
			rank := ranks[playerID]
			results = append(results, RoundResult{
				GameID:      g.ID,
				Date:        g.Date,
				RoundNumber: i + 1,
				PlayerID:    playerID,
				Score:       round[playerID],
				Rank:        rank,
				Point:       PointFor(rank),
			})
		}
	}
	return results, nil
}

// RoundsFromResults rebuilds the per-round score maps of one game from its
// stored results, ordered by round number.
func RoundsFromResults(results []RoundResult) []Scores {
	byRound := make(map[int]Scores)
	for _, r := range results {
		s, ok := byRound[r.RoundNumber]
		if !ok {
			s = make(Scores, SeatsPerGame)
			byRound[r.RoundNumber] = s
		}
		s[r.PlayerID] = r.Score
	}

	numbers := make([]int, 0, len(byRound))
	for n := range byRound {
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)

	rounds := make([]Scores, 0, len(numbers))
	for _, n := range numbers {
		rounds = append(rounds, byRound[n])
	}
	return rounds
}

// SortResults orders results by date, game, round and player. Stores use it
// so every listing is deterministic.
func SortResults(results []RoundResult) {
	slices.SortFunc(results, func(a, b RoundResult) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.GameID, b.GameID),
			cmp.Compare(a.RoundNumber, b.RoundNumber),
			cmp.Compare(a.PlayerID, b.PlayerID),
		)
	})
}

// PlayerTotal sums one player's results within a game.
type PlayerTotal struct {
	PlayerID   string  `json:"player_id"`
	Rounds     int     `json:"rounds"`
	TotalScore int     `json:"total_score"`
	TotalPoint int     `json:"total_point"`
	AvgRank    float64 `json:"average_rank"`
}

// Totals sums results per roster player, in roster order.
func Totals(roster []string, results []RoundResult) []PlayerTotal {
	idx := make(map[string]int, len(roster))
	totals := make([]PlayerTotal, len(roster))
	for i, id := range roster {
		idx[id] = i
		totals[i].PlayerID = id
	}
	rankSums := make([]int, len(roster))
	for _, r := range results {
		i, ok := idx[r.PlayerID]
		if !ok {
			continue
		}
		totals[i].Rounds++
		totals[i].TotalScore += r.Score
		totals[i].TotalPoint += r.Point.Int()
		rankSums[i] += r.Rank.Int()
	}
	for i := range totals {
		if totals[i].Rounds > 0 {
			totals[i].AvgRank = float64(rankSums[i]) / float64(totals[i].Rounds)
		}
	}
	return totals
}
