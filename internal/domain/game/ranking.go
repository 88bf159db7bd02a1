package game

import (
	"cmp"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// Scores maps a player id to the raw score of one round.
type Scores map[string]int

var invariantLog atomic.Pointer[slog.Logger]

// SetInvariantLogger sets the logger that receives invariant violations.
// Until it is called slog.Default() is used.
func SetInvariantLogger(l *slog.Logger) {
	invariantLog.Store(l)
}

func invariantLogger() *slog.Logger {
	if l := invariantLog.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// ══════════════════════════════════════════════════════════════════════════════
// RANK RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// ResolveRanks assigns competition ranks to the four scores of one round.
// A player's rank is one plus the number of players with a strictly greater
// score, so equal scores share the better rank and the next rank is skipped:
// 30000/30000/20000/20000 resolves to 1,1,3,3.
func ResolveRanks(scores Scores) (map[string]shared.Rank, error) {
	if len(scores) != SeatsPerGame {
		return nil, &shared.InvalidRoundError{Count: len(scores)}
	}

	type seat struct {
		playerID string
		score    int
	}
	seats := make([]seat, 0, len(scores))
	for id, s := range scores {
		seats = append(seats, seat{playerID: id, score: s})
	}
	slices.SortFunc(seats, func(a, b seat) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.playerID, b.playerID)
	})

	ranks := make(map[string]shared.Rank, len(seats))
	for i, s := range seats {
		if i > 0 && s.score == seats[i-1].score {
			ranks[s.playerID] = ranks[seats[i-1].playerID]
			continue
		}
		ranks[s.playerID] = shared.Rank(i + 1)
	}
	return ranks, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// POINT CONVERTER
// ══════════════════════════════════════════════════════════════════════════════

var pointTable = map[shared.Rank]shared.Point{
	1: 12,
	2: 4,
	3: -4,
	4: -12,
}

// PointFor converts a round rank to league points. Ranks outside 1..4 can only
// come from a ranking defect; they yield 0 and are logged, never returned as
// an error.
func PointFor(rank shared.Rank) shared.Point {
	p, ok := pointTable[rank]
	if !ok {
		invariantLogger().Error("invariant violation: rank outside point table",
			slog.Int("rank", rank.Int()),
		)
		return 0
	}
	return p
}
