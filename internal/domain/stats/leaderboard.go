package stats

import (
	"cmp"
	"fmt"
	"slices"
)

// View names one of the leaderboard orderings.
type View string

const (
	ViewCombinedScore   View = "combined_score"
	ViewTotalScore      View = "total_score"
	ViewRankPoints      View = "rank_points"
	ViewAverageRank     View = "average_rank"
	ViewFirstPlaceRate  View = "first_place_rate"
	ViewFourthPlaceRate View = "fourth_place_rate"
)

// Views lists every view in display order.
var Views = []View{
	ViewCombinedScore,
	ViewTotalScore,
	ViewRankPoints,
	ViewAverageRank,
	ViewFirstPlaceRate,
	ViewFourthPlaceRate,
}

// DefaultMinGamesForRates is the sample size a player needs before showing
// up in the rate-based views.
const DefaultMinGamesForRates = 5

// IsRateView reports whether the view is filtered by the sample-size threshold.
func (v View) IsRateView() bool {
	switch v {
	case ViewAverageRank, ViewFirstPlaceRate, ViewFourthPlaceRate:
		return true
	default:
		return false
	}
}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	for _, v := range Views {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown leaderboard view %q", s)
}

// Entry is one row of a view. Position is the 1-based row index.
type Entry struct {
	Position   int              `json:"position"`
	PlayerID   string           `json:"player_id"`
	PlayerName string           `json:"player_name"`
	Stats      PlayerStatistics `json:"stats"`
}

// Leaderboards holds every view keyed by name.
type Leaderboards map[View][]Entry

// Builder sorts statistics into the leaderboard views.
type Builder struct {
	// MinGamesForRates is the inclusive threshold for rate views.
	// Zero or less falls back to DefaultMinGamesForRates.
	MinGamesForRates int
}

// NewBuilder creates a Builder with the given rate threshold.
func NewBuilder(minGamesForRates int) Builder {
	return Builder{MinGamesForRates: minGamesForRates}
}

// Threshold returns the rate-view threshold the builder applies.
func (b Builder) Threshold() int {
	if b.MinGamesForRates <= 0 {
		return DefaultMinGamesForRates
	}
	return b.MinGamesForRates
}

// Build produces all six views.
func (b Builder) Build(all []PlayerStatistics) Leaderboards {
	boards := make(Leaderboards, len(Views))
	for _, v := range Views {
		boards[v] = b.BuildView(v, all)
	}
	return boards
}

// BuildView produces a single view. Players without results never appear;
// rate views also drop players below the threshold. Ties on the metric fall
// back to player id ascending.
func (b Builder) BuildView(view View, all []PlayerStatistics) []Entry {
	eligible := make([]PlayerStatistics, 0, len(all))
	for _, s := range all {
		if s.GamesPlayed == 0 {
			continue
		}
		if view.IsRateView() && s.GamesPlayed < b.Threshold() {
			continue
		}
		eligible = append(eligible, s)
	}

	metric := compareFor(view)
	slices.SortStableFunc(eligible, func(x, y PlayerStatistics) int {
		if c := metric(x, y); c != 0 {
			return c
		}
		return cmp.Compare(x.PlayerID, y.PlayerID)
	})

	entries := make([]Entry, len(eligible))
	for i, s := range eligible {
		entries[i] = Entry{
			Position:   i + 1,
			PlayerID:   s.PlayerID,
			PlayerName: s.PlayerName,
			Stats:      s,
		}
	}
	return entries
}

func compareFor(view View) func(x, y PlayerStatistics) int {
	switch view {
	case ViewTotalScore:
		return func(x, y PlayerStatistics) int { return cmp.Compare(y.TotalScore, x.TotalScore) }
	case ViewRankPoints:
		return func(x, y PlayerStatistics) int { return cmp.Compare(y.TotalRankPoints, x.TotalRankPoints) }
	case ViewAverageRank:
		return func(x, y PlayerStatistics) int { return cmp.Compare(x.AverageRank, y.AverageRank) }
	case ViewFirstPlaceRate:
		return func(x, y PlayerStatistics) int { return cmp.Compare(y.FirstPlaceRate, x.FirstPlaceRate) }
	case ViewFourthPlaceRate:
		return func(x, y PlayerStatistics) int { return cmp.Compare(x.FourthPlaceRate, y.FourthPlaceRate) }
	default:
		return func(x, y PlayerStatistics) int { return cmp.Compare(y.CombinedScore, x.CombinedScore) }
	}
}
