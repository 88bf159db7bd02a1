// Package game holds the scoring core of the hub: a game session with its
// fixed four-player roster, competition ranking of a single round, the fixed
// point table and the aggregation of all rounds into RoundResult records.
//
// The package depends only on the standard library and on domain/shared.
// Everything here is a pure transformation over values passed in; storage
// and transactions belong to the ledger collaborator.
package game

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// SeatsPerGame is the number of players bound to a game.
const SeatsPerGame = 4

const maxVenueLength = 100

// ══════════════════════════════════════════════════════════════════════════════
// GAME ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Game is one dated sitting. Its roster is fixed when the game is created and
// never changes across edits.
type Game struct {
	ID        string      `json:"id"`
	Date      shared.Date `json:"date"`
	Venue     string      `json:"venue,omitempty"`
	Roster    []string    `json:"roster"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// NewGameParams holds the inputs for NewGame.
type NewGameParams struct {
	ID     string
	Date   string
	Venue  string
	Roster []string
	Now    time.Time
}

// NewGame validates the params and builds a Game.
func NewGame(p NewGameParams) (*Game, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, shared.NewDomainError("game", "New", shared.ErrInvalidID, "game id is required")
	}
	date, err := shared.ParseDate(p.Date)
	if err != nil {
		return nil, shared.WrapError("game", "New", shared.ErrInvalidFormat, "game date must be YYYY-MM-DD", err)
	}
	venue := strings.TrimSpace(p.Venue)
	if utf8.RuneCountInString(venue) > maxVenueLength {
		return nil, shared.NewDomainError("game", "New", shared.ErrValueOutOfRange, "venue is too long")
	}
	roster := make([]string, len(p.Roster))
	for i, id := range p.Roster {
		roster[i] = strings.TrimSpace(id)
	}
	if err := ValidateRoster(roster); err != nil {
		return nil, err
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Game{
		ID:        p.ID,
		Date:      date,
		Venue:     venue,
		Roster:    roster,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ValidateRoster checks that exactly four distinct, non-empty player ids are given.
func ValidateRoster(roster []string) error {
	if len(roster) != SeatsPerGame {
		return shared.ErrInvalidRoster
	}
	seen := make(map[string]struct{}, SeatsPerGame)
	for _, id := range roster {
		if id == "" {
			return shared.ErrInvalidRoster
		}
		if _, dup := seen[id]; dup {
			return shared.ErrInvalidRoster
		}
		seen[id] = struct{}{}
	}
	return nil
}

// HasPlayer reports whether the player sits in this game.
func (g *Game) HasPlayer(playerID string) bool {
	for _, id := range g.Roster {
		if id == playerID {
			return true
		}
	}
	return false
}

// SameRoster reports whether other holds the same four players, in any order.
func (g *Game) SameRoster(other []string) bool {
	if len(other) != len(g.Roster) {
		return false
	}
	for _, id := range other {
		if !g.HasPlayer(id) {
			return false
		}
	}
	return true
}

// Reschedule moves the game to another day and relabels the venue.
// It returns the previous date.
func (g *Game) Reschedule(date shared.Date, venue string, now time.Time) shared.Date {
	prev := g.Date
	g.Date = date
	g.Venue = strings.TrimSpace(venue)
	g.UpdatedAt = now
	return prev
}

// SortNewestFirst orders games by date, then creation time, newest first.
func SortNewestFirst(games []*Game) {
	slices.SortFunc(games, func(a, b *Game) int {
		return cmp.Or(
			cmp.Compare(b.Date, a.Date),
			b.CreatedAt.Compare(a.CreatedAt),
			strings.Compare(a.ID, b.ID),
		)
	})
}
