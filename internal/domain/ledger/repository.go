// Package ledger defines the storage collaborator of the scoring engine: four
// record collections (players, games, round results, daily summaries) and a
// unit of work that makes a game replace and the per-date rollups that follow
// it commit or fail together.
//
// Implementations live in the infrastructure layer (PostgreSQL, in-memory).
package ledger

import (
	"context"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORIES
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRepository stores club members.
type PlayerRepository interface {
	// Create inserts a new player. Returns shared.ErrPlayerExists when the
	// id is taken.
	Create(ctx context.Context, p *player.Player) error

	// Get returns shared.ErrPlayerNotFound when the player does not exist.
	Get(ctx context.Context, id string) (*player.Player, error)

	// List returns every player ordered by name, then id.
	List(ctx context.Context) ([]*player.Player, error)
}

// GameRepository stores game headers and rosters.
type GameRepository interface {
	// Save inserts or updates a game. The roster is written only on insert.
	Save(ctx context.Context, g *game.Game) error

	// Get returns shared.ErrGameNotFound when the game does not exist.
	Get(ctx context.Context, id string) (*game.Game, error)

	// GetForUpdate is Get that also holds the game until the unit of work
	// ends, so two edits of one game run one after the other and the second
	// sees the date the first committed.
	GetForUpdate(ctx context.Context, id string) (*game.Game, error)

	// List returns games newest first (date, then creation time).
	List(ctx context.Context) ([]*game.Game, error)

	// Delete removes a game and, by cascade, its results.
	Delete(ctx context.Context, id string) error

	// CountSince counts games dated on or after the given day.
	CountSince(ctx context.Context, since shared.Date) (int, error)
}

// ResultRepository stores RoundResults.
type ResultRepository interface {
	// ReplaceForGame deletes every result of the game and inserts results.
	ReplaceForGame(ctx context.Context, gameID string, results []game.RoundResult) error

	ListByGame(ctx context.Context, gameID string) ([]game.RoundResult, error)
	ListByPlayer(ctx context.Context, playerID string) ([]game.RoundResult, error)
	ListByDate(ctx context.Context, date shared.Date) ([]game.RoundResult, error)
	ListAll(ctx context.Context) ([]game.RoundResult, error)

	DeleteForGame(ctx context.Context, gameID string) error
}

// DailyRepository stores DailySummaries keyed by (date, player).
type DailyRepository interface {
	// ReplaceForDate swaps every summary of date for summaries. An empty
	// slice clears the date.
	ReplaceForDate(ctx context.Context, date shared.Date, summaries []daily.Summary) error

	// ListByDate returns the date's summaries ordered by daily rank.
	ListByDate(ctx context.Context, date shared.Date) ([]daily.Summary, error)
	ListByPlayer(ctx context.Context, playerID string) ([]daily.Summary, error)
	ListAll(ctx context.Context) ([]daily.Summary, error)

	// Dates returns every date that has at least one summary.
	Dates(ctx context.Context) ([]shared.Date, error)
}

// DateLocker orders units that recompute the same calendar day.
type DateLocker interface {
	// LockDates holds every date until the unit ends. Call it once per unit,
	// before any write, with the full set of dates the unit recomputes.
	LockDates(ctx context.Context, dates []shared.Date) error
}

// Repositories bundles the four collections bound to one connection or
// transaction.
type Repositories struct {
	Players PlayerRepository
	Games   GameRepository
	Results ResultRepository
	Daily   DailyRepository
	Locks   DateLocker
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// UnitOfWork gives access to the collections and runs atomic units.
type UnitOfWork interface {
	// Repositories returns collections that read committed state.
	Repositories() Repositories

	// Do runs fn against collections bound to one transaction. Every write
	// made through them becomes visible at once when fn returns nil, and none
	// does otherwise. Dates lists the calendar days the unit will recompute;
	// stores serialize units that share a date. A unit that learns its dates
	// from state read inside it passes nil and calls Locks.LockDates.
	Do(ctx context.Context, dates []shared.Date, fn func(ctx context.Context, repos Repositories) error) error
}

// Stamp returns the current time truncated to microseconds, the precision
// PostgreSQL keeps.
func Stamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
