// Package memory is an in-process ledger store. It keeps one immutable
// snapshot of all four collections and replaces it wholesale on commit, so a
// reader sees either the state before a unit of work or the state after it,
// never a mix.
//
// It backs development runs without DATABASE_URL and the application tests.
package memory

import (
	"context"
	"sync"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// state is one snapshot. Slices held in the maps are never modified in place;
// writers always assign fresh slices.
type state struct {
	players map[string]player.Player
	games   map[string]game.Game
	results map[string][]game.RoundResult // by game id
	daily   map[shared.Date][]daily.Summary
}

func newState() *state {
	return &state{
		players: make(map[string]player.Player),
		games:   make(map[string]game.Game),
		results: make(map[string][]game.RoundResult),
		daily:   make(map[shared.Date][]daily.Summary),
	}
}

func (s *state) clone() *state {
	next := &state{
		players: make(map[string]player.Player, len(s.players)),
		games:   make(map[string]game.Game, len(s.games)),
		results: make(map[string][]game.RoundResult, len(s.results)),
		daily:   make(map[shared.Date][]daily.Summary, len(s.daily)),
	}
	for k, v := range s.players {
		next.players[k] = v
	}
	for k, v := range s.games {
		next.games[k] = v
	}
	for k, v := range s.results {
		next.results[k] = v
	}
	for k, v := range s.daily {
		next.daily[k] = v
	}
	return next
}

// Store is a copy-on-write ledger.UnitOfWork.
type Store struct {
	mu      sync.RWMutex // guards current
	current *state
	writeMu sync.Mutex // serializes writers
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{current: newState()}
}

var _ ledger.UnitOfWork = (*Store)(nil)

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) swap(next *state) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

// Repositories returns collections over committed state. Each write through
// them commits on its own.
func (s *Store) Repositories() ledger.Repositories {
	return newRepositories(storeAccess{s: s})
}

// Do runs fn against a private copy of the current snapshot and publishes
// the copy only when fn succeeds. Units are serialized, which covers the
// per-date ordering the dates argument asks for.
func (s *Store) Do(ctx context.Context, _ []shared.Date, fn func(ctx context.Context, repos ledger.Repositories) error) error {
	return s.commit(ctx, func(next *state) error {
		return fn(ctx, newRepositories(txAccess{st: next}))
	})
}

func (s *Store) commit(ctx context.Context, fn func(next *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.snapshot().clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.swap(next)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCESS MODES
// ══════════════════════════════════════════════════════════════════════════════

type access interface {
	read(fn func(st *state))
	write(ctx context.Context, fn func(st *state) error) error
}

// txAccess works on a private snapshot owned by one unit of work.
type txAccess struct {
	st *state
}

func (a txAccess) read(fn func(st *state)) { fn(a.st) }

func (a txAccess) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(a.st)
}

// storeAccess reads committed state and turns each write into its own unit.
type storeAccess struct {
	s *Store
}

func (a storeAccess) read(fn func(st *state)) { fn(a.s.snapshot()) }

func (a storeAccess) write(ctx context.Context, fn func(st *state) error) error {
	return a.s.commit(ctx, fn)
}
