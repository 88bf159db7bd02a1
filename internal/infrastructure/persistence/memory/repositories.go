package memory

import (
	"context"
	"slices"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

func newRepositories(acc access) ledger.Repositories {
	return ledger.Repositories{
		Players: &playerRepo{acc: acc},
		Games:   &gameRepo{acc: acc},
		Results: &resultRepo{acc: acc},
		Daily:   &dailyRepo{acc: acc},
		Locks:   serialLocks{},
	}
}

// serialLocks is a no-op: units of work already run one at a time.
type serialLocks struct{}

func (serialLocks) LockDates(context.Context, []shared.Date) error { return nil }

// ══════════════════════════════════════════════════════════════════════════════
// PLAYERS
// ══════════════════════════════════════════════════════════════════════════════

type playerRepo struct {
	acc access
}

func (r *playerRepo) Create(ctx context.Context, p *player.Player) error {
	return r.acc.write(ctx, func(st *state) error {
		if _, ok := st.players[p.ID]; ok {
			return shared.ErrPlayerExists
		}
		st.players[p.ID] = *p
		return nil
	})
}

func (r *playerRepo) Get(_ context.Context, id string) (*player.Player, error) {
	var (
		p  player.Player
		ok bool
	)
	r.acc.read(func(st *state) { p, ok = st.players[id] })
	if !ok {
		return nil, shared.ErrPlayerNotFound
	}
	return &p, nil
}

func (r *playerRepo) List(_ context.Context) ([]*player.Player, error) {
	var out []*player.Player
	r.acc.read(func(st *state) {
		out = make([]*player.Player, 0, len(st.players))
		for _, p := range st.players {
			p := p
			out = append(out, &p)
		}
	})
	player.SortByName(out)
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GAMES
// ══════════════════════════════════════════════════════════════════════════════

type gameRepo struct {
	acc access
}

func copyGame(g game.Game) *game.Game {
	g.Roster = slices.Clone(g.Roster)
	return &g
}

func (r *gameRepo) Save(ctx context.Context, g *game.Game) error {
	return r.acc.write(ctx, func(st *state) error {
		stored := *copyGame(*g)
		if prev, ok := st.games[g.ID]; ok {
			stored.Roster = prev.Roster
			stored.CreatedAt = prev.CreatedAt
		}
		st.games[g.ID] = stored
		return nil
	})
}

func (r *gameRepo) Get(_ context.Context, id string) (*game.Game, error) {
	var (
		g  game.Game
		ok bool
	)
	r.acc.read(func(st *state) { g, ok = st.games[id] })
	if !ok {
		return nil, shared.ErrGameNotFound
	}
	return copyGame(g), nil
}

// GetForUpdate needs no lock beyond the serialized unit.
func (r *gameRepo) GetForUpdate(ctx context.Context, id string) (*game.Game, error) {
	return r.Get(ctx, id)
}

func (r *gameRepo) List(_ context.Context) ([]*game.Game, error) {
	var out []*game.Game
	r.acc.read(func(st *state) {
		out = make([]*game.Game, 0, len(st.games))
		for _, g := range st.games {
			out = append(out, copyGame(g))
		}
	})
	game.SortNewestFirst(out)
	return out, nil
}

func (r *gameRepo) Delete(ctx context.Context, id string) error {
	return r.acc.write(ctx, func(st *state) error {
		if _, ok := st.games[id]; !ok {
			return shared.ErrGameNotFound
		}
		delete(st.games, id)
		delete(st.results, id)
		return nil
	})
}

func (r *gameRepo) CountSince(_ context.Context, since shared.Date) (int, error) {
	n := 0
	r.acc.read(func(st *state) {
		for _, g := range st.games {
			if g.Date >= since {
				n++
			}
		}
	})
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUND RESULTS
// ══════════════════════════════════════════════════════════════════════════════

type resultRepo struct {
	acc access
}

func (r *resultRepo) ReplaceForGame(ctx context.Context, gameID string, results []game.RoundResult) error {
	return r.acc.write(ctx, func(st *state) error {
		if _, ok := st.games[gameID]; !ok {
			return shared.ErrGameNotFound
		}
		st.results[gameID] = slices.Clone(results)
		return nil
	})
}

func (r *resultRepo) collect(keep func(game.RoundResult) bool) []game.RoundResult {
	var out []game.RoundResult
	r.acc.read(func(st *state) {
		for _, rs := range st.results {
			for _, res := range rs {
				if keep(res) {
					out = append(out, res)
				}
			}
		}
	})
	game.SortResults(out)
	return out
}

func (r *resultRepo) ListByGame(_ context.Context, gameID string) ([]game.RoundResult, error) {
	var out []game.RoundResult
	r.acc.read(func(st *state) { out = slices.Clone(st.results[gameID]) })
	game.SortResults(out)
	return out, nil
}

func (r *resultRepo) ListByPlayer(_ context.Context, playerID string) ([]game.RoundResult, error) {
	return r.collect(func(res game.RoundResult) bool { return res.PlayerID == playerID }), nil
}

func (r *resultRepo) ListByDate(_ context.Context, date shared.Date) ([]game.RoundResult, error) {
	return r.collect(func(res game.RoundResult) bool { return res.Date == date }), nil
}

func (r *resultRepo) ListAll(_ context.Context) ([]game.RoundResult, error) {
	return r.collect(func(game.RoundResult) bool { return true }), nil
}

func (r *resultRepo) DeleteForGame(ctx context.Context, gameID string) error {
	return r.acc.write(ctx, func(st *state) error {
		delete(st.results, gameID)
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

type dailyRepo struct {
	acc access
}

func (r *dailyRepo) ReplaceForDate(ctx context.Context, date shared.Date, summaries []daily.Summary) error {
	return r.acc.write(ctx, func(st *state) error {
		if len(summaries) == 0 {
			delete(st.daily, date)
			return nil
		}
		st.daily[date] = slices.Clone(summaries)
		return nil
	})
}

func (r *dailyRepo) ListByDate(_ context.Context, date shared.Date) ([]daily.Summary, error) {
	var out []daily.Summary
	r.acc.read(func(st *state) { out = slices.Clone(st.daily[date]) })
	daily.Sort(out)
	return out, nil
}

func (r *dailyRepo) ListByPlayer(_ context.Context, playerID string) ([]daily.Summary, error) {
	var out []daily.Summary
	r.acc.read(func(st *state) {
		for _, ss := range st.daily {
			for _, s := range ss {
				if s.PlayerID == playerID {
					out = append(out, s)
				}
			}
		}
	})
	daily.Sort(out)
	return out, nil
}

func (r *dailyRepo) ListAll(_ context.Context) ([]daily.Summary, error) {
	var out []daily.Summary
	r.acc.read(func(st *state) {
		for _, ss := range st.daily {
			out = append(out, ss...)
		}
	})
	daily.Sort(out)
	return out, nil
}

func (r *dailyRepo) Dates(_ context.Context) ([]shared.Date, error) {
	var out []shared.Date
	r.acc.read(func(st *state) {
		for d := range st.daily {
			out = append(out, d)
		}
	})
	slices.Sort(out)
	return out, nil
}
