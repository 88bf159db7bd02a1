package command_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahjong-hub/mahjong-score-hub/internal/application/command"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/persistence/memory"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
)

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(ev shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []shared.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType()
	}
	return out
}

type fixture struct {
	store   *memory.Store
	events  *recorder
	players map[string]string // name -> id
	save    *command.SaveGameHandler
	delete  *command.DeleteGameHandler
	rebuild *command.RebuildDailyHandler
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		events:  &recorder{},
		players: make(map[string]string),
	}
	log := logger.Discard()
	register := command.NewRegisterPlayerHandler(f.store, f.events, log)
	for _, n := range names {
		p, err := register.Handle(context.Background(), command.RegisterPlayerCommand{Name: n})
		require.NoError(t, err)
		f.players[n] = p.ID
	}
	f.save = command.NewSaveGameHandler(f.store, f.events, log)
	f.delete = command.NewDeleteGameHandler(f.store, f.events, log)
	f.rebuild = command.NewRebuildDailyHandler(f.store, f.events, log)
	return f
}

func (f *fixture) ids(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = f.players[n]
	}
	return out
}

// scores builds a round from name/score pairs.
func (f *fixture) scores(pairs map[string]int) game.Scores {
	s := make(game.Scores, len(pairs))
	for n, v := range pairs {
		s[f.players[n]] = v
	}
	return s
}

func (f *fixture) summaries(t *testing.T, date shared.Date) []daily.Summary {
	t.Helper()
	s, err := f.store.Repositories().Daily.ListByDate(context.Background(), date)
	require.NoError(t, err)
	return s
}

func TestSaveGame_Create(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()

	res, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date:   "2025-06-01",
		Venue:  "Hall",
		Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
		Rounds: []game.Scores{
			f.scores(map[string]int{"Aki": 32000, "Ben": 25000, "Chi": 23000, "Dan": 20000}),
			f.scores(map[string]int{"Aki": 30000, "Ben": 30000, "Chi": 20000, "Dan": 20000}),
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.Game.ID)
	assert.Len(t, res.Results, 8)
	assert.Equal(t, []shared.Date{"2025-06-01"}, res.RecomputedDates)

	stored, err := f.store.Repositories().Results.ListByGame(ctx, res.Game.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 8)

	sums := f.summaries(t, "2025-06-01")
	require.Len(t, sums, 4)
	assert.Equal(t, f.players["Aki"], sums[0].PlayerID)
	assert.Equal(t, 62000, sums[0].TotalScore)
	assert.Equal(t, 10, sums[0].RankPoint)
	assert.Equal(t, 2, sums[0].FirstPlaceCount)

	assert.Equal(t, []shared.EventType{
		shared.EventPlayerRegistered, shared.EventPlayerRegistered,
		shared.EventPlayerRegistered, shared.EventPlayerRegistered,
		shared.EventGameSaved, shared.EventDailyRecomputed,
	}, f.events.types())
}

func TestSaveGame_ResaveIsIdempotent(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	rounds := []game.Scores{
		f.scores(map[string]int{"Aki": 1000, "Ben": 2000, "Chi": 3000, "Dan": 4000}),
		f.scores(map[string]int{"Aki": 5000, "Ben": 5000, "Chi": 3000, "Dan": 4000}),
	}
	first, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2025-06-02", Roster: f.ids("Aki", "Ben", "Chi", "Dan"), Rounds: rounds,
	})
	require.NoError(t, err)
	sumsBefore := f.summaries(t, "2025-06-02")

	second, err := f.save.Handle(ctx, command.SaveGameCommand{
		GameID: first.Game.ID, Date: "2025-06-02", Rounds: rounds,
	})
	require.NoError(t, err)
	assert.False(t, second.Created)

	if diff := cmp.Diff(first.Results, second.Results); diff != "" {
		t.Errorf("results changed on re-save (-first +second):\n%s", diff)
	}
	assert.Empty(t, cmp.Diff(sumsBefore, f.summaries(t, "2025-06-02")))
}

func TestSaveGame_EditMovesDate(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	rounds := []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1})}

	created, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2025-06-03", Roster: f.ids("Aki", "Ben", "Chi", "Dan"), Rounds: rounds,
	})
	require.NoError(t, err)

	moved, err := f.save.Handle(ctx, command.SaveGameCommand{
		GameID: created.Game.ID, Date: "2025-06-04", Roster: f.ids("Dan", "Chi", "Ben", "Aki"), Rounds: rounds,
	})
	require.NoError(t, err)
	assert.Equal(t, []shared.Date{"2025-06-03", "2025-06-04"}, moved.RecomputedDates)

	assert.Empty(t, f.summaries(t, "2025-06-03"))
	assert.Len(t, f.summaries(t, "2025-06-04"), 4)
}

func TestSaveGame_RosterIsImmutable(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan", "Eri")
	ctx := context.Background()
	created, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date:   "2025-06-05",
		Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1})},
	})
	require.NoError(t, err)

	_, err = f.save.Handle(ctx, command.SaveGameCommand{
		GameID: created.Game.ID,
		Date:   "2025-06-05",
		Roster: f.ids("Aki", "Ben", "Chi", "Eri"),
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Eri": 1})},
	})
	assert.ErrorIs(t, err, shared.ErrRosterImmutable)
	assert.True(t, shared.IsValidation(err))
}

func TestSaveGame_RejectsBeforeAnyWrite(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()

	tests := []struct {
		name  string
		cmd   command.SaveGameCommand
		check func(t *testing.T, err error)
	}{
		{
			name: "incomplete round",
			cmd: command.SaveGameCommand{
				Date:   "2025-06-06",
				Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
				Rounds: []game.Scores{
					f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1}),
					f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2}),
				},
			},
			check: func(t *testing.T, err error) {
				var ire *shared.IncompleteRoundError
				require.True(t, errors.As(err, &ire))
				assert.Equal(t, 2, ire.Round)
			},
		},
		{
			name: "unknown player",
			cmd: command.SaveGameCommand{
				Date:   "2025-06-06",
				Roster: []string{f.players["Aki"], f.players["Ben"], f.players["Chi"], "ghost"},
				Rounds: []game.Scores{{f.players["Aki"]: 1, f.players["Ben"]: 2, f.players["Chi"]: 3, "ghost": 4}},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
				assert.Contains(t, err.Error(), "ghost")
			},
		},
		{
			name: "no rounds",
			cmd: command.SaveGameCommand{
				Date:   "2025-06-06",
				Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
			},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrNoRounds)
			},
		},
		{
			name: "bad date",
			cmd: command.SaveGameCommand{
				Date:   "June 6th",
				Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
				Rounds: []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1})},
			},
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.save.Handle(ctx, tt.cmd)
			require.Error(t, err)
			tt.check(t, err)

			games, err := f.store.Repositories().Games.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, games)
		})
	}
}

func TestSaveGame_EditUnknownGame(t *testing.T) {
	f := newFixture(t)
	_, err := f.save.Handle(context.Background(), command.SaveGameCommand{GameID: "missing", Date: "2025-06-07"})
	assert.True(t, shared.IsNotFound(err))
}

// faultyStore fails every daily replace, after the game replace has already
// been written inside the unit.
type faultyStore struct {
	*memory.Store
	err error
}

type failingDaily struct {
	ledger.DailyRepository
	err error
}

func (f failingDaily) ReplaceForDate(context.Context, shared.Date, []daily.Summary) error {
	return f.err
}

func (s faultyStore) Do(ctx context.Context, dates []shared.Date, fn func(context.Context, ledger.Repositories) error) error {
	return s.Store.Do(ctx, dates, func(ctx context.Context, repos ledger.Repositories) error {
		repos.Daily = failingDaily{DailyRepository: repos.Daily, err: s.err}
		return fn(ctx, repos)
	})
}

func TestSaveGame_RecomputeFailureKeepsCommittedState(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	original, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date:   "2025-06-08",
		Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1})},
	})
	require.NoError(t, err)
	sumsBefore := f.summaries(t, "2025-06-08")

	diskFull := errors.New("disk full")
	broken := command.NewSaveGameHandler(faultyStore{Store: f.store, err: diskFull}, nil, logger.Discard())

	_, err = broken.Handle(ctx, command.SaveGameCommand{
		GameID: original.Game.ID,
		Date:   "2025-06-08",
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 1, "Ben": 2, "Chi": 3, "Dan": 4})},
	})
	require.Error(t, err)
	assert.True(t, shared.IsRecomputeFailed(err))
	assert.ErrorIs(t, err, diskFull)

	var rfe *shared.RecomputeFailedError
	require.True(t, errors.As(err, &rfe))
	assert.Equal(t, original.Game.ID, rfe.Key)

	stored, err := f.store.Repositories().Results.ListByGame(ctx, original.Game.ID)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(original.Results, stored))
	assert.Empty(t, cmp.Diff(sumsBefore, f.summaries(t, "2025-06-08")))
}

// interleavedStore runs before once, just ahead of the first unit of work,
// as if another request committed between the handler's read and its unit.
type interleavedStore struct {
	*memory.Store
	once   sync.Once
	before func()
}

func (s *interleavedStore) Do(ctx context.Context, dates []shared.Date, fn func(context.Context, ledger.Repositories) error) error {
	s.once.Do(s.before)
	return s.Store.Do(ctx, dates, fn)
}

func TestSaveGame_ConcurrentMoveRecomputesCommittedDate(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	rounds := []game.Scores{f.scores(map[string]int{"Aki": 40000, "Ben": 30000, "Chi": 20000, "Dan": 10000})}

	created, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2024-01-01", Roster: f.ids("Aki", "Ben", "Chi", "Dan"), Rounds: rounds,
	})
	require.NoError(t, err)

	racing := &interleavedStore{Store: f.store, before: func() {
		_, err := f.save.Handle(ctx, command.SaveGameCommand{GameID: created.Game.ID, Date: "2024-01-02", Rounds: rounds})
		require.NoError(t, err)
	}}
	slow := command.NewSaveGameHandler(racing, nil, logger.Discard())

	res, err := slow.Handle(ctx, command.SaveGameCommand{GameID: created.Game.ID, Date: "2024-01-03", Rounds: rounds})
	require.NoError(t, err)
	assert.Equal(t, []shared.Date{"2024-01-02", "2024-01-03"}, res.RecomputedDates)

	for _, d := range []shared.Date{"2024-01-01", "2024-01-02"} {
		results, err := f.store.Repositories().Results.ListByDate(ctx, d)
		require.NoError(t, err)
		assert.Empty(t, results, d)
		assert.Empty(t, f.summaries(t, d), d)
	}
	sums := f.summaries(t, "2024-01-03")
	require.Len(t, sums, 4)
	assert.Equal(t, 10, sums[0].RankPoint)
}

func TestDeleteGame_ConcurrentMoveClearsCommittedDate(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	rounds := []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1})}

	created, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2024-02-01", Roster: f.ids("Aki", "Ben", "Chi", "Dan"), Rounds: rounds,
	})
	require.NoError(t, err)

	racing := &interleavedStore{Store: f.store, before: func() {
		_, err := f.save.Handle(ctx, command.SaveGameCommand{GameID: created.Game.ID, Date: "2024-02-02", Rounds: rounds})
		require.NoError(t, err)
	}}
	del := command.NewDeleteGameHandler(racing, nil, logger.Discard())

	res, err := del.Handle(ctx, command.DeleteGameCommand{GameID: created.Game.ID})
	require.NoError(t, err)
	assert.Equal(t, shared.Date("2024-02-02"), res.Date)
	assert.Equal(t, 4, res.RemovedResults)

	assert.Empty(t, f.summaries(t, "2024-02-01"))
	assert.Empty(t, f.summaries(t, "2024-02-02"))
}

func TestDeleteGame_RecomputesOnlyItsDate(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	roster := f.ids("Aki", "Ben", "Chi", "Dan")

	g1, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2025-06-09", Roster: roster,
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 40000, "Ben": 30000, "Chi": 20000, "Dan": 10000})},
	})
	require.NoError(t, err)
	_, err = f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2025-06-09", Roster: roster,
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 10000, "Ben": 20000, "Chi": 30000, "Dan": 45000})},
	})
	require.NoError(t, err)
	_, err = f.save.Handle(ctx, command.SaveGameCommand{
		Date: "2025-06-10", Roster: roster,
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 1, "Ben": 2, "Chi": 3, "Dan": 4})},
	})
	require.NoError(t, err)

	otherDay := f.summaries(t, "2025-06-10")

	res, err := f.delete.Handle(ctx, command.DeleteGameCommand{GameID: g1.Game.ID})
	require.NoError(t, err)
	assert.Equal(t, 4, res.RemovedResults)
	assert.Equal(t, shared.Date("2025-06-09"), res.Date)

	_, err = f.store.Repositories().Games.Get(ctx, g1.Game.ID)
	assert.True(t, shared.IsNotFound(err))
	gone, err := f.store.Repositories().Results.ListByGame(ctx, g1.Game.ID)
	require.NoError(t, err)
	assert.Empty(t, gone)

	sums := f.summaries(t, "2025-06-09")
	require.Len(t, sums, 4)
	assert.Equal(t, f.players["Dan"], sums[0].PlayerID)
	assert.Equal(t, 1, sums[0].RoundsPlayed)

	assert.Empty(t, cmp.Diff(otherDay, f.summaries(t, "2025-06-10")))

	_, err = f.delete.Handle(ctx, command.DeleteGameCommand{GameID: g1.Game.ID})
	assert.True(t, shared.IsNotFound(err))
}

func TestRebuildDaily_RepairsDrift(t *testing.T) {
	f := newFixture(t, "Aki", "Ben", "Chi", "Dan")
	ctx := context.Background()
	_, err := f.save.Handle(ctx, command.SaveGameCommand{
		Date:   "2025-06-11",
		Roster: f.ids("Aki", "Ben", "Chi", "Dan"),
		Rounds: []game.Scores{f.scores(map[string]int{"Aki": 4, "Ben": 3, "Chi": 2, "Dan": 1})},
	})
	require.NoError(t, err)
	want := f.summaries(t, "2025-06-11")

	repos := f.store.Repositories()
	require.NoError(t, repos.Daily.ReplaceForDate(ctx, "2025-06-11", []daily.Summary{{Date: "2025-06-11", PlayerID: "stale", RankPoint: 99}}))
	require.NoError(t, repos.Daily.ReplaceForDate(ctx, "2020-01-01", []daily.Summary{{Date: "2020-01-01", PlayerID: "orphan"}}))

	res, err := f.rebuild.Handle(ctx, command.RebuildDailyCommand{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rebuilt)
	assert.Equal(t, 1, res.Cleared)
	assert.Zero(t, res.Failed)

	assert.Empty(t, cmp.Diff(want, f.summaries(t, "2025-06-11")))
	assert.Empty(t, f.summaries(t, "2020-01-01"))

	types := f.events.types()
	assert.Equal(t, shared.EventDailyRebuilt, types[len(types)-1])
}

func TestRegisterPlayer_Validation(t *testing.T) {
	f := newFixture(t)
	h := command.NewRegisterPlayerHandler(f.store, nil, logger.Discard())

	p, err := h.Handle(context.Background(), command.RegisterPlayerCommand{Name: "  Sora  "})
	require.NoError(t, err)
	assert.Equal(t, "Sora", p.Name)

	_, err = h.Handle(context.Background(), command.RegisterPlayerCommand{Name: "   "})
	assert.ErrorIs(t, err, shared.ErrPlayerNameInvalid)
}
