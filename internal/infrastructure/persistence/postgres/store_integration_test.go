//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("mahjong"),
		tcpostgres.WithUsername("club"),
		tcpostgres.WithPassword("club"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := NewConnection(ctx, DefaultConfig(url))
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	require.NoError(t, NewMigrator(conn).Migrate(ctx))
	return NewStore(conn, 10*time.Second)
}

func seedPlayers(t *testing.T, repos ledger.Repositories, ids ...string) {
	t.Helper()
	for _, id := range ids {
		p, err := player.New(id, "Player "+id, ledger.Stamp())
		require.NoError(t, err)
		require.NoError(t, repos.Players.Create(context.Background(), p))
	}
}

func newTestGame(t *testing.T, id string, date shared.Date, roster []string) *game.Game {
	t.Helper()
	g, err := game.NewGame(game.NewGameParams{ID: id, Date: date.String(), Roster: roster, Now: ledger.Stamp()})
	require.NoError(t, err)
	return g
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	store := setupStore(t)
	ctx := context.Background()
	repos := store.Repositories()
	roster := []string{"p1", "p2", "p3", "p4"}
	seedPlayers(t, repos, roster...)

	t.Run("migrations are recorded", func(t *testing.T) {
		status, err := NewMigrator(store.conn).Status(ctx)
		require.NoError(t, err)
		for _, m := range status {
			assert.True(t, m.IsApplied, m.Name)
		}
	})

	t.Run("duplicate player", func(t *testing.T) {
		p, _ := player.New("p1", "Again", ledger.Stamp())
		err := repos.Players.Create(ctx, p)
		assert.True(t, shared.IsAlreadyExists(err))
	})

	g := newTestGame(t, "g1", "2025-06-01", roster)
	results, err := game.Aggregate(g, []game.Scores{
		{"p1": 32000, "p2": 25000, "p3": 23000, "p4": 20000},
		{"p1": 30000, "p2": 30000, "p3": 20000, "p4": 20000},
	})
	require.NoError(t, err)

	t.Run("unit of work commits game, results and summaries", func(t *testing.T) {
		err := store.Do(ctx, []shared.Date{g.Date}, func(ctx context.Context, tx ledger.Repositories) error {
			if err := tx.Games.Save(ctx, g); err != nil {
				return err
			}
			if err := tx.Results.ReplaceForGame(ctx, g.ID, results); err != nil {
				return err
			}
			return tx.Daily.ReplaceForDate(ctx, g.Date, daily.Rollup(g.Date, results))
		})
		require.NoError(t, err)

		stored, err := repos.Games.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, roster, stored.Roster)
		assert.Equal(t, shared.Date("2025-06-01"), stored.Date)

		got, err := repos.Results.ListByGame(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, results, got)

		sums, err := repos.Daily.ListByDate(ctx, "2025-06-01")
		require.NoError(t, err)
		require.Len(t, sums, 4)
		assert.Equal(t, "p1", sums[0].PlayerID)
		assert.Equal(t, 10, sums[0].RankPoint)
	})

	t.Run("failed unit rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Do(ctx, []shared.Date{g.Date}, func(ctx context.Context, tx ledger.Repositories) error {
			if err := tx.Results.ReplaceForGame(ctx, g.ID, nil); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repos.Results.ListByGame(ctx, "g1")
		require.NoError(t, err)
		assert.Len(t, got, 8)
	})

	t.Run("save keeps roster and moves date", func(t *testing.T) {
		moved := *g
		moved.Date = "2025-06-02"
		moved.Roster = []string{"p4", "p3", "p2", "p1"}
		require.NoError(t, repos.Games.Save(ctx, &moved))

		stored, err := repos.Games.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, roster, stored.Roster)
		assert.Equal(t, shared.Date("2025-06-02"), stored.Date)

		n, err := repos.Games.CountSince(ctx, "2025-06-02")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("empty replace clears a date", func(t *testing.T) {
		require.NoError(t, repos.Daily.ReplaceForDate(ctx, "2025-06-01", nil))
		dates, err := repos.Daily.Dates(ctx)
		require.NoError(t, err)
		assert.Empty(t, dates)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, repos.Games.Delete(ctx, "g1"))

		_, err := repos.Games.Get(ctx, "g1")
		assert.True(t, shared.IsNotFound(err))

		all, err := repos.Results.ListAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)

		assert.True(t, shared.IsNotFound(repos.Games.Delete(ctx, "g1")))
	})

	t.Run("unknown roster player", func(t *testing.T) {
		bad := newTestGame(t, "g2", "2025-06-03", []string{"p1", "p2", "p3", "ghost"})
		err := repos.Games.Save(ctx, bad)
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("edits of one game wait for its lock", func(t *testing.T) {
		g := newTestGame(t, "g9", "2025-07-01", roster)
		require.NoError(t, repos.Games.Save(ctx, g))

		held := make(chan struct{})
		release := make(chan struct{})
		first := make(chan error, 1)
		go func() {
			first <- store.Do(ctx, nil, func(ctx context.Context, r ledger.Repositories) error {
				locked, err := r.Games.GetForUpdate(ctx, "g9")
				if err != nil {
					return err
				}
				close(held)
				<-release
				locked.Reschedule("2025-07-02", "", ledger.Stamp())
				return r.Games.Save(ctx, locked)
			})
		}()
		select {
		case <-held:
		case err := <-first:
			t.Fatalf("first unit ended early: %v", err)
		}

		var seen shared.Date
		second := make(chan error, 1)
		go func() {
			second <- store.Do(ctx, nil, func(ctx context.Context, r ledger.Repositories) error {
				if err := r.Locks.LockDates(ctx, []shared.Date{"2025-07-01"}); err != nil {
					return err
				}
				got, err := r.Games.GetForUpdate(ctx, "g9")
				if err == nil {
					seen = got.Date
				}
				return err
			})
		}()

		select {
		case err := <-second:
			t.Fatalf("second unit did not wait: %v", err)
		case <-time.After(200 * time.Millisecond):
		}
		close(release)
		require.NoError(t, <-first)
		require.NoError(t, <-second)
		assert.Equal(t, shared.Date("2025-07-02"), seen)
	})

	t.Run("migrations roll back", func(t *testing.T) {
		m := NewMigrator(store.conn)
		require.NoError(t, m.Rollback(ctx))
		status, err := m.Status(ctx)
		require.NoError(t, err)
		assert.False(t, status[len(status)-1].IsApplied)
		require.NoError(t, m.Migrate(ctx))
	})
}
