package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Migration is one numbered schema step.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator applies the embedded schema, one transaction per step, and
// records each step in schema_migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
}

// NewMigrator creates a migrator for the ledger schema.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn, migrations: GetMigrations()}
}

func (m *Migrator) applied(ctx context.Context) (map[int]time.Time, error) {
	if _, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	rows, err := m.conn.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("%w: read schema_migrations: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	out := make(map[int]time.Time)
	for rows.Next() {
		var (
			v  int
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		out[v] = at
	}
	return out, rows.Err()
}

// Migrate applies every step not yet recorded, in version order.
func (m *Migrator) Migrate(ctx context.Context) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if _, ok := done[mig.Version]; ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
	}
	return nil
}

// Rollback reverts the newest applied step. No step applied is not an error.
func (m *Migrator) Rollback(ctx context.Context) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for i := len(m.migrations) - 1; i >= 0; i-- {
		mig := m.migrations[i]
		if _, ok := done[mig.Version]; !ok {
			continue
		}
		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.DownSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `DELETE FROM schema_migrations WHERE version = $1`, mig.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: revert %03d_%s: %v", ErrMigrationFailed, mig.Version, mig.Name, err)
		}
		return nil
	}
	return nil
}

// Status lists every step with its applied flag.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, len(m.migrations))
	for i, mig := range m.migrations {
		if at, ok := done[mig.Version]; ok {
			mig.IsApplied = true
			mig.AppliedAt = at
		}
		out[i] = mig
	}
	return out, nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_players",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_games",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_daily_summaries",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PLAYERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS players (
    id TEXT PRIMARY KEY,
    name VARCHAR(50) NOT NULL,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_player_name CHECK (length(btrim(name)) > 0)
);

CREATE INDEX IF NOT EXISTS idx_players_name ON players(name);
`

const migration001Down = `
DROP TABLE IF EXISTS players;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE GAMES, ROSTERS AND ROUND RESULTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS games (
    id TEXT PRIMARY KEY,
    played_on DATE NOT NULL,
    venue VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_games_played_on ON games(played_on DESC, created_at DESC);

-- Seats are fixed when the game is created.
CREATE TABLE IF NOT EXISTS game_players (
    game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    seat SMALLINT NOT NULL,
    player_id TEXT NOT NULL REFERENCES players(id),

    PRIMARY KEY (game_id, seat),
    CONSTRAINT unique_game_player UNIQUE (game_id, player_id),
    CONSTRAINT valid_seat CHECK (seat BETWEEN 0 AND 3)
);

-- One row per (game, round, player). played_on mirrors games.played_on so
-- the daily rollup reads a single table.
CREATE TABLE IF NOT EXISTS game_results (
    game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    hanso_number INTEGER NOT NULL,
    player_id TEXT NOT NULL REFERENCES players(id),
    played_on DATE NOT NULL,
    score INTEGER NOT NULL,
    rank SMALLINT NOT NULL,
    point INTEGER NOT NULL,

    PRIMARY KEY (game_id, hanso_number, player_id),
    CONSTRAINT valid_hanso_number CHECK (hanso_number > 0),
    CONSTRAINT valid_rank CHECK (rank BETWEEN 1 AND 4)
);

CREATE INDEX IF NOT EXISTS idx_game_results_player ON game_results(player_id);
CREATE INDEX IF NOT EXISTS idx_game_results_played_on ON game_results(played_on);
`

const migration002Down = `
DROP TABLE IF EXISTS game_results;
DROP TABLE IF EXISTS game_players;
DROP TABLE IF EXISTS games;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE DAILY SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS daily_summaries (
    played_on DATE NOT NULL,
    player_id TEXT NOT NULL REFERENCES players(id),
    rounds_played INTEGER NOT NULL,
    total_score INTEGER NOT NULL,
    average_rank DOUBLE PRECISION NOT NULL,
    first_place_count INTEGER NOT NULL,
    daily_rank INTEGER NOT NULL,
    rank_point INTEGER NOT NULL,

    PRIMARY KEY (played_on, player_id),
    CONSTRAINT valid_rounds_played CHECK (rounds_played > 0),
    CONSTRAINT valid_daily_rank CHECK (daily_rank > 0)
);

CREATE INDEX IF NOT EXISTS idx_daily_summaries_player ON daily_summaries(player_id);
`

const migration003Down = `
DROP TABLE IF EXISTS daily_summaries;
`
