package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/daily"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/ledger"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// dateText renders DATE columns in the layout of shared.Date.
const dateText = "to_char(%s, 'YYYY-MM-DD')"

func dateCol(col string) string { return fmt.Sprintf(dateText, col) }

// executor is a Querier that can also run several statements atomically.
// Outside a unit of work each multi-statement write opens its own
// transaction; inside one it joins the unit's transaction.
type executor interface {
	Querier
	atomic(ctx context.Context, fn func(q Querier) error) error
}

type poolExecutor struct {
	*Connection
}

func (e poolExecutor) atomic(ctx context.Context, fn func(q Querier) error) error {
	return e.WithTx(ctx, func(tx pgx.Tx) error { return fn(tx) })
}

type txExecutor struct {
	pgx.Tx
}

func (e txExecutor) atomic(_ context.Context, fn func(q Querier) error) error {
	return fn(e.Tx)
}

func newRepositories(db executor) ledger.Repositories {
	return ledger.Repositories{
		Players: &PlayerRepository{db: db},
		Games:   &GameRepository{db: db},
		Results: &ResultRepository{db: db},
		Daily:   &DailyRepository{db: db},
		Locks:   dateLocker{db: db},
	}
}

// dateLocker takes transaction-scoped advisory locks. Outside a transaction
// each statement commits on its own and the lock is released at once.
type dateLocker struct {
	db Querier
}

// LockDates locks the dates in ascending order so two units never deadlock
// on each other.
func (l dateLocker) LockDates(ctx context.Context, dates []shared.Date) error {
	for _, d := range sortedDates(dates) {
		if _, err := l.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1, hashtext($2))`, advisoryNamespace, d.String()); err != nil {
			return fmt.Errorf("failed to lock date %s: %w", d, err)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// PlayerRepository implements ledger.PlayerRepository.
type PlayerRepository struct {
	db executor
}

// Create inserts a new player.
func (r *PlayerRepository) Create(ctx context.Context, p *player.Player) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO players (id, name, registered_at) VALUES ($1, $2, $3)`,
		p.ID, p.Name, p.RegisteredAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrPlayerExists
		}
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

// Get returns a player by id.
func (r *PlayerRepository) Get(ctx context.Context, id string) (*player.Player, error) {
	var p player.Player
	err := r.db.QueryRow(ctx,
		`SELECT id, name, registered_at FROM players WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.RegisteredAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	p.RegisteredAt = p.RegisteredAt.UTC()
	return &p, nil
}

// List returns every player ordered by name, then id.
func (r *PlayerRepository) List(ctx context.Context) ([]*player.Player, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, registered_at FROM players`)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var out []*player.Player
	for rows.Next() {
		var p player.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		p.RegisteredAt = p.RegisteredAt.UTC()
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	player.SortByName(out)
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GAME REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// GameRepository implements ledger.GameRepository.
type GameRepository struct {
	db executor
}

var selectGames = `
	SELECT g.id, ` + dateCol("g.played_on") + `, g.venue, g.created_at, g.updated_at,
	       COALESCE((SELECT array_agg(gp.player_id ORDER BY gp.seat)
	                 FROM game_players gp WHERE gp.game_id = g.id), '{}')
	FROM games g`

// Save inserts or updates a game header. Seats are written on insert only.
func (r *GameRepository) Save(ctx context.Context, g *game.Game) error {
	return r.db.atomic(ctx, func(q Querier) error {
		var inserted bool
		err := q.QueryRow(ctx, `
			INSERT INTO games (id, played_on, venue, created_at, updated_at)
			VALUES ($1, $2::date, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				played_on = EXCLUDED.played_on,
				venue = EXCLUDED.venue,
				updated_at = EXCLUDED.updated_at
			RETURNING (xmax = 0)`,
			g.ID, g.Date.String(), g.Venue, g.CreatedAt, g.UpdatedAt,
		).Scan(&inserted)
		if err != nil {
			return fmt.Errorf("failed to save game: %w", err)
		}
		if !inserted {
			return nil
		}

		seats := make([]int, len(g.Roster))
		for i := range g.Roster {
			seats[i] = i
		}
		_, err = q.Exec(ctx, `
			INSERT INTO game_players (game_id, seat, player_id)
			SELECT $1, s.seat, s.player_id
			FROM unnest($2::int[], $3::text[]) AS s(seat, player_id)`,
			g.ID, seats, g.Roster,
		)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return shared.NewDomainError("game", "Save", shared.ErrInvalidInput, "roster references an unknown player")
			}
			return fmt.Errorf("failed to save roster: %w", err)
		}
		return nil
	})
}

func scanGame(row pgx.Row) (*game.Game, error) {
	var (
		g    game.Game
		date string
	)
	if err := row.Scan(&g.ID, &date, &g.Venue, &g.CreatedAt, &g.UpdatedAt, &g.Roster); err != nil {
		return nil, err
	}
	g.Date = shared.Date(date)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	return &g, nil
}

// Get returns a game with its roster in seat order.
func (r *GameRepository) Get(ctx context.Context, id string) (*game.Game, error) {
	g, err := scanGame(r.db.QueryRow(ctx, selectGames+` WHERE g.id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return g, nil
}

// GetForUpdate returns a game and holds its row lock until the transaction
// ends.
func (r *GameRepository) GetForUpdate(ctx context.Context, id string) (*game.Game, error) {
	g, err := scanGame(r.db.QueryRow(ctx, selectGames+` WHERE g.id = $1 FOR UPDATE OF g`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to lock game: %w", err)
	}
	return g, nil
}

// List returns games newest first.
func (r *GameRepository) List(ctx context.Context) ([]*game.Game, error) {
	rows, err := r.db.Query(ctx, selectGames)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var out []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	game.SortNewestFirst(out)
	return out, nil
}

// Delete removes a game. Seats and results go with it by cascade.
func (r *GameRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrGameNotFound
	}
	return nil
}

// CountSince counts games dated on or after since.
func (r *GameRepository) CountSince(ctx context.Context, since shared.Date) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM games WHERE played_on >= $1::date`, since.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESULT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ResultRepository implements ledger.ResultRepository.
type ResultRepository struct {
	db executor
}

var selectResults = `
	SELECT game_id, ` + dateCol("played_on") + `, hanso_number, player_id, score, rank, point
	FROM game_results`

// ReplaceForGame swaps every result of the game for results.
func (r *ResultRepository) ReplaceForGame(ctx context.Context, gameID string, results []game.RoundResult) error {
	return r.db.atomic(ctx, func(q Querier) error {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM games WHERE id = $1)`, gameID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check game: %w", err)
		}
		if !exists {
			return shared.ErrGameNotFound
		}

		if _, err := q.Exec(ctx, `DELETE FROM game_results WHERE game_id = $1`, gameID); err != nil {
			return fmt.Errorf("failed to clear results: %w", err)
		}
		if len(results) == 0 {
			return nil
		}

		n := len(results)
		var (
			rounds  = make([]int, n)
			players = make([]string, n)
			dates   = make([]string, n)
			scores  = make([]int, n)
			ranks   = make([]int, n)
			points  = make([]int, n)
		)
		for i, res := range results {
			rounds[i] = res.RoundNumber
			players[i] = res.PlayerID
			dates[i] = res.Date.String()
			scores[i] = res.Score
			ranks[i] = res.Rank.Int()
			points[i] = res.Point.Int()
		}

		_, err := q.Exec(ctx, `
			INSERT INTO game_results (game_id, hanso_number, player_id, played_on, score, rank, point)
			SELECT $1, r.n, r.p, r.d::date, r.s, r.k::smallint, r.pt
			FROM unnest($2::int[], $3::text[], $4::text[], $5::int[], $6::int[], $7::int[])
				AS r(n, p, d, s, k, pt)`,
			gameID, rounds, players, dates, scores, ranks, points,
		)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return shared.NewDomainError("result", "ReplaceForGame", shared.ErrInvalidInput, "result references an unknown player")
			}
			return fmt.Errorf("failed to insert results: %w", err)
		}
		return nil
	})
}

func (r *ResultRepository) list(ctx context.Context, where string, args ...interface{}) ([]game.RoundResult, error) {
	rows, err := r.db.Query(ctx, selectResults+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []game.RoundResult
	for rows.Next() {
		var (
			res                game.RoundResult
			date               string
			rank, point, score int
		)
		if err := rows.Scan(&res.GameID, &date, &res.RoundNumber, &res.PlayerID, &score, &rank, &point); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Date = shared.Date(date)
		res.Score = score
		res.Rank = shared.Rank(rank)
		res.Point = shared.Point(point)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	game.SortResults(out)
	return out, nil
}

// ListByGame returns the game's results.
func (r *ResultRepository) ListByGame(ctx context.Context, gameID string) ([]game.RoundResult, error) {
	return r.list(ctx, ` WHERE game_id = $1`, gameID)
}

// ListByPlayer returns the player's results.
func (r *ResultRepository) ListByPlayer(ctx context.Context, playerID string) ([]game.RoundResult, error) {
	return r.list(ctx, ` WHERE player_id = $1`, playerID)
}

// ListByDate returns every result of the date.
func (r *ResultRepository) ListByDate(ctx context.Context, date shared.Date) ([]game.RoundResult, error) {
	return r.list(ctx, ` WHERE played_on = $1::date`, date.String())
}

// ListAll returns every result.
func (r *ResultRepository) ListAll(ctx context.Context) ([]game.RoundResult, error) {
	return r.list(ctx, "")
}

// DeleteForGame removes the game's results.
func (r *ResultRepository) DeleteForGame(ctx context.Context, gameID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM game_results WHERE game_id = $1`, gameID); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// DailyRepository implements ledger.DailyRepository.
type DailyRepository struct {
	db executor
}

var selectSummaries = `
	SELECT ` + dateCol("played_on") + `, player_id, rounds_played, total_score,
	       average_rank, first_place_count, daily_rank, rank_point
	FROM daily_summaries`

// ReplaceForDate swaps the date's summaries. An empty slice clears the date.
func (r *DailyRepository) ReplaceForDate(ctx context.Context, date shared.Date, summaries []daily.Summary) error {
	return r.db.atomic(ctx, func(q Querier) error {
		if _, err := q.Exec(ctx, `DELETE FROM daily_summaries WHERE played_on = $1::date`, date.String()); err != nil {
			return fmt.Errorf("failed to clear summaries: %w", err)
		}
		if len(summaries) == 0 {
			return nil
		}

		n := len(summaries)
		var (
			players  = make([]string, n)
			rounds   = make([]int, n)
			totals   = make([]int, n)
			avgRanks = make([]float64, n)
			firsts   = make([]int, n)
			ranks    = make([]int, n)
			points   = make([]int, n)
		)
		for i, s := range summaries {
			players[i] = s.PlayerID
			rounds[i] = s.RoundsPlayed
			totals[i] = s.TotalScore
			avgRanks[i] = s.AverageRank
			firsts[i] = s.FirstPlaceCount
			ranks[i] = s.DailyRank
			points[i] = s.RankPoint
		}

		_, err := q.Exec(ctx, `
			INSERT INTO daily_summaries (played_on, player_id, rounds_played, total_score,
				average_rank, first_place_count, daily_rank, rank_point)
			SELECT $1::date, s.p, s.rp, s.ts, s.ar, s.fp, s.dr, s.pt
			FROM unnest($2::text[], $3::int[], $4::int[], $5::float8[], $6::int[], $7::int[], $8::int[])
				AS s(p, rp, ts, ar, fp, dr, pt)`,
			date.String(), players, rounds, totals, avgRanks, firsts, ranks, points,
		)
		if err != nil {
			return fmt.Errorf("failed to insert summaries: %w", err)
		}
		return nil
	})
}

func (r *DailyRepository) list(ctx context.Context, where string, args ...interface{}) ([]daily.Summary, error) {
	rows, err := r.db.Query(ctx, selectSummaries+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var out []daily.Summary
	for rows.Next() {
		var (
			s    daily.Summary
			date string
		)
		if err := rows.Scan(&date, &s.PlayerID, &s.RoundsPlayed, &s.TotalScore,
			&s.AverageRank, &s.FirstPlaceCount, &s.DailyRank, &s.RankPoint); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		s.Date = shared.Date(date)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	daily.Sort(out)
	return out, nil
}

// ListByDate returns the date's summaries ordered by daily rank.
func (r *DailyRepository) ListByDate(ctx context.Context, date shared.Date) ([]daily.Summary, error) {
	return r.list(ctx, ` WHERE played_on = $1::date`, date.String())
}

// ListByPlayer returns the player's summaries, oldest first.
func (r *DailyRepository) ListByPlayer(ctx context.Context, playerID string) ([]daily.Summary, error) {
	return r.list(ctx, ` WHERE player_id = $1`, playerID)
}

// ListAll returns every summary.
func (r *DailyRepository) ListAll(ctx context.Context) ([]daily.Summary, error) {
	return r.list(ctx, "")
}

// Dates returns every date with at least one summary, ascending.
func (r *DailyRepository) Dates(ctx context.Context) ([]shared.Date, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT `+dateCol("played_on")+` AS d FROM daily_summaries ORDER BY d`)
	if err != nil {
		return nil, fmt.Errorf("failed to list summary dates: %w", err)
	}
	defer rows.Close()

	var out []shared.Date
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan date: %w", err)
		}
		out = append(out, shared.Date(d))
	}
	return out, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// UNIT OF WORK
// ══════════════════════════════════════════════════════════════════════════════

// advisoryNamespace is the first key of the per-date advisory locks.
const advisoryNamespace int32 = 0x4d4a // "MJ"

// Store implements ledger.UnitOfWork over a connection pool.
type Store struct {
	conn    *Connection
	timeout time.Duration
}

// NewStore creates a Store. timeout bounds each unit of work; zero means the
// caller's context alone.
func NewStore(conn *Connection, timeout time.Duration) *Store {
	return &Store{conn: conn, timeout: timeout}
}

// Repositories returns collections reading committed state.
func (s *Store) Repositories() ledger.Repositories {
	return newRepositories(poolExecutor{s.conn})
}

// Do runs fn in one ReadCommitted transaction. Dates given up front are
// locked before fn runs, in date order so two units never deadlock on each
// other.
func (s *Store) Do(ctx context.Context, dates []shared.Date, fn func(ctx context.Context, repos ledger.Repositories) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		repos := newRepositories(txExecutor{tx})
		if len(dates) > 0 {
			if err := repos.Locks.LockDates(ctx, dates); err != nil {
				return err
			}
		}
		return fn(ctx, repos)
	})
}

// Ping checks the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func sortedDates(dates []shared.Date) []shared.Date {
	seen := make(map[shared.Date]struct{}, len(dates))
	out := make([]shared.Date, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}
