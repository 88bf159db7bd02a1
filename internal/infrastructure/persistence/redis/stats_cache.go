package redis

import (
	"context"
	"errors"
	"time"

	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/stats"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/circuitbreaker"
)

// StatsCache caches leaderboard views and per-player profiles. A miss is
// reported as ok=false with a nil error.
type StatsCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewStatsCache creates a StatsCache. A non-positive ttl uses TTLStatsCache.
func NewStatsCache(cache *Cache, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = TTLStatsCache
	}
	return &StatsCache{cache: cache, ttl: ttl}
}

// NewCacheBreaker returns a breaker tuned for the cache. Misses and
// cancelled requests do not count as failures.
func NewCacheBreaker(onStateChange func(name string, from, to circuitbreaker.State)) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New("redis-cache",
		circuitbreaker.WithFailureThreshold(5),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithTimeout(15*time.Second),
		circuitbreaker.WithOnStateChange(onStateChange),
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, ErrCacheMiss) && !errors.Is(err, context.Canceled)
		}),
	)
}

// WithBreaker guards reads and writes with cb. Invalidations bypass it so
// a half-recovered cache is never left holding stale views.
func (s *StatsCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *StatsCache {
	s.breaker = cb
	return s
}

func (s *StatsCache) guard(ctx context.Context, fn func(context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	return s.breaker.Execute(ctx, fn)
}

func (s *StatsCache) generation(ctx context.Context, key string) (int64, error) {
	var gen int64
	err := s.guard(ctx, func(ctx context.Context) error {
		var err error
		gen, err = s.cache.Counter(ctx, key)
		return err
	})
	return gen, err
}

// GetLeaderboards returns the cached views together with the generation they
// were looked up under. On a miss the generation is still valid and is what
// SetLeaderboards expects for views loaded afterwards.
func (s *StatsCache) GetLeaderboards(ctx context.Context) (stats.Leaderboards, int64, bool, error) {
	gen, err := s.generation(ctx, KeyLeaderboardGeneration)
	if err != nil {
		return nil, 0, false, err
	}
	var boards stats.Leaderboards
	err = s.guard(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, LeaderboardViewsKey(gen), &boards)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, gen, false, nil
		}
		return nil, 0, false, err
	}
	return boards, gen, true, nil
}

// SetLeaderboards stores every view as one document of generation gen.
func (s *StatsCache) SetLeaderboards(ctx context.Context, gen int64, boards stats.Leaderboards) error {
	return s.guard(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, LeaderboardViewsKey(gen), boards, s.ttl)
	})
}

// GetPlayerProfile returns the cached profile of one player and the
// generation it was looked up under.
func (s *StatsCache) GetPlayerProfile(ctx context.Context, playerID string) (*stats.PlayerProfile, int64, bool, error) {
	gen, err := s.generation(ctx, KeyPlayerStatsGeneration)
	if err != nil {
		return nil, 0, false, err
	}
	var ps stats.PlayerProfile
	err = s.guard(ctx, func(ctx context.Context) error {
		return s.cache.Get(ctx, PlayerStatsKey(gen, playerID), &ps)
	})
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, gen, false, nil
		}
		return nil, 0, false, err
	}
	return &ps, gen, true, nil
}

// SetPlayerProfile stores the profile of one player under generation gen.
func (s *StatsCache) SetPlayerProfile(ctx context.Context, gen int64, ps *stats.PlayerProfile) error {
	if ps == nil {
		return ErrCacheNilValue
	}
	return s.guard(ctx, func(ctx context.Context) error {
		return s.cache.Set(ctx, PlayerStatsKey(gen, ps.Stats.PlayerID), ps, s.ttl)
	})
}

// InvalidateLeaderboards retires the current views by moving to the next
// generation.
func (s *StatsCache) InvalidateLeaderboards(ctx context.Context) error {
	_, err := s.cache.Incr(ctx, KeyLeaderboardGeneration)
	return err
}

// InvalidateAllPlayerStats retires every cached player record at once.
func (s *StatsCache) InvalidateAllPlayerStats(ctx context.Context) error {
	_, err := s.cache.Incr(ctx, KeyPlayerStatsGeneration)
	return err
}
