package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mahjong-hub/mahjong-score-hub/internal/application/command"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/query"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/player"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/stats"
	"github.com/mahjong-hub/mahjong-score-hub/internal/infrastructure/persistence/memory"
	api "github.com/mahjong-hub/mahjong-score-hub/internal/interface/http"
	"github.com/mahjong-hub/mahjong-score-hub/internal/interface/http/handlers"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/logger"
	"github.com/mahjong-hub/mahjong-score-hub/pkg/timeutil"
)

const adminKey = "s3cret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T, hash string, checker handlers.HealthChecker) *testAPI {
	t.Helper()
	store := memory.NewStore()
	log := logger.Discard()
	builder := stats.NewBuilder(1)
	clock := timeutil.FixedClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), nil)

	cfg := api.DefaultConfig()
	cfg.AdminKeyHash = hash
	srv, err := api.NewServer(cfg, api.Dependencies{
		RegisterPlayer:  command.NewRegisterPlayerHandler(store, nil, log),
		SaveGame:        command.NewSaveGameHandler(store, nil, log),
		DeleteGame:      command.NewDeleteGameHandler(store, nil, log),
		ListPlayers:     query.NewListPlayersHandler(store),
		GetPlayerStats:  query.NewGetPlayerStatsHandler(store, nil, log),
		GetLeaderboards: query.NewGetLeaderboardsHandler(store, builder, nil, log),
		GetGame:         query.NewGetGameHandler(store),
		ListGames:       query.NewListGamesHandler(store),
		GetDaily:        query.NewGetDailySummariesHandler(store),
		GetDashboard:    query.NewGetDashboardHandler(store, builder, clock),
		Logger:          log,
		HealthChecker:   checker,
	})
	require.NoError(t, err)
	return &testAPI{t: t, handler: srv.Handler()}
}

func (a *testAPI) do(method, path string, body any, key string) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(handlers.AdminKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (a *testAPI) register(name string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/players", map[string]string{"name": name}, adminKey)
	require.Equal(a.t, http.StatusCreated, code)
	var p player.Player
	require.NoError(a.t, json.Unmarshal(env.Data, &p))
	return p.ID
}

func hashKey(t *testing.T) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(adminKey), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAPI_GameLifecycle(t *testing.T) {
	a := newTestAPI(t, hashKey(t), nil)
	aki, ben, chi, dan := a.register("Aki"), a.register("Ben"), a.register("Chi"), a.register("Dan")

	body := map[string]any{
		"date":   "2025-06-01",
		"venue":  "Club",
		"roster": []string{aki, ben, chi, dan},
		"rounds": []map[string]int{
			{aki: 40000, ben: 30000, chi: 20000, dan: 10000},
		},
	}
	code, env := a.do(http.MethodPost, "/api/games", body, adminKey)
	require.Equal(t, http.StatusCreated, code)
	var saved struct {
		Game struct {
			ID string `json:"id"`
		} `json:"game"`
		Results []struct {
			PlayerID string `json:"player_id"`
			Point    int    `json:"point"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	require.Len(t, saved.Results, 4)
	gameID := saved.Game.ID

	code, env = a.do(http.MethodGet, "/api/games/"+gameID, nil, "")
	require.Equal(t, http.StatusOK, code)
	var got query.GetGameResult
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got.Rounds, 1)
	assert.Equal(t, 12, got.Rounds[0].Seats[0].Point)
	assert.Equal(t, -12, got.Rounds[0].Seats[3].Point)

	code, env = a.do(http.MethodGet, "/api/daily/2025-06-01", nil, "")
	require.Equal(t, http.StatusOK, code)
	var day query.GetDailySummariesResult
	require.NoError(t, json.Unmarshal(env.Data, &day))
	require.Len(t, day.Entries, 4)
	assert.Equal(t, aki, day.Entries[0].PlayerID)

	code, env = a.do(http.MethodGet, "/api/leaderboards?view=total_score", nil, "")
	require.Equal(t, http.StatusOK, code)
	var boards query.GetLeaderboardsResult
	require.NoError(t, json.Unmarshal(env.Data, &boards))
	require.Len(t, boards.Views, 1)
	require.Len(t, boards.Views[stats.ViewTotalScore], 4)
	assert.Equal(t, "Aki", boards.Views[stats.ViewTotalScore][0].PlayerName)

	code, env = a.do(http.MethodGet, "/api/dashboard", nil, "")
	require.Equal(t, http.StatusOK, code)
	var dash query.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, 1, dash.TotalGames)
	assert.Equal(t, 1, dash.MonthlyGames)
	assert.Equal(t, 25000, dash.AverageScore)

	code, env = a.do(http.MethodGet, "/api/players/"+aki+"/stats", nil, "")
	require.Equal(t, http.StatusOK, code)
	var ps query.GetPlayerStatsResult
	require.NoError(t, json.Unmarshal(env.Data, &ps))
	assert.Equal(t, 1, ps.Stats.GamesPlayed)
	assert.Equal(t, 40000, ps.Stats.TotalScore)

	// moving the game clears the old date
	body["date"] = "2025-06-02"
	code, env = a.do(http.MethodPut, "/api/games/"+gameID, body, adminKey)
	require.Equal(t, http.StatusOK, code)
	var moved struct {
		Created         bool     `json:"created"`
		RecomputedDates []string `json:"recomputed_dates"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &moved))
	assert.False(t, moved.Created)
	assert.ElementsMatch(t, []string{"2025-06-01", "2025-06-02"}, moved.RecomputedDates)

	code, env = a.do(http.MethodGet, "/api/daily/2025-06-01", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &day))
	assert.Empty(t, day.Entries)

	code, _ = a.do(http.MethodDelete, "/api/games/"+gameID, nil, adminKey)
	require.Equal(t, http.StatusOK, code)

	code, env = a.do(http.MethodGet, "/api/games/"+gameID, nil, "")
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)

	code, env = a.do(http.MethodGet, "/api/games", nil, "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestAPI_AdminKey(t *testing.T) {
	a := newTestAPI(t, hashKey(t), nil)

	code, env := a.do(http.MethodPost, "/api/players", map[string]string{"name": "Aki"}, "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_admin_key", env.Error.Code)

	code, env = a.do(http.MethodPost, "/api/players", map[string]string{"name": "Aki"}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_admin_key", env.Error.Code)

	a.register("Aki")

	code, env = a.do(http.MethodGet, "/api/players", nil, "")
	require.Equal(t, http.StatusOK, code)
	var players []player.Player
	require.NoError(t, json.Unmarshal(env.Data, &players))
	require.Len(t, players, 1)
	assert.Equal(t, "Aki", players[0].Name)
}

func TestAPI_NoHashAllowsWrites(t *testing.T) {
	a := newTestAPI(t, "", nil)
	code, _ := a.do(http.MethodPost, "/api/players", map[string]string{"name": "Aki"}, "")
	assert.Equal(t, http.StatusCreated, code)
}

func TestAPI_ErrorMapping(t *testing.T) {
	a := newTestAPI(t, "", nil)
	aki, ben, chi, dan := a.register("Aki"), a.register("Ben"), a.register("Chi"), a.register("Dan")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "three scores in a round",
			method: http.MethodPost,
			path:   "/api/games",
			body: map[string]any{
				"date":   "2025-06-01",
				"roster": []string{aki, ben, chi, dan},
				"rounds": []map[string]int{{aki: 1, ben: 2, chi: 3}},
			},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "unknown roster player",
			method: http.MethodPost,
			path:   "/api/games",
			body: map[string]any{
				"date":   "2025-06-01",
				"roster": []string{aki, ben, chi, "ghost"},
				"rounds": []map[string]int{{aki: 1, ben: 2, chi: 3, "ghost": 4}},
			},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{name: "malformed body", method: http.MethodPost, path: "/api/players", body: "{", status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown field", method: http.MethodPost, path: "/api/players", body: `{"nick":"x"}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "bad date", method: http.MethodGet, path: "/api/daily/June-1", status: http.StatusBadRequest, code: "validation_error"},
		{name: "bad limit", method: http.MethodGet, path: "/api/games?limit=ten", status: http.StatusBadRequest, code: "validation_error"},
		{name: "negative limit", method: http.MethodGet, path: "/api/games?limit=-1", status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown view", method: http.MethodGet, path: "/api/leaderboards?view=luck", status: http.StatusBadRequest, code: "validation_error"},
		{name: "unknown player", method: http.MethodGet, path: "/api/players/nobody/stats", status: http.StatusNotFound, code: "not_found"},
		{name: "delete unknown game", method: http.MethodDelete, path: "/api/games/nope", status: http.StatusNotFound, code: "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := a.do(tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.status, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.False(t, env.Success)
		})
	}
}

func TestAPI_Health(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("store", func(context.Context) error { return nil })
	a := newTestAPI(t, "", checker)

	code, _ := a.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, code)

	checker.AddCheck("cache", func(context.Context) error { return errors.New("down") })
	code, env := a.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.False(t, status.Healthy)
	assert.False(t, status.Checks["cache"].Healthy)
	assert.True(t, status.Checks["store"].Healthy)
}

func TestAPI_RequestID(t *testing.T) {
	a := newTestAPI(t, "", nil)
	req := httptest.NewRequest(http.MethodGet, "/api/players", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "req-42", env.RequestID)
}

func TestNewServer_RejectsBadHash(t *testing.T) {
	cfg := api.DefaultConfig()
	cfg.AdminKeyHash = "plain-text"
	_, err := api.NewServer(cfg, api.Dependencies{})
	assert.Error(t, err)
}
