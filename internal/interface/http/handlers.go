package http

import (
	"net/http"

	"github.com/mahjong-hub/mahjong-score-hub/internal/application/command"
	"github.com/mahjong-hub/mahjong-score-hub/internal/application/query"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/game"
	"github.com/mahjong-hub/mahjong-score-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARDS & DASHBOARD
// ══════════════════════════════════════════════════════════════════════════════

// handleGetLeaderboards handles GET /api/leaderboards?view=
func (s *Server) handleGetLeaderboards(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetLeaderboards.Handle(r.Context(), query.GetLeaderboardsQuery{
		View: r.URL.Query().Get("view"),
	})
	if err != nil {
		s.writeError(w, r, "GetLeaderboards", err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleGetDashboard handles GET /api/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetDashboard.Handle(r.Context(), query.GetDashboardQuery{})
	if err != nil {
		s.writeError(w, r, "GetDashboard", err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAYERS
// ══════════════════════════════════════════════════════════════════════════════

type registerPlayerRequest struct {
	Name string `json:"name"`
}

// handleListPlayers handles GET /api/players
func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.deps.ListPlayers.Handle(r.Context(), query.ListPlayersQuery{})
	if err != nil {
		s.writeError(w, r, "ListPlayers", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, players, &ResponseMeta{TotalCount: len(players)})
}

// handleRegisterPlayer handles POST /api/players
func (s *Server) handleRegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req registerPlayerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, "RegisterPlayer", err)
		return
	}
	p, err := s.deps.RegisterPlayer.Handle(r.Context(), command.RegisterPlayerCommand{Name: req.Name})
	if err != nil {
		s.writeError(w, r, "RegisterPlayer", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, p)
}

// handleGetPlayerStats handles GET /api/players/{id}/stats?recent=
func (s *Server) handleGetPlayerStats(w http.ResponseWriter, r *http.Request) {
	recent, err := getQueryParamInt(r, "recent", 0)
	if err != nil {
		s.writeError(w, r, "GetPlayerStats", err)
		return
	}
	res, err := s.deps.GetPlayerStats.Handle(r.Context(), query.GetPlayerStatsQuery{
		PlayerID:    r.PathValue("id"),
		RecentLimit: recent,
	})
	if err != nil {
		s.writeError(w, r, "GetPlayerStats", err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// GAMES
// ══════════════════════════════════════════════════════════════════════════════

type saveGameRequest struct {
	Date   string        `json:"date"`
	Venue  string        `json:"venue"`
	Roster []string      `json:"roster"`
	Rounds []game.Scores `json:"rounds"`
}

type saveGameResponse struct {
	Game            *game.Game         `json:"game"`
	Results         []game.RoundResult `json:"results"`
	Created         bool               `json:"created"`
	RecomputedDates []shared.Date      `json:"recomputed_dates"`
}

// handleListGames handles GET /api/games?limit=
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	limit, err := getQueryParamInt(r, "limit", 0)
	if err != nil {
		s.writeError(w, r, "ListGames", err)
		return
	}
	items, err := s.deps.ListGames.Handle(r.Context(), query.ListGamesQuery{Limit: limit})
	if err != nil {
		s.writeError(w, r, "ListGames", err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, items, &ResponseMeta{TotalCount: len(items)})
}

// handleGetGame handles GET /api/games/{id}
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetGame.Handle(r.Context(), query.GetGameQuery{GameID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, "GetGame", err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// handleCreateGame handles POST /api/games
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	s.saveGame(w, r, "")
}

// handleUpdateGame handles PUT /api/games/{id}
func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	s.saveGame(w, r, r.PathValue("id"))
}

func (s *Server) saveGame(w http.ResponseWriter, r *http.Request, gameID string) {
	var req saveGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, "SaveGame", err)
		return
	}
	res, err := s.deps.SaveGame.Handle(r.Context(), command.SaveGameCommand{
		GameID:        gameID,
		Date:          req.Date,
		Venue:         req.Venue,
		Roster:        req.Roster,
		Rounds:        req.Rounds,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, "SaveGame", err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, saveGameResponse{
		Game:            res.Game,
		Results:         res.Results,
		Created:         res.Created,
		RecomputedDates: res.RecomputedDates,
	})
}

// handleDeleteGame handles DELETE /api/games/{id}
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.DeleteGame.Handle(r.Context(), command.DeleteGameCommand{
		GameID:        r.PathValue("id"),
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, "DeleteGame", err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"game_id":         res.GameID,
		"date":            res.Date,
		"removed_results": res.RemovedResults,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY
// ══════════════════════════════════════════════════════════════════════════════

// handleGetDaily handles GET /api/daily/{date}
func (s *Server) handleGetDaily(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetDaily.Handle(r.Context(), query.GetDailySummariesQuery{Date: r.PathValue("date")})
	if err != nil {
		s.writeError(w, r, "GetDailySummaries", err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}
