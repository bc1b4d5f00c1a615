package handlers

import (
	"net/http"
	"strings"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/stats"
)

// Players lists the roster pool on GET and upserts a player on POST
func (h *APIHandlers) Players(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		players, err := h.repo.ListPlayers(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, players)
		return
	}

	var p models.Player
	if !decode(w, r, &p) {
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		writeMessage(w, http.StatusBadRequest, "player name is required")
		return
	}
	saved, err := h.repo.SavePlayer(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *APIHandlers) ListGames(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	games, err := h.repo.ListGames(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

// GameEvents returns a stored game's events, newest first
func (h *APIHandlers) GameEvents(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		writeMessage(w, http.StatusBadRequest, "missing gameId parameter")
		return
	}
	events, err := h.repo.ListEventsByGame(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// PlayerStats summarizes one player across every stored game
func (h *APIHandlers) PlayerStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		writeMessage(w, http.StatusBadRequest, "missing playerId parameter")
		return
	}
	ctx := r.Context()

	games, err := h.repo.ListGames(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	byGame := make(map[string][]models.Event, len(games))
	for _, g := range games {
		events, err := h.repo.ListEventsByGame(ctx, g.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		byGame[g.ID] = events
	}
	lineups, err := h.repo.ListLineups(ctx, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats.PlayerSummary(playerID, games, byGame, lineups))
}

// GameStats is the box score of a stored game
func (h *APIHandlers) GameStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		writeMessage(w, http.StatusBadRequest, "missing gameId parameter")
		return
	}
	ctx := r.Context()

	game, err := h.repo.GetGame(ctx, gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	events, err := h.repo.ListEventsByGame(ctx, gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game":    game,
		"players": stats.BoxScore(events, game.Roster),
		"home":    stats.TeamLine(events, models.TeamHome),
		"away":    stats.TeamLine(events, models.TeamAway),
	})
}

// PlayerTotals reads season counts from the analytics store
func (h *APIHandlers) PlayerTotals(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.analytics == nil {
		writeMessage(w, http.StatusServiceUnavailable, "analytics not configured")
		return
	}
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		writeMessage(w, http.StatusBadRequest, "missing playerId parameter")
		return
	}
	totals, err := h.analytics.PlayerTotals(r.Context(), playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playerId": playerID, "totals": totals})
}
