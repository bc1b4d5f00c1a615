// Package handlers is the JSON/HTTP surface of the scorer.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Billy-Davies-2/basket-tracker/internal/clickhouse"
	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/lineup"
	"github.com/Billy-Davies-2/basket-tracker/internal/live"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/pubsub"
	"github.com/Billy-Davies-2/basket-tracker/internal/session"
)

const (
	maxBody   = 1 << 20
	maxImport = 32 << 20
)

// APIHandlers contains all API handler methods
type APIHandlers struct {
	live      *live.Manager
	repo      *dal.Repository
	pubsub    *pubsub.PubSub
	analytics clickhouse.Analytics
	backupDir string
}

// NewAPIHandlers creates a new API handlers instance. analytics may be nil.
func NewAPIHandlers(m *live.Manager, ps *pubsub.PubSub, analytics clickhouse.Analytics, backupDir string) *APIHandlers {
	return &APIHandlers{
		live:      m,
		repo:      m.Repository(),
		pubsub:    ps,
		analytics: analytics,
		backupDir: backupDir,
	}
}

// Register mounts every API route on mux. admin guards the destructive
// backup routes; nil leaves them open.
func (h *APIHandlers) Register(mux *http.ServeMux, admin func(http.HandlerFunc) http.HandlerFunc) {
	if admin == nil {
		admin = func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	mux.HandleFunc("/api/session", h.Session)
	mux.HandleFunc("/api/session/starting-five", h.StartingFive)
	mux.HandleFunc("/api/session/clock/start", h.StartClock)
	mux.HandleFunc("/api/session/clock/pause", h.PauseClock)
	mux.HandleFunc("/api/session/period/next", h.NextPeriod)
	mux.HandleFunc("/api/session/substitute", h.Substitute)
	mux.HandleFunc("/api/session/events", h.SessionEvents)
	mux.HandleFunc("/api/session/undo", h.Undo)
	mux.HandleFunc("/api/session/redo", h.Redo)
	mux.HandleFunc("/api/session/finalize", h.Finalize)

	mux.HandleFunc("/api/players", h.Players)
	mux.HandleFunc("/api/games", h.ListGames)
	mux.HandleFunc("/api/games/events", h.GameEvents)
	mux.HandleFunc("/api/stats/player", h.PlayerStats)
	mux.HandleFunc("/api/stats/game", h.GameStats)
	mux.HandleFunc("/api/stats/totals", h.PlayerTotals)

	mux.HandleFunc("/api/export", h.Export)
	mux.HandleFunc("/api/import", admin(h.Import))
	mux.HandleFunc("/api/seed", admin(h.Seed))
	mux.HandleFunc("/api/clear", admin(h.Clear))
	mux.HandleFunc("/save-backup", admin(h.SaveBackup))
	mux.HandleFunc("/backups/backup.json", h.DownloadBackup)

	mux.HandleFunc("/api/stream", h.EventsSSE)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidEvent),
		errors.Is(err, models.ErrInvalidRoster),
		errors.Is(err, lineup.ErrInvalidSubstitution),
		errors.Is(err, dal.ErrInvalidImport):
		return http.StatusBadRequest
	case errors.Is(err, live.ErrNoSession),
		errors.Is(err, dal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotLive),
		errors.Is(err, session.ErrFinalized),
		errors.Is(err, dal.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
		writeMessage(w, status, "internal error")
		return
	}
	logger.Debug("Request rejected", "status", status, "error", err)
	writeMessage(w, status, err.Error())
}

// decode reads a JSON body into v, answering 400 itself on failure
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.Warn("Failed to decode request", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
