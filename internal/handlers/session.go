package handlers

import (
	"errors"
	"net/http"

	"github.com/Billy-Davies-2/basket-tracker/internal/eventlog"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/session"
)

// Session returns the live view on GET and starts a new game on POST
func (h *APIHandlers) Session(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		v, err := h.live.View()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
		return
	}

	var game models.Game
	if !decode(w, r, &game) {
		return
	}
	logger.Info("Starting session", "opponent", game.Opponent, "roster", len(game.Roster))
	v, err := h.live.NewSession(game)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *APIHandlers) StartingFive(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decode(w, r, &req) {
		return
	}
	v, err := h.live.SetStartingFive(req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// viewAction adapts the manager's view-only mutations to POST handlers
func (h *APIHandlers) viewAction(action func() (session.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		v, err := action()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (h *APIHandlers) StartClock(w http.ResponseWriter, r *http.Request) {
	h.viewAction(h.live.StartClock)(w, r)
}

func (h *APIHandlers) PauseClock(w http.ResponseWriter, r *http.Request) {
	h.viewAction(h.live.PauseClock)(w, r)
}

func (h *APIHandlers) NextPeriod(w http.ResponseWriter, r *http.Request) {
	h.viewAction(h.live.NextPeriod)(w, r)
}

// Substitute swaps two players without stopping the clock
func (h *APIHandlers) Substitute(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Out string `json:"out"`
		In  string `json:"in"`
	}
	if !decode(w, r, &req) {
		return
	}
	events, v, err := h.live.Substitute(req.Out, req.In)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "session": v})
}

// SessionEvents lists the live log on GET and records a play on POST
func (h *APIHandlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		v, err := h.live.View()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v.Events)
		return
	}

	var in session.EventInput
	if !decode(w, r, &in) {
		return
	}
	ev, v, err := h.live.Record(in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": ev, "session": v})
}

func (h *APIHandlers) Undo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, h.live.Undo)
}

func (h *APIHandlers) Redo(w http.ResponseWriter, r *http.Request) {
	h.history(w, r, h.live.Redo)
}

// history answers undo and redo. Nothing to undo or redo is not an error:
// the reply is 200 with a null event and the unchanged session.
func (h *APIHandlers) history(w http.ResponseWriter, r *http.Request, step func() (models.Event, session.View, error)) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	ev, v, err := step()
	switch {
	case errors.Is(err, eventlog.ErrEmptyHistory):
		v, err = h.live.View()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"event": nil, "session": v})
	case err != nil:
		writeError(w, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"event": ev, "session": v})
	}
}

// Finalize stops the game and stores its played-time summary
func (h *APIHandlers) Finalize(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	summary, v, err := h.live.Finalize()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lineup": summary, "session": v})
}
