package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

const backupFile = "backup.json"

// Export downloads every collection as one JSON document
func (h *APIHandlers) Export(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	doc, err := h.repo.ExportAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	name := fmt.Sprintf("basket-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	writeJSON(w, http.StatusOK, doc)
}

// Import replaces the whole store with the uploaded backup
func (h *APIHandlers) Import(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImport))
	if err != nil {
		writeMessage(w, http.StatusRequestEntityTooLarge, "backup too large")
		return
	}
	if err := h.live.Import(r.Context(), raw); err != nil {
		writeError(w, err)
		return
	}
	logger.Info("Backup imported", "bytes", len(raw))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Seed loads demo players and a demo game
func (h *APIHandlers) Seed(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	players, game, err := h.live.Seed(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"players": players, "game": game})
}

// Clear empties the store; ?keepPlayers=true keeps the roster pool
func (h *APIHandlers) Clear(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	keep := r.URL.Query().Get("keepPlayers") == "true"
	if err := h.live.Clear(r.Context(), keep); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SaveBackup writes the current export to <backupDir>/backup.json
func (h *APIHandlers) SaveBackup(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	doc, err := h.repo.ExportAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := os.MkdirAll(h.backupDir, 0o755); err != nil {
		writeError(w, err)
		return
	}

	// backup.json is replaced atomically
	path := filepath.Join(h.backupDir, backupFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		writeError(w, err)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		writeError(w, err)
		return
	}
	logger.Info("Backup saved", "path", path, "bytes", len(data))
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "path": "/backups/" + backupFile})
}

// DownloadBackup serves the last saved backup
func (h *APIHandlers) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	path := filepath.Join(h.backupDir, backupFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		writeMessage(w, http.StatusNotFound, "no backup saved yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, path)
}
