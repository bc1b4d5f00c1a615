package mocks

import (
	"context"
	"sync"

	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// Analytics is an in-memory stand-in for the ClickHouse sink used in development
type Analytics struct {
	mu     sync.RWMutex
	games  map[string][]models.Event
	closed bool
}

// NewAnalytics creates an empty mock sink
func NewAnalytics() *Analytics {
	logger.Info("Using MOCK ClickHouse analytics for local development")
	return &Analytics{games: make(map[string][]models.Event)}
}

// RecordGame replaces whatever was recorded for the game before
func (a *Analytics) RecordGame(_ context.Context, game models.Game, events []models.Event) error {
	kept := make([]models.Event, 0, len(events))
	for _, e := range events {
		if !e.Type.IsSubstitution() {
			kept = append(kept, e)
		}
	}
	a.mu.Lock()
	a.games[game.ID] = kept
	a.mu.Unlock()
	logger.Debug("Mock ClickHouse: recorded game", "game", game.ID, "events", len(kept))
	return nil
}

func (a *Analytics) PlayerTotals(_ context.Context, playerID string) (map[models.EventType]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	totals := make(map[models.EventType]int)
	for _, events := range a.games {
		for _, e := range events {
			if e.PlayerID == playerID {
				totals[e.Type]++
			}
		}
	}
	return totals, nil
}

// Games is the number of distinct games recorded
func (a *Analytics) Games() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.games)
}

func (a *Analytics) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}
