package mocks

import (
	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

// MockPostgresStore serves the postgres driver from SQLite for local development
type MockPostgresStore struct {
	*dal.SQLiteStore
}

// NewMockPostgresStore opens sqliteFile behind the Store contract
func NewMockPostgresStore(sqliteFile string) (*MockPostgresStore, error) {
	logger.Info("Using MOCK Postgres (SQLite) for local development", "file", sqliteFile)

	s, err := dal.NewSQLiteStore(sqliteFile)
	if err != nil {
		return nil, err
	}
	return &MockPostgresStore{SQLiteStore: s}, nil
}
