package dal

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names a keyed record space
type Collection string

const (
	Players Collection = "players"
	Games   Collection = "games"
	Events  Collection = "events"
	Lineups Collection = "lineups"
)

// Collections lists every collection the store manages, in export order
var Collections = []Collection{Players, Games, Events, Lineups}

// Valid reports whether c is a known collection
func (c Collection) Valid() bool {
	for _, known := range Collections {
		if c == known {
			return true
		}
	}
	return false
}

var (
	ErrNotFound          = errors.New("record not found")
	ErrExists            = errors.New("record already exists")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrInvalidImport     = errors.New("invalid import payload")
)

// Doc is one stored record: its id and JSON body
type Doc struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Store is the generic per-collection key/value store the scorer persists to
type Store interface {
	// Add inserts a new record and fails with ErrExists if the id is taken
	Add(ctx context.Context, c Collection, id string, data []byte) error
	// Put inserts or replaces a record
	Put(ctx context.Context, c Collection, id string, data []byte) error
	// Get returns the record body or ErrNotFound
	Get(ctx context.Context, c Collection, id string) ([]byte, error)
	// GetAll returns every record in the collection ordered by id
	GetAll(ctx context.Context, c Collection) ([]Doc, error)
	Delete(ctx context.Context, c Collection, id string) error
	Clear(ctx context.Context, c Collection) error
	// ReplaceAll clears every collection and loads docs in one step
	ReplaceAll(ctx context.Context, docs map[Collection][]Doc) error
	Ping(ctx context.Context) error
	Close() error
}
