package dal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// Repository is the typed view over a Store used by the scorer
type Repository struct {
	store Store
	now   func() time.Time
}

// NewRepository wraps store
func NewRepository(store Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Store exposes the underlying document store
func (r *Repository) Store() Store { return r.store }

func put(ctx context.Context, s Store, c Collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, id, err)
	}
	return s.Put(ctx, c, id, data)
}

func add(ctx context.Context, s Store, c Collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c, id, err)
	}
	return s.Add(ctx, c, id, data)
}

func list[T any](ctx context.Context, s Store, c Collection) ([]T, error) {
	docs, err := s.GetAll(ctx, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", c, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SavePlayer upserts p, assigning an id when missing
func (r *Repository) SavePlayer(ctx context.Context, p models.Player) (models.Player, error) {
	if p.ID == "" {
		p.ID = models.GenID("player")
	}
	return p, put(ctx, r.store, Players, p.ID, p)
}

func (r *Repository) ListPlayers(ctx context.Context) ([]models.Player, error) {
	return list[models.Player](ctx, r.store, Players)
}

// SaveGame upserts g by id, so finalizing twice overwrites
func (r *Repository) SaveGame(ctx context.Context, g models.Game) (models.Game, error) {
	if g.ID == "" {
		g.ID = models.GenID("game")
	}
	return g, put(ctx, r.store, Games, g.ID, g)
}

func (r *Repository) GetGame(ctx context.Context, id string) (models.Game, error) {
	data, err := r.store.Get(ctx, Games, id)
	if err != nil {
		return models.Game{}, err
	}
	var g models.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return models.Game{}, fmt.Errorf("decode game %s: %w", id, err)
	}
	return g, nil
}

func (r *Repository) ListGames(ctx context.Context) ([]models.Game, error) {
	return list[models.Game](ctx, r.store, Games)
}

// AddEvent inserts a new event and fails with ErrExists on a reused id
func (r *Repository) AddEvent(ctx context.Context, e models.Event) (models.Event, error) {
	if e.ID == "" {
		e.ID = models.GenID("evt")
	}
	return e, add(ctx, r.store, Events, e.ID, e)
}

// PutEvent upserts e; redo uses it to restore a deleted event
func (r *Repository) PutEvent(ctx context.Context, e models.Event) error {
	return put(ctx, r.store, Events, e.ID, e)
}

func (r *Repository) DeleteEvent(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Events, id)
}

// ListEventsByGame returns a game's events, newest timestamp first
func (r *Repository) ListEventsByGame(ctx context.Context, gameID string) ([]models.Event, error) {
	all, err := list[models.Event](ctx, r.store, Events)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.GameID == gameID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TsMs > out[j].TsMs })
	return out, nil
}

// SaveLineup always writes a new summary record
func (r *Repository) SaveLineup(ctx context.Context, gameID string, playedMs map[string]int64) (models.LineupSummary, error) {
	rec := models.LineupSummary{
		ID:        models.GenID("lineup"),
		GameID:    gameID,
		PlayedMs:  playedMs,
		Timestamp: r.now().UTC().Format(models.TimestampLayout),
	}
	return rec, r.AddLineup(ctx, rec)
}

// AddLineup inserts an already-built summary
func (r *Repository) AddLineup(ctx context.Context, rec models.LineupSummary) error {
	return add(ctx, r.store, Lineups, rec.ID, rec)
}

// ListLineups returns every summary, or only gameID's when it is non-empty.
// Summaries are ordered oldest first.
func (r *Repository) ListLineups(ctx context.Context, gameID string) ([]models.LineupSummary, error) {
	all, err := list[models.LineupSummary](ctx, r.store, Lineups)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, l := range all {
		if gameID == "" || l.GameID == gameID {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// ClearAll empties every collection
func (r *Repository) ClearAll(ctx context.Context) error {
	for _, c := range Collections {
		if err := r.store.Clear(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// ClearHistory empties games, events and lineups but keeps players
func (r *Repository) ClearHistory(ctx context.Context) error {
	for _, c := range []Collection{Games, Events, Lineups} {
		if err := r.store.Clear(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// SeedDemo replaces everything with eight players, one game and a few events
func (r *Repository) SeedDemo(ctx context.Context) ([]models.Player, models.Game, error) {
	if err := r.ClearAll(ctx); err != nil {
		return nil, models.Game{}, err
	}

	players := make([]models.Player, 0, 8)
	roster := make([]string, 0, 8)
	for i := 1; i <= 8; i++ {
		p, err := r.SavePlayer(ctx, models.Player{
			Name:         fmt.Sprintf("Player %d", i),
			JerseyNumber: fmt.Sprintf("%d", 10+i),
		})
		if err != nil {
			return nil, models.Game{}, err
		}
		players = append(players, p)
		roster = append(roster, p.ID)
	}

	now := r.now()
	game, err := r.SaveGame(ctx, models.Game{
		DateISO:  now.UTC().Format(time.RFC3339),
		Opponent: "Demo Club",
		Venue:    "home",
		Roster:   roster,
		Quarters: 4,
		Notes:    "Demo game",
	})
	if err != nil {
		return nil, models.Game{}, err
	}

	seed := []models.Event{
		{PlayerID: players[0].ID, TsMs: now.Add(-8 * time.Minute).UnixMilli(), Type: models.TwoPtMade},
		{PlayerID: players[1].ID, TsMs: now.Add(-7 * time.Minute).UnixMilli(), Type: models.Assist,
			Meta: map[string]string{models.MetaAssistPlayerID: players[0].ID}},
		{PlayerID: players[2].ID, TsMs: now.Add(-6 * time.Minute).UnixMilli(), Type: models.OffRebound},
	}
	for _, e := range seed {
		e.GameID = game.ID
		e.Period = 1
		e.Team = models.TeamHome
		if e.Meta == nil {
			e.Meta = map[string]string{}
		}
		if _, err := r.AddEvent(ctx, e); err != nil {
			return nil, models.Game{}, err
		}
	}
	return players, game, nil
}

// ExportMeta describes when a backup was taken
type ExportMeta struct {
	ExportedAt string `json:"exportedAt"`
}

// Export is the full-store backup document
type Export struct {
	Meta   ExportMeta                       `json:"meta"`
	Stores map[Collection][]json.RawMessage `json:"stores"`
}

// ExportAll snapshots every collection
func (r *Repository) ExportAll(ctx context.Context) (Export, error) {
	out := Export{
		Meta:   ExportMeta{ExportedAt: r.now().UTC().Format(time.RFC3339)},
		Stores: make(map[Collection][]json.RawMessage, len(Collections)),
	}
	for _, c := range Collections {
		docs, err := r.store.GetAll(ctx, c)
		if err != nil {
			return Export{}, err
		}
		records := make([]json.RawMessage, 0, len(docs))
		for _, d := range docs {
			records = append(records, d.Data)
		}
		out.Stores[c] = records
	}
	return out, nil
}

// ParseImport validates a backup document without touching the store.
// Missing collections import as empty; every record must be a JSON object
// with a non-empty string id.
func ParseImport(raw []byte) (map[Collection][]Doc, error) {
	var payload struct {
		Stores map[string]json.RawMessage `json:"stores"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if payload.Stores == nil {
		return nil, fmt.Errorf("%w: missing stores", ErrInvalidImport)
	}

	docs := make(map[Collection][]Doc, len(Collections))
	for _, c := range Collections {
		body, ok := payload.Stores[string(c)]
		if !ok || string(body) == "null" {
			docs[c] = nil
			continue
		}
		var records []json.RawMessage
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("%w: %s is not an array", ErrInvalidImport, c)
		}
		for i, rec := range records {
			var head struct {
				ID any `json:"id"`
			}
			if err := json.Unmarshal(rec, &head); err != nil {
				return nil, fmt.Errorf("%w: %s[%d] is not an object", ErrInvalidImport, c, i)
			}
			id, ok := head.ID.(string)
			if !ok || id == "" {
				return nil, fmt.Errorf("%w: %s[%d] has no id", ErrInvalidImport, c, i)
			}
			if err := decodes(c, rec); err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %v", ErrInvalidImport, c, i, err)
			}
			docs[c] = append(docs[c], Doc{ID: id, Data: rec})
		}
	}
	return docs, nil
}

// decodes checks rec against the record type the repository reads back
func decodes(c Collection, rec json.RawMessage) error {
	switch c {
	case Players:
		return json.Unmarshal(rec, new(models.Player))
	case Games:
		return json.Unmarshal(rec, new(models.Game))
	case Events:
		return json.Unmarshal(rec, new(models.Event))
	case Lineups:
		return json.Unmarshal(rec, new(models.LineupSummary))
	}
	return nil
}

// ImportAll overwrites every collection with the backup in raw. A malformed
// document is rejected before anything is cleared.
func (r *Repository) ImportAll(ctx context.Context, raw []byte) error {
	docs, err := ParseImport(raw)
	if err != nil {
		return err
	}
	return r.Restore(ctx, docs)
}

// Restore overwrites every collection with docs already checked by ParseImport
func (r *Repository) Restore(ctx context.Context, docs map[Collection][]Doc) error {
	return r.store.ReplaceAll(ctx, docs)
}

// IsNotFound reports whether err means a missing record
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
