package dal

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

func TestEventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())

	for i, ts := range []int64{100, 300, 200} {
		_, err := repo.AddEvent(ctx, models.Event{
			ID: string(rune('a' + i)), GameID: "g1", TsMs: ts, Type: models.Foul,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	repo.AddEvent(ctx, models.Event{ID: "other", GameID: "g2", TsMs: 999, Type: models.Foul})

	events, err := repo.ListEventsByGame(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for _, e := range events {
		got = append(got, e.TsMs)
	}
	if !reflect.DeepEqual(got, []int64{300, 200, 100}) {
		t.Fatalf("unexpected order %v", got)
	}

	if _, err := repo.AddEvent(ctx, models.Event{ID: "a", GameID: "g1"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on duplicate event id, got %v", err)
	}
}

func TestFinalizeTwiceKeepsOneGameTwoLineups(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	game := models.Game{ID: "g1", Opponent: "Rivals", Roster: []string{"a", "b", "c", "d", "e", "f"}}

	for i := 0; i < 2; i++ {
		if _, err := repo.SaveGame(ctx, game); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.SaveLineup(ctx, game.ID, map[string]int64{"a": int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	games, _ := repo.ListGames(ctx)
	if len(games) != 1 {
		t.Fatalf("expected one game record, got %d", len(games))
	}
	lineups, _ := repo.ListLineups(ctx, "g1")
	if len(lineups) != 2 || lineups[0].ID == lineups[1].ID {
		t.Fatalf("expected two distinct lineup records, got %+v", lineups)
	}
}

func TestLineupsOrderedWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	tick := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}

	for i := 0; i < 5; i++ {
		if _, err := repo.SaveLineup(ctx, "g1", map[string]int64{"a": int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	lineups, err := repo.ListLineups(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	for i, l := range lineups {
		if l.PlayedMs["a"] != int64(i) {
			t.Fatalf("lineup %d out of order: %+v", i, lineups)
		}
	}
	if lineups[0].Timestamp != "2026-03-01T18:00:00.001Z" {
		t.Fatalf("unexpected timestamp %q", lineups[0].Timestamp)
	}
}

func TestClearHistoryKeepsPlayers(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	if _, _, err := repo.SeedDemo(ctx); err != nil {
		t.Fatalf("SeedDemo failed: %v", err)
	}
	if err := repo.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	players, _ := repo.ListPlayers(ctx)
	games, _ := repo.ListGames(ctx)
	if len(players) != 8 || len(games) != 0 {
		t.Fatalf("players=%d games=%d", len(players), len(games))
	}
}

func snapshot(t *testing.T, repo *Repository) map[Collection][]string {
	t.Helper()
	exp, err := repo.ExportAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[Collection][]string)
	for c, records := range exp.Stores {
		for _, rec := range records {
			var v any
			if err := json.Unmarshal(rec, &v); err != nil {
				t.Fatal(err)
			}
			canon, _ := json.Marshal(v)
			out[c] = append(out[c], string(canon))
		}
		sort.Strings(out[c])
	}
	return out
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := NewRepository(NewMemoryStore())
	_, game, err := src.SeedDemo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	src.SaveLineup(ctx, game.ID, map[string]int64{game.Roster[0]: 1200})

	exp, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := json.Marshal(exp)
	if err != nil {
		t.Fatal(err)
	}

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			dst := NewRepository(s)
			if err := dst.ImportAll(ctx, raw); err != nil {
				t.Fatalf("ImportAll failed: %v", err)
			}
			if want, got := snapshot(t, src), snapshot(t, dst); !reflect.DeepEqual(want, got) {
				t.Fatalf("round trip mismatch\nwant %v\ngot  %v", want, got)
			}
		})
	}
}

func TestImportRejectsMalformedWithoutClearing(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	if _, err := repo.SavePlayer(ctx, models.Player{ID: "p1", Name: "Ann"}); err != nil {
		t.Fatal(err)
	}

	cases := map[string]string{
		"not json":        `{`,
		"no stores":       `{"meta":{}}`,
		"store not array": `{"stores":{"players":{"id":"x"}}}`,
		"record no id":    `{"stores":{"players":[{"name":"x"}]}}`,
		"numeric id":      `{"stores":{"events":[{"id":7}]}}`,
		"record scalar":   `{"stores":{"games":[3]}}`,
		"jersey object":   `{"stores":{"players":[{"id":"p2","jerseyNumber":{}}]}}`,
		"unknown type":    `{"stores":{"events":[{"id":"e1","type":"DUNK"}]}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if err := repo.ImportAll(ctx, []byte(payload)); !errors.Is(err, ErrInvalidImport) {
				t.Fatalf("expected ErrInvalidImport, got %v", err)
			}
			players, _ := repo.ListPlayers(ctx)
			if len(players) != 1 {
				t.Fatalf("store was modified by a rejected import: %d players", len(players))
			}
		})
	}
}

func TestImportMissingArraysAreEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	repo.SavePlayer(ctx, models.Player{ID: "p1"})

	if err := repo.ImportAll(ctx, []byte(`{"stores":{"games":[{"id":"g1","roster":[]}]}}`)); err != nil {
		t.Fatalf("ImportAll failed: %v", err)
	}
	players, _ := repo.ListPlayers(ctx)
	games, _ := repo.ListGames(ctx)
	if len(players) != 0 || len(games) != 1 {
		t.Fatalf("players=%d games=%d", len(players), len(games))
	}
}

// legacyBackup is shaped like exports from the browser-only scorer: numeric
// jerseys, Italian aliases, "us" team tags and millisecond ISO timestamps
const legacyBackup = `{
  "meta": {"exportedAt": "2025-11-02T19:04:11.532Z"},
  "stores": {
    "players": [
      {"id": "player_a1", "name": "Giocatore 1", "jerseyNumber": 11},
      {"id": "player_a2", "name": "Giocatore 2", "jerseyNumber": "07"}
    ],
    "games": [
      {"id": "game_g1", "dateISO": "2025-11-02T18:00:00.000Z", "opponent": "A.S. Demo", "venue": "home",
       "roster": ["player_a1", "player_a2"], "quarters": 4, "notes": "Partita demo"}
    ],
    "events": [
      {"id": "evt_1", "gameId": "game_g1", "playerId": "player_a1", "team": "us", "tsMs": 1762106400000,
       "period": 1, "onCourt": true, "type": "2PT_MADE", "meta": {}},
      {"id": "evt_2", "gameId": "game_g1", "playerId": "player_a2", "team": "us", "tsMs": 1762106460000,
       "period": 1, "onCourt": true, "type": "PALLA_RUBATA", "meta": {}}
    ],
    "lineups": [
      {"id": "lineup_1", "gameId": "game_g1", "playedMs": {"player_a1": 60000}, "ts": "2025-11-02T19:00:00.123Z"}
    ]
  }
}`

func TestImportLegacyBackup(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMemoryStore())
	if err := repo.ImportAll(ctx, []byte(legacyBackup)); err != nil {
		t.Fatalf("ImportAll failed: %v", err)
	}

	players, err := repo.ListPlayers(ctx)
	if err != nil {
		t.Fatalf("ListPlayers failed: %v", err)
	}
	jerseys := map[string]string{}
	for _, p := range players {
		jerseys[p.ID] = p.JerseyNumber
	}
	if jerseys["player_a1"] != "11" || jerseys["player_a2"] != "07" {
		t.Fatalf("unexpected jerseys %v", jerseys)
	}

	events, err := repo.ListEventsByGame(ctx, "game_g1")
	if err != nil {
		t.Fatalf("ListEventsByGame failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.Team != models.TeamHome {
			t.Errorf("%s: team %q, want home", e.ID, e.Team)
		}
	}
	if events[0].Type != models.Steal {
		t.Errorf("alias not resolved: %s", events[0].Type)
	}

	lineups, err := repo.ListLineups(ctx, "game_g1")
	if err != nil || len(lineups) != 1 || lineups[0].PlayedMs["player_a1"] != 60000 {
		t.Fatalf("unexpected lineups %+v (%v)", lineups, err)
	}
}
