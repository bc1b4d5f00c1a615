package clickhouse

import (
	"testing"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

func TestRowsSkipSubstitutions(t *testing.T) {
	game := models.Game{ID: "g1", DateISO: "2026-02-01T18:00:00Z", Opponent: "Rivals"}
	events := []models.Event{
		{ID: "e1", PlayerID: "p1", Team: models.TeamHome, Type: models.ThreePtMade, Period: 2, TsMs: 1_700_000_000_000},
		{ID: "e2", PlayerID: "p1", Team: models.TeamHome, Type: models.SubOut},
		{ID: "e3", PlayerID: "p2", Team: models.TeamHome, Type: models.FTMiss, Period: 300},
	}

	rows := Rows(game, events)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	r := rows[0]
	if r.GameID != "g1" || r.Opponent != "Rivals" || r.Points != 3 || r.Period != 2 || r.Type != "3PT_MADE" {
		t.Fatalf("unexpected row %+v", r)
	}
	if r.Ts.UnixMilli() != 1_700_000_000_000 {
		t.Fatalf("unexpected ts %v", r.Ts)
	}
	if rows[1].Period != 0 || rows[1].Points != 0 {
		t.Fatalf("out-of-range period should clamp to 0: %+v", rows[1])
	}
}

func TestClientSatisfiesAnalytics(t *testing.T) {
	var _ Analytics = (*Client)(nil)
}
