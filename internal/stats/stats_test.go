package stats

import (
	"testing"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

func ev(player string, team models.Team, typ models.EventType) models.Event {
	return models.Event{PlayerID: player, Team: team, Type: typ}
}

func TestFG2MadeAndMiss(t *testing.T) {
	events := []models.Event{
		ev("P1", models.TeamHome, models.TwoPtMiss),
		ev("P1", models.TeamHome, models.TwoPtMade),
	}
	line := PlayerLine(events, "P1")
	if line.FG2 != "1-2" {
		t.Fatalf("FG2 = %q, want 1-2", line.FG2)
	}
	if line.PTS != 2 {
		t.Fatalf("PTS = %d, want 2", line.PTS)
	}
}

func TestPlayerLineCounts(t *testing.T) {
	events := []models.Event{
		ev("p1", models.TeamHome, models.TwoPtMade),
		ev("p1", models.TeamHome, models.ThreePtMade),
		ev("p1", models.TeamHome, models.FTMade),
		ev("p1", models.TeamHome, models.FTMiss),
		ev("p1", models.TeamHome, models.OffRebound),
		ev("p1", models.TeamHome, models.DefRebound),
		ev("p1", models.TeamHome, models.DefRebound),
		ev("p1", models.TeamHome, models.Assist),
		ev("p1", models.TeamHome, models.Turnover),
		ev("p1", models.TeamHome, models.Foul),
		ev("p1", models.TeamHome, models.Steal),
		ev("p1", models.TeamHome, models.SubOut),
		ev("p2", models.TeamHome, models.ThreePtMade),
	}
	got := PlayerLine(events, "p1")
	want := Line{
		PlayerID: "p1", PTS: 6, FG2: "1-1", FG3: "1-1", FT: "1-2",
		OREB: 1, DREB: 2, REB: 3, AST: 1, TOV: 1, PF: 1, STL: 1,
	}
	if got != want {
		t.Fatalf("got  %+v\nwant %+v", got, want)
	}
}

func TestTeamLineFiltersByTag(t *testing.T) {
	events := []models.Event{
		ev("p1", models.TeamHome, models.TwoPtMade),
		ev("p2", models.TeamHome, models.ThreePtMade),
		ev("", models.TeamHome, models.Turnover),
		ev("", models.TeamAway, models.ThreePtMade),
	}
	home := TeamLine(events, models.TeamHome)
	if home.PTS != 5 || home.TOV != 1 || home.Team != models.TeamHome {
		t.Fatalf("unexpected home line %+v", home)
	}
	away := TeamLine(events, models.TeamAway)
	if away.PTS != 3 || away.FG3 != "1-1" {
		t.Fatalf("unexpected away line %+v", away)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		made, att int
		want      string
	}{
		{0, 0, NoAttempts},
		{2, 3, "67% (2/3)"},
		{1, 2, "50% (1/2)"},
		{0, 4, "0% (0/4)"},
		{5, 5, "100% (5/5)"},
	}
	for _, tc := range cases {
		if got := Percentage(tc.made, tc.att); got != tc.want {
			t.Errorf("Percentage(%d,%d) = %q, want %q", tc.made, tc.att, got, tc.want)
		}
	}
}

func TestBoxScoreRosterOrder(t *testing.T) {
	roster := []string{"b", "a", "c"}
	lines := BoxScore([]models.Event{ev("a", models.TeamHome, models.FTMade)}, roster)
	if len(lines) != 3 || lines[0].PlayerID != "b" || lines[1].PTS != 1 || lines[2].PTS != 0 {
		t.Fatalf("unexpected box score %+v", lines)
	}
}

func TestPlayerSummary(t *testing.T) {
	games := []models.Game{
		{ID: "g1", DateISO: "2026-01-01T18:00:00Z"},
		{ID: "g2", DateISO: "2026-01-08T18:00:00Z"},
		{ID: "g3", DateISO: "2026-01-15T18:00:00Z"},
	}
	events := map[string][]models.Event{
		"g1": {
			ev("p1", models.TeamHome, models.TwoPtMade),
			ev("p1", models.TeamHome, models.FTMiss),
			ev("p1", models.TeamHome, models.Foul),
		},
		"g2": {
			ev("p1", models.TeamHome, models.TwoPtMiss),
			ev("p1", models.TeamHome, models.Assist),
			ev("p1", models.TeamHome, models.OffRebound),
		},
		// p1 did not appear in g3
		"g3": {ev("p2", models.TeamHome, models.Foul)},
	}
	lineups := []models.LineupSummary{
		{ID: "l1", GameID: "g1", PlayedMs: map[string]int64{"p1": 600000}},
		{ID: "l1b", GameID: "g1", PlayedMs: map[string]int64{"p1": 999999}},
		{ID: "l2", GameID: "g2", PlayedMs: map[string]int64{"p1": 300000}},
	}

	s := PlayerSummary("p1", games, events, lineups)
	if s.GamesPlayed != 2 || len(s.PerGame) != 3 {
		t.Fatalf("games played %d, per game %d", s.GamesPlayed, len(s.PerGame))
	}
	if s.PerGame[0].Minutes != 10 {
		t.Fatalf("g1 minutes %v, want 10 from the first lineup", s.PerGame[0].Minutes)
	}
	if s.TwoPct != "50% (1/2)" || s.FTPct != "0% (0/1)" || s.ThreePct != NoAttempts {
		t.Fatalf("unexpected percentages %s %s %s", s.TwoPct, s.FTPct, s.ThreePct)
	}
	if s.AvgMinutes != 7.5 || s.AvgFouls != 0.5 || s.AvgAssists != 0.5 || s.AvgRebounds != 0.5 {
		t.Fatalf("unexpected averages %+v", s)
	}
	if s.PerGame[1].TwoPct != 0 || s.PerGame[0].TwoPct != 100 {
		t.Fatalf("unexpected series %d %d", s.PerGame[0].TwoPct, s.PerGame[1].TwoPct)
	}
}

func TestPlayerSummaryNoGames(t *testing.T) {
	s := PlayerSummary("ghost", nil, nil, nil)
	if s.GamesPlayed != 0 || s.AvgMinutes != 0 || s.FTPct != NoAttempts {
		t.Fatalf("unexpected empty summary %+v", s)
	}
}
