package stats

import (
	"math"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// GameLine is one player's output in one game
type GameLine struct {
	GameID   string  `json:"gameId"`
	DateISO  string  `json:"dateISO"`
	Opponent string  `json:"opponent"`
	Tally    Tally   `json:"tally"`
	Minutes  float64 `json:"minutes"`
	FTPct    int     `json:"ftPct"`
	TwoPct   int     `json:"twoPct"`
	ThreePct int     `json:"threePct"`
}

// Summary aggregates a player across games. Averages are over the games the
// player appeared in (minutes or any counted event); when there are none,
// over every game considered.
type Summary struct {
	PlayerID     string     `json:"playerId"`
	GamesPlayed  int        `json:"gamesPlayed"`
	Totals       Tally      `json:"totals"`
	FTPct        string     `json:"ftPct"`
	TwoPct       string     `json:"twoPct"`
	ThreePct     string     `json:"threePct"`
	AvgFouls     float64    `json:"avgFouls"`
	AvgMinutes   float64    `json:"avgMinutes"`
	AvgAssists   float64    `json:"avgAssists"`
	AvgTurnovers float64    `json:"avgTurnovers"`
	AvgSteals    float64    `json:"avgSteals"`
	AvgRebounds  float64    `json:"avgRebounds"`
	PerGame      []GameLine `json:"perGame"`
}

// PlayerSummary builds playerID's season view. Minutes come from the first
// lineup summary stored for each game, never from events.
func PlayerSummary(playerID string, games []models.Game, eventsByGame map[string][]models.Event, lineups []models.LineupSummary) Summary {
	firstLineup := make(map[string]models.LineupSummary)
	for _, l := range lineups {
		if _, seen := firstLineup[l.GameID]; !seen {
			firstLineup[l.GameID] = l
		}
	}

	s := Summary{PlayerID: playerID, PerGame: make([]GameLine, 0, len(games))}
	var mins float64
	for _, g := range games {
		t := TallyFor(eventsByGame[g.ID], playerID)
		gl := GameLine{
			GameID:   g.ID,
			DateISO:  g.DateISO,
			Opponent: g.Opponent,
			Tally:    t,
			FTPct:    seriesPct(t.FTMade, t.FTAtt),
			TwoPct:   seriesPct(t.TwoMade, t.TwoAtt),
			ThreePct: seriesPct(t.ThreeMade, t.ThreeAtt),
		}
		var raw float64
		if lu, ok := firstLineup[g.ID]; ok {
			raw = float64(lu.PlayedMs[playerID]) / float64(time.Minute/time.Millisecond)
		}
		gl.Minutes = round2(raw)
		s.PerGame = append(s.PerGame, gl)

		if raw > 0 || !t.Empty() {
			s.GamesPlayed++
			s.Totals.Merge(t)
			mins += raw
		}
	}

	s.FTPct = Percentage(s.Totals.FTMade, s.Totals.FTAtt)
	s.TwoPct = Percentage(s.Totals.TwoMade, s.Totals.TwoAtt)
	s.ThreePct = Percentage(s.Totals.ThreeMade, s.Totals.ThreeAtt)

	n := s.GamesPlayed
	if n == 0 {
		n = len(games)
	}
	if n == 0 {
		return s
	}
	avg := func(v float64) float64 { return round2(v / float64(n)) }
	s.AvgFouls = avg(float64(s.Totals.Fouls))
	s.AvgMinutes = avg(mins)
	s.AvgAssists = avg(float64(s.Totals.Assists))
	s.AvgTurnovers = avg(float64(s.Totals.Turnovers))
	s.AvgSteals = avg(float64(s.Totals.Steals))
	s.AvgRebounds = avg(float64(s.Totals.Rebounds()))
	return s
}

// seriesPct is the whole-number percentage used for per-game charts; zero attempts give 0
func seriesPct(made, att int) int {
	if att == 0 {
		return 0
	}
	return int(math.Round(float64(made) / float64(att) * 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
