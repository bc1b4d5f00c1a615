// Package stats derives box-score lines and season summaries from stored events.
// Everything here is a pure function of its inputs.
package stats

import (
	"fmt"
	"math"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// NoAttempts is shown instead of a percentage when nothing was attempted
const NoAttempts = "—"

// Tally counts one performer's (or one team's) events
type Tally struct {
	FTMade    int `json:"ftMade"`
	FTAtt     int `json:"ftAtt"`
	TwoMade   int `json:"twoMade"`
	TwoAtt    int `json:"twoAtt"`
	ThreeMade int `json:"threeMade"`
	ThreeAtt  int `json:"threeAtt"`
	OffReb    int `json:"oreb"`
	DefReb    int `json:"dreb"`
	Assists   int `json:"ast"`
	Turnovers int `json:"tov"`
	Steals    int `json:"stl"`
	Fouls     int `json:"pf"`
}

// Add counts e. Substitutions do not affect the tally.
func (t *Tally) Add(e models.Event) {
	switch e.Type {
	case models.FTMade:
		t.FTMade++
		t.FTAtt++
	case models.FTMiss:
		t.FTAtt++
	case models.TwoPtMade:
		t.TwoMade++
		t.TwoAtt++
	case models.TwoPtMiss:
		t.TwoAtt++
	case models.ThreePtMade:
		t.ThreeMade++
		t.ThreeAtt++
	case models.ThreePtMiss:
		t.ThreeAtt++
	case models.OffRebound:
		t.OffReb++
	case models.DefRebound:
		t.DefReb++
	case models.Assist:
		t.Assists++
	case models.Turnover:
		t.Turnovers++
	case models.Steal:
		t.Steals++
	case models.Foul:
		t.Fouls++
	}
}

// Merge adds o's counts into t
func (t *Tally) Merge(o Tally) {
	t.FTMade += o.FTMade
	t.FTAtt += o.FTAtt
	t.TwoMade += o.TwoMade
	t.TwoAtt += o.TwoAtt
	t.ThreeMade += o.ThreeMade
	t.ThreeAtt += o.ThreeAtt
	t.OffReb += o.OffReb
	t.DefReb += o.DefReb
	t.Assists += o.Assists
	t.Turnovers += o.Turnovers
	t.Steals += o.Steals
	t.Fouls += o.Fouls
}

// Points is 2×two made + 3×three made + free throws made
func (t Tally) Points() int {
	return 2*t.TwoMade + 3*t.ThreeMade + t.FTMade
}

func (t Tally) Rebounds() int { return t.OffReb + t.DefReb }

// Empty reports whether no counted event was seen
func (t Tally) Empty() bool {
	return t == Tally{}
}

// Line is the display row of a box score
type Line struct {
	PlayerID string      `json:"playerId,omitempty"`
	Team     models.Team `json:"team,omitempty"`
	PTS      int         `json:"pts"`
	FG2      string      `json:"FG2"`
	FG3      string      `json:"FG3"`
	FT       string      `json:"FT"`
	OREB     int         `json:"OREB"`
	DREB     int         `json:"DREB"`
	REB      int         `json:"REB"`
	AST      int         `json:"AST"`
	TOV      int         `json:"TOV"`
	PF       int         `json:"PF"`
	STL      int         `json:"STL"`
}

// Fraction renders made-attempted, e.g. "1-2"
func Fraction(made, att int) string {
	return fmt.Sprintf("%d-%d", made, att)
}

// Percentage renders "67% (2/3)", or NoAttempts when att is zero
func Percentage(made, att int) string {
	if att <= 0 {
		return NoAttempts
	}
	pct := math.Round(float64(made) / float64(att) * 100)
	return fmt.Sprintf("%d%% (%d/%d)", int(pct), made, att)
}

func lineFrom(t Tally) Line {
	return Line{
		PTS:  t.Points(),
		FG2:  Fraction(t.TwoMade, t.TwoAtt),
		FG3:  Fraction(t.ThreeMade, t.ThreeAtt),
		FT:   Fraction(t.FTMade, t.FTAtt),
		OREB: t.OffReb,
		DREB: t.DefReb,
		REB:  t.Rebounds(),
		AST:  t.Assists,
		TOV:  t.Turnovers,
		PF:   t.Fouls,
		STL:  t.Steals,
	}
}

// TallyFor counts the events performed by playerID
func TallyFor(events []models.Event, playerID string) Tally {
	var t Tally
	for _, e := range events {
		if e.PlayerID == playerID {
			t.Add(e)
		}
	}
	return t
}

// PlayerLine is playerID's box-score row
func PlayerLine(events []models.Event, playerID string) Line {
	l := lineFrom(TallyFor(events, playerID))
	l.PlayerID = playerID
	return l
}

// TeamLine sums every event tagged with team, whoever performed it
func TeamLine(events []models.Event, team models.Team) Line {
	var t Tally
	for _, e := range events {
		if e.Team == team {
			t.Add(e)
		}
	}
	l := lineFrom(t)
	l.Team = team
	return l
}

// BoxScore returns one line per roster player, in roster order
func BoxScore(events []models.Event, roster []string) []Line {
	lines := make([]Line, 0, len(roster))
	for _, id := range roster {
		lines = append(lines, PlayerLine(events, id))
	}
	return lines
}
