package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidRoster is returned when a game roster or starting five is malformed
var ErrInvalidRoster = errors.New("invalid roster")

const (
	// MinRoster and MaxRoster bound the number of players dressed for a game
	MinRoster = 6
	MaxRoster = 12
	// CourtSize is the number of players on court at any time
	CourtSize = 5
)

// Team tags an event with the side it belongs to
type Team string

const (
	TeamHome Team = "home"
	TeamAway Team = "away"
)

// teamAliases maps tags written by older scorer builds
var teamAliases = map[string]Team{
	"us":   TeamHome,
	"them": TeamAway,
}

// Valid reports whether the tag is one of the known sides
func (t Team) Valid() bool {
	return t == TeamHome || t == TeamAway
}

// Canonical resolves legacy aliases; other values come back unchanged
func (t Team) Canonical() Team {
	if alias, ok := teamAliases[strings.ToLower(string(t))]; ok {
		return alias
	}
	return t
}

func (t *Team) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Team(raw).Canonical()
	return nil
}

// TimestampLayout is ISO 8601 with milliseconds; lineup summaries sort by it
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Meta keys used on events
const (
	MetaIn             = "in"
	MetaOut            = "out"
	MetaAssistPlayerID = "assistPlayerId"
)

// Player represents a rostered player
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	JerseyNumber string `json:"jerseyNumber"`
}

// UnmarshalJSON accepts a jersey number written as a JSON number, as older
// backups store it
func (p *Player) UnmarshalJSON(data []byte) error {
	type plain Player
	var aux struct {
		plain
		JerseyNumber json.RawMessage `json:"jerseyNumber"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Player(aux.plain)

	raw := bytes.TrimSpace(aux.JerseyNumber)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		p.JerseyNumber = ""
	case raw[0] == '"':
		return json.Unmarshal(raw, &p.JerseyNumber)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("jerseyNumber: %w", err)
		}
		p.JerseyNumber = n.String()
	}
	return nil
}

// Game represents a scheduled or played game with its roster snapshot
type Game struct {
	ID       string   `json:"id"`
	DateISO  string   `json:"dateISO"`
	Opponent string   `json:"opponent"`
	Venue    string   `json:"venue"`
	Roster   []string `json:"roster"`
	Quarters int      `json:"quarters"`
	Notes    string   `json:"notes"`
}

// Event represents a single immutable in-game occurrence
type Event struct {
	ID       string            `json:"id"`
	GameID   string            `json:"gameId"`
	PlayerID string            `json:"playerId,omitempty"`
	Team     Team              `json:"team,omitempty"`
	TsMs     int64             `json:"tsMs"`
	Period   int               `json:"period"`
	Type     EventType         `json:"type"`
	Meta     map[string]string `json:"meta"`
}

// LineupSummary is the played-time snapshot written when a game is finalized
type LineupSummary struct {
	ID        string           `json:"id"`
	GameID    string           `json:"gameId"`
	PlayedMs  map[string]int64 `json:"playedMs"`
	Timestamp string           `json:"ts"`
}

// ValidateRoster checks the 6-12 distinct non-empty player ids rule
func ValidateRoster(roster []string) error {
	if len(roster) < MinRoster || len(roster) > MaxRoster {
		return fmt.Errorf("%w: need %d-%d players, got %d", ErrInvalidRoster, MinRoster, MaxRoster, len(roster))
	}
	seen := make(map[string]bool, len(roster))
	for _, id := range roster {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: empty player id", ErrInvalidRoster)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate player %s", ErrInvalidRoster, id)
		}
		seen[id] = true
	}
	return nil
}

// ValidateStartingFive checks that ids are five distinct members of roster
func ValidateStartingFive(ids, roster []string) error {
	if len(ids) != CourtSize {
		return fmt.Errorf("%w: starting five needs %d players, got %d", ErrInvalidRoster, CourtSize, len(ids))
	}
	inRoster := make(map[string]bool, len(roster))
	for _, id := range roster {
		inRoster[id] = true
	}
	seen := make(map[string]bool, CourtSize)
	for _, id := range ids {
		if !inRoster[id] {
			return fmt.Errorf("%w: %s is not on the roster", ErrInvalidRoster, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate starter %s", ErrInvalidRoster, id)
		}
		seen[id] = true
	}
	return nil
}

// GenID returns a new identifier of the form prefix_<uuid>
func GenID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// FormatMs renders milliseconds as mm:ss, rounding to the nearest second
func FormatMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := (ms + 500) / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
