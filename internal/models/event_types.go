package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType is the closed vocabulary of things a scorer can record
type EventType string

const (
	FTMade      EventType = "FT_MADE"
	FTMiss      EventType = "FT_MISS"
	TwoPtMade   EventType = "2PT_MADE"
	TwoPtMiss   EventType = "2PT_MISS"
	ThreePtMade EventType = "3PT_MADE"
	ThreePtMiss EventType = "3PT_MISS"
	OffRebound  EventType = "OREB"
	DefRebound  EventType = "DREB"
	Assist      EventType = "ASSIST"
	Turnover    EventType = "TURNOVER"
	Foul        EventType = "FOUL"
	Steal       EventType = "STEAL"
	SubIn       EventType = "SUB_IN"
	SubOut      EventType = "SUB_OUT"
)

var allEventTypes = []EventType{
	FTMade, FTMiss,
	TwoPtMade, TwoPtMiss,
	ThreePtMade, ThreePtMiss,
	OffRebound, DefRebound,
	Assist, Turnover, Foul, Steal,
	SubIn, SubOut,
}

// Legacy names written by older clients
var eventTypeAliases = map[string]EventType{
	"1PT_MADE":     FTMade,
	"1PT_MISS":     FTMiss,
	"FALLO":        Foul,
	"PALLA_PERSA":  Turnover,
	"PALLA_RUBATA": Steal,
	"RIMB_OFF":     OffRebound,
	"RIMB_DIF":     DefRebound,
	"CAMBIO_IN":    SubIn,
	"CAMBIO_OUT":   SubOut,
}

// AllEventTypes returns the canonical vocabulary in display order
func AllEventTypes() []EventType {
	out := make([]EventType, len(allEventTypes))
	copy(out, allEventTypes)
	return out
}

// Valid reports whether t is a canonical event type
func (t EventType) Valid() bool {
	for _, known := range allEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsSubstitution reports whether t is one of the lineup bookkeeping events
func (t EventType) IsSubstitution() bool {
	return t == SubIn || t == SubOut
}

// PointValue is the number of points a made shot of this type is worth
func (t EventType) PointValue() int {
	switch t {
	case FTMade:
		return 1
	case TwoPtMade:
		return 2
	case ThreePtMade:
		return 3
	default:
		return 0
	}
}

// ParseEventType resolves canonical names and legacy aliases
func ParseEventType(raw string) (EventType, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	if t := EventType(name); t.Valid() {
		return t, nil
	}
	if t, ok := eventTypeAliases[name]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", raw)
}

// UnmarshalJSON accepts aliases so old backups import cleanly
func (t *EventType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseEventType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
