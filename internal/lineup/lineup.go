// Package lineup tracks who is on court and how long each player has
// been on the floor.
package lineup

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// ErrInvalidSubstitution is the recoverable rejection for a bad swap request
var ErrInvalidSubstitution = errors.New("invalid substitution")

// ErrNotOnCourt and ErrNotOnBench say which side of a swap was wrong; both
// match ErrInvalidSubstitution.
var (
	ErrNotOnCourt = fmt.Errorf("%w: player not on court", ErrInvalidSubstitution)
	ErrNotOnBench = fmt.Errorf("%w: player not on bench", ErrInvalidSubstitution)
)

// Lineup tracks on-court and bench membership and cumulative played time.
// Slot order is preserved across swaps so displays stay stable.
type Lineup struct {
	onCourt []string
	bench   []string
	played  map[string]time.Duration
}

// New seeds the first five roster entries on court and the rest on the bench
func New(roster []string) (*Lineup, error) {
	if len(roster) < models.CourtSize {
		return nil, fmt.Errorf("%w: need at least %d players, got %d", models.ErrInvalidRoster, models.CourtSize, len(roster))
	}
	l := &Lineup{
		onCourt: slices.Clone(roster[:models.CourtSize]),
		bench:   slices.Clone(roster[models.CourtSize:]),
		played:  make(map[string]time.Duration, len(roster)),
	}
	for _, id := range roster {
		l.played[id] = 0
	}
	return l, nil
}

// OnCourt returns a copy of the five players on court in slot order
func (l *Lineup) OnCourt() []string {
	return slices.Clone(l.onCourt)
}

// Bench returns a copy of the bench in slot order
func (l *Lineup) Bench() []string {
	return slices.Clone(l.bench)
}

// IsOnCourt reports whether id currently occupies a court slot
func (l *Lineup) IsOnCourt(id string) bool {
	return slices.Contains(l.onCourt, id)
}

// Credit adds d to every player currently on court. Negative values are ignored.
func (l *Lineup) Credit(d time.Duration) {
	if d <= 0 {
		return
	}
	for _, id := range l.onCourt {
		l.played[id] += d
	}
}

// Swap moves outID to inID's bench slot and inID to outID's court slot
func (l *Lineup) Swap(outID, inID string) error {
	outIdx := slices.Index(l.onCourt, outID)
	if outIdx == -1 {
		return fmt.Errorf("%w: %s", ErrNotOnCourt, outID)
	}
	inIdx := slices.Index(l.bench, inID)
	if inIdx == -1 {
		return fmt.Errorf("%w: %s", ErrNotOnBench, inID)
	}

	l.onCourt[outIdx] = inID
	l.bench[inIdx] = outID

	if _, ok := l.played[inID]; !ok {
		l.played[inID] = 0
	}
	if _, ok := l.played[outID]; !ok {
		l.played[outID] = 0
	}
	return nil
}

// Arrange replaces the starting five, keeping the remaining roster order on the bench.
// Played time is untouched.
func (l *Lineup) Arrange(starters []string) error {
	roster := append(l.OnCourt(), l.bench...)
	if err := models.ValidateStartingFive(starters, roster); err != nil {
		return err
	}
	bench := make([]string, 0, len(roster)-models.CourtSize)
	for _, id := range roster {
		if !slices.Contains(starters, id) {
			bench = append(bench, id)
		}
	}
	l.onCourt = slices.Clone(starters)
	l.bench = bench
	return nil
}

// Played returns a copy of cumulative played time per player
func (l *Lineup) Played() map[string]time.Duration {
	out := make(map[string]time.Duration, len(l.played))
	for id, d := range l.played {
		out[id] = d
	}
	return out
}

// PlayedMs returns cumulative played time in milliseconds, the persisted unit
func (l *Lineup) PlayedMs() map[string]int64 {
	out := make(map[string]int64, len(l.played))
	for id, d := range l.played {
		out[id] = d.Milliseconds()
	}
	return out
}
