// Package session composes the clock, lineup and event log into one live game.
//
// A Session is owned by a single caller; it is not safe for concurrent use.
// Every mutation completes in memory before returning and hands its
// persistence work to an outbox.Sink, so a slow or failing store never changes
// what the session reports.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/clock"
	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/eventlog"
	"github.com/Billy-Davies-2/basket-tracker/internal/lineup"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/outbox"
)

// Phase is the session lifecycle state
type Phase string

const (
	Setup     Phase = "setup"
	Live      Phase = "live"
	Finalized Phase = "finalized"
)

var (
	ErrNotLive      = errors.New("session is not live")
	ErrFinalized    = errors.New("session is finalized")
	ErrInvalidEvent = errors.New("invalid event")
)

// Options configure a Session. Zero values use the wall clock, discard
// persistence and generate ids with models.GenID.
type Options struct {
	Now    clock.Now
	Outbox outbox.Sink
	NewID  func(prefix string) string
}

// Session is the live, in-memory aggregate of one game
type Session struct {
	game   models.Game
	phase  Phase
	now    clock.Now
	clock  *clock.Clock
	lineup *lineup.Lineup
	log    *eventlog.Log
	out    outbox.Sink
	newID  func(string) string
}

// New creates a session in Setup with the first five roster entries on court
func New(game models.Game, opts Options) (*Session, error) {
	if err := models.ValidateRoster(game.Roster); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Outbox == nil {
		opts.Outbox = outbox.Discard{}
	}
	if opts.NewID == nil {
		opts.NewID = models.GenID
	}
	if game.ID == "" {
		game.ID = opts.NewID("game")
	}
	game.Roster = append([]string(nil), game.Roster...)

	lu, err := lineup.New(game.Roster)
	if err != nil {
		return nil, err
	}
	return &Session{
		game:   game,
		phase:  Setup,
		now:    opts.Now,
		clock:  clock.New(opts.Now),
		lineup: lu,
		log:    eventlog.New(opts.Now),
		out:    opts.Outbox,
		newID:  opts.NewID,
	}, nil
}

// Game returns a copy of the game being scored
func (s *Session) Game() models.Game {
	g := s.game
	g.Roster = append([]string(nil), s.game.Roster...)
	return g
}

// Phase reports where the session is in its lifecycle
func (s *Session) Phase() Phase { return s.phase }

// Begin moves the session from Setup to Live
func (s *Session) Begin() error {
	switch s.phase {
	case Finalized:
		return ErrFinalized
	case Setup:
		s.phase = Live
	}
	return nil
}

// SetStartingFive chooses who starts on court. Only valid during Setup.
func (s *Session) SetStartingFive(ids []string) error {
	switch s.phase {
	case Finalized:
		return ErrFinalized
	case Live:
		return fmt.Errorf("%w: starting five is fixed once the game is live", lineup.ErrInvalidSubstitution)
	}
	return s.lineup.Arrange(ids)
}

// StartClock starts the game clock, beginning the game if still in Setup.
// Starting a running clock is a no-op.
func (s *Session) StartClock() error {
	if err := s.Begin(); err != nil {
		return err
	}
	s.clock.Start()
	return nil
}

// PauseClock stops the clock and credits the closed interval to the players on court
func (s *Session) PauseClock() error {
	if s.phase == Finalized {
		return ErrFinalized
	}
	s.lineup.Credit(s.clock.Pause())
	return nil
}

// NextPeriod pauses if running and moves to the next period
func (s *Session) NextPeriod() error {
	if err := s.requireLive(); err != nil {
		return err
	}
	s.lineup.Credit(s.clock.AdvancePeriod())
	return nil
}

// Substitute swaps outID (on court) for inID (on the bench) without stopping
// the clock, and records the SUB_OUT and SUB_IN pair at the same instant.
func (s *Session) Substitute(outID, inID string) ([]models.Event, error) {
	if err := s.requireLive(); err != nil {
		return nil, err
	}
	// closing the interval first is harmless when the swap is rejected
	s.lineup.Credit(s.clock.Lap())
	if err := s.lineup.Swap(outID, inID); err != nil {
		return nil, err
	}

	ts := s.now().UnixMilli()
	out := s.append(models.Event{
		PlayerID: outID,
		Team:     models.TeamHome,
		TsMs:     ts,
		Type:     models.SubOut,
		Meta:     map[string]string{models.MetaIn: inID},
	})
	in := s.append(models.Event{
		PlayerID: inID,
		Team:     models.TeamHome,
		TsMs:     ts,
		Type:     models.SubIn,
		Meta:     map[string]string{models.MetaOut: outID},
	})
	return []models.Event{out, in}, nil
}

// EventInput is what a scorer supplies when recording a play
type EventInput struct {
	PlayerID string            `json:"playerId"`
	Team     models.Team       `json:"team"`
	Type     models.EventType  `json:"type"`
	Meta     map[string]string `json:"meta"`
}

// Record appends a statistical event. The performer is not required to be
// on court; substitutions go through Substitute.
func (s *Session) Record(in EventInput) (models.Event, error) {
	if err := s.requireLive(); err != nil {
		return models.Event{}, err
	}
	if !in.Type.Valid() {
		return models.Event{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, in.Type)
	}
	if in.Type.IsSubstitution() {
		return models.Event{}, fmt.Errorf("%w: record substitutions with Substitute", ErrInvalidEvent)
	}
	if in.PlayerID == "" && in.Team == "" {
		return models.Event{}, fmt.Errorf("%w: a player or a team is required", ErrInvalidEvent)
	}
	in.Team = in.Team.Canonical()
	if in.Team == "" {
		in.Team = models.TeamHome
	}
	if !in.Team.Valid() {
		return models.Event{}, fmt.Errorf("%w: unknown team %q", ErrInvalidEvent, in.Team)
	}

	meta := make(map[string]string, len(in.Meta))
	for k, v := range in.Meta {
		meta[k] = v
	}
	return s.append(models.Event{
		PlayerID: in.PlayerID,
		Team:     in.Team,
		Type:     in.Type,
		Meta:     meta,
	}), nil
}

func (s *Session) append(ev models.Event) models.Event {
	ev.ID = s.newID("evt")
	ev.GameID = s.game.ID
	ev.Period = s.clock.Period()
	ev = s.log.Append(ev)
	s.out.Enqueue(outbox.Command{Op: outbox.OpAdd, Collection: dal.Events, ID: ev.ID, Record: ev})
	return ev
}

// Undo removes the most recent event. Undoing a SUB_OUT reverses its lineup
// swap; its SUB_IN partner is undone first and leaves the lineup alone.
// An empty history returns eventlog.ErrEmptyHistory.
func (s *Session) Undo() (models.Event, error) {
	if err := s.requireLive(); err != nil {
		return models.Event{}, err
	}
	ev, err := s.log.Undo()
	if err != nil {
		return models.Event{}, err
	}
	s.out.Enqueue(outbox.Command{Op: outbox.OpDelete, Collection: dal.Events, ID: ev.ID})

	if ev.Type == models.SubOut {
		s.lineup.Credit(s.clock.Lap())
		if err := s.lineup.Swap(ev.Meta[models.MetaIn], ev.PlayerID); err != nil {
			logger.Warn("undo substitution left lineup unchanged", "event", ev.ID, "error", err)
		}
	}
	return ev, nil
}

// Redo restores the most recently undone event and persists it again
func (s *Session) Redo() (models.Event, error) {
	if err := s.requireLive(); err != nil {
		return models.Event{}, err
	}
	ev, err := s.log.Redo()
	if err != nil {
		return models.Event{}, err
	}
	s.out.Enqueue(outbox.Command{Op: outbox.OpPut, Collection: dal.Events, ID: ev.ID, Record: ev})

	if ev.Type == models.SubOut {
		s.lineup.Credit(s.clock.Lap())
		if err := s.lineup.Swap(ev.PlayerID, ev.Meta[models.MetaIn]); err != nil {
			logger.Warn("redo substitution left lineup unchanged", "event", ev.ID, "error", err)
		}
	}
	return ev, nil
}

// Finalize stops the clock, persists the game and a played-time summary.
// Calling it again overwrites the game and writes another summary.
func (s *Session) Finalize() error {
	_, err := s.FinalizeWithLineup()
	return err
}

// FinalizeWithLineup is Finalize returning the summary it persisted
func (s *Session) FinalizeWithLineup() (models.LineupSummary, error) {
	s.lineup.Credit(s.clock.Pause())
	s.phase = Finalized

	game := s.Game()
	s.out.Enqueue(outbox.Command{Op: outbox.OpPut, Collection: dal.Games, ID: game.ID, Record: game})

	summary := models.LineupSummary{
		ID:        s.newID("lineup"),
		GameID:    game.ID,
		PlayedMs:  s.lineup.PlayedMs(),
		Timestamp: s.now().UTC().Format(models.TimestampLayout),
	}
	s.out.Enqueue(outbox.Command{Op: outbox.OpAdd, Collection: dal.Lineups, ID: summary.ID, Record: summary})
	return summary, nil
}

func (s *Session) requireLive() error {
	switch s.phase {
	case Finalized:
		return ErrFinalized
	case Setup:
		return ErrNotLive
	}
	return nil
}

// ElapsedMs is the current period's running time, recomputed on every call
func (s *Session) ElapsedMs() int64 { return s.clock.Elapsed().Milliseconds() }

// Period is the current period, starting at 1
func (s *Session) Period() int { return s.clock.Period() }

// Running reports whether the game clock is ticking
func (s *Session) Running() bool { return s.clock.Running() }

// OnCourt returns the five players on the floor in slot order
func (s *Session) OnCourt() []string { return s.lineup.OnCourt() }

// Bench returns everyone else on the roster
func (s *Session) Bench() []string { return s.lineup.Bench() }

// PlayedMs is cumulative on-court time per player. While the clock runs it
// includes the open interval.
func (s *Session) PlayedMs() map[string]int64 {
	played := s.lineup.PlayedMs()
	if started, ok := s.clock.StartedAt(); ok {
		open := s.now().Sub(started).Milliseconds()
		if open > 0 {
			for _, id := range s.lineup.OnCourt() {
				played[id] += open
			}
		}
	}
	return played
}

// Events returns the log newest first
func (s *Session) Events() []models.Event { return s.log.Events() }

// CanUndo and CanRedo report whether the matching history is non-empty
func (s *Session) CanUndo() bool { return s.log.CanUndo() }

func (s *Session) CanRedo() bool { return s.log.CanRedo() }
