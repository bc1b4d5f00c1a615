// Package eventlog keeps a game's event history with linear undo/redo.
package eventlog

import (
	"errors"
	"slices"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// ErrEmptyHistory means there is nothing to undo or redo
var ErrEmptyHistory = errors.New("empty history")

// Log holds events newest-first alongside the undo and redo stacks.
// Order follows insertion, not TsMs: events sharing a timestamp keep the order
// they were appended in.
type Log struct {
	now    func() time.Time
	events []models.Event
	undo   []models.Event
	redo   []models.Event
}

// New returns an empty log. A nil now uses time.Now.
func New(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{now: now}
}

// Append records ev at the head, stamps it if TsMs is unset and discards
// forward history.
func (l *Log) Append(ev models.Event) models.Event {
	if ev.TsMs == 0 {
		ev.TsMs = l.now().UnixMilli()
	}
	l.events = slices.Insert(l.events, 0, ev)
	l.undo = append(l.undo, ev)
	l.redo = nil
	return ev
}

// Undo removes the most recent undoable event and moves it to the redo stack
func (l *Log) Undo() (models.Event, error) {
	if len(l.undo) == 0 {
		return models.Event{}, ErrEmptyHistory
	}
	last := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]

	if idx := l.indexOf(last.ID); idx >= 0 {
		l.events = slices.Delete(l.events, idx, idx+1)
	}
	l.redo = append(l.redo, last)
	return last, nil
}

// Redo re-inserts the most recently undone event at the head
func (l *Log) Redo() (models.Event, error) {
	if len(l.redo) == 0 {
		return models.Event{}, ErrEmptyHistory
	}
	ev := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]

	l.events = slices.Insert(l.events, 0, ev)
	l.undo = append(l.undo, ev)
	return ev, nil
}

// Events returns a copy of the history, newest first
func (l *Log) Events() []models.Event {
	return slices.Clone(l.events)
}

// Len is the number of events currently in the history
func (l *Log) Len() int { return len(l.events) }

// CanUndo reports whether Undo would succeed
func (l *Log) CanUndo() bool { return len(l.undo) > 0 }

// CanRedo reports whether Redo would succeed
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }

// PeekUndo returns the event Undo would remove next
func (l *Log) PeekUndo() (models.Event, bool) {
	if len(l.undo) == 0 {
		return models.Event{}, false
	}
	return l.undo[len(l.undo)-1], true
}

func (l *Log) indexOf(id string) int {
	return slices.IndexFunc(l.events, func(e models.Event) bool { return e.ID == id })
}
