package pubsub

import (
	"sync"

	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

// Event types published after each session mutation
const (
	SessionCreate = "session:create"
	ClockStart    = "clock:start"
	ClockPause    = "clock:pause"
	PeriodNext    = "period:next"
	LineupSub     = "lineup:sub"
	EventAdd      = "event:add"
	EventUndo     = "event:undo"
	EventRedo     = "event:redo"
	GameFinalize  = "game:finalize"
	StoreImport   = "store:import"
)

// Event is a live update broadcast to subscribers
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Upstream is a cross-instance publisher such as NATS
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

const historySize = 100

// PubSub fans events out to in-process subscribers, optionally through an upstream
type PubSub struct {
	subs     *fanout
	upstream Upstream

	mu      sync.Mutex
	history []Event
}

// New creates an in-process PubSub
func New() *PubSub {
	return &PubSub{subs: newFanout(10)}
}

// NewWithUpstream creates a PubSub whose publishes go through upstream.
// Everything upstream delivers, including this instance's own events, is
// forwarded to local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{subs: newFanout(10), upstream: upstream}

	ch := upstream.Subscribe()
	go func() {
		for event := range ch {
			logger.Debug("PubSub: event from upstream", "type", event.Type)
			ps.publishLocal(event)
		}
		logger.Debug("PubSub: upstream channel closed")
	}()
	return ps
}

// Subscribe returns a channel receiving every subsequent event
func (ps *PubSub) Subscribe() chan Event {
	return ps.subs.subscribe()
}

// Unsubscribe removes and closes ch
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.subs.unsubscribe(ch)
}

// Publish broadcasts event, via the upstream when one is configured
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.publishLocal(event)
}

// Recent returns up to the last 100 events delivered locally, oldest first
func (ps *PubSub) Recent() []Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Event, len(ps.history))
	copy(out, ps.history)
	return out
}

// SubscriberCount is the number of local subscribers
func (ps *PubSub) SubscriberCount() int {
	return ps.subs.count()
}

func (ps *PubSub) publishLocal(event Event) {
	ps.mu.Lock()
	ps.history = append(ps.history, event)
	if len(ps.history) > historySize {
		ps.history = ps.history[len(ps.history)-historySize:]
	}
	ps.mu.Unlock()

	ps.subs.broadcast(event)
}
