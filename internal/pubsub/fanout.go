package pubsub

import (
	"slices"
	"sync"

	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
)

// fanout delivers to buffered subscriber channels without blocking; a full
// subscriber misses the event.
type fanout struct {
	mu     sync.RWMutex
	subs   []chan Event
	buffer int
}

func newFanout(buffer int) *fanout {
	return &fanout{buffer: buffer}
}

func (f *fanout) subscribe() chan Event {
	ch := make(chan Event, f.buffer)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	n := len(f.subs)
	f.mu.Unlock()
	logger.Debug("PubSub: subscriber added", "total_subscribers", n)
	return ch
}

func (f *fanout) unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := slices.Index(f.subs, ch); i >= 0 {
		f.subs = slices.Delete(f.subs, i, i+1)
		close(ch)
	}
}

// broadcast holds the read lock while sending so unsubscribe cannot close a
// channel mid-send
func (f *fanout) broadcast(event Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- event:
		default:
			logger.Warn("PubSub: skipping slow subscriber", "event_type", event.Type)
		}
	}
}

func (f *fanout) count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
