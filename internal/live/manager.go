// Package live owns the single game being scored on this instance and turns
// every session mutation into a persisted, broadcast update.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/clickhouse"
	"github.com/Billy-Davies-2/basket-tracker/internal/clock"
	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/logger"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
	"github.com/Billy-Davies-2/basket-tracker/internal/outbox"
	"github.com/Billy-Davies-2/basket-tracker/internal/pubsub"
	"github.com/Billy-Davies-2/basket-tracker/internal/session"
)

const defaultQuarters = 4

// ErrNoSession is returned by every operation until a game is started
var ErrNoSession = errors.New("no active session")

// Publisher is the broadcast side of pubsub.PubSub
type Publisher interface {
	Publish(pubsub.Event)
}

// Options wire a Manager. Analytics may be nil.
type Options struct {
	Now              clock.Now
	Outbox           outbox.Sink
	Publisher        Publisher
	Analytics        clickhouse.Analytics
	AnalyticsTimeout time.Duration
}

// Manager serializes access to the active session
type Manager struct {
	mu   sync.Mutex
	sess *session.Session

	repo      *dal.Repository
	now       clock.Now
	out       outbox.Sink
	pub       Publisher
	analytics clickhouse.Analytics
	timeout   time.Duration
	replicas  sync.WaitGroup
}

type nopPublisher struct{}

func (nopPublisher) Publish(pubsub.Event) {}

// NewManager creates a manager with no active session
func NewManager(repo *dal.Repository, opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Outbox == nil {
		opts.Outbox = outbox.Discard{}
	}
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.AnalyticsTimeout <= 0 {
		opts.AnalyticsTimeout = 30 * time.Second
	}
	return &Manager{
		repo:      repo,
		now:       opts.Now,
		out:       opts.Outbox,
		pub:       opts.Publisher,
		analytics: opts.Analytics,
		timeout:   opts.AnalyticsTimeout,
	}
}

// Repository exposes the store the manager persists to
func (m *Manager) Repository() *dal.Repository { return m.repo }

// NewSession replaces any active session with a fresh one for game and
// stores the game right away so it is listed while play is under way
func (m *Manager) NewSession(game models.Game) (session.View, error) {
	if game.DateISO == "" {
		game.DateISO = m.now().UTC().Format(time.RFC3339)
	}
	if game.Quarters <= 0 {
		game.Quarters = defaultQuarters
	}
	s, err := session.New(game, session.Options{Now: m.now, Outbox: m.out})
	if err != nil {
		return session.View{}, err
	}

	m.mu.Lock()
	m.sess = s
	v := s.View()
	m.out.Enqueue(outbox.Command{Op: outbox.OpPut, Collection: dal.Games, ID: v.Game.ID, Record: v.Game})
	m.mu.Unlock()

	logger.Info("Session created", "game", v.Game.ID, "opponent", v.Game.Opponent, "roster", len(v.Game.Roster))
	m.publish(pubsub.SessionCreate, map[string]any{"gameId": v.Game.ID})
	return v, nil
}

// View snapshots the active session
func (m *Manager) View() (session.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return session.View{}, ErrNoSession
	}
	return m.sess.View(), nil
}

// do runs fn against the active session under the lock and returns the
// resulting view
func (m *Manager) do(fn func(s *session.Session) error) (session.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return session.View{}, ErrNoSession
	}
	if err := fn(m.sess); err != nil {
		return session.View{}, err
	}
	return m.sess.View(), nil
}

func (m *Manager) SetStartingFive(ids []string) (session.View, error) {
	return m.do(func(s *session.Session) error { return s.SetStartingFive(ids) })
}

func (m *Manager) StartClock() (session.View, error) {
	v, err := m.do(func(s *session.Session) error { return s.StartClock() })
	if err != nil {
		return v, err
	}
	m.publish(pubsub.ClockStart, clockPayload(v))
	return v, nil
}

func (m *Manager) PauseClock() (session.View, error) {
	v, err := m.do(func(s *session.Session) error { return s.PauseClock() })
	if err != nil {
		return v, err
	}
	m.publish(pubsub.ClockPause, clockPayload(v))
	return v, nil
}

func (m *Manager) NextPeriod() (session.View, error) {
	v, err := m.do(func(s *session.Session) error { return s.NextPeriod() })
	if err != nil {
		return v, err
	}
	m.publish(pubsub.PeriodNext, clockPayload(v))
	return v, nil
}

// Substitute swaps outID for inID and returns the SUB_OUT/SUB_IN pair
func (m *Manager) Substitute(outID, inID string) ([]models.Event, session.View, error) {
	var events []models.Event
	v, err := m.do(func(s *session.Session) error {
		var err error
		events, err = s.Substitute(outID, inID)
		return err
	})
	if err != nil {
		return nil, v, err
	}
	m.publish(pubsub.LineupSub, map[string]any{
		"gameId":  v.Game.ID,
		"out":     outID,
		"in":      inID,
		"onCourt": v.OnCourt,
	})
	return events, v, nil
}

func (m *Manager) Record(in session.EventInput) (models.Event, session.View, error) {
	var ev models.Event
	v, err := m.do(func(s *session.Session) error {
		var err error
		ev, err = s.Record(in)
		return err
	})
	if err != nil {
		return ev, v, err
	}
	m.publish(pubsub.EventAdd, eventPayload(ev))
	return ev, v, nil
}

func (m *Manager) Undo() (models.Event, session.View, error) {
	var ev models.Event
	v, err := m.do(func(s *session.Session) error {
		var err error
		ev, err = s.Undo()
		return err
	})
	if err != nil {
		return ev, v, err
	}
	m.publish(pubsub.EventUndo, eventPayload(ev))
	return ev, v, nil
}

func (m *Manager) Redo() (models.Event, session.View, error) {
	var ev models.Event
	v, err := m.do(func(s *session.Session) error {
		var err error
		ev, err = s.Redo()
		return err
	})
	if err != nil {
		return ev, v, err
	}
	m.publish(pubsub.EventRedo, eventPayload(ev))
	return ev, v, nil
}

// Finalize closes the game, then replicates it to analytics in the background
func (m *Manager) Finalize() (models.LineupSummary, session.View, error) {
	var (
		summary models.LineupSummary
		events  []models.Event
	)
	v, err := m.do(func(s *session.Session) error {
		var err error
		summary, err = s.FinalizeWithLineup()
		events = s.Events()
		return err
	})
	if err != nil {
		return summary, v, err
	}

	logger.Info("Game finalized", "game", v.Game.ID, "events", len(events))
	m.publish(pubsub.GameFinalize, map[string]any{
		"gameId":   v.Game.ID,
		"lineupId": summary.ID,
		"playedMs": summary.PlayedMs,
	})
	m.replicate(v.Game, events)
	return summary, v, nil
}

func (m *Manager) replicate(game models.Game, events []models.Event) {
	if m.analytics == nil {
		return
	}
	m.replicas.Add(1)
	go func() {
		defer m.replicas.Done()
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.analytics.RecordGame(ctx, game, events); err != nil {
			logger.Warn("analytics replication failed", "game", game.ID, "error", err)
			return
		}
		logger.Debug("analytics replication done", "game", game.ID, "events", len(events))
	}()
}

// Import replaces the whole store with a backup and announces it. The
// payload is validated before the active session is touched.
func (m *Manager) Import(ctx context.Context, raw []byte) error {
	docs, err := dal.ParseImport(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.drop(ctx); err != nil {
		return err
	}
	if err := m.repo.Restore(ctx, docs); err != nil {
		return err
	}
	m.publish(pubsub.StoreImport, map[string]any{"source": "import"})
	return nil
}

// Seed replaces the store with the demo data set
func (m *Manager) Seed(ctx context.Context) ([]models.Player, models.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.drop(ctx); err != nil {
		return nil, models.Game{}, err
	}
	players, game, err := m.repo.SeedDemo(ctx)
	if err != nil {
		return nil, models.Game{}, err
	}
	m.publish(pubsub.StoreImport, map[string]any{"source": "seed", "gameId": game.ID})
	return players, game, nil
}

// Clear empties the store, or only the game history when keepPlayers is set.
// Either way the active session is dropped.
func (m *Manager) Clear(ctx context.Context, keepPlayers bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.drop(ctx); err != nil {
		return err
	}

	var err error
	if keepPlayers {
		err = m.repo.ClearHistory(ctx)
	} else {
		err = m.repo.ClearAll(ctx)
	}
	if err != nil {
		return err
	}
	m.publish(pubsub.StoreImport, map[string]any{"source": "clear", "keepPlayers": keepPlayers})
	return nil
}

// drop waits for the active session's queued writes to land, then forgets
// the session so nothing it does later reaches the rewritten store.
// Caller holds m.mu.
func (m *Manager) drop(ctx context.Context) error {
	if f, ok := m.out.(outbox.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return fmt.Errorf("drain pending writes: %w", err)
		}
	}
	if m.sess != nil {
		logger.Info("Session dropped", "game", m.sess.Game().ID)
		m.sess = nil
	}
	return nil
}

// Wait blocks until pending analytics replications finish or ctx ends
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.replicas.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) publish(typ string, payload map[string]any) {
	m.pub.Publish(pubsub.Event{Type: typ, Payload: payload})
}

func clockPayload(v session.View) map[string]any {
	return map[string]any{
		"gameId":    v.Game.ID,
		"period":    v.Period,
		"running":   v.Running,
		"elapsedMs": v.ElapsedMs,
	}
}

func eventPayload(ev models.Event) map[string]any {
	return map[string]any{
		"gameId": ev.GameID,
		"event":  ev,
	}
}
