package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Billy-Davies-2/basket-tracker/internal/dal"
	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// flakyStore fails the first failures writes, then delegates
type flakyStore struct {
	dal.Store
	mu       sync.Mutex
	failures int
	calls    int
}

var errUnavailable = errors.New("store unavailable")

func (f *flakyStore) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return true
	}
	return false
}

func (f *flakyStore) Put(ctx context.Context, c dal.Collection, id string, data []byte) error {
	if f.fail() {
		return errUnavailable
	}
	return f.Store.Put(ctx, c, id, data)
}

func (f *flakyStore) Add(ctx context.Context, c dal.Collection, id string, data []byte) error {
	if f.fail() {
		return errUnavailable
	}
	return f.Store.Add(ctx, c, id, data)
}

func closeQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCommandsApplyInOrder(t *testing.T) {
	store := dal.NewMemoryStore()
	q := New(store, Options{Backoff: time.Millisecond})

	ev := models.Event{ID: "e1", GameID: "g1", Type: models.Steal}
	q.Enqueue(Command{Op: OpAdd, Collection: dal.Events, ID: ev.ID, Record: ev})
	q.Enqueue(Command{Op: OpDelete, Collection: dal.Events, ID: ev.ID})
	ev.Period = 2
	q.Enqueue(Command{Op: OpPut, Collection: dal.Events, ID: ev.ID, Record: ev})
	closeQueue(t, q)

	data, err := store.Get(context.Background(), dal.Events, "e1")
	if err != nil {
		t.Fatalf("expected e1 after put: %v", err)
	}
	if want := `{"id":"e1","gameId":"g1","tsMs":0,"period":2,"type":"STEAL","meta":null}`; string(data) != want {
		t.Fatalf("got %s\nwant %s", data, want)
	}
	if s := q.Stats(); s.Applied != 3 || s.Failed != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestRetryRecovers(t *testing.T) {
	store := &flakyStore{Store: dal.NewMemoryStore(), failures: 2}
	q := New(store, Options{Retries: 3, Backoff: time.Millisecond})

	q.Enqueue(Command{Op: OpPut, Collection: dal.Games, ID: "g1", Record: models.Game{ID: "g1"}})
	closeQueue(t, q)

	if _, err := store.Get(context.Background(), dal.Games, "g1"); err != nil {
		t.Fatalf("expected game stored after retries: %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
}

func TestFailureDoesNotStallQueue(t *testing.T) {
	store := &flakyStore{Store: dal.NewMemoryStore(), failures: 2}
	q := New(store, Options{Retries: 2, Backoff: time.Millisecond})

	q.Enqueue(Command{Op: OpPut, Collection: dal.Games, ID: "lost", Record: models.Game{ID: "lost"}})
	q.Enqueue(Command{Op: OpPut, Collection: dal.Games, ID: "kept", Record: models.Game{ID: "kept"}})
	closeQueue(t, q)

	if _, err := store.Get(context.Background(), dal.Games, "lost"); !errors.Is(err, dal.ErrNotFound) {
		t.Fatalf("expected first command to be given up, got %v", err)
	}
	if _, err := store.Get(context.Background(), dal.Games, "kept"); err != nil {
		t.Fatalf("second command should still apply: %v", err)
	}
	if s := q.Stats(); s.Failed != 1 || s.Applied != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	store := dal.NewMemoryStore()
	store.Add(context.Background(), dal.Events, "dup", []byte(`{}`))
	q := New(store, Options{Retries: 5, Backoff: time.Second})

	start := time.Now()
	q.Enqueue(Command{Op: OpAdd, Collection: dal.Events, ID: "dup", Record: map[string]string{"id": "dup"}})
	q.Enqueue(Command{Op: "merge", Collection: dal.Events, ID: "x"})
	closeQueue(t, q)

	if time.Since(start) > 2*time.Second {
		t.Fatal("permanent failures should not back off")
	}
	if s := q.Stats(); s.Failed != 2 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

// blockingStore holds every write until release is closed
type blockingStore struct {
	dal.Store
	release chan struct{}
}

func (b *blockingStore) Put(ctx context.Context, c dal.Collection, id string, data []byte) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.Store.Put(ctx, c, id, data)
}

func TestEnqueueNeverBlocks(t *testing.T) {
	store := &blockingStore{Store: dal.NewMemoryStore(), release: make(chan struct{})}
	q := New(store, Options{Buffer: 1, Retries: 1})

	start := time.Now()
	for i := 0; i < 20; i++ {
		q.Enqueue(Command{Op: OpPut, Collection: dal.Games, ID: "g", Record: i})
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Enqueue blocked for %v", elapsed)
	}
	if q.Stats().Dropped == 0 {
		t.Fatal("expected commands to be dropped when the buffer is full")
	}

	close(store.release)
	closeQueue(t, q)
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(dal.NewMemoryStore(), Options{})
	closeQueue(t, q)

	q.Enqueue(Command{Op: OpPut, Collection: dal.Games, ID: "late", Record: 1})
	if q.Stats().Dropped != 1 {
		t.Fatalf("expected late command dropped, stats %+v", q.Stats())
	}
	closeQueue(t, q)
}

func TestFlushWaitsForBacklog(t *testing.T) {
	store := &blockingStore{Store: dal.NewMemoryStore(), release: make(chan struct{})}
	q := New(store, Options{Retries: 1})
	for i := 0; i < 3; i++ {
		q.Enqueue(Command{Op: OpPut, Collection: dal.Games, ID: "g", Record: models.Game{ID: "g", Quarters: i}})
	}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Flush(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Flush to wait on a stuck store, got %v", err)
	}

	close(store.release)
	ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if st := q.Stats(); st.Applied != 3 {
		t.Fatalf("expected backlog applied before Flush returned, stats %+v", st)
	}

	closeQueue(t, q)
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("Flush on a drained queue: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Enqueue(Command{Op: OpAdd, ID: "a"})
	r.Enqueue(Command{Op: OpDelete, ID: "a"})

	cmds := r.Commands()
	if len(cmds) != 2 || cmds[1].Op != OpDelete {
		t.Fatalf("unexpected commands %+v", cmds)
	}
	var _ Sink = Discard{}
	var _ Sink = &r
	var _ Flusher = (*Queue)(nil)
}
