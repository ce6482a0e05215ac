package state_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-history/pkg/state"
)

// gatedStore blocks every Save until release is closed and records titles in
// write order.
type gatedStore struct {
	mu      sync.Mutex
	titles  []string
	started chan string
	release chan struct{}
	fail    error
}

func newGatedStore() *gatedStore {
	return &gatedStore{started: make(chan string, 16), release: make(chan struct{})}
}

func (s *gatedStore) Save(_ context.Context, documentID string, record state.Record[snapshot]) error {
	s.started <- documentID
	<-s.release
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, documentID+":"+record.State.Title)
	return s.fail
}

func (s *gatedStore) Load(context.Context, string) (state.Record[snapshot], bool, error) {
	return state.Record[snapshot]{}, false, nil
}

func (s *gatedStore) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

func closeWithin(t *testing.T, a interface{ Close(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestAutosaverCoalescesPendingSaves(t *testing.T) {
	store := newGatedStore()
	saver, err := state.NewAutosaver[snapshot](store)
	if err != nil {
		t.Fatalf("new autosaver: %v", err)
	}

	if err := saver.Save("doc", snapshot{Title: "1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	<-store.started
	for _, title := range []string{"2", "3", "4"} {
		if err := saver.Save("doc", snapshot{Title: title}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := saver.Save("other", snapshot{Title: "a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	close(store.release)
	closeWithin(t, saver)

	got := store.written()
	want := []string{"doc:1", "doc:4", "other:a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestAutosaverReportsResults(t *testing.T) {
	store := newGatedStore()
	store.fail = errors.New("disk full")
	close(store.release)

	var mu sync.Mutex
	results := map[string]error{}
	saver, err := state.NewAutosaver[snapshot](store, state.WithOnResult(func(id string, err error) {
		mu.Lock()
		results[id] = err
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("new autosaver: %v", err)
	}
	if err := saver.Save("doc", snapshot{Title: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	closeWithin(t, saver)

	mu.Lock()
	defer mu.Unlock()
	if err, ok := results["doc"]; !ok || err == nil || err.Error() != "disk full" {
		t.Fatalf("expected reported failure, got %v (ok=%v)", err, ok)
	}
}

func TestAutosaverCopiesState(t *testing.T) {
	store := newGatedStore()
	saver, err := state.NewAutosaver[snapshot](store)
	if err != nil {
		t.Fatalf("new autosaver: %v", err)
	}

	in := snapshot{Title: "before"}
	if err := saver.Save("doc", in); err != nil {
		t.Fatalf("save: %v", err)
	}
	in.Title = "after"
	close(store.release)
	closeWithin(t, saver)

	if got := store.written(); len(got) != 1 || got[0] != "doc:before" {
		t.Fatalf("expected queued copy to be written, got %v", got)
	}
}

func TestAutosaverRejectsAfterClose(t *testing.T) {
	saver, err := state.NewAutosaver[snapshot](state.NewMemoryStore[snapshot]())
	if err != nil {
		t.Fatalf("new autosaver: %v", err)
	}
	closeWithin(t, saver)

	if err := saver.Save("doc", snapshot{}); !errors.Is(err, state.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := saver.Save("", snapshot{}); !errors.Is(err, state.ErrDocumentIDRequired) {
		t.Fatalf("expected ErrDocumentIDRequired, got %v", err)
	}
}

func TestAutosaverCloseHonoursContext(t *testing.T) {
	store := newGatedStore()
	saver, err := state.NewAutosaver[snapshot](store)
	if err != nil {
		t.Fatalf("new autosaver: %v", err)
	}
	if err := saver.Save("doc", snapshot{Title: "slow"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	<-store.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := saver.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(store.release)
	closeWithin(t, saver)
}

func TestNewAutosaverRequiresStore(t *testing.T) {
	if _, err := state.NewAutosaver[snapshot](nil); !errors.Is(err, state.ErrStoreRequired) {
		t.Fatalf("expected ErrStoreRequired, got %v", err)
	}
}
