package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/goliatone/go-history/clone"
)

// AutosaveOption configures an Autosaver.
type AutosaveOption func(*autosaveConfig)

type autosaveConfig struct {
	logger   *slog.Logger
	onResult func(documentID string, err error)
	now      func() time.Time
	timeout  time.Duration
}

// WithAutosaveLogger receives one record per save attempt.
func WithAutosaveLogger(logger *slog.Logger) AutosaveOption {
	return func(c *autosaveConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnResult is called from the worker after every save attempt.
func WithOnResult(fn func(documentID string, err error)) AutosaveOption {
	return func(c *autosaveConfig) { c.onResult = fn }
}

// WithAutosaveClock stamps Record.SavedAt.
func WithAutosaveClock(now func() time.Time) AutosaveOption {
	return func(c *autosaveConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSaveTimeout bounds every Store.Save call. Zero means no limit.
func WithSaveTimeout(d time.Duration) AutosaveOption {
	return func(c *autosaveConfig) { c.timeout = d }
}

// Autosaver writes snapshots in the background. Save never blocks on the
// store; while a write is in flight, newer snapshots of the same document
// replace older pending ones so only the latest is written.
type Autosaver[T any] struct {
	store Store[T]
	cfg   autosaveConfig

	mu      sync.Mutex
	pending map[string]T
	order   []string
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewAutosaver starts the worker goroutine. Call Close to stop it.
func NewAutosaver[T any](store Store[T], opts ...AutosaveOption) (*Autosaver[T], error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	cfg := autosaveConfig{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	a := &Autosaver[T]{
		store:   store,
		cfg:     cfg,
		pending: map[string]T{},
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go a.run()
	return a, nil
}

// Save queues a copy of state for documentID and returns immediately.
func (a *Autosaver[T]) Save(documentID string, state T) error {
	if documentID == "" {
		return ErrDocumentIDRequired
	}
	snapshot := clone.Value(state)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if _, queued := a.pending[documentID]; !queued {
		a.order = append(a.order, documentID)
	}
	a.pending[documentID] = snapshot
	a.mu.Unlock()

	a.signal()
	return nil
}

// Close stops accepting saves and waits until queued snapshots are written or
// ctx is done.
func (a *Autosaver[T]) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.signal()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Autosaver[T]) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *Autosaver[T]) next() (documentID string, state T, ok, closed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.order) == 0 {
		return "", state, false, a.closed
	}
	documentID = a.order[0]
	a.order = a.order[1:]
	state = a.pending[documentID]
	delete(a.pending, documentID)
	return documentID, state, true, a.closed
}

func (a *Autosaver[T]) run() {
	defer close(a.done)
	for {
		documentID, snapshot, ok, closed := a.next()
		if !ok {
			if closed {
				return
			}
			<-a.wake
			continue
		}
		a.write(documentID, snapshot)
	}
}

func (a *Autosaver[T]) write(documentID string, snapshot T) {
	ctx := context.Background()
	if a.cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.timeout)
		defer cancel()
	}

	err := a.store.Save(ctx, documentID, Record[T]{State: snapshot, SavedAt: a.cfg.now()})
	if err != nil {
		a.cfg.logger.Warn("autosave failed", slog.String("document_id", documentID), slog.Any("error", err))
	} else {
		a.cfg.logger.Debug("autosaved", slog.String("document_id", documentID))
	}
	if a.cfg.onResult != nil {
		a.cfg.onResult(documentID, err)
	}
}
