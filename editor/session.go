// Package editor assembles the pieces a visual editor drives: the live layer
// store, the history ledger restoring into it, the diff classifier, and
// optional snapshot persistence.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	history "github.com/goliatone/go-history"
	"github.com/goliatone/go-history/layer"
	"github.com/goliatone/go-history/pkg/activity"
	"github.com/goliatone/go-history/pkg/config"
	"github.com/goliatone/go-history/pkg/state"
	"github.com/goliatone/go-history/rules"
)

var (
	ErrNoPersistence      = errors.New("editor: no persistence store configured")
	ErrDocumentIDRequired = errors.New("editor: document id is required")
)

// Session is one open document. Its mutating methods are serialised so that
// each store write lands in history before the next write or restore starts.
// Listeners and activity hooks run while that lock is held and must not call
// back into the Session. Writes made directly through Store bypass the lock.
type Session struct {
	mu        sync.Mutex
	opts      options
	store     *layer.Store
	history   *history.History[layer.Document]
	autosaver *state.Autosaver[layer.Document]
	emitter   *activity.Emitter
	cancel    func()
}

// New starts a session editing a copy of initial.
func New(initial layer.Document, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	s := &Session{
		opts:    o,
		store:   layer.NewStore(initial, o.storeOpts...),
		emitter: activity.NewEmitter(o.hooks, activity.Config{Enabled: true}),
	}

	classifier := o.classifier
	if classifier == nil {
		classifier = layer.NewClassifier(layer.WithRules(o.rules), layer.WithClassifierLogger(o.logger))
	}
	historyOpts := []history.Option[layer.Document]{
		history.WithMaxHistory[layer.Document](o.maxHistory),
		history.WithClassifier[layer.Document](classifier),
		history.WithTarget[layer.Document](s.store),
		history.WithLogger[layer.Document](history.NewSlogLogger(o.logger)),
		history.WithActivityHooks[layer.Document](o.hooks),
		history.WithClock[layer.Document](o.now),
		history.WithDocumentID[layer.Document](o.documentID),
		history.WithActor[layer.Document](o.actorID),
		history.WithTenant[layer.Document](o.tenantID),
	}
	s.history = history.New(s.store.Document(), append(historyOpts, o.historyOpts...)...)

	if o.autosave {
		if o.persist == nil {
			return nil, ErrNoPersistence
		}
		if o.documentID == "" {
			return nil, ErrDocumentIDRequired
		}
		saver, err := state.NewAutosaver(o.persist,
			state.WithAutosaveLogger(o.logger),
			state.WithAutosaveClock(o.now),
			state.WithSaveTimeout(o.saveTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("editor: autosave: %w", err)
		}
		s.autosaver = saver
	}

	s.cancel = s.store.OnChange(s.changed)
	return s, nil
}

// Open loads the latest snapshot of documentID from store (an empty document
// when none exists) and starts a session on it.
func Open(ctx context.Context, store state.Store[layer.Document], documentID string, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, ErrNoPersistence
	}
	if documentID == "" {
		return nil, ErrDocumentIDRequired
	}
	record, ok, err := store.Load(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("editor: load %q: %w", documentID, err)
	}
	initial := layer.Document{}
	if ok {
		initial = record.State
	}
	opts = append([]Option{WithDocumentID(documentID), WithPersistence(store)}, opts...)
	return New(initial, opts...)
}

// FromConfig opens a session as described by cfg. When autosave is enabled
// the SQLite database at cfg.Autosave.Path is opened and closed with the
// session; otherwise the document starts empty with no persistence.
func FromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	set, err := cfg.RuleSet(rules.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	base := []Option{WithMaxHistory(cfg.MaxHistory), WithRules(set)}
	if cfg.DocumentID != "" {
		base = append(base, WithDocumentID(cfg.DocumentID))
	}
	if cfg.TenantID != "" {
		base = append(base, WithTenant(cfg.TenantID))
	}
	if !cfg.Autosave.Enabled {
		return New(layer.Document{}, append(base, opts...)...)
	}

	documentID := cfg.DocumentID
	if o.documentID != "" {
		documentID = o.documentID
	}
	store, err := state.OpenSQLite[layer.Document](cfg.Autosave.Path, state.WithMkdirAll())
	if err != nil {
		return nil, fmt.Errorf("editor: %w", err)
	}
	base = append(base, WithAutosave(cfg.Autosave.Timeout), withCloser(store.Close))
	session, err := Open(ctx, store, documentID, append(base, opts...)...)
	if err != nil {
		store.Close()
		return nil, err
	}
	return session, nil
}

func (s *Session) changed(doc layer.Document) {
	if !s.opts.manual {
		s.history.Commit(doc)
	}
	if s.autosaver != nil {
		if err := s.autosaver.Save(s.opts.documentID, doc); err != nil {
			s.opts.logger.Warn("autosave rejected", slog.String("document_id", s.opts.documentID), slog.Any("error", err))
		}
	}
}

// DocumentID returns the id used for persistence, possibly empty.
func (s *Session) DocumentID() string { return s.opts.documentID }

// Store exposes the live layer store.
func (s *Session) Store() *layer.Store { return s.store }

// History exposes the ledger.
func (s *Session) History() *history.History[layer.Document] { return s.history }

// Document returns a copy of the live document.
func (s *Session) Document() layer.Document { return s.store.Document() }

func (s *Session) AddLayer(partial layer.Layer, opts ...layer.AddOption) layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.AddLayer(partial, opts...)
}

func (s *Session) UpdateLayer(id string, patch layer.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.UpdateLayer(id, patch)
}

func (s *Session) RemoveLayer(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.RemoveLayer(id)
}

func (s *Session) ReorderLayers(from, to int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ReorderLayers(from, to)
}

func (s *Session) DuplicateLayer(id string) (layer.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DuplicateLayer(id)
}

func (s *Session) MoveLayerUp(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.MoveLayerUp(id)
}

func (s *Session) MoveLayerDown(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.MoveLayerDown(id)
}

func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Select(id)
}

// Commit records the live document. With auto-commit on it is rarely needed;
// with WithManualCommit it is how gestures land in history.
func (s *Session) Commit() (history.Entry[layer.Document], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Commit(s.store.Document())
}

func (s *Session) Undo() (history.Entry[layer.Document], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undo()
}

func (s *Session) Redo() (history.Entry[layer.Document], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redo()
}

func (s *Session) JumpTo(index int) (history.Entry[layer.Document], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.JumpTo(index)
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }

func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// Entries returns the history timeline, oldest first.
func (s *Session) Entries() []history.Entry[layer.Document] { return s.history.Entries() }

// Save writes the live document synchronously. Failures are returned to the
// caller and leave history untouched.
func (s *Session) Save(ctx context.Context) error {
	if s.opts.persist == nil {
		return ErrNoPersistence
	}
	if s.opts.documentID == "" {
		return ErrDocumentIDRequired
	}
	savedAt := s.opts.now()
	s.mu.Lock()
	record := state.Record[layer.Document]{State: s.store.Document(), SavedAt: savedAt}
	current, cursor, length := s.history.Current(), s.history.Cursor(), s.history.Len()
	s.mu.Unlock()

	if err := s.opts.persist.Save(ctx, s.opts.documentID, record); err != nil {
		s.opts.logger.Warn("save failed", slog.String("document_id", s.opts.documentID), slog.Any("error", err))
		return fmt.Errorf("editor: save %q: %w", s.opts.documentID, err)
	}

	err := s.emitter.Emit(ctx, activity.BuildSavedEvent(activity.HistoryEventInput{
		ActorID:     s.opts.actorID,
		TenantID:    s.opts.tenantID,
		DocumentID:  s.opts.documentID,
		EntryID:     current.ID,
		Action:      string(current.Action),
		Description: current.Description,
		Cursor:      cursor,
		Length:      length,
		OccurredAt:  savedAt,
	}))
	if err != nil {
		s.opts.logger.Warn("save activity hook failed", slog.String("document_id", s.opts.documentID), slog.Any("error", err))
	}
	return nil
}

// Close detaches the session from the store, drains pending autosaves and
// releases resources opened on its behalf.
func (s *Session) Close(ctx context.Context) error {
	s.cancel()
	var errs []error
	if s.autosaver != nil {
		if err := s.autosaver.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("editor: drain autosave: %w", err))
		}
	}
	for _, closeFn := range s.opts.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
