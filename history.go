// Package history implements a bounded, cursor-based undo/redo ledger over
// immutable snapshots of an arbitrary state type.
//
// A History is seeded with an initial entry and only ever grows through
// Commit. Undo, Redo and JumpTo move the cursor and push the selected entry
// back into the configured Target inside a restoring scope; commits issued
// while that scope is open are ignored, so observers of the live state can
// commit unconditionally without corrupting the cursor.
//
// Invariants, after every operation:
//
//	0 <= Cursor() < Len() <= MaxHistory()
//	CanUndo() == (Cursor() > 0)
//	CanRedo() == (Cursor() < Len()-1)
package history

import (
	"context"
	"sync"

	"github.com/goliatone/go-history/clone"
	"github.com/goliatone/go-history/pkg/activity"
)

// History is the ledger. The zero value is not usable; construct with New.
type History[T any] struct {
	cfg     config[T]
	emitter *activity.Emitter

	mu        sync.Mutex
	entries   []Entry[T]
	cursor    int
	restoring int
}

// New seeds a History with an initial entry holding a copy of initial.
func New[T any](initial T, opts ...Option[T]) *History[T] {
	cfg := applyOptions(opts)
	ac := activity.Config{Enabled: true}
	if cfg.activitySet {
		ac = cfg.activityConfig
	}
	h := &History[T]{
		cfg:     cfg,
		emitter: activity.NewEmitter(cfg.hooks, ac),
	}
	h.entries = []Entry[T]{h.initialEntry(initial)}
	return h
}

func (h *History[T]) initialEntry(state T) Entry[T] {
	return Entry[T]{
		ID:          h.cfg.newID(),
		Timestamp:   h.cfg.now(),
		Action:      ActionInitial,
		Description: "initial state",
		state:       clone.Value(state),
	}
}

// Commit records state as a new entry after the cursor, discarding any redo
// branch. It reports false, leaving the ledger untouched, when a restore is in
// progress, when state equals the entry at the cursor, or when the classifier
// labels the change ActionNone.
func (h *History[T]) Commit(state T) (Entry[T], bool) {
	h.mu.Lock()
	if h.restoring > 0 {
		event := h.eventLocked(OpCommit, skipRestoring)
		h.mu.Unlock()
		h.cfg.logger.LogTransition(event)
		return Entry[T]{}, false
	}

	current := h.entries[h.cursor]
	if h.cfg.equal(current.state, state) {
		event := h.eventLocked(OpCommit, skipUnchanged)
		h.mu.Unlock()
		h.cfg.logger.LogTransition(event)
		return Entry[T]{}, false
	}

	action := h.classify(current.state, state)
	if action.Type == ActionNone {
		event := h.eventLocked(OpCommit, skipNoop)
		h.mu.Unlock()
		h.cfg.logger.LogTransition(event)
		return Entry[T]{}, false
	}

	entry := Entry[T]{
		ID:          h.cfg.newID(),
		Timestamp:   h.cfg.now(),
		Action:      action.Type,
		Description: action.Description,
		state:       clone.Value(state),
	}

	entries := append(h.entries[:h.cursor+1:h.cursor+1], entry)
	evicted := 0
	if over := len(entries) - h.cfg.maxHistory; over > 0 {
		evicted = over
		entries = append([]Entry[T](nil), entries[over:]...)
	}
	h.entries = entries
	h.cursor = len(entries) - 1

	event := h.eventLocked(OpCommit, "")
	event.EntryID = entry.ID
	event.Action = entry.Action
	event.Evicted = evicted
	h.mu.Unlock()

	h.cfg.logger.LogTransition(event)
	h.emit(activity.BuildCommittedEvent, entry, event)
	return entry, true
}

// Undo moves the cursor one step back and restores that entry. It reports
// false when there is nothing to undo.
func (h *History[T]) Undo() (Entry[T], bool) {
	h.mu.Lock()
	if h.cursor == 0 {
		event := h.eventLocked(OpUndo, skipAtStart)
		h.mu.Unlock()
		h.cfg.logger.LogTransition(event)
		return Entry[T]{}, false
	}
	return h.moveLocked(OpUndo, h.cursor-1, activity.BuildUndoneEvent), true
}

// Redo moves the cursor one step forward and restores that entry. It reports
// false when there is nothing to redo.
func (h *History[T]) Redo() (Entry[T], bool) {
	h.mu.Lock()
	if h.cursor == len(h.entries)-1 {
		event := h.eventLocked(OpRedo, skipAtEnd)
		h.mu.Unlock()
		h.cfg.logger.LogTransition(event)
		return Entry[T]{}, false
	}
	return h.moveLocked(OpRedo, h.cursor+1, activity.BuildRedoneEvent), true
}

// JumpTo moves the cursor to index and restores that entry. Out of range
// indexes report false and leave the ledger untouched.
func (h *History[T]) JumpTo(index int) (Entry[T], bool) {
	h.mu.Lock()
	if index < 0 || index >= len(h.entries) {
		event := h.eventLocked(OpJump, skipOutOfRange)
		h.mu.Unlock()
		h.cfg.logger.LogTransition(event)
		return Entry[T]{}, false
	}
	return h.moveLocked(OpJump, index, activity.BuildJumpedEvent), true
}

// moveLocked must be called with h.mu held; it releases the lock before the
// target runs so that commits issued by the target observe the open scope.
func (h *History[T]) moveLocked(op Operation, index int, build func(activity.HistoryEventInput) activity.Event) Entry[T] {
	h.cursor = index
	entry := h.entries[index]
	h.restoring++
	event := h.eventLocked(op, "")
	event.EntryID = entry.ID
	event.Action = entry.Action
	h.mu.Unlock()

	h.restore(entry)
	h.cfg.logger.LogTransition(event)
	h.emit(build, entry, event)
	return entry
}

// restore runs the restoring scope opened by moveLocked.
func (h *History[T]) restore(entry Entry[T]) {
	var once sync.Once
	end := func() {
		once.Do(func() {
			h.mu.Lock()
			h.restoring--
			h.mu.Unlock()
		})
	}

	switch {
	case h.cfg.asyncTarget != nil:
		h.cfg.asyncTarget.RestoreAsync(entry.State(), end)
	case h.cfg.target != nil:
		defer end()
		h.cfg.target.Restore(entry.State())
	default:
		end()
	}
}

// Reset discards every entry and reseeds the ledger with initial. The target
// is not invoked; callers load the live state themselves.
func (h *History[T]) Reset(initial T) {
	entry := h.initialEntry(initial)
	h.mu.Lock()
	h.entries = []Entry[T]{entry}
	h.cursor = 0
	event := h.eventLocked(OpReset, "")
	event.EntryID = entry.ID
	event.Action = entry.Action
	h.mu.Unlock()
	h.cfg.logger.LogTransition(event)
}

// Entries returns the timeline, oldest first.
func (h *History[T]) Entries() []Entry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry[T](nil), h.entries...)
}

// Current returns the entry at the cursor.
func (h *History[T]) Current() Entry[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.cursor]
}

// Cursor returns the index of the current entry.
func (h *History[T]) Cursor() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

// Len returns the number of retained entries.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// MaxHistory returns the configured bound.
func (h *History[T]) MaxHistory() int {
	return h.cfg.maxHistory
}

// CanUndo reports whether Undo would move the cursor.
func (h *History[T]) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (h *History[T]) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor < len(h.entries)-1
}

// Restoring reports whether a restore scope is open.
func (h *History[T]) Restoring() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restoring > 0
}

// classify never lets a classifier panic escape; a panic degrades to the
// generic update label.
func (h *History[T]) classify(prev, next T) (action Action) {
	defer func() {
		if r := recover(); r != nil {
			action = Action{Type: ActionUpdate, Description: "updated"}
		}
	}()
	action = h.cfg.classifier.Classify(prev, next)
	if action.Type == "" {
		action.Type = ActionUpdate
	}
	if action.Description == "" && action.Type != ActionNone {
		action.Description = string(action.Type)
	}
	return action
}

func (h *History[T]) eventLocked(op Operation, skipped string) TransitionEvent {
	return TransitionEvent{
		Op:      op,
		Cursor:  h.cursor,
		Length:  len(h.entries),
		Skipped: skipped,
	}
}

func (h *History[T]) emit(build func(activity.HistoryEventInput) activity.Event, entry Entry[T], event TransitionEvent) {
	if !h.emitter.Enabled() {
		return
	}
	err := h.emitter.Emit(context.Background(), build(activity.HistoryEventInput{
		ActorID:     h.cfg.actorID,
		TenantID:    h.cfg.tenantID,
		DocumentID:  h.cfg.documentID,
		EntryID:     entry.ID,
		Action:      string(entry.Action),
		Description: entry.Description,
		Cursor:      event.Cursor,
		Length:      event.Length,
		Evicted:     event.Evicted,
		OccurredAt:  h.cfg.now(),
	}))
	if err != nil {
		event.Err = err
		h.cfg.logger.LogTransition(event)
	}
}
