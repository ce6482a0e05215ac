package history

import (
	"time"

	"github.com/goliatone/go-history/clone"
)

// ActionType labels what a committed change did, for history-list display.
type ActionType string

const (
	// ActionInitial marks the seeded entry every history starts with.
	ActionInitial ActionType = "initial"
	ActionAdd     ActionType = "add"
	ActionDelete  ActionType = "delete"
	ActionMove    ActionType = "move"
	ActionResize  ActionType = "resize"
	ActionRotate  ActionType = "rotate"
	ActionEdit    ActionType = "edit"
	ActionSelect  ActionType = "select"
	// ActionUpdate is the generic label used when a change cannot be narrowed
	// down to a single category.
	ActionUpdate ActionType = "update"
	// ActionNone is returned by classifiers when two states are structurally
	// identical. Commits classified as ActionNone are not recorded.
	ActionNone ActionType = "none"
)

// Action is the classifier output attached to every entry.
type Action struct {
	Type        ActionType
	Description string
}

// Classifier labels the transition from prev to next. Implementations must be
// total: they always return an Action and never panic.
type Classifier[T any] interface {
	Classify(prev, next T) Action
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc[T any] func(prev, next T) Action

// Classify implements Classifier.
func (f ClassifierFunc[T]) Classify(prev, next T) Action {
	if f == nil {
		return Action{Type: ActionUpdate, Description: "updated"}
	}
	return f(prev, next)
}

// Entry is one immutable snapshot in the history timeline. The captured state
// is only reachable through State, which hands out a detached copy.
type Entry[T any] struct {
	ID          string
	Timestamp   time.Time
	Action      ActionType
	Description string

	state T
}

// State returns a deep copy of the captured state.
func (e Entry[T]) State() T {
	return clone.Value(e.state)
}

// Target receives restored states synchronously. Restore must have fully
// applied the state by the time it returns.
type Target[T any] interface {
	Restore(state T)
}

// TargetFunc adapts a function to Target.
type TargetFunc[T any] func(state T)

// Restore implements Target.
func (f TargetFunc[T]) Restore(state T) {
	if f != nil {
		f(state)
	}
}

// AsyncTarget receives restored states whose application completes later.
// The restoring scope stays open until done is invoked.
type AsyncTarget[T any] interface {
	RestoreAsync(state T, done func())
}
