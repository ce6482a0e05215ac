package state

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDocumentIDRequired = errors.New("state: document id is required")
	ErrStoreRequired      = errors.New("state: store is required")
	ErrClosed             = errors.New("state: autosaver is closed")
)

// Record is one persisted snapshot.
type Record[T any] struct {
	State   T         `json:"state"`
	SavedAt time.Time `json:"saved_at"`
}

// Store loads/saves the latest snapshot of one document.
type Store[T any] interface {
	Save(ctx context.Context, documentID string, record Record[T]) error
	Load(ctx context.Context, documentID string) (record Record[T], ok bool, err error)
}
