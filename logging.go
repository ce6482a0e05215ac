package history

import (
	"context"
	"log/slog"
)

// Operation names the ledger transition that produced a TransitionEvent.
type Operation string

const (
	OpCommit Operation = "commit"
	OpUndo   Operation = "undo"
	OpRedo   Operation = "redo"
	OpJump   Operation = "jump"
	OpReset  Operation = "reset"
)

// TransitionEvent describes one ledger operation for logging.
type TransitionEvent struct {
	Op      Operation
	EntryID string
	Action  ActionType
	Cursor  int
	Length  int
	Evicted int
	// Skipped is non-empty when the operation left the ledger untouched.
	Skipped string
	Err     error
}

const (
	skipRestoring  = "restoring"
	skipUnchanged  = "unchanged"
	skipNoop       = "classified as no-op"
	skipAtStart    = "nothing to undo"
	skipAtEnd      = "nothing to redo"
	skipOutOfRange = "index out of range"
)

// Logger records ledger transitions.
type Logger interface {
	LogTransition(TransitionEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(TransitionEvent)

// LogTransition implements Logger.
func (f LoggerFunc) LogTransition(event TransitionEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogTransition(TransitionEvent) {}

// NewSlogLogger logs transitions through logger at debug level, skipped
// operations included, and errors at warn level.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) LogTransition(event TransitionEvent) {
	attrs := []slog.Attr{
		slog.String("op", string(event.Op)),
		slog.Int("cursor", event.Cursor),
		slog.Int("length", event.Length),
	}
	if event.EntryID != "" {
		attrs = append(attrs, slog.String("entry_id", event.EntryID))
	}
	if event.Action != "" {
		attrs = append(attrs, slog.String("action", string(event.Action)))
	}
	if event.Evicted > 0 {
		attrs = append(attrs, slog.Int("evicted", event.Evicted))
	}
	if event.Skipped != "" {
		attrs = append(attrs, slog.String("skipped", event.Skipped))
	}
	if event.Err != nil {
		attrs = append(attrs, slog.Any("error", event.Err))
		l.logger.LogAttrs(context.Background(), slog.LevelWarn, "history transition", attrs...)
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "history transition", attrs...)
}
