package activity

import (
	"strings"
	"time"
)

const (
	VerbCommitted = "history.committed"
	VerbUndone    = "history.undone"
	VerbRedone    = "history.redone"
	VerbJumped    = "history.jumped"
	VerbSaved     = "document.saved"

	ObjectTypeDocument = "document"
)

// HistoryEventInput describes the fields shared by history lifecycle events.
type HistoryEventInput struct {
	ActorID     string
	TenantID    string
	DocumentID  string
	EntryID     string
	Action      string
	Description string
	Cursor      int
	Length      int
	Evicted     int
	Channel     string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildCommittedEvent describes a new entry appended to the history.
func BuildCommittedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbCommitted, input)
}

// BuildUndoneEvent describes a step back in the history.
func BuildUndoneEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbUndone, input)
}

// BuildRedoneEvent describes a step forward in the history.
func BuildRedoneEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbRedone, input)
}

// BuildJumpedEvent describes a direct move of the cursor to an entry.
func BuildJumpedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbJumped, input)
}

// BuildSavedEvent describes a persisted document snapshot.
func BuildSavedEvent(input HistoryEventInput) Event {
	return buildHistoryEvent(VerbSaved, input)
}

func buildHistoryEvent(verb string, input HistoryEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["cursor"] = input.Cursor
	metadata["length"] = input.Length
	if input.EntryID != "" {
		metadata["entry_id"] = input.EntryID
	}
	if input.Action != "" {
		metadata["action"] = input.Action
	}
	if input.Description != "" {
		metadata["description"] = input.Description
	}
	if input.Evicted > 0 {
		metadata["evicted"] = input.Evicted
	}

	objectID := strings.TrimSpace(input.DocumentID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.EntryID)
	}
	if objectID == "" {
		objectID = ObjectTypeDocument
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeDocument,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
