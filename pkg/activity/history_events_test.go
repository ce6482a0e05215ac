package activity

import "testing"

func TestBuildCommittedEventPopulatesMetadata(t *testing.T) {
	event := BuildCommittedEvent(HistoryEventInput{
		ActorID:     " u1 ",
		DocumentID:  " doc-9 ",
		EntryID:     "e-3",
		Action:      "move",
		Description: "moved 'Title'",
		Cursor:      3,
		Length:      4,
		Evicted:     1,
		Metadata:    map[string]any{"tool": "thumbnail"},
	})

	if event.Verb != VerbCommitted || event.ObjectType != ObjectTypeDocument || event.ObjectID != "doc-9" {
		t.Fatalf("unexpected routing fields: %+v", event)
	}
	if event.ActorID != "u1" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	want := map[string]any{
		"tool":        "thumbnail",
		"entry_id":    "e-3",
		"action":      "move",
		"description": "moved 'Title'",
		"cursor":      3,
		"length":      4,
		"evicted":     1,
	}
	for key, value := range want {
		if event.Metadata[key] != value {
			t.Fatalf("metadata[%q] = %v, want %v", key, event.Metadata[key], value)
		}
	}
}

func TestBuildEventObjectIDFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		input HistoryEventInput
		want  string
	}{
		{name: "document", input: HistoryEventInput{DocumentID: "d"}, want: "d"},
		{name: "entry", input: HistoryEventInput{EntryID: "e"}, want: "e"},
		{name: "default", input: HistoryEventInput{}, want: ObjectTypeDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildUndoneEvent(tt.input).ObjectID; got != tt.want {
				t.Fatalf("ObjectID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildersUseDistinctVerbs(t *testing.T) {
	input := HistoryEventInput{DocumentID: "d"}
	verbs := map[string]string{
		BuildCommittedEvent(input).Verb: VerbCommitted,
		BuildUndoneEvent(input).Verb:    VerbUndone,
		BuildRedoneEvent(input).Verb:    VerbRedone,
		BuildJumpedEvent(input).Verb:    VerbJumped,
		BuildSavedEvent(input).Verb:     VerbSaved,
	}
	if len(verbs) != 5 {
		t.Fatalf("expected five distinct verbs, got %v", verbs)
	}
	for got, want := range verbs {
		if got != want {
			t.Fatalf("verb %q, want %q", got, want)
		}
	}
}
