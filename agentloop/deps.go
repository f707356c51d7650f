package agentloop

import (
	"context"

	"github.com/martinemde/cliengineer/artifact"
	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/events"
)

// Model is the language model capability the loop consumes.
type Model interface {
	SendPrompt(ctx context.Context, prompt string) (string, error)
	ContextSize() int
}

// ArtifactStore persists the files produced by executed steps.
type ArtifactStore interface {
	Create(name string, t artifact.Type, content string, metadata map[string]string) (artifact.Artifact, error)
	Update(id, content string) (artifact.Artifact, error)
	List() []artifact.Artifact
	Exists(name string) bool
	GetByName(name string) (artifact.Artifact, bool)
}

// ConversationStore records the dialogue of a run. A nil store disables
// recording.
type ConversationStore interface {
	AddMessage(ctx context.Context, id, role, content string) error
	SystemMessages(id string) ([]conversation.Message, error)
}

// EventSink receives fire-and-forget telemetry.
type EventSink interface {
	Emit(events.Event)
}
