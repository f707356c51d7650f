package agentloop

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/martinemde/cliengineer/artifact"
	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/events"
)

// scriptedModel answers prompts by phase: plan prompts, review prompts and
// everything else (step prompts) each draw from their own queue. When a
// queue runs dry its last response repeats.
type scriptedModel struct {
	mu       sync.Mutex
	plans    []string
	steps    []string
	reviews  []string
	err      error
	errOn    string
	prompts  []string
	planHits int
}

func (m *scriptedModel) SendPrompt(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)

	phase := "step"
	switch {
	case strings.Contains(prompt, "You are planning work"):
		phase = "plan"
		m.planHits++
	case strings.Contains(prompt, "You are a senior engineer reviewing"):
		phase = "review"
	}
	if m.err != nil && (m.errOn == "" || m.errOn == phase) {
		return "", m.err
	}
	switch phase {
	case "plan":
		return next(&m.plans), nil
	case "review":
		return next(&m.reviews), nil
	default:
		return next(&m.steps), nil
	}
}

func (m *scriptedModel) ContextSize() int { return 100000 }

func (m *scriptedModel) promptsContaining(s string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.prompts {
		if strings.Contains(p, s) {
			out = append(out, p)
		}
	}
	return out
}

func next(queue *[]string) string {
	q := *queue
	if len(q) == 0 {
		return ""
	}
	head := q[0]
	if len(q) > 1 {
		*queue = q[1:]
	}
	return head
}

// recordingSink collects emitted events.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(e events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) ofKind(kind events.Kind) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// memoryConversation is a ConversationStore that keeps messages in a slice.
type memoryConversation struct {
	mu       sync.Mutex
	messages []conversation.Message
	failAdd  bool
}

func (c *memoryConversation) AddMessage(_ context.Context, _ string, role, content string) error {
	if c.failAdd {
		return errors.New("conversation unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, conversation.Message{Role: role, Content: content})
	return nil
}

func (c *memoryConversation) SystemMessages(string) ([]conversation.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []conversation.Message
	for _, m := range c.messages {
		if m.Role == conversation.RoleSystem {
			out = append(out, m)
		}
	}
	return out, nil
}

func newStore(t *testing.T) *artifact.Manager {
	t.Helper()
	store, err := artifact.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("new artifact manager: %v", err)
	}
	return store
}

func artifactBlock(filename, typ, content string) string {
	return "<artifact filename=\"" + filename + "\" type=\"" + typ + "\">\n<![CDATA[\n" + content + "]]>\n</artifact>\n"
}
