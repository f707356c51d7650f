// Package conversation keeps per-run message history, tracks its token
// footprint against the model's context window, and compresses old messages
// into a model-written summary when the window fills up.
package conversation

import (
	"errors"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrContextNotFound is returned for an unknown context id.
var ErrContextNotFound = errors.New("context not found")

// Message is one entry in a conversation. TokenCount is fixed when the
// message is added.
type Message struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Context is a conversation. TotalTokens always equals the sum of the
// messages' TokenCount.
type Context struct {
	ID          string            `json:"id"`
	Messages    []Message         `json:"messages"`
	TotalTokens int               `json:"total_tokens"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`

	// generation changes whenever Messages is replaced rather than appended.
	generation int
}

func (c *Context) clone() Context {
	out := *c
	out.Messages = append([]Message(nil), c.Messages...)
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

func sumTokens(msgs []Message) int {
	total := 0
	for _, m := range msgs {
		total += m.TokenCount
	}
	return total
}

// CompressedContext is the archived record of one compression. It is never
// folded back into a live conversation.
type CompressedContext struct {
	ContextID            string    `json:"context_id"`
	Summary              string    `json:"summary"`
	KeyPoints            []string  `json:"key_points"`
	MessagesCompressed   int       `json:"messages_compressed"`
	OriginalTokenCount   int       `json:"original_token_count"`
	CompressedTokenCount int       `json:"compressed_token_count"`
	CreatedAt            time.Time `json:"created_at"`
}
