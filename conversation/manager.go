package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/logging"
)

// Model is the capability the manager needs from a language model: a window
// size to budget against and a prompt call for summaries.
type Model interface {
	SendPrompt(ctx context.Context, prompt string) (string, error)
	ContextSize() int
}

// Emitter receives context telemetry.
type Emitter interface {
	Emit(events.Event)
}

// Config tunes budgeting and persistence.
type Config struct {
	// MaxTokens is used when the model does not advertise a window.
	MaxTokens            int
	CompressionThreshold float64
	CacheEnabled         bool
	CacheDir             string
	ArchiveSize          int
}

// Manager is a registry of conversations keyed by id. Readers may run
// concurrently with one writer per context; compression swaps the message
// list under the write lock.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*Context

	cfg      Config
	model    Model
	emitter  Emitter
	logger   *logging.Logger
	archive  *lru.Cache[string, CompressedContext]
	estimate func(string) int
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithModel supplies the context window and the summarizer.
func WithModel(m Model) Option {
	return func(mgr *Manager) { mgr.model = m }
}

func WithEmitter(e Emitter) Option {
	return func(mgr *Manager) { mgr.emitter = e }
}

func WithLogger(l *logging.Logger) Option {
	return func(mgr *Manager) { mgr.logger = l }
}

// NewManager creates an empty registry.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100000
	}
	if cfg.CompressionThreshold <= 0 {
		cfg.CompressionThreshold = 0.8
	}
	if cfg.ArchiveSize <= 0 {
		cfg.ArchiveSize = 64
	}
	archive, err := lru.New[string, CompressedContext](cfg.ArchiveSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create compression archive: %w", err)
	}
	if cfg.CacheEnabled && cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create context cache dir: %w", err)
		}
	}

	m := &Manager{
		contexts: make(map[string]*Context),
		cfg:      cfg,
		emitter:  events.Discard{},
		logger:   logging.NopLogger(),
		archive:  archive,
		estimate: EstimateTokens,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// MaxTokens returns the active model's window when known, else the
// configured fallback.
func (m *Manager) MaxTokens() int {
	if m.model != nil {
		if n := m.model.ContextSize(); n > 0 {
			return n
		}
	}
	return m.cfg.MaxTokens
}

// Create registers a new empty conversation and returns its id.
func (m *Manager) Create(metadata map[string]string) string {
	id := uuid.New().String()
	now := m.now()

	m.mu.Lock()
	m.contexts[id] = &Context{
		ID:        id,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.mu.Unlock()

	m.emitter.Emit(events.New(events.KindContextCreated, events.KeyContextID, id))
	return id
}

// AddMessage appends a message and, when usage crosses the compression
// threshold, compresses the conversation before returning.
func (m *Manager) AddMessage(ctx context.Context, id, role, content string) error {
	tokens := m.estimate(content)
	maxTokens := m.MaxTokens()

	m.mu.Lock()
	c, ok := m.contexts[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	c.Messages = append(c.Messages, Message{
		ID:         uuid.New().String(),
		Role:       role,
		Content:    content,
		TokenCount: tokens,
		Timestamp:  m.now(),
	})
	c.TotalTokens += tokens
	c.UpdatedAt = m.now()
	total := c.TotalTokens
	m.mu.Unlock()

	ratio := float64(total) / float64(maxTokens)
	if ratio > m.cfg.CompressionThreshold {
		return m.Compress(ctx, id)
	}

	m.emitter.Emit(events.New(events.KindContextUpdated,
		events.KeyContextID, id, events.KeyTotalTokens, total, events.KeyProgress, ratio*100))
	return nil
}

// Get returns a copy of the conversation.
func (m *Manager) Get(id string) (Context, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return Context{}, fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	return c.clone(), nil
}

// Messages returns a copy of the message list.
func (m *Manager) Messages(id string) ([]Message, error) {
	c, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return c.Messages, nil
}

// SystemMessages returns the system-role messages in order.
func (m *Manager) SystemMessages(id string) ([]Message, error) {
	msgs, err := m.Messages(id)
	if err != nil {
		return nil, err
	}
	var out []Message
	for _, msg := range msgs {
		if msg.Role == RoleSystem {
			out = append(out, msg)
		}
	}
	return out, nil
}

// Usage returns the token total and its percentage of the window.
func (m *Manager) Usage(id string) (int, float64, error) {
	maxTokens := m.MaxTokens()
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contexts[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	return c.TotalTokens, float64(c.TotalTokens) / float64(maxTokens) * 100, nil
}

// Clear drops every message but keeps the conversation registered.
func (m *Manager) Clear(id string) error {
	m.mu.Lock()
	c, ok := m.contexts[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	c.Messages = nil
	c.TotalTokens = 0
	c.UpdatedAt = m.now()
	c.generation++
	m.mu.Unlock()

	m.emitter.Emit(events.New(events.KindContextCleared, events.KeyContextID, id))
	return nil
}

// Delete removes the conversation from the registry.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, id)
}

// Archived returns an archived compression record.
func (m *Manager) Archived(key string) (CompressedContext, bool) {
	return m.archive.Get(key)
}

// ArchiveKeys lists archive keys from oldest to newest.
func (m *Manager) ArchiveKeys() []string {
	return m.archive.Keys()
}

func (m *Manager) cachePath(id string) string {
	return filepath.Join(m.cfg.CacheDir, id+".json")
}

// Save writes the conversation to the cache directory. It is a no-op when
// caching is disabled.
func (m *Manager) Save(id string) error {
	if !m.cfg.CacheEnabled {
		return nil
	}
	c, err := m.Get(id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode context %s: %w", id, err)
	}
	if err := os.WriteFile(m.cachePath(id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write context %s: %w", id, err)
	}
	return nil
}

// Load restores a saved conversation into the registry, replacing any live
// conversation with the same id.
func (m *Manager) Load(id string) error {
	if !m.cfg.CacheEnabled {
		return fmt.Errorf("context cache is disabled")
	}
	data, err := os.ReadFile(m.cachePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w in cache: %s", ErrContextNotFound, id)
		}
		return fmt.Errorf("failed to read context %s: %w", id, err)
	}
	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("failed to decode context %s: %w", id, err)
	}
	c.TotalTokens = sumTokens(c.Messages)

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.contexts[id]; ok {
		c.generation = prev.generation + 1
	}
	m.contexts[id] = &c
	return nil
}
