package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/cliengineer/events"
)

type fakeModel struct {
	mu      sync.Mutex
	window  int
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) SendPrompt(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeModel) ContextSize() int { return f.window }

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) byKind(k events.Kind) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func newManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, opts...)
	require.NoError(t, err)
	return m
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	// 11 chars -> 2, 2 words -> 2.6 -> 2, average 2.
	assert.Equal(t, 2, EstimateTokens("hello world"))
	// 400 chars -> 100, 80 words -> 104, average 102.
	assert.Equal(t, 102, EstimateTokens(strings.Repeat("abcd ", 80)))
}

func TestAddMessageTracksTotal(t *testing.T) {
	m := newManager(t, Config{MaxTokens: 100000, CompressionThreshold: 0.8})
	id := m.Create(map[string]string{"command": "code"})

	require.NoError(t, m.AddMessage(context.Background(), id, RoleSystem, "You are a careful engineer."))
	require.NoError(t, m.AddMessage(context.Background(), id, RoleUser, "Write a parser"))
	require.NoError(t, m.AddMessage(context.Background(), id, RoleAssistant, words(40)))

	c, err := m.Get(id)
	require.NoError(t, err)
	require.Len(t, c.Messages, 3)
	assert.Equal(t, sumTokens(c.Messages), c.TotalTokens)
	assert.Equal(t, "code", c.Metadata["command"])

	sys, err := m.SystemMessages(id)
	require.NoError(t, err)
	require.Len(t, sys, 1)
	assert.Equal(t, "You are a careful engineer.", sys[0].Content)
}

func TestUnknownContext(t *testing.T) {
	m := newManager(t, Config{})
	err := m.AddMessage(context.Background(), "nope", RoleUser, "hi")
	assert.True(t, errors.Is(err, ErrContextNotFound))
	_, _, err = m.Usage("nope")
	assert.True(t, errors.Is(err, ErrContextNotFound))
	assert.True(t, errors.Is(m.Clear("nope"), ErrContextNotFound))
	assert.True(t, errors.Is(m.Compress(context.Background(), "nope"), ErrContextNotFound))
}

func TestUsagePrefersModelWindow(t *testing.T) {
	m := newManager(t, Config{MaxTokens: 1000}, WithModel(&fakeModel{window: 200}))
	id := m.Create(nil)
	require.NoError(t, m.AddMessage(context.Background(), id, RoleUser, words(40)))

	total, pct, err := m.Usage(id)
	require.NoError(t, err)
	assert.Equal(t, EstimateTokens(words(40)), total)
	assert.InDelta(t, float64(total)/200*100, pct, 1e-9)
	assert.Equal(t, 200, m.MaxTokens())

	fallback := newManager(t, Config{MaxTokens: 1000}, WithModel(&fakeModel{}))
	assert.Equal(t, 1000, fallback.MaxTokens())
}

func TestAddMessageTriggersCompression(t *testing.T) {
	model := &fakeModel{reply: "- built the parser\n- added tests"}
	rec := &recordingEmitter{}
	m := newManager(t, Config{MaxTokens: 1000, CompressionThreshold: 0.8},
		WithModel(model), WithEmitter(rec))
	ctx := context.Background()
	id := m.Create(nil)

	require.NoError(t, m.AddMessage(ctx, id, RoleSystem, "You are a coding agent."))
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(47)))
	}
	require.Empty(t, rec.byKind(events.KindContextCompressed))

	before, _, err := m.Usage(id)
	require.NoError(t, err)
	big := words(320)
	beforeWithBig := before + EstimateTokens(big)
	require.NoError(t, m.AddMessage(ctx, id, RoleAssistant, big))

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.Less(t, c.TotalTokens, beforeWithBig)
	assert.Equal(t, sumTokens(c.Messages), c.TotalTokens)

	// system, summary, then the last five conversation messages.
	require.Len(t, c.Messages, 7)
	assert.Equal(t, "You are a coding agent.", c.Messages[0].Content)
	assert.Equal(t, RoleSystem, c.Messages[1].Role)
	assert.Contains(t, c.Messages[1].Content, "=== Context Summary ===")
	assert.Contains(t, c.Messages[1].Content, "built the parser")
	assert.Equal(t, big, c.Messages[6].Content)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "bullet points")

	compressed := rec.byKind(events.KindContextCompressed)
	require.Len(t, compressed, 1)
	assert.Equal(t, beforeWithBig, compressed[0].Int(events.KeyOriginalTokens))
	assert.Equal(t, c.TotalTokens, compressed[0].Int(events.KeyTotalTokens))

	keys := m.ArchiveKeys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], id+"_"))
	record, ok := m.Archived(keys[0])
	require.True(t, ok)
	assert.Equal(t, 6, record.MessagesCompressed)
	assert.Equal(t, []string{"built the parser", "added tests"}, record.KeyPoints)
	assert.Equal(t, 6*EstimateTokens(words(47)), record.OriginalTokenCount)
}

func TestCompressionSummaryFailureUsesPlaceholder(t *testing.T) {
	model := &fakeModel{err: errors.New("provider down")}
	m := newManager(t, Config{MaxTokens: 1000, CompressionThreshold: 0.8}, WithModel(model))
	ctx := context.Background()
	id := m.Create(nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(47)))
	}
	require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(320)))

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.Contains(t, c.Messages[0].Content, "Previous 6 messages were compressed")
}

func TestCompressionWithoutModel(t *testing.T) {
	m := newManager(t, Config{MaxTokens: 1000, CompressionThreshold: 0.8})
	ctx := context.Background()
	id := m.Create(nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(47)))
	}
	require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(320)))

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.Contains(t, c.Messages[0].Content, "without a model")
}

func TestCompressNothingOlderIsNoop(t *testing.T) {
	m := newManager(t, Config{MaxTokens: 1000, CompressionThreshold: 0.99})
	ctx := context.Background()
	id := m.Create(nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(10)))
	}
	before, err := m.Get(id)
	require.NoError(t, err)

	require.NoError(t, m.Compress(ctx, id))
	after, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, before.Messages, after.Messages)
	assert.Empty(t, m.ArchiveKeys())
}

func TestCompressionNeverGrowsTheContext(t *testing.T) {
	model := &fakeModel{reply: strings.Join([]string{
		"- the user asked for a word counter in Go",
		"- a main package and a counter package were planned",
		"- the counter splits input on whitespace",
		"- tests cover empty input and unicode text",
		"- the reviewer asked for better error messages",
		"- the CLI flags were documented in the README",
	}, "\n")}
	rec := &recordingEmitter{}
	m := newManager(t, Config{MaxTokens: 1000, CompressionThreshold: 0.8},
		WithModel(model), WithEmitter(rec))
	ctx := context.Background()
	id := m.Create(nil)
	require.NoError(t, m.AddMessage(ctx, id, RoleSystem, "You are a coding agent."))

	for i := 0; i < 60; i++ {
		before, _, err := m.Usage(id)
		require.NoError(t, err)
		content := words(20)
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, content))
		after, _, err := m.Usage(id)
		require.NoError(t, err)
		assert.LessOrEqual(t, after, before+EstimateTokens(content), "add #%d", i)
	}

	for _, e := range rec.byKind(events.KindContextCompressed) {
		assert.Less(t, e.Int(events.KeyTotalTokens), e.Int(events.KeyOriginalTokens))
	}

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.LessOrEqual(t, c.TotalTokens, 1000)
	assert.Equal(t, sumTokens(c.Messages), c.TotalTokens)
	summaries := 0
	for _, msg := range c.Messages {
		if isSummary(msg) {
			summaries++
		}
	}
	assert.Equal(t, 1, summaries)
	assert.Equal(t, "You are a coding agent.", c.Messages[0].Content)
}

func TestCompressionDiscardsLargerSummary(t *testing.T) {
	model := &fakeModel{reply: words(2000)}
	m := newManager(t, Config{MaxTokens: 1000, CompressionThreshold: 0.8}, WithModel(model))
	ctx := context.Background()
	id := m.Create(nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(47)))
	}
	require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(320)))

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.Len(t, c.Messages, 11)
	assert.Equal(t, 10*EstimateTokens(words(47))+EstimateTokens(words(320)), c.TotalTokens)
	assert.Empty(t, m.ArchiveKeys())
	assert.Len(t, model.prompts, 1)
}

func TestClear(t *testing.T) {
	rec := &recordingEmitter{}
	m := newManager(t, Config{}, WithEmitter(rec))
	id := m.Create(nil)
	require.NoError(t, m.AddMessage(context.Background(), id, RoleUser, "hello"))
	require.NoError(t, m.Clear(id))

	total, _, err := m.Usage(id)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Len(t, rec.byKind(events.KindContextCleared), 1)
	assert.Len(t, rec.byKind(events.KindContextCreated), 1)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, Config{CacheEnabled: true, CacheDir: dir})
	id := m.Create(map[string]string{"k": "v"})
	require.NoError(t, m.AddMessage(context.Background(), id, RoleUser, "persist me"))
	require.NoError(t, m.Save(id))

	other := newManager(t, Config{CacheEnabled: true, CacheDir: dir})
	require.NoError(t, other.Load(id))
	c, err := other.Get(id)
	require.NoError(t, err)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, "persist me", c.Messages[0].Content)
	assert.Equal(t, sumTokens(c.Messages), c.TotalTokens)

	assert.True(t, errors.Is(other.Load("missing"), ErrContextNotFound))

	disabled := newManager(t, Config{})
	assert.Error(t, disabled.Load(id))
	assert.NoError(t, disabled.Save("anything"))
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	m := newManager(t, Config{MaxTokens: 2000, CompressionThreshold: 0.5},
		WithModel(&fakeModel{reply: "- summary"}))
	ctx := context.Background()
	id := m.Create(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				c, err := m.Get(id)
				if err != nil {
					t.Error(err)
					return
				}
				if c.TotalTokens != sumTokens(c.Messages) {
					t.Errorf("reader saw inconsistent total %d != %d", c.TotalTokens, sumTokens(c.Messages))
					return
				}
				_, _, _ = m.Usage(id)
			}
		}()
	}

	for i := 0; i < 200; i++ {
		require.NoError(t, m.AddMessage(ctx, id, RoleUser, words(30)))
	}
	close(stop)
	wg.Wait()

	c, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, sumTokens(c.Messages), c.TotalTokens)
	assert.NotEmpty(t, m.ArchiveKeys())
}
