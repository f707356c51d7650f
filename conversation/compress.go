package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/martinemde/cliengineer/events"
)

const (
	// recentBudgetRatio is the share of the window kept as live recent messages.
	recentBudgetRatio = 0.3
	fallbackKeep      = 5
)

const (
	summaryHeader = "=== Context Summary ==="
	summaryFooter = "=== End Summary ==="
)

var windowSizes = []int{30, 25, 20, 15, 10, 5}

// isSummary reports whether msg is a summary written by an earlier
// compression.
func isSummary(msg Message) bool {
	return msg.Role == RoleSystem && strings.HasPrefix(msg.Content, summaryHeader)
}

// compressionPlan splits the non-system messages into the part to summarize
// and the part kept verbatim.
type compressionPlan struct {
	system    []Message
	summarize []Message
	recent    []Message
}

// planCompression chooses the retained window. For each window size it walks
// backward from the newest message, keeping messages whose own cost fits the
// budget; the first window that keeps anything wins. When none does, the last
// five messages are kept regardless of cost. Earlier summaries are folded
// into the new one whenever there is conversation left to summarize.
func planCompression(msgs []Message, budget int) compressionPlan {
	var plan compressionPlan
	var convo, summaries []Message
	for _, msg := range msgs {
		switch {
		case isSummary(msg):
			summaries = append(summaries, msg)
		case msg.Role == RoleSystem:
			plan.system = append(plan.system, msg)
		default:
			convo = append(convo, msg)
		}
	}

	keep := 0
	for _, size := range windowSizes {
		n := 0
		for i := len(convo) - 1; i >= 0 && n < size; i-- {
			if convo[i].TokenCount > budget {
				break
			}
			n++
		}
		if n > 0 {
			keep = n
			break
		}
	}
	if keep == 0 {
		keep = min(len(convo), fallbackKeep)
	}

	split := len(convo) - keep
	plan.recent = convo[split:]
	if split == 0 {
		plan.system = append(plan.system, summaries...)
		return plan
	}
	plan.summarize = append(summaries, convo[:split]...)
	return plan
}

// Compress summarizes older conversation messages into one system message.
// Summarization failures fall back to a placeholder; only an unknown id is
// an error.
func (m *Manager) Compress(ctx context.Context, id string) error {
	m.mu.RLock()
	c, ok := m.contexts[id]
	if !ok {
		m.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrContextNotFound, id)
	}
	snapshot := append([]Message(nil), c.Messages...)
	generation := c.generation
	m.mu.RUnlock()

	budget := int(float64(m.MaxTokens()) * recentBudgetRatio)
	plan := planCompression(snapshot, budget)
	if len(plan.summarize) == 0 {
		m.logger.WithContext(id).Debug("nothing to compress", "messages", len(snapshot))
		return nil
	}

	summary := m.summarize(ctx, id, plan.summarize)
	content := summaryHeader + "\n" + summary + "\n" + summaryFooter
	summaryMsg := Message{
		ID:         uuid.New().String(),
		Role:       RoleSystem,
		Content:    content,
		TokenCount: m.estimate(content),
		Timestamp:  m.now(),
	}

	m.mu.Lock()
	c, ok = m.contexts[id]
	if !ok || c.generation != generation || len(c.Messages) < len(snapshot) {
		m.mu.Unlock()
		m.logger.WithContext(id).Debug("context changed during compression, discarding summary")
		return nil
	}
	appended := c.Messages[len(snapshot):]
	rebuilt := make([]Message, 0, len(plan.system)+1+len(plan.recent)+len(appended))
	rebuilt = append(rebuilt, plan.system...)
	rebuilt = append(rebuilt, summaryMsg)
	rebuilt = append(rebuilt, plan.recent...)
	rebuilt = append(rebuilt, appended...)

	original := c.TotalTokens
	compressed := sumTokens(rebuilt)
	if compressed >= original {
		m.mu.Unlock()
		m.logger.WithContext(id).Debug("summary would not shrink the context, discarding",
			"original_tokens", original, "compressed_tokens", compressed)
		return nil
	}
	c.Messages = rebuilt
	c.TotalTokens = compressed
	c.UpdatedAt = m.now()
	c.generation++
	m.mu.Unlock()

	record := CompressedContext{
		ContextID:            id,
		Summary:              summary,
		KeyPoints:            keyPoints(summary, len(plan.summarize), original),
		MessagesCompressed:   len(plan.summarize),
		OriginalTokenCount:   sumTokens(plan.summarize),
		CompressedTokenCount: m.estimate(summary),
		CreatedAt:            m.now(),
	}
	m.archive.Add(fmt.Sprintf("%s_%d", id, record.CreatedAt.UnixNano()), record)

	m.logger.WithContext(id).Info("context compressed",
		"messages_summarized", len(plan.summarize),
		"original_tokens", original,
		"compressed_tokens", compressed)
	m.emitter.Emit(events.New(events.KindContextCompressed,
		events.KeyContextID, id,
		events.KeyOriginalTokens, original,
		events.KeyTotalTokens, compressed))
	return nil
}

func (m *Manager) summarize(ctx context.Context, id string, msgs []Message) string {
	if m.model == nil {
		return fmt.Sprintf("Previous %d messages were compressed to save tokens. "+
			"Unable to generate detailed summary without a model.", len(msgs))
	}

	var sb strings.Builder
	sb.WriteString("Please summarize this conversation into bullet points. " +
		"Focus on key information, decisions made, and important context.\n\n")
	for _, msg := range msgs {
		fmt.Fprintf(&sb, "%s: %s\n\n", msg.Role, msg.Content)
	}

	summary, err := m.model.SendPrompt(ctx, sb.String())
	if err != nil || strings.TrimSpace(summary) == "" {
		if err != nil {
			m.logger.WithContext(id).Warn("summary generation failed, using placeholder", "error", err.Error())
		}
		return fmt.Sprintf("Previous %d messages were compressed. Key topics discussed.", len(msgs))
	}
	return strings.TrimSpace(summary)
}

// keyPoints pulls bullet lines out of a summary, falling back to counts.
func keyPoints(summary string, compressed, originalTokens int) []string {
	var points []string
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		for _, bullet := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(line, bullet) {
				points = append(points, strings.TrimSpace(strings.TrimPrefix(line, bullet)))
				break
			}
		}
	}
	if len(points) == 0 {
		points = []string{
			fmt.Sprintf("Compressed %d messages", compressed),
			fmt.Sprintf("Original token count: %d", originalTokens),
		}
	}
	return points
}
