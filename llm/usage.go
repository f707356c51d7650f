package llm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func loadEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// CountTokens counts text with the cl100k_base encoding, falling back to a
// rune/word heuristic when the encoding cannot be loaded.
func CountTokens(text string) int {
	if enc := loadEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimateFast(text)
}

func estimateFast(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	estimate := len([]rune(trimmed)) / 4
	if words := len(strings.Fields(trimmed)); estimate < words {
		estimate = words
	}
	return max(estimate, 1)
}

// Pricing is USD per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

func (p Pricing) Cost(u Usage) float64 {
	return float64(u.InputTokens)*p.InputPerMillion/1e6 + float64(u.OutputTokens)*p.OutputPerMillion/1e6
}

// ProviderUsage is the running total for one provider.
type ProviderUsage struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	Cost         float64
}

// UsageTracker accumulates token usage and spend across calls.
type UsageTracker struct {
	mu      sync.Mutex
	pricing map[string]Pricing
	totals  map[string]*ProviderUsage
	count   func(string) int
}

func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		pricing: make(map[string]Pricing),
		totals:  make(map[string]*ProviderUsage),
		count:   CountTokens,
	}
}

// SetPricing overrides catalog pricing for a provider.
func (t *UsageTracker) SetPricing(provider string, p Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[provider] = p
}

// Record adds one call. Missing token counts are measured from the prompt and
// reply text. It returns the usage recorded and its cost.
func (t *UsageTracker) Record(prompt string, c *Completion) (Usage, float64) {
	usage := c.Usage
	if usage.InputTokens == 0 {
		usage.InputTokens = t.count(prompt)
	}
	if usage.OutputTokens == 0 {
		usage.OutputTokens = t.count(c.Text)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	pricing, ok := t.pricing[c.Provider]
	if !ok {
		if info := GetModelInfo(c.Model); info != nil {
			pricing = Pricing{InputPerMillion: info.InputCostPerMillion, OutputPerMillion: info.OutputCostPerMillion}
		}
	}
	cost := pricing.Cost(usage)

	total, ok := t.totals[c.Provider]
	if !ok {
		total = &ProviderUsage{}
		t.totals[c.Provider] = total
	}
	total.Calls++
	total.InputTokens += usage.InputTokens
	total.OutputTokens += usage.OutputTokens
	total.Cost += cost
	return usage, cost
}

// Snapshot returns a copy of the per-provider totals.
func (t *UsageTracker) Snapshot() map[string]ProviderUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ProviderUsage, len(t.totals))
	for k, v := range t.totals {
		out[k] = *v
	}
	return out
}

// TotalCost sums spend across providers.
func (t *UsageTracker) TotalCost() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum float64
	for _, v := range t.totals {
		sum += v.Cost
	}
	return sum
}
