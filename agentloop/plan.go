package agentloop

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/martinemde/cliengineer/conversation"
)

// Complexity is the plan size bucket.
type Complexity int

const (
	ComplexityUnknown Complexity = iota
	ComplexitySimple
	ComplexityMedium
	ComplexityComplex
)

func (c Complexity) String() string {
	switch c {
	case ComplexitySimple:
		return "Simple"
	case ComplexityMedium:
		return "Medium"
	case ComplexityComplex:
		return "Complex"
	}
	return "Unknown"
}

// complexityFor buckets a step count: 1-3 simple, 4-10 medium, 11+ complex.
func complexityFor(steps int) Complexity {
	switch {
	case steps <= 0:
		return ComplexityUnknown
	case steps <= 3:
		return ComplexitySimple
	case steps <= 10:
		return ComplexityMedium
	}
	return ComplexityComplex
}

// StepCategory selects the prompt used to execute a step.
type StepCategory int

const (
	CategoryUnknown StepCategory = iota
	CategoryAnalysis
	CategoryFileOperation
	CategoryCodeGeneration
	CategoryCodeModification
	CategoryTesting
	CategoryDocumentation
	CategoryResearch
	CategoryReview
)

var categoryNames = [...]string{
	CategoryUnknown:          "Unknown",
	CategoryAnalysis:         "Analysis",
	CategoryFileOperation:    "FileOperation",
	CategoryCodeGeneration:   "CodeGeneration",
	CategoryCodeModification: "CodeModification",
	CategoryTesting:          "Testing",
	CategoryDocumentation:    "Documentation",
	CategoryResearch:         "Research",
	CategoryReview:           "Review",
}

func (c StepCategory) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "Unknown"
	}
	return categoryNames[c]
}

// Step is one categorized unit of work.
type Step struct {
	ID              string       `json:"id"`
	Description     string       `json:"description"`
	Category        StepCategory `json:"category"`
	SuccessCriteria []string     `json:"success_criteria"`
	EstimatedTokens int          `json:"estimated_tokens"`
}

// Plan is an ordered list of steps. Steps is never empty.
// Dependencies is carried for future scheduling; nothing enforces it.
type Plan struct {
	Goal                string              `json:"goal"`
	Steps               []Step              `json:"steps"`
	Dependencies        map[string][]string `json:"dependencies"`
	EstimatedComplexity Complexity          `json:"estimated_complexity"`
}

// stepTokenAllowance is added to each step's own size to cover the
// response it is expected to produce.
const stepTokenAllowance = 500

var numberedLine = regexp.MustCompile(`^(\d+)\.\s*(.*)$`)

// ParsePlan turns a model's numbered list into a Plan. Lines that start
// with a number and a period begin a step; the lines after it are joined
// onto that step with spaces. Text before the first numbered line is
// ignored. Without any numbered line the whole response is one step.
func ParsePlan(goal, text string) *Plan {
	var (
		lines    []string
		descs    []string
		numbered bool
	)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			numbered = true
			descs = append(descs, m[2])
			continue
		}
		if numbered {
			last := len(descs) - 1
			if descs[last] == "" {
				descs[last] = line
			} else {
				descs[last] += " " + line
			}
		}
	}

	if !numbered {
		whole := strings.Join(lines, " ")
		if whole == "" {
			whole = goal
		}
		descs = []string{whole}
	}

	plan := &Plan{
		Goal:         goal,
		Steps:        make([]Step, 0, len(descs)),
		Dependencies: map[string][]string{},
	}
	for i, desc := range descs {
		plan.Steps = append(plan.Steps, Step{
			ID:              fmt.Sprintf("step_%d", i+1),
			Description:     desc,
			Category:        categorize(desc),
			SuccessCriteria: []string{"Complete: " + desc},
			EstimatedTokens: conversation.EstimateTokens(desc) + stepTokenAllowance,
		})
	}
	plan.EstimatedComplexity = complexityFor(len(plan.Steps))
	return plan
}

// categoryRules are checked in order; the first rule with a matching
// keyword wins. Single-word keywords match word prefixes ("create" matches
// "creates"), phrases match whole-word sequences.
var categoryRules = []struct {
	category StepCategory
	keywords []string
}{
	{CategoryFileOperation, []string{"create", "new file"}},
	{CategoryCodeGeneration, generationVerbs},
	{CategoryCodeModification, []string{"modify", "update", "change"}},
	{CategoryTesting, []string{"test", "verify", "validate"}},
	{CategoryDocumentation, []string{"document", "comment"}},
	{CategoryAnalysis, []string{"analyze", "understand", "examine"}},
	{CategoryResearch, []string{"research", "look up", "find"}},
	{CategoryReview, []string{"review", "check"}},
}

var generationVerbs = []string{"write", "implement", "generate"}

// testObjectReach is how many words after a generation verb may name tests
// ("write the unit tests").
const testObjectReach = 3

func categorize(text string) StepCategory {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	joined := " " + strings.Join(words, " ")
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if !strings.Contains(joined, " "+kw) {
				continue
			}
			if rule.category == CategoryCodeGeneration && generatesTests(words) {
				return CategoryTesting
			}
			return rule.category
		}
	}
	return CategoryAnalysis
}

// generatesTests reports whether a generation verb takes tests as its
// object, as in "Write tests" or "Implement the integration tests".
func generatesTests(words []string) bool {
	for i, w := range words {
		if !hasAnyPrefix(w, generationVerbs) {
			continue
		}
		for j := i + 1; j < len(words) && j <= i+testObjectReach; j++ {
			if strings.HasPrefix(words[j], "test") {
				return true
			}
		}
	}
	return false
}

func hasAnyPrefix(word string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(word, p) {
			return true
		}
	}
	return false
}
