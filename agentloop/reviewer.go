package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/logging"
)

const reviewFormat = `Respond using exactly this format:

QUALITY: <Excellent|Good|Fair|Poor>
READY_TO_DEPLOY: <Yes|No>
SUMMARY: <one sentence>
ISSUES:
- SEVERITY: <Critical|Major|Minor|Info> | CATEGORY: <Logic|Performance|Security|CodeStyle|BestPractices|Documentation|Testing|Dependencies> | DESCRIPTION: <what is wrong, naming the file> | SUGGESTION: <how to fix it>

Append " | LOCATION: <path>" to an issue when it concerns a single file.
Write one issue per line and leave the ISSUES section empty when there are none.
Answer READY_TO_DEPLOY: Yes only if the goal is met and no Critical issue remains.`

// Reviewer asks the model to critique executed steps.
type Reviewer struct {
	model  Model
	conv   ConversationStore
	limits OutputLimits
	logger *logging.Logger
}

func NewReviewer(model Model, conv ConversationStore, logger *logging.Logger) *Reviewer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Reviewer{
		model:  model,
		conv:   conv,
		limits: DefaultReviewLimits,
		logger: logger.WithPhase("review"),
	}
}

// Review fails only when the model call fails.
func (r *Reviewer) Review(ctx context.Context, contextID string, plan *Plan, results []StepResult) (*ReviewResult, error) {
	resp, err := r.model.SendPrompt(ctx, r.buildPrompt(plan, results))
	if err != nil {
		return nil, fmt.Errorf("review model call: %w", err)
	}
	record(ctx, r.conv, r.logger, contextID, conversation.RoleAssistant, "Review:\n"+resp)

	review := ParseReview(resp)
	r.logger.Info("review parsed", "quality", review.OverallQuality.String(),
		"issues", len(review.Issues), "ready", review.ReadyToDeploy)
	return review, nil
}

func (r *Reviewer) buildPrompt(plan *Plan, results []StepResult) string {
	byID := make(map[string]StepResult, len(results))
	for _, res := range results {
		byID[res.StepID] = res
	}

	var sb strings.Builder
	sb.WriteString("You are a senior engineer reviewing work done by an autonomous agent.\n\n")
	fmt.Fprintf(&sb, "Goal: %s\n\nSteps and results:\n", plan.Goal)
	for _, step := range plan.Steps {
		fmt.Fprintf(&sb, "\n## %s (%s): %s\n", step.ID, step.Category, step.Description)
		res, ok := byID[step.ID]
		if !ok {
			sb.WriteString("Not executed.\n")
			continue
		}
		status := "succeeded"
		if !res.Success {
			status = "failed"
		}
		fmt.Fprintf(&sb, "Status: %s, %d artifacts written\n", status, len(res.ArtifactsCreated))
		if res.Error != "" {
			fmt.Fprintf(&sb, "Error: %s\n", res.Error)
		}
		if out := strings.TrimSpace(res.Output); out != "" {
			fmt.Fprintf(&sb, "Output:\n%s\n", r.limits.Truncate(out))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(reviewFormat)
	return sb.String()
}
