package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/logging"
)

const planInstructions = `Break the task into a numbered list of concrete steps, one step per line,
each starting with its number and a period (for example "1. Create src/main.rs with the CLI entry point").
Start every step with a verb that makes its kind of work clear:
- FileOperation: create a new file
- CodeGeneration: write, implement or generate new code
- CodeModification: modify, update or change existing code
- Testing: test, verify or validate behavior
- Documentation: document or comment code
- Analysis: analyze, understand or examine existing code
- Research: research, look up or find information
- Review: review or check work
Respond with the numbered list only.`

// Planner asks the model for a step list and parses it into a Plan.
type Planner struct {
	model  Model
	conv   ConversationStore
	logger *logging.Logger
}

func NewPlanner(model Model, conv ConversationStore, logger *logging.Logger) *Planner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Planner{model: model, conv: conv, logger: logger.WithPhase("plan")}
}

// Plan fails only when the model call fails; unparseable responses
// degrade to a single-step plan.
func (p *Planner) Plan(ctx context.Context, contextID string, task Task, iter *IterationContext) (*Plan, error) {
	prompt := buildPlanPrompt(task, iter)
	resp, err := p.model.SendPrompt(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("planning model call: %w", err)
	}
	record(ctx, p.conv, p.logger, contextID, conversation.RoleAssistant, "Plan:\n"+resp)

	plan := ParsePlan(task.Goal, resp)
	p.logger.Info("plan created", "steps", len(plan.Steps), "complexity", plan.EstimatedComplexity.String())
	return plan, nil
}

func buildPlanPrompt(task Task, iter *IterationContext) string {
	var sb strings.Builder
	sb.WriteString("You are planning work for an autonomous software engineer.\n\n")
	fmt.Fprintf(&sb, "Task: %s\nGoal: %s\n\n", task.Description, task.Goal)
	sb.WriteString(planInstructions)

	if iter != nil && iter.HasExistingFiles() {
		fmt.Fprintf(&sb, "\n\nThis is iteration %d. Files from earlier iterations already exist.\n", iter.Iteration)
		sb.WriteString("Do not recreate them. Prefer CodeModification steps (modify, update, change) that fix ")
		sb.WriteString("the pending issues in place, and only create files that do not exist yet.\n\n")
		sb.WriteString(iter.String())
		if iter.ProgressSummary != "" {
			fmt.Fprintf(&sb, "\nProgress so far: %s\n", iter.ProgressSummary)
		}
	}
	return sb.String()
}

// record appends a message to the conversation when one is configured.
// Failures are logged; recording never changes the outcome of a phase.
func record(ctx context.Context, conv ConversationStore, logger *logging.Logger, contextID, role, content string) {
	if conv == nil || contextID == "" {
		return
	}
	if err := conv.AddMessage(ctx, contextID, role, content); err != nil {
		logger.Warn("failed to record message", "context_id", contextID, "role", role, "error", err)
	}
}
