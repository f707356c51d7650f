package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/cliengineer/artifact"
	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/logging"
)

// maxFileContextChars caps how much existing file content is shown to a
// CodeModification step.
const maxFileContextChars = 60000

// StepResult is the outcome of one executed step.
type StepResult struct {
	StepID           string   `json:"step_id"`
	Success          bool     `json:"success"`
	Output           string   `json:"output"`
	ArtifactsCreated []string `json:"artifacts_created"`
	Error            string   `json:"error,omitempty"`
}

// ExecutorConfig holds the optional collaborators of an Executor.
type ExecutorConfig struct {
	Conversation ConversationStore
	// Workspace is read when a diff targets a file the store does not have.
	Workspace Workspace
	Events    EventSink
	Logger    *logging.Logger
}

// Executor runs a plan's steps in order against the model and persists the
// artifacts found in each response.
type Executor struct {
	model     Model
	store     ArtifactStore
	conv      ConversationStore
	workspace Workspace
	sink      EventSink
	logger    *logging.Logger
}

func NewExecutor(model Model, store ArtifactStore, cfg ExecutorConfig) *Executor {
	e := &Executor{
		model:     model,
		store:     store,
		conv:      cfg.Conversation,
		workspace: cfg.Workspace,
		sink:      cfg.Events,
		logger:    cfg.Logger,
	}
	if e.sink == nil {
		e.sink = events.Discard{}
	}
	if e.logger == nil {
		e.logger = logging.NopLogger()
	}
	e.logger = e.logger.WithPhase("execute")
	return e
}

// Execute runs every step in plan order. A failed model call aborts the
// batch; anything else is reported in the step's result.
func (e *Executor) Execute(ctx context.Context, contextID string, plan *Plan) ([]StepResult, error) {
	results := make([]StepResult, 0, len(plan.Steps))
	completed := make(map[string]bool, len(plan.Steps))

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.sink.Emit(events.New(events.KindExecutionStarted,
			events.KeyStepID, step.ID, events.KeyDescription, step.Description))

		res, err := e.executeStep(ctx, contextID, plan, step, completed)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.ID, err)
		}
		if res.Success {
			completed[step.ID] = true
		}
		results = append(results, res)

		e.logger.Info("step executed", "step_id", step.ID, "category", step.Category.String(),
			"success", res.Success, "artifacts", len(res.ArtifactsCreated))
		e.sink.Emit(events.New(events.KindExecutionCompleted,
			events.KeyStepID, step.ID, "success", res.Success, "artifacts", len(res.ArtifactsCreated)))
	}
	return results, nil
}

// dependenciesMet always holds: dependencies are advisory and no scheduler
// consumes them yet.
func (e *Executor) dependenciesMet(plan *Plan, step Step, completed map[string]bool) bool {
	return true
}

func (e *Executor) executeStep(ctx context.Context, contextID string, plan *Plan, step Step, completed map[string]bool) (StepResult, error) {
	if !e.dependenciesMet(plan, step, completed) {
		return StepResult{StepID: step.ID, Error: "dependencies not met"}, nil
	}

	prompt := e.withSystemContext(contextID, e.buildStepPrompt(plan, step))
	resp, err := e.model.SendPrompt(ctx, prompt)
	if err != nil {
		return StepResult{}, fmt.Errorf("model call: %w", err)
	}
	record(ctx, e.conv, e.logger, contextID, conversation.RoleAssistant, resp)

	extracted, skipped := ExtractArtifacts(resp)
	for _, s := range skipped {
		e.logger.Debug("artifact skipped", "step_id", step.ID, "filename", s.Filename, "reason", s.Reason)
	}

	res := StepResult{StepID: step.ID, Success: true, Output: resp}
	var failures []string
	for _, a := range extracted {
		id, err := e.persist(step, a)
		if err != nil {
			e.logger.Warn("failed to persist artifact", "step_id", step.ID, "filename", a.Filename, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", a.Filename, err))
			continue
		}
		res.ArtifactsCreated = append(res.ArtifactsCreated, id)
	}
	if len(failures) > 0 {
		res.Success = false
		res.Error = strings.Join(failures, "; ")
	}
	return res, nil
}

func (e *Executor) buildStepPrompt(plan *Plan, step Step) string {
	var sb strings.Builder
	sb.WriteString("You are an autonomous software engineer executing one step of a plan.\n\n")
	fmt.Fprintf(&sb, "Overall goal: %s\n", plan.Goal)
	fmt.Fprintf(&sb, "Step %s (%s): %s\n", step.ID, step.Category, step.Description)
	if len(step.SuccessCriteria) > 0 {
		sb.WriteString("Success criteria:\n")
		for _, c := range step.SuccessCriteria {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(instructionsFor(step.Category))
	sb.WriteString("\n\n")
	sb.WriteString(artifactFormat)

	if step.Category == CategoryCodeModification {
		sb.WriteString("\n\n")
		sb.WriteString(diffFormat)
		sb.WriteString(e.currentFilesSection())
	}
	return sb.String()
}

// currentFilesSection shows the stored artifacts so diff line numbers can
// refer to them. Files past the size cap are listed by name only.
func (e *Executor) currentFilesSection() string {
	files := e.store.List()
	if len(files) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\nCurrent file contents:\n")
	used := 0
	var omitted []string
	for _, f := range files {
		if used+len(f.Content) > maxFileContextChars {
			omitted = append(omitted, f.Name)
			continue
		}
		used += len(f.Content)
		fmt.Fprintf(&sb, "\nFile: %s\n```%s\n%s\n```\n", f.Name, artifact.Language(f.Name), strings.TrimSuffix(f.Content, "\n"))
	}
	if len(omitted) > 0 {
		fmt.Fprintf(&sb, "\nAlso present (not shown): %s\n", strings.Join(omitted, ", "))
	}
	return sb.String()
}

// withSystemContext prefixes the prompt with the conversation's system
// messages.
func (e *Executor) withSystemContext(contextID, prompt string) string {
	if e.conv == nil || contextID == "" {
		return prompt
	}
	msgs, err := e.conv.SystemMessages(contextID)
	if err != nil {
		e.logger.Warn("failed to read system context", "context_id", contextID, "error", err)
		return prompt
	}
	if len(msgs) == 0 {
		return prompt
	}
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return "Context:\n" + strings.Join(parts, "\n\n") + "\n\n---\n\n" + prompt
}

func isDiffArtifact(step Step, a ExtractedArtifact) bool {
	declared := strings.ToLower(a.Type)
	if step.Category != CategoryCodeModification && declared != "diff" && declared != "patch" {
		return false
	}
	return IsUnifiedDiff(a.Content)
}

// persist writes an extracted artifact, applying it as a diff when it is
// one, and returns the artifact id.
func (e *Executor) persist(step Step, a ExtractedArtifact) (string, error) {
	existing, exists := e.store.GetByName(a.Filename)

	content := a.Content
	if isDiffArtifact(step, a) {
		original := e.currentContent(a.Filename, existing, exists)
		patched, err := ApplyUnifiedDiff(original, a.Content)
		if err != nil {
			return "", fmt.Errorf("apply diff: %w", err)
		}
		content = patched
	}

	if exists {
		updated, err := e.store.Update(existing.ID, content)
		if err != nil {
			return "", err
		}
		return updated.ID, nil
	}

	created, err := e.store.Create(a.Filename, artifact.TypeFromFilename(a.Filename), content, map[string]string{
		"step_id":       step.ID,
		"category":      step.Category.String(),
		"declared_type": a.Type,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// currentContent resolves the text a diff applies to: the stored artifact,
// else the workspace file, else empty.
func (e *Executor) currentContent(name string, existing artifact.Artifact, exists bool) string {
	if exists {
		return existing.Content
	}
	if e.workspace != nil && e.workspace.FileExists(name) {
		content, err := e.workspace.ReadFile(name)
		if err == nil {
			return content
		}
		e.logger.Debug("workspace read failed", "file", name, "error", err)
	}
	return ""
}
