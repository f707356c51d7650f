package agentloop

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/martinemde/cliengineer/artifact"
	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/logging"
)

// ErrMaxIterations is returned when no review declared the work ready
// within the iteration budget.
var ErrMaxIterations = errors.New("max iterations reached")

const (
	traceScope = "github.com/martinemde/cliengineer/agentloop"

	spanRun     = "agentloop.run"
	spanPlan    = "agentloop.plan"
	spanExecute = "agentloop.execute"
	spanReview  = "agentloop.review"

	attrContextID  = "cliengineer.context_id"
	attrTaskID     = "cliengineer.task_id"
	attrIteration  = "cliengineer.iteration"
	attrSteps      = "cliengineer.steps"
	attrQuality    = "cliengineer.quality"
	attrReady      = "cliengineer.ready"
	attrStatus     = "cliengineer.status"
	defaultMaxIter = 10
	stallWindow    = 3
)

const stallNote = "The last %d reviews reported the same issues. Earlier changes did not resolve them; " +
	"try a different approach instead of repeating them."

// PlanMaker produces a plan for one iteration.
type PlanMaker interface {
	Plan(ctx context.Context, contextID string, task Task, iter *IterationContext) (*Plan, error)
}

// StepExecutor runs a plan.
type StepExecutor interface {
	Execute(ctx context.Context, contextID string, plan *Plan) ([]StepResult, error)
}

// ResultReviewer critiques a plan's results.
type ResultReviewer interface {
	Review(ctx context.Context, contextID string, plan *Plan, results []StepResult) (*ReviewResult, error)
}

// Loop drives plan, execute and review until a review declares the work
// ready or the iteration budget runs out.
type Loop struct {
	interpreter   *Interpreter
	planner       PlanMaker
	executor      StepExecutor
	reviewer      ResultReviewer
	model         Model
	store         ArtifactStore
	conv          ConversationStore
	sink          EventSink
	workspace     Workspace
	logger        *logging.Logger
	tracer        trace.Tracer
	maxIterations int
	modelName     string
	gitContext    bool
}

// Option configures a Loop.
type Option func(*Loop)

func WithMaxIterations(n int) Option {
	return func(l *Loop) { l.maxIterations = n }
}

func WithConversation(c ConversationStore) Option {
	return func(l *Loop) { l.conv = c }
}

func WithEventSink(s EventSink) Option {
	return func(l *Loop) { l.sink = s }
}

func WithLogger(lg *logging.Logger) Option {
	return func(l *Loop) { l.logger = lg }
}

func WithTracer(t trace.Tracer) Option {
	return func(l *Loop) { l.tracer = t }
}

// WithWorkspace records the environment at the start of a run and lets
// diffs fall back to files on disk. Git is consulted when withGit is set.
func WithWorkspace(w Workspace, modelName string, withGit bool) Option {
	return func(l *Loop) {
		l.workspace = w
		l.modelName = modelName
		l.gitContext = withGit
	}
}

func WithPlanner(p PlanMaker) Option {
	return func(l *Loop) { l.planner = p }
}

func WithExecutor(e StepExecutor) Option {
	return func(l *Loop) { l.executor = e }
}

func WithReviewer(r ResultReviewer) Option {
	return func(l *Loop) { l.reviewer = r }
}

// NewLoop builds a loop over model and store. Phases not supplied through
// options use the default Planner, Executor and Reviewer.
func NewLoop(model Model, store ArtifactStore, opts ...Option) *Loop {
	l := &Loop{
		interpreter:   NewInterpreter(),
		model:         model,
		store:         store,
		sink:          events.Discard{},
		logger:        logging.NopLogger(),
		maxIterations: defaultMaxIter,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer(traceScope)
	}
	if l.maxIterations <= 0 {
		l.maxIterations = defaultMaxIter
	}
	if l.planner == nil {
		l.planner = NewPlanner(model, l.conv, l.logger)
	}
	if l.executor == nil {
		l.executor = NewExecutor(model, store, ExecutorConfig{
			Conversation: l.conv,
			Workspace:    l.workspace,
			Events:       l.sink,
			Logger:       l.logger,
		})
	}
	if l.reviewer == nil {
		l.reviewer = NewReviewer(model, l.conv, l.logger)
	}
	return l
}

// Run interprets input once and iterates until the work is ready
// (nil), the budget is spent (ErrMaxIterations), a phase fails, or ctx is
// cancelled. Artifacts already written are never rolled back.
func (l *Loop) Run(ctx context.Context, input, contextID string) (err error) {
	taskID := uuid.New().String()
	logger := l.logger.WithTask(taskID).WithContext(contextID)

	ctx, span := l.tracer.Start(ctx, spanRun, trace.WithAttributes(
		attribute.String(attrTaskID, taskID),
		attribute.String(attrContextID, contextID),
	))
	defer func() {
		markSpanResult(span, err)
		span.End()
	}()

	l.sink.Emit(events.TaskStarted(taskID, input))

	task, err := l.interpreter.Interpret(input)
	if err != nil {
		return l.fail(taskID, "Interpretation failed", err)
	}
	logger.Info("task interpreted", "goal", task.Goal)

	record(ctx, l.conv, logger, contextID, conversation.RoleUser, input)
	record(ctx, l.conv, logger, contextID, conversation.RoleSystem,
		fmt.Sprintf("Task interpreted as: %s\nGoal: %s", task.Description, task.Goal))
	l.recordEnvironment(ctx, logger, contextID)

	iter := NewIterationContext()
	stalls := &stallDetector{window: stallWindow}

	for i := 1; i <= l.maxIterations; i++ {
		if cerr := ctx.Err(); cerr != nil {
			return l.fail(taskID, "Cancelled", cerr)
		}

		iter.Iteration = i
		if added := iter.MergeArtifacts(l.store.List()); added > 0 {
			logger.Debug("merged artifacts into iteration context", "added", added)
		}
		logger.Info("iteration started", "iteration", i, "max_iterations", l.maxIterations)
		l.sink.Emit(events.Custom("iteration_started",
			events.KeyTaskID, taskID, events.KeyIteration, i, "max_iterations", l.maxIterations))

		l.progress(taskID, i, 0, "planning")
		plan, err := l.plan(ctx, contextID, task, iter)
		if err != nil {
			return l.fail(taskID, "Planning failed", err)
		}

		l.progress(taskID, i, 1, "executing")
		results, err := l.execute(ctx, contextID, i, plan)
		if err != nil {
			return l.fail(taskID, "Execution failed", err)
		}
		// Files written this iteration must be known before review issues
		// are attached to them.
		iter.MergeArtifacts(l.store.List())

		l.progress(taskID, i, 2, "reviewing")
		review, err := l.review(ctx, contextID, i, plan, results)
		if err != nil {
			return l.fail(taskID, "Review failed", err)
		}

		iter.UpdateFromReview(review)
		iter.ProgressSummary = summarizeProgress(i, results, review)
		if stalls.observe(review) {
			note := fmt.Sprintf(stallNote, stallWindow)
			logger.Warn("reviews repeating without progress", "iteration", i)
			l.sink.Emit(events.Warning(note))
			iter.ProgressSummary += " " + note
		}

		if review.ReadyToDeploy {
			l.postProcess(logger, taskID)
			l.sink.Emit(events.TaskCompleted(taskID, fmt.Sprintf(
				"Task completed successfully. %d steps executed. Quality: %s. %d artifacts created.",
				len(results), review.OverallQuality, countArtifacts(results))))
			l.sink.Emit(events.Custom("task_summary",
				events.KeyTaskID, taskID,
				"plan_goal", plan.Goal,
				"steps_executed", len(results),
				"steps_successful", countSuccessful(results),
				"quality", review.OverallQuality.String(),
				"issues_found", len(review.Issues),
				events.KeyIteration, i))
			logger.Info("task completed", "iterations", i, "quality", review.OverallQuality.String())
			return nil
		}

		if critical := review.Count(SeverityCritical); critical > 0 {
			logger.Warn("critical issues remain, revising plan", "critical", critical)
		}
	}

	logger.Warn("max iterations reached without completing task", "iterations", l.maxIterations)
	l.sink.Emit(events.TaskFailed(taskID, fmt.Sprintf(
		"Max iterations reached: failed to complete task after %d iterations", l.maxIterations)))
	return fmt.Errorf("%w after %d iterations", ErrMaxIterations, l.maxIterations)
}

func (l *Loop) plan(ctx context.Context, contextID string, task Task, iter *IterationContext) (plan *Plan, err error) {
	ctx, span := l.tracer.Start(ctx, spanPlan, trace.WithAttributes(attribute.Int(attrIteration, iter.Iteration)))
	defer func() {
		markSpanResult(span, err)
		span.End()
	}()

	plan, err = l.planner.Plan(ctx, contextID, task, iter)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int(attrSteps, len(plan.Steps)))
	return plan, nil
}

func (l *Loop) execute(ctx context.Context, contextID string, iteration int, plan *Plan) (results []StepResult, err error) {
	ctx, span := l.tracer.Start(ctx, spanExecute, trace.WithAttributes(
		attribute.Int(attrIteration, iteration),
		attribute.Int(attrSteps, len(plan.Steps)),
	))
	defer func() {
		markSpanResult(span, err)
		span.End()
	}()
	return l.executor.Execute(ctx, contextID, plan)
}

func (l *Loop) review(ctx context.Context, contextID string, iteration int, plan *Plan, results []StepResult) (review *ReviewResult, err error) {
	ctx, span := l.tracer.Start(ctx, spanReview, trace.WithAttributes(attribute.Int(attrIteration, iteration)))
	defer func() {
		markSpanResult(span, err)
		span.End()
	}()

	review, err = l.reviewer.Review(ctx, contextID, plan, results)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String(attrQuality, review.OverallQuality.String()),
		attribute.Bool(attrReady, review.ReadyToDeploy),
	)
	return review, nil
}

// recordEnvironment adds the workspace description and any project
// instructions as system messages.
func (l *Loop) recordEnvironment(ctx context.Context, logger *logging.Logger, contextID string) {
	if l.workspace == nil {
		return
	}
	env := InspectEnvironment(l.workspace, l.modelName, l.gitContext)
	record(ctx, l.conv, logger, contextID, conversation.RoleSystem, env.String())
	if docs := DiscoverProjectDocs(env.GitRoot, env.WorkingDir); docs != "" {
		record(ctx, l.conv, logger, contextID, conversation.RoleSystem, docs)
	}
}

func (l *Loop) fail(taskID, reason string, err error) error {
	l.logger.Error(reason, "task_id", taskID, "error", err)
	l.sink.Emit(events.TaskFailed(taskID, fmt.Sprintf("%s: %v", reason, err)))
	return fmt.Errorf("%s: %w", reason, err)
}

// progress reports the phase position within the whole run in [0,1].
func (l *Loop) progress(taskID string, iteration, phase int, label string) {
	done := float64(iteration-1) + float64(phase)/3
	l.sink.Emit(events.TaskProgress(taskID, done/float64(l.maxIterations),
		fmt.Sprintf("Iteration %d/%d: %s", iteration, l.maxIterations, label)))
}

// postProcess reports artifact statistics by type.
func (l *Loop) postProcess(logger *logging.Logger, taskID string) {
	stats := artifact.Stats{ByType: make(map[artifact.Type]int)}
	for _, a := range l.store.List() {
		stats.Total++
		stats.ByType[a.Type]++
	}
	byType := make(map[string]int, len(stats.ByType))
	for _, t := range stats.Types() {
		byType[t.String()] = stats.ByType[t]
		logger.Info("artifact statistics", "type", t.String(), "count", stats.ByType[t])
	}
	l.sink.Emit(events.Custom("artifact_statistics",
		events.KeyTaskID, taskID, "total", stats.Total, "by_type", byType))
}

func countArtifacts(results []StepResult) int {
	n := 0
	for _, r := range results {
		n += len(r.ArtifactsCreated)
	}
	return n
}

func countSuccessful(results []StepResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}

func markSpanResult(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(attrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(attrStatus, "success"))
}
