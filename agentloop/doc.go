// Package agentloop implements the plan, execute and review cycle of an
// autonomous coding agent.
//
// A Loop interprets the user's request once, then repeats three phases
// until a review declares the work ready to deploy or the iteration budget
// is spent:
//
//   - Planner: prompts the model for a numbered step list and parses it
//     into a Plan with categorized Steps (ParsePlan).
//   - Executor: runs the steps in order, extracts <artifact> blocks from
//     each response (ExtractArtifacts), applies unified diffs to existing
//     files (ApplyUnifiedDiff) and persists the results in an ArtifactStore.
//   - Reviewer: prompts the model for a critique in a fixed line grammar
//     and parses it into a ReviewResult (ParseReview).
//
// Between iterations an IterationContext carries the files already written
// and the issues still open, so later plans modify files instead of
// recreating them.
//
// # Quick Start
//
//	store, _ := artifact.NewManager("./artifacts")
//	conv, _ := conversation.NewManager(conversation.Config{}, conversation.WithModel(model))
//	loop := agentloop.NewLoop(model, store,
//	    agentloop.WithConversation(conv),
//	    agentloop.WithMaxIterations(5),
//	)
//
//	err := loop.Run(ctx, "Create a CLI that counts words", conv.Create(nil))
//	if errors.Is(err, agentloop.ErrMaxIterations) {
//	    // ran out of iterations without a passing review
//	}
package agentloop
