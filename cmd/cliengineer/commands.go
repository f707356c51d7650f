package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var errPromptRequired = errors.New("a prompt is required for the code command")

// rootFlags are shared by every subcommand.
type rootFlags struct {
	cfgFile       string
	verbose       bool
	maxIterations int
	workDir       string
}

// commandSpec describes one subcommand: how it turns the user's words into
// a task and whether the codebase is loaded into context first.
type commandSpec struct {
	name   string
	short  string
	scan   bool
	prompt func(userPrompt string) (string, error)
}

var commandSpecs = []commandSpec{
	{
		name:  "code",
		short: "Generate code from a description",
		prompt: func(p string) (string, error) {
			if p == "" {
				return "", errPromptRequired
			}
			return p, nil
		},
	},
	{
		name:  "refactor",
		short: "Refactor the codebase in the working directory",
		scan:  true,
		prompt: func(p string) (string, error) {
			if p == "" {
				p = "Analyze the current directory and perform recommended refactoring."
			}
			return "Refactor codebase. " + p, nil
		},
	},
	{
		name:  "review",
		short: "Write a code review report to code_review.md",
		scan:  true,
		prompt: func(p string) (string, error) {
			if p == "" {
				return "ANALYSIS ONLY: Review the codebase files and create a comprehensive code review report. " +
					"DO NOT generate, modify, or create any source code files. ONLY analyze existing code and " +
					"document your findings, suggestions, and recommendations in code_review.md. Focus on code " +
					"quality, best practices, potential issues, and improvement opportunities.", nil
			}
			return fmt.Sprintf("ANALYSIS ONLY: Review the codebase with focus on: %s. DO NOT generate, modify, "+
				"or create any source code files. ONLY analyze existing code and document your findings in "+
				"code_review.md", p), nil
		},
	},
	{
		name:  "docs",
		short: "Generate documentation under docs/",
		scan:  true,
		prompt: func(p string) (string, error) {
			if p == "" {
				return "Generate comprehensive documentation for the codebase. Create documentation files in a docs/ directory.", nil
			}
			return fmt.Sprintf("Generate documentation for the codebase with these instructions: %s. "+
				"Create documentation files in a docs/ directory.", p), nil
		},
	},
	{
		name:  "security",
		short: "Write a security analysis to security_report.md",
		scan:  true,
		prompt: func(p string) (string, error) {
			if p == "" {
				return "SECURITY ANALYSIS ONLY: Perform a comprehensive security analysis of the codebase. " +
					"DO NOT generate, modify, or create any source code files. ONLY analyze existing code for " +
					"vulnerabilities, security issues, and best practice violations. Document your findings, " +
					"risk assessments, and security recommendations in security_report.md.", nil
			}
			return fmt.Sprintf("SECURITY ANALYSIS ONLY: Perform a security analysis of the codebase focusing on: %s. "+
				"DO NOT generate, modify, or create any source code files. ONLY analyze existing code and "+
				"document your security findings in security_report.md", p), nil
		},
	},
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "cliengineer",
		Short: "Agentic CLI for software engineering automation",
		Long: `cliengineer plans a task, executes each step against a language model,
writes the resulting files as artifacts and asks the model to review the
work, repeating until the review passes or the iteration budget runs out.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.cfgFile, "config", "c", "", "config file (default is ./cliengineer.toml or $HOME/.config/cliengineer/cliengineer.toml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output and show every event")
	pf.IntVarP(&flags.maxIterations, "max-iterations", "n", 0, "override execution.max_iterations")
	pf.StringVarP(&flags.workDir, "dir", "C", "", "working directory (default is the current directory)")

	for _, spec := range commandSpecs {
		root.AddCommand(newTaskCmd(flags, spec))
	}
	return root
}

func newTaskCmd(flags *rootFlags, spec commandSpec) *cobra.Command {
	return &cobra.Command{
		Use:   spec.name + " [prompt...]",
		Short: spec.short,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := spec.prompt(strings.TrimSpace(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			return run(cmd, flags, spec, prompt)
		},
	}
}
