// Command cliengineer runs an autonomous plan, execute and review loop
// against a language model to generate, refactor, review or document code.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/martinemde/cliengineer/agentloop"
)

// Exit codes.
const (
	exitFailure   = 1
	exitExhausted = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, agentloop.ErrMaxIterations) {
		return exitExhausted
	}
	return exitFailure
}
