package agentloop

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyTask is returned when there is nothing to interpret.
var ErrEmptyTask = errors.New("task input is empty")

// Task is the interpreted form of the user's request. It is created once
// per run and never modified.
type Task struct {
	Description string `json:"description"`
	Goal        string `json:"goal"`
}

// Interpreter turns raw user input into a Task with keyword heuristics.
type Interpreter struct{}

func NewInterpreter() *Interpreter { return &Interpreter{} }

// Interpret derives the task goal from the verbs in the input.
func (i *Interpreter) Interpret(input string) (Task, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Task{}, ErrEmptyTask
	}

	lower := strings.ToLower(input)
	var goal string
	switch {
	case strings.Contains(lower, "create") || strings.Contains(lower, "build"):
		goal = fmt.Sprintf("Create or build: %s", input)
	case strings.Contains(lower, "fix") || strings.Contains(lower, "debug"):
		goal = fmt.Sprintf("Fix or debug: %s", input)
	case strings.Contains(lower, "test"):
		goal = fmt.Sprintf("Test: %s", input)
	default:
		goal = fmt.Sprintf("Complete task: %s", input)
	}
	return Task{Description: input, Goal: goal}, nil
}
