package agentloop

import (
	"errors"
	"testing"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		input string
		goal  string
	}{
		{"Create a word counter", "Create or build: Create a word counter"},
		{"BUILD the docs site", "Create or build: BUILD the docs site"},
		{"Fix the off-by-one in pagination", "Fix or debug: Fix the off-by-one in pagination"},
		{"debug flaky login", "Fix or debug: debug flaky login"},
		{"Test the parser", "Test: Test the parser"},
		{"Summarize the architecture", "Complete task: Summarize the architecture"},
		{"  Add logging  ", "Complete task: Add logging"},
	}
	in := NewInterpreter()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			task, err := in.Interpret(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if task.Goal != tt.goal {
				t.Errorf("goal = %q, want %q", task.Goal, tt.goal)
			}
		})
	}
}

func TestInterpretKeepsDescription(t *testing.T) {
	task, err := NewInterpreter().Interpret("Create a CLI")
	if err != nil {
		t.Fatal(err)
	}
	if task.Description != "Create a CLI" {
		t.Errorf("description = %q", task.Description)
	}
}

func TestInterpretEmpty(t *testing.T) {
	_, err := NewInterpreter().Interpret("   \n")
	if !errors.Is(err, ErrEmptyTask) {
		t.Errorf("expected ErrEmptyTask, got %v", err)
	}
}
