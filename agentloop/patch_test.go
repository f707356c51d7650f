package agentloop

import (
	"errors"
	"testing"
)

func TestApplyUnifiedDiffReplacesLine(t *testing.T) {
	original := "fn main() {\n    println!(\"hi\");\n}\n"
	diff := "--- a/src/main.rs\n+++ b/src/main.rs\n@@ -1,3 +1,4 @@\n fn main() {\n-    println!(\"hi\");\n+    let name = \"world\";\n+    println!(\"hello {}\", name);\n }\n"

	got, err := ApplyUnifiedDiff(original, diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "fn main() {\n    let name = \"world\";\n    println!(\"hello {}\", name);\n}\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestApplyUnifiedDiffRoundTrip(t *testing.T) {
	original := "a\nb\nc\nd\ne\nf\ng\n"
	diff := "@@ -2,2 +2,3 @@\n b\n-c\n+C\n+C2\n@@ -6,2 +7,1 @@\n-f\n g\n"

	patched, err := ApplyUnifiedDiff(original, diff)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if patched != "a\nb\nC\nC2\nd\ne\ng\n" {
		t.Fatalf("patched = %q", patched)
	}

	inverse, err := InvertDiff(diff)
	if err != nil {
		t.Fatalf("invert: %v", err)
	}
	restored, err := ApplyUnifiedDiff(patched, inverse)
	if err != nil {
		t.Fatalf("apply inverse: %v", err)
	}
	if restored != original {
		t.Errorf("round trip mismatch:\n%q\n%q", restored, original)
	}
}

func TestApplyUnifiedDiffToEmptyFile(t *testing.T) {
	got, err := ApplyUnifiedDiff("", "@@ -0,0 +1,2 @@\n+package main\n+\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "package main\n\n" {
		t.Errorf("got %q", got)
	}
}

func TestApplyUnifiedDiffContextCopiesOriginal(t *testing.T) {
	// The context line's text differs from the file; the file's line wins.
	got, err := ApplyUnifiedDiff("one\ntwo\n", "@@ -1,2 +1,2 @@\n ONE\n-two\n+2\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "one\n2\n" {
		t.Errorf("got %q", got)
	}
}

func TestApplyUnifiedDiffErrors(t *testing.T) {
	tests := []struct {
		name     string
		original string
		diff     string
	}{
		{"no hunks", "a\n", "just text"},
		{"start past end", "a\n", "@@ -5,1 +5,1 @@\n-a\n+b\n"},
		{"removal past end", "a\n", "@@ -1,2 +1,0 @@\n-a\n-b\n"},
		{"bad prefix", "a\n", "@@ -1,1 +1,1 @@\n?a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ApplyUnifiedDiff(tt.original, tt.diff)
			if !errors.Is(err, ErrMalformedHunk) {
				t.Errorf("expected ErrMalformedHunk, got %v", err)
			}
		})
	}
}

func TestIsUnifiedDiff(t *testing.T) {
	if !IsUnifiedDiff("--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n") {
		t.Error("expected diff")
	}
	if IsUnifiedDiff("package main\n\nfunc main() {}\n") {
		t.Error("plain source is not a diff")
	}
}

func TestApplyUnifiedDiffDashedCommentLines(t *testing.T) {
	original := "select 1;\n-- drop the users table\nselect 2;\n"
	diff := "--- a/query.sql\n+++ b/query.sql\n@@ -1,3 +1,3 @@\n select 1;\n--- drop the users table\n+++ keep the users table\n select 2;\n"

	got, err := ApplyUnifiedDiff(original, diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "select 1;\n++ keep the users table\nselect 2;\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParseHunksFileHeadersBetweenHunks(t *testing.T) {
	diff := "--- a/x.go\n+++ b/x.go\n@@ -1,1 +1,1 @@\n-a\n+b\n--- a/y.go\n+++ b/y.go\n@@ -3,2 +3,1 @@\n c\n-d\n"

	hunks, err := ParseHunks(diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(hunks))
	}
	if len(hunks[0].Lines) != 2 || len(hunks[1].Lines) != 2 {
		t.Errorf("hunk lines = %q and %q", hunks[0].Lines, hunks[1].Lines)
	}
}
