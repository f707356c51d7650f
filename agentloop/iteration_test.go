package agentloop

import (
	"strings"
	"testing"

	"github.com/martinemde/cliengineer/artifact"
)

func TestMergeArtifactsAddsOnlyNewNames(t *testing.T) {
	iter := NewIterationContext()
	iter.Iteration = 2
	iter.AddFile("src/main.rs", FileInfo{Path: "src/main.rs", Language: "SourceCode", HasIssues: true})

	added := iter.MergeArtifacts([]artifact.Artifact{
		{Name: "src/main.rs", Type: artifact.TypeSourceCode},
		{Name: "Cargo.toml", Type: artifact.TypeConfiguration, Path: "/tmp/a/Cargo.toml"},
	})
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if !iter.ExistingFiles["src/main.rs"].HasIssues {
		t.Error("existing entry should keep its issue marker")
	}
	cargo := iter.ExistingFiles["Cargo.toml"]
	if cargo.Language != "Configuration" || cargo.Description != "Created in iteration 2" {
		t.Errorf("unexpected file info %+v", cargo)
	}
	if got := iter.FileNames(); len(got) != 2 || got[0] != "Cargo.toml" {
		t.Errorf("file names = %v", got)
	}
}

func TestUpdateFromReviewMarksFiles(t *testing.T) {
	iter := NewIterationContext()
	iter.AddFile("src/lib.rs", FileInfo{})
	iter.AddFile("src/main.rs", FileInfo{})
	iter.AddFile("tests/main.rs", FileInfo{})

	review := &ReviewResult{
		OverallQuality: QualityFair,
		Issues: []Issue{
			{Severity: SeverityMajor, Description: "panics on empty input", Location: "src/lib.rs"},
			{Severity: SeverityMinor, Description: "unused import", Location: "lib.rs"},
			{Severity: SeverityMinor, Description: "ambiguous", Location: "main.rs"},
			{Severity: SeverityInfo, Description: "no location"},
		},
		Summary: "needs work",
	}
	iter.UpdateFromReview(review)

	lib := iter.ExistingFiles["src/lib.rs"]
	if !lib.HasIssues || len(lib.Issues) != 2 {
		t.Errorf("src/lib.rs = %+v", lib)
	}
	if iter.ExistingFiles["src/main.rs"].HasIssues || iter.ExistingFiles["tests/main.rs"].HasIssues {
		t.Error("ambiguous base name must not mark either file")
	}
	if len(iter.PendingIssues) != 4 {
		t.Errorf("pending issues = %d", len(iter.PendingIssues))
	}
	if iter.LastReview != review {
		t.Error("last review not recorded")
	}

	next := &ReviewResult{OverallQuality: QualityGood}
	iter.UpdateFromReview(next)
	if len(iter.PendingIssues) != 0 {
		t.Error("pending issues should be replaced, not accumulated")
	}
}

func TestIterationContextString(t *testing.T) {
	iter := NewIterationContext()
	iter.Iteration = 3
	iter.AddFile("a.py", FileInfo{Language: "SourceCode", Description: "Created in iteration 1"})
	iter.UpdateFromReview(&ReviewResult{
		Issues:  []Issue{{Severity: SeverityCritical, Description: "crash in a.py", Location: "a.py", Suggestion: "guard nil"}},
		Summary: "one blocker",
	})

	s := iter.String()
	for _, want := range []string{
		"Iteration #3",
		"a.py (SourceCode) [HAS ISSUES]",
		"Issue: crash in a.py",
		"Pending issues (1):",
		"Critical: crash in a.py (suggestion: guard nil)",
		"Last review: one blocker",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in:\n%s", want, s)
		}
	}
}

func TestSummarizeProgress(t *testing.T) {
	results := []StepResult{{Success: true}, {Success: false}, {Success: true}}
	review := &ReviewResult{
		OverallQuality: QualityFair,
		Issues:         []Issue{{Severity: SeverityCritical}, {Severity: SeverityMinor}},
	}
	got := summarizeProgress(2, results, review)
	want := "Iteration 2: 2/3 steps succeeded. Review quality Fair with 2 issues (1 critical)."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
