package artifact

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffStats counts the lines added and removed between two versions.
type DiffStats struct {
	Added   int
	Removed int
}

// Changed reports whether any line differs.
func (d DiffStats) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// ComputeDiffStats runs a line-mode diff over the two contents.
func ComputeDiffStats(oldContent, newContent string) DiffStats {
	if oldContent == newContent {
		return DiffStats{}
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var stats DiffStats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			stats.Removed += countLines(d.Text)
		}
	}
	return stats
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
