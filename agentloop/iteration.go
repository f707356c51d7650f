package agentloop

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/martinemde/cliengineer/artifact"
)

// FileInfo describes a file produced in an earlier iteration.
type FileInfo struct {
	Path        string   `json:"path"`
	Language    string   `json:"language"`
	Description string   `json:"description"`
	HasIssues   bool     `json:"has_issues"`
	Issues      []string `json:"issues,omitempty"`
}

// IterationContext carries what earlier iterations produced and what the
// last review asked for. It belongs to a single run.
type IterationContext struct {
	Iteration       int                 `json:"iteration"`
	ExistingFiles   map[string]FileInfo `json:"existing_files"`
	LastReview      *ReviewResult       `json:"last_review,omitempty"`
	PendingIssues   []Issue             `json:"pending_issues"`
	ProgressSummary string              `json:"progress_summary"`
}

func NewIterationContext() *IterationContext {
	return &IterationContext{ExistingFiles: make(map[string]FileInfo)}
}

func (c *IterationContext) AddFile(name string, info FileInfo) {
	c.ExistingFiles[name] = info
}

func (c *IterationContext) HasExistingFiles() bool {
	return len(c.ExistingFiles) > 0
}

// FileNames returns the known file names sorted.
func (c *IterationContext) FileNames() []string {
	names := make([]string, 0, len(c.ExistingFiles))
	for name := range c.ExistingFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MergeArtifacts adds artifacts not yet known, keyed by name, and returns
// how many were added. Known entries keep their issue markers.
func (c *IterationContext) MergeArtifacts(artifacts []artifact.Artifact) int {
	added := 0
	for _, a := range artifacts {
		if _, ok := c.ExistingFiles[a.Name]; ok {
			continue
		}
		c.AddFile(a.Name, FileInfo{
			Path:        a.Path,
			Language:    a.Type.String(),
			Description: fmt.Sprintf("Created in iteration %d", c.Iteration),
		})
		added++
	}
	return added
}

// UpdateFromReview replaces the pending issues and marks the files that
// issues point at.
func (c *IterationContext) UpdateFromReview(r *ReviewResult) {
	c.PendingIssues = append([]Issue(nil), r.Issues...)
	for _, issue := range r.Issues {
		name, ok := c.lookupFile(issue.Location)
		if !ok {
			continue
		}
		info := c.ExistingFiles[name]
		info.HasIssues = true
		info.Issues = append(info.Issues, issue.Description)
		c.ExistingFiles[name] = info
	}
	c.LastReview = r
}

// lookupFile resolves an issue location to a known file name, falling back
// to a unique base-name match.
func (c *IterationContext) lookupFile(location string) (string, bool) {
	if location == "" {
		return "", false
	}
	if _, ok := c.ExistingFiles[location]; ok {
		return location, true
	}
	match := ""
	for name := range c.ExistingFiles {
		if filepath.Base(name) == filepath.Base(location) {
			if match != "" {
				return "", false
			}
			match = name
		}
	}
	return match, match != ""
}

func (c *IterationContext) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Iteration #%d\n", c.Iteration)

	if len(c.ExistingFiles) > 0 {
		sb.WriteString("\nExisting files:\n")
		for _, name := range c.FileNames() {
			info := c.ExistingFiles[name]
			fmt.Fprintf(&sb, "  - %s (%s)", name, info.Language)
			if info.HasIssues {
				sb.WriteString(" [HAS ISSUES]")
			}
			sb.WriteString("\n")
			if info.Description != "" {
				fmt.Fprintf(&sb, "    Description: %s\n", info.Description)
			}
			for _, issue := range info.Issues {
				fmt.Fprintf(&sb, "    Issue: %s\n", issue)
			}
		}
	}

	if len(c.PendingIssues) > 0 {
		fmt.Fprintf(&sb, "\nPending issues (%d):\n", len(c.PendingIssues))
		for _, issue := range c.PendingIssues {
			fmt.Fprintf(&sb, "  - %s: %s", issue.Severity, issue.Description)
			if issue.Suggestion != "" {
				fmt.Fprintf(&sb, " (suggestion: %s)", issue.Suggestion)
			}
			sb.WriteString("\n")
		}
	}

	if c.LastReview != nil {
		fmt.Fprintf(&sb, "\nLast review: %s\n", c.LastReview.Summary)
	}
	return sb.String()
}

// summarizeProgress rewrites the progress summary after a review.
func summarizeProgress(iteration int, results []StepResult, r *ReviewResult) string {
	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	return fmt.Sprintf("Iteration %d: %d/%d steps succeeded. Review quality %s with %d issues (%d critical).",
		iteration, succeeded, len(results), r.OverallQuality, len(r.Issues), r.Count(SeverityCritical))
}
