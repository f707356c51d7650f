package agentloop

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/martinemde/cliengineer/artifact"
)

// Quality is the reviewer's overall grade.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityExcellent
	QualityGood
	QualityFair
	QualityPoor
)

func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "Excellent"
	case QualityGood:
		return "Good"
	case QualityFair:
		return "Fair"
	case QualityPoor:
		return "Poor"
	}
	return "Unknown"
}

func ParseQuality(s string) Quality {
	switch firstWord(s) {
	case "excellent":
		return QualityExcellent
	case "good":
		return QualityGood
	case "fair":
		return QualityFair
	case "poor":
		return QualityPoor
	}
	return QualityUnknown
}

type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityCritical
	SeverityMajor
	SeverityMinor
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityMajor:
		return "Major"
	case SeverityMinor:
		return "Minor"
	case SeverityInfo:
		return "Info"
	}
	return "Unknown"
}

func ParseSeverity(s string) Severity {
	switch firstWord(s) {
	case "critical":
		return SeverityCritical
	case "major":
		return SeverityMajor
	case "minor":
		return SeverityMinor
	case "info":
		return SeverityInfo
	}
	return SeverityUnknown
}

type IssueCategory int

const (
	IssueUnknown IssueCategory = iota
	IssueLogic
	IssuePerformance
	IssueSecurity
	IssueCodeStyle
	IssueBestPractices
	IssueDocumentation
	IssueTesting
	IssueDependencies
)

var issueCategoryNames = [...]string{
	IssueUnknown:       "Unknown",
	IssueLogic:         "Logic",
	IssuePerformance:   "Performance",
	IssueSecurity:      "Security",
	IssueCodeStyle:     "CodeStyle",
	IssueBestPractices: "BestPractices",
	IssueDocumentation: "Documentation",
	IssueTesting:       "Testing",
	IssueDependencies:  "Dependencies",
}

func (c IssueCategory) String() string {
	if c < 0 || int(c) >= len(issueCategoryNames) {
		return "Unknown"
	}
	return issueCategoryNames[c]
}

// ParseIssueCategory accepts the category names with or without
// separators ("CodeStyle", "code style", "code_style").
func ParseIssueCategory(s string) IssueCategory {
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for i, name := range issueCategoryNames {
		if i == int(IssueUnknown) {
			continue
		}
		if strings.ToLower(name) == norm {
			return IssueCategory(i)
		}
	}
	return IssueUnknown
}

// Issue is one problem reported by the reviewer. Location is set when the
// description names a file.
type Issue struct {
	Severity    Severity      `json:"severity"`
	Category    IssueCategory `json:"category"`
	Description string        `json:"description"`
	Location    string        `json:"location,omitempty"`
	Suggestion  string        `json:"suggestion,omitempty"`
}

// ReviewResult is the parsed review. ReadyToDeploy is never true while a
// Critical issue is present.
type ReviewResult struct {
	OverallQuality Quality `json:"overall_quality"`
	Issues         []Issue `json:"issues"`
	ReadyToDeploy  bool    `json:"ready_to_deploy"`
	Summary        string  `json:"summary"`
}

// Count returns the number of issues with the given severity.
func (r *ReviewResult) Count(s Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == s {
			n++
		}
	}
	return n
}

func (r *ReviewResult) HasCritical() bool {
	return r.Count(SeverityCritical) > 0
}

var fileToken = regexp.MustCompile(`[A-Za-z0-9_][A-Za-z0-9_./-]*\.[A-Za-z0-9]{1,8}\b`)

// inferLocation returns the first token in text that names a file: it has
// a path separator or an extension with a known artifact type. Abbreviations
// like "e.g" and versions like "v1.2" are skipped.
func inferLocation(text string) string {
	for _, tok := range fileToken.FindAllString(text, -1) {
		if strings.Contains(tok, "/") || artifact.TypeFromFilename(tok) != artifact.TypeOther {
			return tok
		}
	}
	return ""
}

// issueLabels are the segments an issue line may carry. LOCATION is optional.
var issueLabels = map[string]bool{
	"SEVERITY": true, "CATEGORY": true, "DESCRIPTION": true, "SUGGESTION": true, "LOCATION": true,
}

// ParseReview reads the QUALITY/READY_TO_DEPLOY/SUMMARY/ISSUES grammar.
// Issue lines that do not split into the four labeled segments (plus an
// optional LOCATION segment), or whose
// severity or category is not recognized, are dropped on their own. A
// missing READY_TO_DEPLOY line is derived from the quality and the
// critical count; a missing SUMMARY is synthesized from the counts.
func ParseReview(text string) *ReviewResult {
	r := &ReviewResult{}
	var (
		readySeen bool
		ready     bool
	)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		label, value, ok := splitLabel(line)
		if !ok {
			continue
		}
		switch label {
		case "QUALITY":
			r.OverallQuality = ParseQuality(value)
		case "READY_TO_DEPLOY", "READY TO DEPLOY":
			switch firstWord(value) {
			case "yes", "true":
				readySeen, ready = true, true
			case "no", "false":
				readySeen, ready = true, false
			}
		case "SUMMARY":
			if value != "" {
				r.Summary = value
			}
		case "SEVERITY":
			if issue, ok := parseIssueLine(line); ok {
				r.Issues = append(r.Issues, issue)
			}
		}
	}

	if !readySeen {
		ready = r.OverallQuality == QualityGood || r.OverallQuality == QualityExcellent
	}
	r.ReadyToDeploy = ready && !r.HasCritical()

	if r.Summary == "" {
		r.Summary = fmt.Sprintf("Quality: %s. %d issues found (%d critical, %d major, %d minor, %d info).",
			r.OverallQuality, len(r.Issues),
			r.Count(SeverityCritical), r.Count(SeverityMajor), r.Count(SeverityMinor), r.Count(SeverityInfo))
	}
	return r
}

// splitLabel strips list and emphasis markers and splits "LABEL: value".
func splitLabel(line string) (string, string, bool) {
	line = strings.TrimLeft(line, "-*#> \t")
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	label := strings.ToUpper(strings.Trim(line[:idx], "* "))
	value := strings.TrimSpace(strings.Trim(line[idx+1:], "* "))
	return label, value, true
}

func parseIssueLine(line string) (Issue, bool) {
	line = strings.TrimLeft(line, "-*> \t")
	segments := strings.Split(line, "|")
	if len(segments) != 4 && len(segments) != 5 {
		return Issue{}, false
	}
	fields := make(map[string]string, len(segments))
	for _, seg := range segments {
		label, value, ok := splitLabel(seg)
		if !ok || !issueLabels[label] {
			return Issue{}, false
		}
		fields[label] = value
	}
	for _, want := range []string{"SEVERITY", "CATEGORY", "DESCRIPTION", "SUGGESTION"} {
		if _, ok := fields[want]; !ok {
			return Issue{}, false
		}
	}

	issue := Issue{
		Severity:    ParseSeverity(fields["SEVERITY"]),
		Category:    ParseIssueCategory(fields["CATEGORY"]),
		Description: fields["DESCRIPTION"],
		Suggestion:  fields["SUGGESTION"],
	}
	if issue.Severity == SeverityUnknown || issue.Category == IssueUnknown {
		return Issue{}, false
	}
	issue.Location = fields["LOCATION"]
	if issue.Location == "" {
		issue.Location = inferLocation(issue.Description)
	}
	return issue, true
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(strings.Trim(s, "*. ")))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,;:*")
}
