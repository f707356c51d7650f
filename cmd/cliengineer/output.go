package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/llm"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var (
	summaryBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	styleLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleSuccess = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	styleWarn    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	styleFailure = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// printer renders bus events to the terminal.
type printer struct {
	w       io.Writer
	format  string
	verbose bool
}

func newPrinter(w io.Writer, format string, colorful, verbose bool) *printer {
	if !colorful || format != "terminal" {
		color.NoColor = true
	}
	return &printer{w: w, format: format, verbose: verbose}
}

// consume prints events until the subscription closes.
func (p *printer) consume(sub *events.Subscription) {
	enc := json.NewEncoder(p.w)
	for e := range sub.Events() {
		if p.format == "json" {
			_ = enc.Encode(e)
			continue
		}
		if line := p.line(e); line != "" {
			fmt.Fprintln(p.w, line)
		}
	}
}

// line returns the display line for e, or "" when it is not shown.
func (p *printer) line(e events.Event) string {
	switch e.Kind {
	case events.KindTaskStarted:
		return bold("▶ ") + e.String(events.KeyDescription)
	case events.KindTaskProgress:
		return blue(fmt.Sprintf("[%3.0f%%] ", e.Float(events.KeyProgress)*100)) + e.String(events.KeyMessage)
	case events.KindExecutionStarted:
		return cyan("  → ") + e.String(events.KeyStepID) + " " + gray(e.String(events.KeyDescription))
	case events.KindExecutionCompleted:
		mark := green("  ✓ ")
		if ok, _ := e.Data["success"].(bool); !ok {
			mark = red("  ✗ ")
		}
		return mark + e.String(events.KeyStepID) + gray(fmt.Sprintf(" (%d artifacts)", e.Int("artifacts")))
	case events.KindArtifactCreated:
		return green("    + ") + e.String(events.KeyName) + gray(" "+e.String(events.KeyArtifactType))
	case events.KindArtifactUpdated:
		return yellow("    ~ ") + e.String(events.KeyName) +
			gray(fmt.Sprintf(" +%d -%d", e.Int("lines_added"), e.Int("lines_removed")))
	case events.KindContextCompressed:
		return gray(fmt.Sprintf("  context compressed: %d → %d tokens",
			e.Int(events.KeyOriginalTokens), e.Int(events.KeyTotalTokens)))
	case events.KindWarning:
		return yellow("⚠ ") + e.String(events.KeyMessage)
	case events.KindAPICallFailed:
		return red("  model call failed: ") + e.String(events.KeyError)
	case events.KindTaskCompleted:
		return green("✔ ") + e.String(events.KeyResult)
	case events.KindTaskFailed:
		return red("✘ ") + e.String(events.KeyError)
	case events.KindLogLine:
		if p.verbose {
			return gray(e.String(events.KeyLevel) + " " + e.String(events.KeyMessage))
		}
	case events.KindTokensUsed:
		if p.verbose {
			return gray(fmt.Sprintf("  tokens: %d in, %d out ($%.4f)",
				e.Int(events.KeyInputTokens), e.Int(events.KeyOutputTokens), e.Float(events.KeyCost)))
		}
	}
	return ""
}

// runSummary is printed once the loop has finished.
type runSummary struct {
	Command        string
	Outcome        error
	Provider       string
	Artifacts      int
	ArtifactDir    string
	Usage          map[string]llm.ProviderUsage
	TotalCost      float64
	ContextTokens  int
	ContextPercent float64
}

func (s runSummary) render(exhausted bool) string {
	var status string
	switch {
	case s.Outcome == nil:
		status = styleSuccess.Render("completed")
	case exhausted:
		status = styleWarn.Render("stopped at max iterations")
	default:
		status = styleFailure.Render("failed")
	}

	rows := [][2]string{
		{"command", s.Command},
		{"status", status},
		{"provider", s.Provider},
		{"artifacts", fmt.Sprintf("%d in %s", s.Artifacts, s.ArtifactDir)},
		{"context", fmt.Sprintf("%d tokens (%.0f%%)", s.ContextTokens, s.ContextPercent)},
	}

	names := make([]string, 0, len(s.Usage))
	for name := range s.Usage {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u := s.Usage[name]
		rows = append(rows, [2]string{name, fmt.Sprintf("%d calls, %d in / %d out tokens, $%.4f",
			u.Calls, u.InputTokens, u.OutputTokens, u.Cost)})
	}
	rows = append(rows, [2]string{"total cost", fmt.Sprintf("$%.4f", s.TotalCost)})

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, styleLabel.Render(fmt.Sprintf("%-11s", r[0]))+r[1])
	}
	return summaryBox.Render(strings.Join(lines, "\n"))
}
