package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode selects which part of an oversized output survives.
type TruncationMode string

const (
	// TruncateHeadTail keeps the beginning and the end.
	TruncateHeadTail TruncationMode = "head_tail"
	// TruncateTail keeps only the end.
	TruncateTail TruncationMode = "tail"
)

// OutputLimits bound how much of a step's output is echoed back into a
// later prompt. Zero disables a limit.
type OutputLimits struct {
	MaxChars int
	MaxLines int
	Mode     TruncationMode
}

// DefaultReviewLimits keep each step's output in the review prompt short
// enough that a plan of several steps still fits.
var DefaultReviewLimits = OutputLimits{
	MaxChars: 6000,
	MaxLines: 160,
	Mode:     TruncateHeadTail,
}

// Truncate bounds characters first, then lines.
func (l OutputLimits) Truncate(output string) string {
	return TruncateLines(TruncateOutput(output, l.MaxChars, l.Mode), l.MaxLines)
}

// TruncateOutput cuts output to maxChars, marking how much was dropped.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}
	dropped := len(output) - maxChars

	if mode == TruncateTail {
		kept := output[dropped:]
		return fmt.Sprintf("[... first %d characters omitted ...]\n\n%s", dropped, kept)
	}

	headLen := maxChars / 2
	tailLen := maxChars - headLen
	var sb strings.Builder
	sb.Grow(maxChars + 64)
	sb.WriteString(output[:headLen])
	fmt.Fprintf(&sb, "\n\n[... %d characters omitted from the middle ...]\n\n", dropped)
	sb.WriteString(output[len(output)-tailLen:])
	return sb.String()
}

// TruncateLines keeps the first and last lines of output so that at most
// maxLines survive, replacing the rest with a marker line.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	head := lines[:maxLines/2]
	tail := lines[len(lines)-(maxLines-len(head)):]
	omitted := len(lines) - len(head) - len(tail)

	out := make([]string, 0, maxLines+1)
	out = append(out, head...)
	out = append(out, fmt.Sprintf("[... %d lines omitted ...]", omitted))
	out = append(out, tail...)
	return strings.Join(out, "\n")
}
