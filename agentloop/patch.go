package agentloop

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var ErrMalformedHunk = errors.New("malformed diff hunk")

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Hunk is one "@@ -a,b +c,d @@" section of a unified diff.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []string
}

// IsUnifiedDiff reports whether content contains at least one hunk header.
func IsUnifiedDiff(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		if hunkHeader.MatchString(strings.TrimRight(line, "\r")) {
			return true
		}
	}
	return false
}

// full reports whether the hunk already holds as many old and new lines as
// its header declares.
func (h *Hunk) full() bool {
	var old, added int
	for _, line := range h.Lines {
		switch {
		case strings.HasPrefix(line, "-"):
			old++
		case strings.HasPrefix(line, "+"):
			added++
		default:
			old++
			added++
		}
	}
	return old >= h.OldCount && added >= h.NewCount
}

// ParseHunks splits a unified diff into hunks. File headers and anything
// before the first hunk are ignored. A "---"/"+++" pair only counts as a
// file header outside a hunk or once the current hunk is complete, so
// removed "-- " comment lines followed by added "++ " lines stay in the hunk.
func ParseHunks(diff string) ([]Hunk, error) {
	var (
		hunks []Hunk
		cur   *Hunk
	)
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		if m := hunkHeader.FindStringSubmatch(line); m != nil {
			hunks = append(hunks, Hunk{
				OldStart: atoiDefault(m[1], 0),
				OldCount: atoiDefault(m[2], 1),
				NewStart: atoiDefault(m[3], 0),
				NewCount: atoiDefault(m[4], 1),
			})
			cur = &hunks[len(hunks)-1]
			continue
		}
		if (cur == nil || cur.full()) &&
			strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ ") {
			i++
			cur = nil
			continue
		}
		if cur == nil || strings.HasPrefix(line, `\ No newline`) {
			continue
		}
		cur.Lines = append(cur.Lines, line)
	}
	if len(hunks) == 0 {
		return nil, fmt.Errorf("%w: no hunk header", ErrMalformedHunk)
	}
	return hunks, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ApplyUnifiedDiff replays diff onto original. Each hunk starts at its old
// line number (1-based) shifted by the growth of earlier hunks; "-" lines
// skip an original line, "+" lines are emitted, and context lines copy the
// original line under the cursor. The emitted lines replace the consumed
// range of the line arena.
func ApplyUnifiedDiff(original, diff string) (string, error) {
	hunks, err := ParseHunks(diff)
	if err != nil {
		return "", err
	}

	arena, trailingNewline := splitLines(original)
	offset := 0
	for n, h := range hunks {
		start := h.OldStart - 1
		if start < 0 {
			start = 0
		}
		start += offset
		if start > len(arena) {
			return "", fmt.Errorf("%w: hunk %d starts at line %d past end of file (%d lines)",
				ErrMalformedHunk, n+1, h.OldStart, len(arena))
		}

		cursor := start
		out := make([]string, 0, len(h.Lines))
		for _, line := range h.Lines {
			var prefix byte = ' '
			text := ""
			if line != "" {
				prefix, text = line[0], line[1:]
			}
			switch prefix {
			case '-':
				if cursor >= len(arena) {
					return "", fmt.Errorf("%w: hunk %d removes past end of file", ErrMalformedHunk, n+1)
				}
				cursor++
			case '+':
				out = append(out, text)
			case ' ':
				if cursor >= len(arena) {
					return "", fmt.Errorf("%w: hunk %d context past end of file", ErrMalformedHunk, n+1)
				}
				out = append(out, arena[cursor])
				cursor++
			default:
				return "", fmt.Errorf("%w: hunk %d has unexpected line %q", ErrMalformedHunk, n+1, line)
			}
		}

		spliced := make([]string, 0, len(arena)-(cursor-start)+len(out))
		spliced = append(spliced, arena[:start]...)
		spliced = append(spliced, out...)
		spliced = append(spliced, arena[cursor:]...)
		offset += len(out) - (cursor - start)
		arena = spliced
	}

	if len(arena) == 0 {
		return "", nil
	}
	result := strings.Join(arena, "\n")
	if trailingNewline || original == "" {
		result += "\n"
	}
	return result, nil
}

// InvertDiff swaps the removed and added sides of every hunk.
func InvertDiff(diff string) (string, error) {
	hunks, err := ParseHunks(diff)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.NewStart, h.NewCount, h.OldStart, h.OldCount)
		for _, line := range h.Lines {
			switch {
			case strings.HasPrefix(line, "-"):
				sb.WriteString("+" + line[1:])
			case strings.HasPrefix(line, "+"):
				sb.WriteString("-" + line[1:])
			default:
				sb.WriteString(line)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}

func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n"), trailing
}
