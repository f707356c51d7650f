package agentloop

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ExtractedArtifact is one <artifact> block pulled out of a model response.
type ExtractedArtifact struct {
	Filename string
	Type     string
	Content  string
}

// SkippedArtifact records a block that was parsed but not kept.
type SkippedArtifact struct {
	Filename string
	Reason   string
}

const (
	openTag    = "<artifact"
	closeTag   = "</artifact>"
	cdataOpen  = "<![CDATA["
	cdataClose = "]]>"
)

var attrPattern = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)

type scanState int

const (
	scanOutside scanState = iota
	scanAwaitCDATA
	scanContent
	scanAwaitClose
)

// ExtractArtifacts scans a response line by line for
//
//	<artifact filename="..." type="..."><![CDATA[ ... ]]></artifact>
//
// blocks. Blocks without a filename or without a closed CDATA section are
// skipped, as are blocks that look like placeholders, template markdown or
// short shell commands meant to be run rather than saved.
func ExtractArtifacts(text string) ([]ExtractedArtifact, []SkippedArtifact) {
	var (
		kept    []ExtractedArtifact
		skipped []SkippedArtifact
		state   = scanOutside
		cur     ExtractedArtifact
		body    []string
	)

	finish := func() {
		cur.Content = joinContent(body)
		switch reason := exclusionReason(cur); {
		case cur.Filename == "":
			skipped = append(skipped, SkippedArtifact{Reason: "missing filename"})
		case reason != "":
			skipped = append(skipped, SkippedArtifact{Filename: cur.Filename, Reason: reason})
		default:
			kept = append(kept, cur)
		}
		cur, body, state = ExtractedArtifact{}, nil, scanOutside
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		rest := line
		for rest != "" || state == scanContent {
			switch state {
			case scanOutside, scanAwaitCDATA:
				if idx := strings.Index(rest, openTag); idx >= 0 {
					if state == scanAwaitCDATA {
						skipped = append(skipped, SkippedArtifact{Filename: cur.Filename, Reason: "unterminated block"})
					}
					tagEnd := strings.Index(rest[idx:], ">")
					if tagEnd < 0 {
						rest = ""
						continue
					}
					cur = parseOpenTag(rest[idx : idx+tagEnd])
					body = nil
					state = scanAwaitCDATA
					rest = rest[idx+tagEnd+1:]
					continue
				}
				if state == scanAwaitCDATA {
					if idx := strings.Index(rest, cdataOpen); idx >= 0 {
						state = scanContent
						rest = rest[idx+len(cdataOpen):]
						body = append(body, "")
						continue
					}
					if strings.Contains(rest, closeTag) {
						skipped = append(skipped, SkippedArtifact{Filename: cur.Filename, Reason: "missing CDATA section"})
						cur, body, state = ExtractedArtifact{}, nil, scanOutside
					}
				}
				rest = ""
			case scanContent:
				if idx := strings.Index(rest, cdataClose); idx >= 0 {
					body[len(body)-1] += rest[:idx]
					rest = rest[idx+len(cdataClose):]
					state = scanAwaitClose
					continue
				}
				body[len(body)-1] += rest
				body = append(body, "")
				rest = ""
			case scanAwaitClose:
				if idx := strings.Index(rest, closeTag); idx >= 0 {
					rest = rest[idx+len(closeTag):]
					finish()
					continue
				}
				if strings.Contains(rest, openTag) {
					finish()
					continue
				}
				rest = ""
			}
			if state == scanContent && rest == "" {
				break
			}
		}
	}

	switch state {
	case scanAwaitClose:
		finish()
	case scanAwaitCDATA, scanContent:
		skipped = append(skipped, SkippedArtifact{Filename: cur.Filename, Reason: "unterminated block"})
	}
	return kept, skipped
}

func parseOpenTag(tag string) ExtractedArtifact {
	var a ExtractedArtifact
	for _, m := range attrPattern.FindAllStringSubmatch(tag, -1) {
		switch strings.ToLower(m[1]) {
		case "filename", "name", "path":
			if a.Filename == "" {
				a.Filename = strings.TrimSpace(m[2])
			}
		case "type":
			a.Type = strings.TrimSpace(m[2])
		}
	}
	return a
}

// joinContent trims the blank line left after the CDATA opener and the
// indentation-only line before the closer.
func joinContent(body []string) string {
	if len(body) > 0 && strings.TrimSpace(body[0]) == "" {
		body = body[1:]
	}
	if len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if len(body) == 0 {
		return ""
	}
	return strings.Join(body, "\n") + "\n"
}

var placeholderPhrases = []string{
	"placeholder",
	"your code here",
	"add your",
	"replace this",
	"replace with your",
	"implementation goes here",
	"insert your",
	"todo: implement",
	"fill in",
	"example file",
	"example code",
	"this is an example",
	"sample code",
}

var templatePhrases = []string{
	"please specify the actual",
	"please provide the actual",
	"[your project name]",
	"[project name]",
	"[insert",
	"lorem ipsum",
	"todo: add content",
	"this is a template",
}

var commandPrefixes = map[string]bool{
	"cargo": true, "rustc": true, "rustup": true,
	"npm": true, "npx": true, "yarn": true, "pnpm": true, "node": true,
	"pip": true, "pip3": true, "python": true, "python3": true, "pytest": true, "poetry": true,
	"go": true, "make": true, "cmake": true, "gcc": true, "g++": true, "clang": true,
	"mvn": true, "gradle": true, "bundle": true, "rake": true, "gem": true, "composer": true,
	"git": true, "docker": true, "kubectl": true,
	"cd": true, "ls": true, "cat": true, "echo": true, "mkdir": true, "rm": true,
	"cp": true, "mv": true, "chmod": true, "touch": true, "curl": true, "wget": true,
	"bash": true, "sh": true, "source": true, "export": true, "sudo": true,
	"apt": true, "apt-get": true, "brew": true,
}

// exclusionReason returns why a block should not be saved, or "".
func exclusionReason(a ExtractedArtifact) string {
	lines := strings.Split(a.Content, "\n")

	head := lines
	if len(head) > 5 {
		head = head[:5]
	}
	for _, line := range head {
		if isComment(line) && containsAny(strings.ToLower(line), placeholderPhrases) {
			return "placeholder content"
		}
	}

	if isMarkdown(a) && containsAny(strings.ToLower(a.Content), templatePhrases) {
		return "template markdown"
	}

	if isShell(a) && isShortCommandBlock(lines) {
		return "shell command block"
	}
	return ""
}

func isComment(line string) bool {
	t := strings.TrimSpace(line)
	for _, p := range []string{"//", "#", "/*", "*", "<!--", "--", ";"} {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isMarkdown(a ExtractedArtifact) bool {
	ext := strings.ToLower(filepath.Ext(a.Filename))
	t := strings.ToLower(a.Type)
	return ext == ".md" || ext == ".markdown" || t == "markdown" || t == "documentation"
}

func isShell(a ExtractedArtifact) bool {
	switch strings.ToLower(filepath.Ext(a.Filename)) {
	case ".sh", ".bash", ".zsh":
		return true
	}
	switch strings.ToLower(a.Type) {
	case "script", "shell", "bash", "sh":
		return true
	}
	return false
}

// isShortCommandBlock reports whether a block is at most three command
// lines, ignoring the shebang, comments and blank lines.
func isShortCommandBlock(lines []string) bool {
	var commands []string
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		commands = append(commands, t)
	}
	if len(commands) == 0 || len(commands) > 3 {
		return false
	}
	for _, cmd := range commands {
		if !looksLikeCommand(cmd) {
			return false
		}
	}
	return true
}

func looksLikeCommand(line string) bool {
	line = strings.TrimPrefix(line, "$ ")
	if strings.HasPrefix(line, "./") {
		return true
	}
	if strings.ContainsAny(line, "|<>") {
		return true
	}
	fields := strings.Fields(line)
	return len(fields) > 0 && commandPrefixes[fields[0]]
}
