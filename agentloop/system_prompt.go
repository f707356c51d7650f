package agentloop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxProjectDocBytes = 32 * 1024

// projectDocFiles are instruction files loaded into the conversation when
// found between the repository root and the working directory.
var projectDocFiles = []string{"AGENTS.md", ".cliengineer/instructions.md"}

// Environment describes where a run happens. It is recorded once per run
// as a system message so every later prompt carries it.
type Environment struct {
	WorkingDir    string
	Platform      string
	OSVersion     string
	Model         string
	Date          time.Time
	GitRoot       string
	GitBranch     string
	DirtyFiles    int
	RecentCommits []string
}

// InspectEnvironment gathers workspace facts. Git is only consulted when
// withGit is set.
func InspectEnvironment(w Workspace, model string, withGit bool) Environment {
	env := Environment{
		WorkingDir: w.WorkingDirectory(),
		Platform:   w.Platform(),
		OSVersion:  w.OSVersion(),
		Model:      model,
		Date:       time.Now(),
	}
	if !withGit {
		return env
	}
	env.GitRoot = runGit(env.WorkingDir, "rev-parse", "--show-toplevel")
	if env.GitRoot == "" {
		return env
	}
	env.GitBranch = runGit(env.GitRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if status := runGit(env.GitRoot, "status", "--short"); status != "" {
		env.DirtyFiles = len(strings.Split(status, "\n"))
	}
	if log := runGit(env.GitRoot, "log", "--oneline", "-10"); log != "" {
		env.RecentCommits = strings.Split(log, "\n")
	}
	return env
}

func (e Environment) String() string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", e.WorkingDir)
	fmt.Fprintf(&sb, "Is git repository: %v\n", e.GitRoot != "")
	if e.GitBranch != "" {
		fmt.Fprintf(&sb, "Git branch: %s\n", e.GitBranch)
	}
	if e.DirtyFiles > 0 {
		fmt.Fprintf(&sb, "Modified/untracked files: %d\n", e.DirtyFiles)
	}
	fmt.Fprintf(&sb, "Platform: %s\n", e.Platform)
	fmt.Fprintf(&sb, "OS version: %s\n", e.OSVersion)
	fmt.Fprintf(&sb, "Today's date: %s\n", e.Date.Format("2006-01-02"))
	if e.Model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", e.Model)
	}
	if len(e.RecentCommits) > 0 {
		sb.WriteString("Recent commits:\n")
		for _, c := range e.RecentCommits {
			fmt.Fprintf(&sb, "  %s\n", c)
		}
	}
	sb.WriteString("</environment>")
	return sb.String()
}

// DiscoverProjectDocs loads project instruction files from root down to
// workingDir, capped at 32KB in total. root may be empty.
func DiscoverProjectDocs(root, workingDir string) string {
	if root == "" {
		root = workingDir
	}

	var docs []string
	total := 0
	for _, dir := range collectPathHierarchy(root, workingDir) {
		for _, name := range projectDocFiles {
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			remaining := maxProjectDocBytes - total
			if remaining <= 0 {
				return strings.Join(append(docs, "[Project instructions truncated at 32KB]"), "\n\n---\n\n")
			}
			text := string(content)
			if len(text) > remaining {
				text = text[:remaining] + "\n[Project instructions truncated at 32KB]"
			}
			docs = append(docs, fmt.Sprintf("# %s (from %s)\n\n%s", name, dir, text))
			total += len(text)
		}
	}
	return strings.Join(docs, "\n\n---\n\n")
}

// collectPathHierarchy returns directories from root to target, inclusive.
func collectPathHierarchy(root, target string) []string {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	dirs := []string{root}
	if root == target {
		return dirs
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || strings.HasPrefix(rel, "..") {
		return dirs
	}
	current := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == "." {
			continue
		}
		current = filepath.Join(current, part)
		dirs = append(dirs, current)
	}
	return dirs
}

func runGit(dir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
