package agentloop

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Workspace abstracts the project directory the agent works in.
type Workspace interface {
	ReadFile(path string) (string, error)
	FileExists(path string) bool
	WorkingDirectory() string
	Platform() string
	OSVersion() string
}

// LocalWorkspace reads from a directory on the local machine.
type LocalWorkspace struct {
	workingDir string
	platform   string
	osVersion  string
}

// NewLocalWorkspace creates a workspace rooted at workingDir, or the
// process working directory when empty.
func NewLocalWorkspace(workingDir string) *LocalWorkspace {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	return &LocalWorkspace{
		workingDir: workingDir,
		platform:   runtime.GOOS,
		osVersion:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (w *LocalWorkspace) WorkingDirectory() string {
	return w.workingDir
}

func (w *LocalWorkspace) Platform() string {
	return w.platform
}

func (w *LocalWorkspace) OSVersion() string {
	return w.osVersion
}

func (w *LocalWorkspace) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.workingDir, path)
}

func (w *LocalWorkspace) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(w.resolvePath(path))
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

func (w *LocalWorkspace) FileExists(path string) bool {
	_, err := os.Stat(w.resolvePath(path))
	return err == nil
}

// ScanOptions limits a codebase scan.
type ScanOptions struct {
	MaxDepth    int
	MaxFileSize int64
	// SkipDirs are directory names never descended into, in addition to
	// hidden directories.
	SkipDirs []string
}

// DefaultScanOptions skip build output and dependency directories.
var DefaultScanOptions = ScanOptions{
	MaxDepth:    5,
	MaxFileSize: 100 * 1024,
	SkipDirs:    []string{"target", "node_modules", "venv", "artifacts", "dist", "build", "vendor"},
}

var scanExtensions = map[string]bool{
	"rs": true, "py": true, "js": true, "ts": true, "java": true, "c": true, "cpp": true,
	"h": true, "hpp": true, "go": true, "rb": true, "php": true, "swift": true, "kt": true,
	"scala": true, "sh": true, "bash": true, "yaml": true, "yml": true, "json": true,
	"toml": true, "xml": true, "html": true, "css": true, "jsx": true, "tsx": true,
	"vue": true, "svelte": true,
}

var scanConfigFiles = map[string]bool{
	"Cargo.toml": true, "package.json": true, "pom.xml": true, "build.gradle": true,
	"requirements.txt": true, "setup.py": true, "Gemfile": true, "composer.json": true,
	"Makefile": true, "Dockerfile": true, ".gitignore": true, "README.md": true,
	"README": true, "go.mod": true,
}

// SourceFile is a file collected by ScanCodebase.
type SourceFile struct {
	Path    string
	Ext     string
	Content string
}

// ContextMessage formats the file for inclusion as a system message.
func (f SourceFile) ContextMessage() string {
	return fmt.Sprintf("File: %s\n```%s\n%s\n```", f.Path, f.Ext, f.Content)
}

// ScanCodebase collects source and project files under the workspace.
// Oversized and unreadable files are skipped. Paths are relative to the
// working directory and sorted.
func ScanCodebase(w Workspace, opts ScanOptions) ([]SourceFile, error) {
	root := w.WorkingDirectory()
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, d := range opts.SkipDirs {
		skip[d] = true
	}

	var files []SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator)) + 1
		name := d.Name()

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || skip[name] || (opts.MaxDepth > 0 && depth >= opts.MaxDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			return nil
		}

		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !scanExtensions[ext] && !scanConfigFiles[name] {
			return nil
		}
		info, err := d.Info()
		if err != nil || (opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize) {
			return nil
		}
		content, err := w.ReadFile(path)
		if err != nil {
			return nil
		}
		files = append(files, SourceFile{Path: rel, Ext: ext, Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan codebase: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// FileListNote is appended to a prompt to tell the model which files were
// loaded into context.
func FileListNote(files []SourceFile) string {
	if len(files) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\nThe following %d files from this codebase have been loaded into context:\n", len(files))
	for _, f := range files {
		fmt.Fprintf(&sb, "- %s\n", f.Path)
	}
	return sb.String()
}
