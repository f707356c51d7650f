package artifact

import (
	"path/filepath"
	"strings"
	"time"
)

// Type classifies an artifact by what kind of file it is.
type Type int

const (
	TypeUnknown Type = iota
	TypeSourceCode
	TypeConfiguration
	TypeDocumentation
	TypeTest
	TypeBuild
	TypeScript
	TypeData
	TypeOther
)

var typeNames = map[Type]string{
	TypeUnknown:       "Unknown",
	TypeSourceCode:    "SourceCode",
	TypeConfiguration: "Configuration",
	TypeDocumentation: "Documentation",
	TypeTest:          "Test",
	TypeBuild:         "Build",
	TypeScript:        "Script",
	TypeData:          "Data",
	TypeOther:         "Other",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParseType maps a type name (case-insensitive, "source_code" and
// "sourcecode" both accepted) to a Type. Unrecognized names yield
// TypeUnknown.
func ParseType(s string) Type {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	for t, name := range typeNames {
		if strings.ToLower(name) == norm {
			return t
		}
	}
	switch norm {
	case "code", "source":
		return TypeSourceCode
	case "config":
		return TypeConfiguration
	case "docs", "doc", "markdown":
		return TypeDocumentation
	case "shell", "bash":
		return TypeScript
	}
	return TypeUnknown
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	*t = ParseType(string(b))
	return nil
}

var sourceExtensions = map[string]string{
	".rs":     "rust",
	".go":     "go",
	".py":     "python",
	".js":     "javascript",
	".jsx":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".java":   "java",
	".c":      "c",
	".h":      "c",
	".cpp":    "cpp",
	".hpp":    "cpp",
	".rb":     "ruby",
	".php":    "php",
	".swift":  "swift",
	".kt":     "kotlin",
	".scala":  "scala",
	".vue":    "vue",
	".svelte": "svelte",
	".html":   "html",
	".css":    "css",
}

// TypeFromFilename derives an artifact type from the file extension.
func TypeFromFilename(name string) Type {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := sourceExtensions[ext]; ok {
		return TypeSourceCode
	}
	switch ext {
	case ".toml", ".json", ".yaml", ".yml":
		return TypeConfiguration
	case ".md", ".txt":
		return TypeDocumentation
	case ".sh":
		return TypeScript
	}
	return TypeOther
}

// Language returns a code-fence language tag for the file, or the bare
// extension when it is not a known source language.
func Language(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if lang, ok := sourceExtensions[ext]; ok {
		return lang
	}
	switch ext {
	case ".sh", ".bash":
		return "bash"
	case ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	}
	return strings.TrimPrefix(ext, ".")
}

// Artifact is a named, typed file produced by the agent.
type Artifact struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      Type              `json:"artifact_type"`
	Path      string            `json:"path"`
	Content   string            `json:"content,omitempty"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (a Artifact) clone() Artifact {
	if a.Metadata != nil {
		md := make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			md[k] = v
		}
		a.Metadata = md
	}
	return a
}

const manifestVersion = "1.0"

// manifest is the on-disk index written next to the artifacts.
type manifest struct {
	Version   string            `json:"version"`
	Artifacts []Artifact        `json:"artifacts"`
	Metadata  map[string]string `json:"metadata"`
}

// Stats summarizes the store contents.
type Stats struct {
	Total int
	// Generic counts artifacts whose names were synthesized (code_block_N).
	Generic int
	ByType  map[Type]int
}
