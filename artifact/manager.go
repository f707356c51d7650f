// Package artifact persists the files the agent produces under a single
// directory, indexed by a manifest.json written alongside them.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/logging"
)

const manifestName = "manifest.json"

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrExists     = errors.New("artifact already exists")
	ErrUnsafePath = errors.New("artifact path escapes the artifact directory")
)

// Emitter receives artifact telemetry.
type Emitter interface {
	Emit(events.Event)
}

// Manager is a directory-backed artifact store. All methods are safe for
// concurrent use.
type Manager struct {
	dir string

	mu        sync.RWMutex
	artifacts []*Artifact

	emitter Emitter
	logger  *logging.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithEmitter(e Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates dir if needed and loads any existing manifest.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	m := &Manager{
		dir:     dir,
		emitter: events.Discard{},
		logger:  logging.NopLogger(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadManifest(); err != nil {
		return nil, err
	}
	return m, nil
}

// Dir returns the artifact directory.
func (m *Manager) Dir() string { return m.dir }

// resolve maps an artifact name to a path inside the artifact directory.
func (m *Manager) resolve(name string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(name))
	if clean == "." || clean == manifestName || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(m.dir, clean), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// Create writes a new artifact and records it in the manifest.
func (m *Manager) Create(name string, t Type, content string, metadata map[string]string) (Artifact, error) {
	path, err := m.resolve(name)
	if err != nil {
		return Artifact{}, err
	}

	m.mu.Lock()
	if m.findByName(name) != nil {
		m.mu.Unlock()
		return Artifact{}, fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err := writeFile(path, content); err != nil {
		m.mu.Unlock()
		return Artifact{}, fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	now := m.now()
	a := &Artifact{
		ID:        uuid.New().String(),
		Name:      name,
		Type:      t,
		Path:      path,
		Content:   content,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
	m.artifacts = append(m.artifacts, a)
	err = m.saveManifestLocked()
	out := a.clone()
	m.mu.Unlock()
	if err != nil {
		return out, err
	}

	m.logger.Info("artifact created", "name", name, "type", t.String(), "bytes", len(content))
	m.emitter.Emit(events.ArtifactCreated(out.ID, out.Name, t.String()))
	return out, nil
}

// Update replaces an artifact's content and bumps its version.
func (m *Manager) Update(id, content string) (Artifact, error) {
	m.mu.Lock()
	a := m.findByID(id)
	if a == nil {
		m.mu.Unlock()
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	stats := ComputeDiffStats(a.Content, content)
	if err := writeFile(a.Path, content); err != nil {
		m.mu.Unlock()
		return Artifact{}, fmt.Errorf("failed to write artifact %s: %w", a.Name, err)
	}
	a.Content = content
	a.Version++
	a.UpdatedAt = m.now()
	err := m.saveManifestLocked()
	out := a.clone()
	m.mu.Unlock()
	if err != nil {
		return out, err
	}

	m.logger.Info("artifact updated", "name", out.Name, "version", out.Version,
		"lines_added", stats.Added, "lines_removed", stats.Removed)
	e := events.ArtifactUpdated(out.ID, out.Name)
	e.Data["lines_added"] = stats.Added
	e.Data["lines_removed"] = stats.Removed
	m.emitter.Emit(e)
	return out, nil
}

// Get returns the artifact with the given id.
func (m *Manager) Get(id string) (Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := m.findByID(id)
	if a == nil {
		return Artifact{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a.clone(), nil
}

// GetByName looks an artifact up by its relative file name.
func (m *Manager) GetByName(name string) (Artifact, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a := m.findByName(name)
	if a == nil {
		return Artifact{}, false
	}
	return a.clone(), true
}

// Exists reports whether an artifact with this name is recorded.
func (m *Manager) Exists(name string) bool {
	_, ok := m.GetByName(name)
	return ok
}

// List returns all artifacts in creation order.
func (m *Manager) List() []Artifact {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		out = append(out, a.clone())
	}
	return out
}

// ListByType returns the artifacts of one type.
func (m *Manager) ListByType(t Type) []Artifact {
	var out []Artifact
	for _, a := range m.List() {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

// Delete removes an artifact's file and manifest entry.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	idx := -1
	for i, a := range m.artifacts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a := m.artifacts[idx]
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.mu.Unlock()
		return fmt.Errorf("failed to remove artifact %s: %w", a.Name, err)
	}
	m.artifacts = append(m.artifacts[:idx], m.artifacts[idx+1:]...)
	err := m.saveManifestLocked()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.emitter.Emit(events.New(events.KindArtifactDeleted,
		events.KeyArtifactID, a.ID, events.KeyName, a.Name))
	return nil
}

// Cleanup removes files under the artifact directory that no artifact
// refers to. The manifest is kept. It returns the number of files removed.
func (m *Manager) Cleanup() (int, error) {
	m.mu.RLock()
	known := make(map[string]bool, len(m.artifacts))
	for _, a := range m.artifacts {
		known[filepath.Clean(a.Path)] = true
	}
	m.mu.RUnlock()

	manifestPath := filepath.Join(m.dir, manifestName)
	removed := 0
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path == manifestPath || known[filepath.Clean(path)] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove orphaned file %s: %w", path, err)
		}
		m.logger.Debug("removed orphaned artifact file", "path", path)
		removed++
		return nil
	})
	return removed, err
}

// Statistics counts artifacts by type.
func (m *Manager) Statistics() Stats {
	stats := Stats{ByType: make(map[Type]int)}
	for _, a := range m.List() {
		stats.Total++
		lower := strings.ToLower(a.Name)
		if strings.HasPrefix(lower, "code_block_") || strings.HasPrefix(lower, "code_") {
			stats.Generic++
		}
		stats.ByType[a.Type]++
	}
	return stats
}

// Types returns the types present in s in a stable order.
func (s Stats) Types() []Type {
	out := make([]Type, 0, len(s.ByType))
	for t := range s.ByType {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Manager) findByID(id string) *Artifact {
	for _, a := range m.artifacts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (m *Manager) findByName(name string) *Artifact {
	clean := filepath.Clean(name)
	for _, a := range m.artifacts {
		if a.Name == name || filepath.Clean(a.Name) == clean {
			return a
		}
	}
	return nil
}

func (m *Manager) saveManifestLocked() error {
	mf := manifest{
		Version:   manifestVersion,
		Artifacts: make([]Artifact, 0, len(m.artifacts)),
		Metadata:  map[string]string{},
	}
	for _, a := range m.artifacts {
		mf.Artifacts = append(mf.Artifacts, *a)
	}
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func (m *Manager) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(m.dir, manifestName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	var mf manifest
	if err := json.Unmarshal(data, &mf); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	for i := range mf.Artifacts {
		a := mf.Artifacts[i]
		m.artifacts = append(m.artifacts, &a)
	}
	m.logger.Debug("loaded artifact manifest", "artifacts", len(m.artifacts))
	return nil
}
