package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/cliengineer/events"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func newManager(t *testing.T) (*Manager, *recordingEmitter) {
	t.Helper()
	rec := &recordingEmitter{}
	m, err := NewManager(t.TempDir(), WithEmitter(rec))
	require.NoError(t, err)
	return m, rec
}

func TestTypeFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want Type
	}{
		{"src/main.rs", TypeSourceCode},
		{"main.go", TypeSourceCode},
		{"app.py", TypeSourceCode},
		{"Cargo.toml", TypeConfiguration},
		{"package.json", TypeConfiguration},
		{"ci.yml", TypeConfiguration},
		{"README.md", TypeDocumentation},
		{"notes.txt", TypeDocumentation},
		{"build.sh", TypeScript},
		{"Makefile", TypeOther},
		{"logo.png", TypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeFromFilename(tt.name))
		})
	}
}

func TestParseType(t *testing.T) {
	assert.Equal(t, TypeSourceCode, ParseType("source_code"))
	assert.Equal(t, TypeSourceCode, ParseType("SourceCode"))
	assert.Equal(t, TypeConfiguration, ParseType("config"))
	assert.Equal(t, TypeScript, ParseType("bash"))
	assert.Equal(t, TypeUnknown, ParseType("spreadsheet"))
}

func TestCreateWritesFileAndManifest(t *testing.T) {
	m, rec := newManager(t)

	a, err := m.Create("src/lib.rs", TypeSourceCode, "pub fn f() {}\n", map[string]string{"step_id": "step_1"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 1, a.Version)

	data, err := os.ReadFile(filepath.Join(m.Dir(), "src", "lib.rs"))
	require.NoError(t, err)
	assert.Equal(t, "pub fn f() {}\n", string(data))
	assert.FileExists(t, filepath.Join(m.Dir(), manifestName))
	assert.Equal(t, []events.Kind{events.KindArtifactCreated}, rec.kinds())

	_, err = m.Create("src/lib.rs", TypeSourceCode, "again", nil)
	assert.True(t, errors.Is(err, ErrExists))
}

func TestCreateRejectsEscapingNames(t *testing.T) {
	m, _ := newManager(t)
	for _, name := range []string{"../evil.sh", "/etc/passwd", "manifest.json", ""} {
		_, err := m.Create(name, TypeOther, "x", nil)
		assert.ErrorIs(t, err, ErrUnsafePath, name)
	}
}

func TestUpdateBumpsVersion(t *testing.T) {
	m, rec := newManager(t)
	a, err := m.Create("a.go", TypeSourceCode, "package a\n", nil)
	require.NoError(t, err)

	updated, err := m.Update(a.ID, "package a\n\nfunc A() {}\n")
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	data, err := os.ReadFile(a.Path)
	require.NoError(t, err)
	assert.Equal(t, "package a\n\nfunc A() {}\n", string(data))

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, events.KindArtifactUpdated, last.Kind)
	assert.Equal(t, 2, last.Int("lines_added"))

	_, err = m.Update("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManifestReload(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir)
	require.NoError(t, err)
	a, err := m.Create("docs/guide.md", TypeDocumentation, "# Guide\n", nil)
	require.NoError(t, err)

	reloaded, err := NewManager(dir)
	require.NoError(t, err)
	got, ok := reloaded.GetByName("docs/guide.md")
	require.True(t, ok)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, TypeDocumentation, got.Type)
	assert.Equal(t, "# Guide\n", got.Content)
}

func TestDeleteAndCleanup(t *testing.T) {
	m, rec := newManager(t)
	keep, err := m.Create("keep.txt", TypeDocumentation, "keep", nil)
	require.NoError(t, err)
	drop, err := m.Create("drop.txt", TypeDocumentation, "drop", nil)
	require.NoError(t, err)

	require.NoError(t, m.Delete(drop.ID))
	assert.NoFileExists(t, drop.Path)
	assert.False(t, m.Exists("drop.txt"))
	assert.Contains(t, rec.kinds(), events.KindArtifactDeleted)

	orphan := filepath.Join(m.Dir(), "nested", "orphan.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(orphan), 0o755))
	require.NoError(t, os.WriteFile(orphan, []byte("stray"), 0o644))

	removed, err := m.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, orphan)
	assert.FileExists(t, keep.Path)
	assert.FileExists(t, filepath.Join(m.Dir(), manifestName))
}

func TestStatistics(t *testing.T) {
	m, _ := newManager(t)
	for _, name := range []string{"a.rs", "b.rs", "code_block_1.txt", "Cargo.toml"} {
		_, err := m.Create(name, TypeFromFilename(name), "x", nil)
		require.NoError(t, err)
	}
	stats := m.Statistics()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Generic)
	assert.Equal(t, 2, stats.ByType[TypeSourceCode])
	assert.Equal(t, []Type{TypeSourceCode, TypeConfiguration, TypeDocumentation}, stats.Types())
}

func TestComputeDiffStats(t *testing.T) {
	assert.Equal(t, DiffStats{}, ComputeDiffStats("same\n", "same\n"))

	stats := ComputeDiffStats("a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, stats.Removed)
	assert.True(t, stats.Changed())
}
