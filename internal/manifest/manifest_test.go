package manifest_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/manifest"
)

func TestManifestRoundTrip(t *testing.T) {
	m := manifest.New("run-1", "v1.0.0", "src-digest", 42,
		manifest.PolicyRef{Active: "standard", Digest: "abc123"}, manifest.RetentionDev, "jsonl")
	m.AddArtifact("events.jsonl", "hash1")
	m.Finalize("ok")

	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, m.WriteYAML(path))

	loaded, err := manifest.ReadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "ok", loaded.Status)
	require.Len(t, loaded.Artifacts, 1)
	assert.Equal(t, "hash1", loaded.Artifacts[0].Hash)
	require.NotNil(t, loaded.FinalizedAt)
}

func TestGCSkipsBookmarkedRun(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run-old")
	require.NoError(t, mkdirAll(runDir))

	m := manifest.New("run-old", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	m.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, m.WriteYAML(filepath.Join(runDir, "manifest.yaml")))

	result, err := manifest.GC(root, manifest.DefaultRules(), manifest.Bookmark{RunIDs: map[string]struct{}{"run-old": {}}})
	require.NoError(t, err)
	assert.Contains(t, result.SkippedRuns, "run-old")
	assert.Empty(t, result.RemovedRuns)
}

func TestGCRemovesAgedRun(t *testing.T) {
	root := t.TempDir()
	runDir := filepath.Join(root, "run-aged")
	require.NoError(t, mkdirAll(filepath.Join(runDir, "events")))

	m := manifest.New("run-aged", "v1", "digest", 1, manifest.PolicyRef{}, manifest.RetentionDev, "jsonl")
	m.CreatedAt = time.Now().Add(-72 * time.Hour)
	require.NoError(t, m.WriteYAML(filepath.Join(runDir, "manifest.yaml")))

	result, err := manifest.GC(root, manifest.DefaultRules(), manifest.Bookmark{})
	require.NoError(t, err)
	assert.Contains(t, result.RemovedRuns, "run-aged")
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}
