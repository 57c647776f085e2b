package provider

import (
	"fmt"
	"path/filepath"
)

// TempPath generates deterministic paths of the form
// /tmp/<run_id>/<step>/<purpose> instead of calling os.MkdirTemp. Replay
// reuses the exact recorded path, rebinding it under the replay workspace
// root so a replayed run never touches the paths the original run wrote to.
type TempPath struct {
	runID string
	root  string
}

// NewTempPath constructs a TempPath generator rooted at root (typically
// "/tmp" in record mode, or a scratch replay workspace in replay mode).
func NewTempPath(runID, root string) *TempPath {
	if root == "" {
		root = "/tmp"
	}
	return &TempPath{runID: runID, root: root}
}

// Path returns the deterministic path for the given step and purpose (for
// example "workdir" or "stdout"). The same (step, purpose) always yields
// the same path for a given runID and root.
func (t *TempPath) Path(step int64, purpose string) string {
	return filepath.Join(t.root, t.runID, fmt.Sprintf("%d", step), purpose)
}

// Rebind returns a new TempPath that reuses runID but resolves under a
// different root, used by the Replay Engine to redirect recorded paths into
// an isolated replay workspace without changing their relative shape.
func (t *TempPath) Rebind(newRoot string) *TempPath {
	return NewTempPath(t.runID, newRoot)
}
