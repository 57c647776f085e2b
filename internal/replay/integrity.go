package replay

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/detcore/detcore/internal/canon"
	"github.com/detcore/detcore/internal/manifest"
)

// VerifyArtifacts re-hashes every artifact a manifest references under
// artifactRoot and fails fatally on the first mismatch, per spec.md §4.C7's
// integrity rule. It is meant to run once before replay begins, not per
// edge, since every artifact it covers is immutable for the life of a run.
func VerifyArtifacts(artifactRoot string, m *manifest.Manifest) error {
	for _, a := range m.Artifacts {
		b, err := os.ReadFile(filepath.Join(artifactRoot, a.Path))
		if err != nil {
			return fmt.Errorf("replay: read artifact %s: %w", a.Path, err)
		}
		if got := canon.HashBytes(b); got != a.Hash {
			return fmt.Errorf("replay: artifact %s hash mismatch: recorded %s, got %s", a.Path, a.Hash, got)
		}
	}
	return nil
}
