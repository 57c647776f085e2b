// Package manifest implements the per-run integrity root: the YAML
// manifest listing artifact hashes, policy provenance, and redaction
// summary, plus retention-class garbage collection. It is grounded on
// features/runlog/mongo/store.go's per-run durable record shape,
// generalized from Mongo-only storage to the filesystem-first layout
// spec.md §6 describes.
package manifest

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/detcore/detcore/internal/telemetry"
)

// ArtifactHash names one artifact path and its BLAKE3 hash.
type ArtifactHash struct {
	Path string `yaml:"path"`
	Hash string `yaml:"hash"`
}

// PolicyRef records the active policy's name and digest at run time.
type PolicyRef struct {
	Active string `yaml:"active"`
	Digest string `yaml:"digest"`
}

// Manifest is the integrity root of one run's artifacts. It is created at
// run start and written to disk once, at run end after finalization; fields
// are never rewritten retroactively except to fill in
// FinalizedAt/Status/Artifacts.
type Manifest struct {
	RunID          string                       `yaml:"run_id"`
	AdapterVersion string                       `yaml:"adapter_version"`
	SourceDigest   string                       `yaml:"source_digest"`
	Seed           int64                        `yaml:"seed"`
	Models         map[string]string            `yaml:"models"`
	Policies       PolicyRef                    `yaml:"policies"`
	Artifacts      []ArtifactHash               `yaml:"artifacts"`
	RedactionLog   []telemetry.RedactionLogEntry `yaml:"redaction_log"`
	StorageClass   RetentionClass               `yaml:"storage_class"`
	LedgerDriver   string                       `yaml:"ledger_driver"` // "jsonl" or "jsonl.zst"
	CreatedAt      time.Time                    `yaml:"created_at"`
	FinalizedAt    *time.Time                   `yaml:"finalized_at,omitempty"`
	Status         string                       `yaml:"status"` // ok | policy_violation | replay_mismatch | adapter_error | incomplete
}

// New constructs a Manifest at run start, before any artifacts exist.
func New(runID, adapterVersion, sourceDigest string, seed int64, policyRef PolicyRef, class RetentionClass, ledgerDriver string) *Manifest {
	return &Manifest{
		RunID:          runID,
		AdapterVersion: adapterVersion,
		SourceDigest:   sourceDigest,
		Seed:           seed,
		Models:         map[string]string{},
		Policies:       policyRef,
		StorageClass:   class,
		LedgerDriver:   ledgerDriver,
		CreatedAt:      time.Now(),
		Status:         "incomplete",
	}
}

// AddArtifact appends an artifact's path and hash. Artifacts are write-once:
// AddArtifact does not deduplicate, callers (the Recorder) are expected to
// call it exactly once per distinct artifact path.
func (m *Manifest) AddArtifact(path, hash string) {
	m.Artifacts = append(m.Artifacts, ArtifactHash{Path: path, Hash: hash})
}

// Finalize stamps the manifest with its terminal status and timestamp.
// Once finalized, a Manifest should be treated as read-only.
func (m *Manifest) Finalize(status string) {
	now := time.Now()
	m.FinalizedAt = &now
	m.Status = status
}

// WriteYAML serializes the manifest to path.
func (m *Manifest) WriteYAML(path string) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

// ReadYAML loads a manifest previously written by WriteYAML.
func ReadYAML(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal %s: %w", path, err)
	}
	return &m, nil
}
