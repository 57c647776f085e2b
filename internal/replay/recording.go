package replay

import (
	"fmt"
	"path/filepath"

	"github.com/detcore/detcore/internal/manifest"
	"github.com/detcore/detcore/internal/telemetry"
)

// Recording is everything the Replay Engine needs from one previously
// recorded run: its manifest (for artifact integrity and ledger_driver) and
// its full event stream.
type Recording struct {
	Manifest *manifest.Manifest
	Events   []telemetry.Event
	Root     string // artifacts/<run_id>
}

// Open loads the manifest and event ledger for the run rooted at root
// (artifacts/<run_id>), and verifies every artifact the manifest
// references re-hashes to its recorded value.
func Open(root string) (*Recording, error) {
	m, err := manifest.ReadYAML(filepath.Join(root, "manifest.yaml"))
	if err != nil {
		return nil, fmt.Errorf("replay: load manifest: %w", err)
	}
	compressed := m.LedgerDriver == "jsonl.zst"
	ledgerName := "events.jsonl"
	if compressed {
		ledgerName = "events.jsonl.zst"
	}
	events, err := LoadEvents(filepath.Join(root, ledgerName), compressed)
	if err != nil {
		return nil, fmt.Errorf("replay: load events: %w", err)
	}
	if err := VerifyArtifacts(root, m); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return &Recording{Manifest: m, Events: events, Root: root}, nil
}
