package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RetentionClass names how long a run's artifacts may live and which
// artifact categories are retained.
type RetentionClass string

const (
	RetentionDev  RetentionClass = "dev"
	RetentionCI   RetentionClass = "ci"
	RetentionProd RetentionClass = "prod"
)

// RetentionRule defines the minimum and maximum lifetime for a class, and
// which artifact categories (matched by directory name under the run's
// artifact root) are eligible for collection.
type RetentionRule struct {
	MinLifetime time.Duration
	MaxLifetime time.Duration
	Categories  []string // e.g. "events", "blobs", "diffs"
}

// DefaultRules returns the built-in retention rules for the three classes.
func DefaultRules() map[RetentionClass]RetentionRule {
	return map[RetentionClass]RetentionRule{
		RetentionDev:  {MinLifetime: 0, MaxLifetime: 24 * time.Hour, Categories: []string{"events", "blobs", "inputs", "outputs", "diffs"}},
		RetentionCI:   {MinLifetime: 0, MaxLifetime: 7 * 24 * time.Hour, Categories: []string{"events", "blobs"}},
		RetentionProd: {MinLifetime: 30 * 24 * time.Hour, MaxLifetime: 365 * 24 * time.Hour, Categories: []string{"events"}},
	}
}

// Bookmark marks a run's artifacts as exempt from garbage collection
// regardless of age, for example because it is referenced by an open
// forensic investigation.
type Bookmark struct {
	RunIDs map[string]struct{}
}

// GCResult summarizes what the garbage collector removed.
type GCResult struct {
	RemovedRuns []string
	SkippedRuns []string // bookmarked, unreadable manifest, unknown class, or younger than MinLifetime/MaxLifetime
}

// GC walks artifactRoot (one subdirectory per run_id, each containing a
// manifest.yaml) and deletes artifact categories whose retention class has
// aged past MaxLifetime. It never deletes a run present in bookmark, and
// never deletes a run younger than its class's MinLifetime.
func GC(artifactRoot string, rules map[RetentionClass]RetentionRule, bookmark Bookmark) (GCResult, error) {
	entries, err := os.ReadDir(artifactRoot)
	if err != nil {
		return GCResult{}, fmt.Errorf("manifest: gc read %s: %w", artifactRoot, err)
	}
	var result GCResult
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID := entry.Name()
		if _, bookmarked := bookmark.RunIDs[runID]; bookmarked {
			result.SkippedRuns = append(result.SkippedRuns, runID)
			continue
		}
		manifestPath := filepath.Join(artifactRoot, runID, "manifest.yaml")
		m, err := ReadYAML(manifestPath)
		if err != nil {
			// A run directory without a readable manifest is left alone:
			// deleting it could discard an in-flight recording.
			result.SkippedRuns = append(result.SkippedRuns, runID)
			continue
		}
		rule, ok := rules[m.StorageClass]
		if !ok {
			result.SkippedRuns = append(result.SkippedRuns, runID)
			continue
		}
		age := now.Sub(m.CreatedAt)
		if age < rule.MinLifetime || age < rule.MaxLifetime {
			result.SkippedRuns = append(result.SkippedRuns, runID)
			continue
		}
		for _, category := range rule.Categories {
			_ = os.RemoveAll(filepath.Join(artifactRoot, runID, category))
		}
		result.RemovedRuns = append(result.RemovedRuns, runID)
	}
	return result, nil
}
