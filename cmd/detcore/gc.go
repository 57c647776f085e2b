package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/detcore/detcore/internal/manifest"
)

func newGCCmd() *cobra.Command {
	var artifactRoot string
	var bookmarkCSV string
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete artifact categories for runs past their retention class's lifetime",
		RunE: func(cmd *cobra.Command, args []string) error {
			bookmark := manifest.Bookmark{RunIDs: map[string]struct{}{}}
			for _, id := range strings.Split(bookmarkCSV, ",") {
				if id = strings.TrimSpace(id); id != "" {
					bookmark.RunIDs[id] = struct{}{}
				}
			}
			result, err := manifest.GC(artifactRoot, manifest.DefaultRules(), bookmark)
			if err != nil {
				return fail(exitConfigurationErr, err)
			}
			fmt.Printf("gc: removed=%d skipped=%d\n", len(result.RemovedRuns), len(result.SkippedRuns))
			for _, id := range result.RemovedRuns {
				fmt.Println("  removed:", id)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&artifactRoot, "out", "artifacts", "artifact root directory")
	cmd.Flags().StringVar(&bookmarkCSV, "bookmark", "", "comma-separated run ids exempt from collection")
	return cmd
}
