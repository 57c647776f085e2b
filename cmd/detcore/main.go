// Command detcore is the single CLI surface spec.md §6 describes: record
// and replay adapter runs, evaluate multi-run consistency, manage safety
// policies, and garbage-collect aged artifacts. It follows the teacher's
// cmd/ convention of a thin main wired to cobra, with one file per
// subcommand, and the same log.Context/log.WithFormat startup idiom as
// example/cmd/assistant's process entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
)

// commonFlags holds the flags shared by every subcommand per spec.md's
// "Flags common to all" list.
type commonFlags struct {
	framework string
	task      string
	out       string
	seed      int64
	policy    string
	mode      string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "detcore",
		Short:         "Determinism, record/replay, and consistency tooling for AI agent adapters",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newRecordCmd())
	root.AddCommand(newReplayCmd())
	root.AddCommand(newConsistencyCmd())
	root.AddCommand(newPolicyCmd())
	root.AddCommand(newGCCmd())
	return root
}

func bindCommonFlags(cmd *cobra.Command, f *commonFlags) {
	cmd.Flags().StringVar(&f.framework, "framework", "echo", "adapter framework name")
	cmd.Flags().StringVar(&f.task, "task", "", "task id or path")
	cmd.Flags().StringVar(&f.out, "out", "artifacts", "artifact output directory")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "run seed")
	cmd.Flags().StringVar(&f.policy, "policy", "standard", "safety policy name")
	cmd.Flags().StringVar(&f.mode, "mode", "advisory", "parity mode: autonomous|advisory")
}

func main() {
	if code := run(); code != exitOK {
		os.Exit(code)
	}
}

func run() int {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cmd := newRootCmd()
	cmd.SetContext(ctx)
	if err := cmd.Execute(); err != nil {
		if code, ok := exitCodeForError(err); ok {
			fmt.Fprintln(os.Stderr, "detcore:", err)
			return code
		}
		fmt.Fprintln(os.Stderr, "detcore:", err)
		return exitGenericFailure
	}
	return exitOK
}
