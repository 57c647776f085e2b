package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/detcore/detcore/internal/safety/policy"
)

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the built-in safety policies",
	}
	cmd.AddCommand(newPolicyShowCmd())
	cmd.AddCommand(newPolicyListCmd())
	cmd.AddCommand(newPolicyLoadCmd())
	return cmd
}

func newPolicyLoadCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Validate and register a custom policy config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := policy.NewManager()
			p, err := m.LoadConfigFile(file)
			if err != nil {
				return fail(exitConfigurationErr, err)
			}
			fmt.Printf("policy: loaded %q (level=%s digest=%s)\n", p.Name(), p.Level(), p.Digest())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to a YAML custom policy config")
	return cmd
}

func newPolicyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List built-in policy names and digests",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := policy.NewManager()
			for _, name := range []string{"disabled", "permissive", "standard", "strict", "paranoid"} {
				p, ok := m.GetPolicy(name)
				if !ok {
					continue
				}
				fmt.Printf("%-10s  level=%-10s  digest=%s\n", p.Name(), p.Level(), p.Digest())
			}
			return nil
		},
	}
}

func newPolicyShowCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one policy's resource limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := policy.NewManager()
			p, ok := m.GetPolicy(name)
			if !ok {
				return fail(exitConfigurationErr, fmt.Errorf("unknown policy %q", name))
			}
			fmt.Printf("name:       %s\n", p.Name())
			fmt.Printf("level:      %s\n", p.Level())
			fmt.Printf("digest:     %s\n", p.Digest())
			fmt.Printf("execution:  cpu=%.2f mem=%dMB wall=%s fds=%d\n",
				p.Execution().CPULimitCores, p.Execution().MemoryLimitMB, p.Execution().WallTimeout, p.Execution().MaxOpenFDs)
			fmt.Printf("filesystem: roots=%v max_write=%d\n", p.Filesystem().AllowedRoots, p.Filesystem().MaxWriteBytes)
			fmt.Printf("network:    domains=%v protocols=%v rate=%.2f/s\n",
				p.Network().AllowedDomains, p.Network().AllowedProtocols, p.Network().PerDomainRateLimit)
			fmt.Printf("injection:  block=%v warn=%v\n", p.Injection().BlockSeverities, p.Injection().WarnSeverities)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "standard", "policy name")
	return cmd
}
