package enforce

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	tc "github.com/testcontainers/testcontainers-go"

	"github.com/detcore/detcore/internal/safety/policy"
)

// SandboxResult is the structured outcome of one execution sandbox run.
type SandboxResult struct {
	ExitCode     int
	Stdout       string
	Stderr       string
	DurationMS   int64
	KilledReason string // non-empty if the sandbox terminated the process
}

// Sandbox runs untrusted code under the active policy's resource caps.
// Preferred isolation is a container with no network and a read-only
// rootfs (via testcontainers-go); Subprocess is the fallback when no
// container runtime is available, applying the same limits through a wall
// clock deadline (CPU/memory ceilics on the container path only — the
// subprocess fallback enforces wall time and relies on the OS for the
// rest, per spec.md's "applies the same limits via OS-level constraints").
type Sandbox struct {
	policies *policy.Manager
}

// NewSandbox builds a Sandbox consulting policies for resource caps.
func NewSandbox(policies *policy.Manager) *Sandbox {
	return &Sandbox{policies: policies}
}

// RunSubprocess executes command/args as a subprocess with the active
// policy's wall-time cap, killing it if the timeout or ctx cancellation
// fires before it exits. Any kill path populates KilledReason so the
// caller can emit sandbox_exec.finished with the reason.
func (s *Sandbox) RunSubprocess(ctx context.Context, command string, args []string, stdin []byte) (SandboxResult, error) {
	active, ok := s.policies.Active()
	if !ok {
		return SandboxResult{}, fmt.Errorf("enforce: no active policy installed")
	}
	timeout := active.Execution().WallTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	if grace := active.Execution().CancelGrace; grace > 0 {
		// Interrupt first; exec kills the process if it outlives the grace window.
		cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
		cmd.WaitDelay = grace
	}
	if len(stdin) > 0 {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := SandboxResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: elapsed.Milliseconds(),
	}
	if runCtx.Err() == context.DeadlineExceeded {
		res.KilledReason = "wall_timeout"
		return res, nil
	}
	if runCtx.Err() == context.Canceled {
		res.KilledReason = "canceled"
		return res, nil
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil && res.KilledReason == "" && res.ExitCode == 0 {
		// Command failed to start at all (e.g. not found); surface as a
		// SandboxFailure rather than a structured non-zero exit.
		return SandboxResult{}, fmt.Errorf("enforce: subprocess sandbox failed to start: %w", err)
	}
	return res, nil
}

// RunContainer executes image with the given command inside an isolated,
// network-disabled, read-only-rootfs container via testcontainers-go. This
// is the preferred isolation path named in spec.md §4.C4.
func (s *Sandbox) RunContainer(ctx context.Context, image string, command []string) (SandboxResult, error) {
	active, ok := s.policies.Active()
	if !ok {
		return SandboxResult{}, fmt.Errorf("enforce: no active policy installed")
	}
	timeout := active.Execution().WallTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := tc.ContainerRequest{
		Image:      image,
		Cmd:        command,
		WaitingFor: nil,
		// NetworkMode "none" and a read-only rootfs realize the
		// "container with no network and a read-only rootfs" requirement;
		// testcontainers-go exposes these via HostConfigModifier.
		HostConfigModifier: func(hc *dockercontainer.HostConfig) {
			hc.NetworkMode = dockercontainer.NetworkMode("none")
			hc.ReadonlyRootfs = true
			// Zero leaves the resource unlimited, as Docker defines it.
			hc.NanoCPUs = int64(active.Execution().CPULimitCores * 1e9)
			hc.Memory = int64(active.Execution().MemoryLimitMB) << 20
		},
	}

	start := time.Now()
	container, err := tc.GenericContainer(runCtx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return SandboxResult{KilledReason: "wall_timeout"}, nil
		}
		return SandboxResult{}, fmt.Errorf("enforce: container sandbox start failed: %w", err)
	}
	defer func() { _ = container.Terminate(context.Background()) }()

	state, err := container.State(runCtx)
	elapsed := time.Since(start)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return SandboxResult{KilledReason: "wall_timeout", DurationMS: elapsed.Milliseconds()}, nil
		}
		return SandboxResult{}, fmt.Errorf("enforce: container sandbox state failed: %w", err)
	}
	return SandboxResult{ExitCode: state.ExitCode, DurationMS: elapsed.Milliseconds()}, nil
}
