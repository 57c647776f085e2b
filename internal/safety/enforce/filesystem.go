// Package enforce implements the four Safety Enforcer surfaces (execution
// sandbox, filesystem controller, network controller, injection screener)
// that every adapter I/O edge passes through. Each enforcer consults the
// active policy.Manager for its decision and never swallows a denial: a
// PolicyViolation always reaches the caller so the Recorder/Replay wrapper
// can emit the corresponding event.
package enforce

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/detcore/detcore/internal/safety/policy"
)

// FilesystemController validates every adapter file path against the
// active policy's allowlist before the adapter is allowed to touch it.
type FilesystemController struct {
	policies *policy.Manager
	onDecide func(path string, allowed bool, reason string)
}

// NewFilesystemController builds a controller backed by policies. onDecide,
// if non-nil, is invoked for every decision (used to log every decision per
// spec.md §4.C4).
func NewFilesystemController(policies *policy.Manager, onDecide func(path string, allowed bool, reason string)) *FilesystemController {
	return &FilesystemController{policies: policies, onDecide: onDecide}
}

// FilesystemDeniedError is returned when a filesystem access is denied.
type FilesystemDeniedError struct {
	Path   string
	Reason string
}

func (e *FilesystemDeniedError) Error() string {
	return fmt.Sprintf("filesystem access denied for %s: %s", e.Path, e.Reason)
}

// Resolve validates path against the allowlist: it must not contain a ".."
// traversal segment, and its cleaned form (after resolveSymlink, when
// non-nil) must remain under one of the policy's allowed roots. The path is
// not made absolute. size, if
// positive, is checked against the policy's MaxWriteBytes for write
// operations.
func (c *FilesystemController) Resolve(path string, size int64, resolveSymlink func(string) (string, error)) (string, error) {
	if strings.Contains(path, "..") {
		return "", c.deny(path, "path traversal (..) not permitted")
	}
	resolved := path
	if resolveSymlink != nil {
		r, err := resolveSymlink(path)
		if err != nil {
			return "", c.deny(path, "failed to resolve symlink: "+err.Error())
		}
		resolved = r
	}
	resolved = filepath.Clean(resolved)

	decision := c.policies.Decide(policy.Action{Domain: policy.DomainFilesystem, Path: resolved})
	if !decision.Allow {
		return "", c.deny(path, decision.Reason)
	}
	active, _ := c.policies.Active()
	if size > 0 && active.Filesystem().MaxWriteBytes > 0 && size > active.Filesystem().MaxWriteBytes {
		return "", c.deny(path, "write exceeds policy MaxWriteBytes")
	}
	c.log(path, true, "")
	return resolved, nil
}

func (c *FilesystemController) deny(path, reason string) error {
	c.log(path, false, reason)
	active, _ := c.policies.Active()
	c.policies.RecordViolation(policy.Violation{
		TS: time.Now(), Domain: policy.DomainFilesystem, PolicyName: active.Name(),
		ViolationType: "filesystem_denied", Severity: policy.SeverityHigh, Description: reason,
	})
	return &FilesystemDeniedError{Path: path, Reason: reason}
}

func (c *FilesystemController) log(path string, allowed bool, reason string) {
	if c.onDecide != nil {
		c.onDecide(path, allowed, reason)
	}
}
