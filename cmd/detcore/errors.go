package main

import (
	"errors"

	"github.com/detcore/detcore/internal/replay"
	"github.com/detcore/detcore/internal/safety/enforce"
)

// cliError pins a subcommand failure to the exit code spec.md §6 assigns
// its category, independent of cobra's own error formatting.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCodeForError classifies err into one of spec.md §6's exit codes. An
// explicit *cliError from a subcommand wins; otherwise the error is
// inspected for known sentinel types so a policy violation or replay
// mismatch surfaced without going through fail() still maps correctly.
func exitCodeForError(err error) (int, bool) {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code, true
	}
	var netDenied *enforce.NetworkDeniedError
	if errors.As(err, &netDenied) {
		return exitPolicyViolation, true
	}
	var fsDenied *enforce.FilesystemDeniedError
	if errors.As(err, &fsDenied) {
		return exitPolicyViolation, true
	}
	var mismatch *replay.Mismatch
	if errors.As(err, &mismatch) {
		return exitReplayMismatch, true
	}
	return exitGenericFailure, false
}
