package adapter

import (
	"context"

	"github.com/detcore/detcore/internal/recorder"
)

// EdgeRunner is satisfied by both recorder.Recorder (record mode) and
// replay.Decorator (replay mode): the one call every adapter I/O edge goes
// through, so adapter code never branches on which mode a run is in.
type EdgeRunner interface {
	Do(ctx context.Context, edge recorder.Edge, input any, fn recorder.RunFn) (recorder.Result, error)
}
