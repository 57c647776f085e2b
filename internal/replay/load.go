// Package replay implements C7: it loads a previously recorded event
// stream and answers ReplayLookupKey queries in strict, warn, or hybrid
// mode, replaying the recorded Clock/RNG/UUID/TempPath values and
// re-hashing referenced artifacts instead of touching the network.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/detcore/detcore/internal/telemetry"
)

// LoadEvents reads a JSONL (optionally zstd-framed) event ledger written by
// telemetry.NewJSONLSink back into memory, in the original append order.
// compressed must match how the file was written; there is no magic-byte
// sniffing, since manifest.LedgerDriver already records which encoding was
// used.
func LoadEvents(path string, compressed bool) ([]telemetry.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed {
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("replay: init zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	var events []telemetry.Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e telemetry.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("replay: decode event: %w", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("replay: scan %s: %w", path, err)
	}
	return events, nil
}
