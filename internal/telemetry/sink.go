package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Sink persists Events durably, in append order. It is the authoritative
// record: subscribers registered on the Bus only ever see a best-effort
// copy of what the Sink has already accepted.
type Sink interface {
	// Append durably records e. Implementations must preserve the order
	// Append is called in, since step order is the primary ordering key.
	Append(e Event) error
	// Flush forces buffered writes to stable storage. The Bus calls Flush
	// on every checkpoint event and at run end.
	Flush() error
	// Close flushes and releases underlying resources.
	Close() error
}

// jsonlSink writes one JSON object per line to an underlying writer,
// optionally zstd-framed (ledger_driver "jsonl.zst" in the manifest).
type jsonlSink struct {
	mu     sync.Mutex
	file   *os.File
	writer io.Writer
	zw     *zstd.Encoder
}

// NewJSONLSink opens (or creates) path and returns a Sink that appends
// newline-delimited JSON events to it. When compressed is true, writes pass
// through a zstd encoder and the manifest should record ledger_driver as
// "jsonl.zst".
func NewJSONLSink(path string, compressed bool) (Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open sink %s: %w", path, err)
	}
	s := &jsonlSink{file: f, writer: f}
	if compressed {
		zw, err := zstd.NewWriter(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("telemetry: init zstd writer: %w", err)
		}
		s.zw = zw
		s.writer = zw
	}
	return s, nil
}

func (s *jsonlSink) Append(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("telemetry: marshal event: %w", err)
	}
	b = append(b, '\n')
	if _, err := s.writer.Write(b); err != nil {
		return fmt.Errorf("telemetry: write event: %w", err)
	}
	return nil
}

func (s *jsonlSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zw != nil {
		if err := s.zw.Flush(); err != nil {
			return err
		}
	}
	return s.file.Sync()
}

func (s *jsonlSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zw != nil {
		if err := s.zw.Close(); err != nil {
			_ = s.file.Close()
			return err
		}
	}
	return s.file.Close()
}

// MemorySink is an in-memory Sink used by tests and replay-engine loading.
type MemorySink struct {
	mu     sync.Mutex
	Events []Event
}

// NewMemorySink constructs an empty in-memory Sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Append(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, e)
	return nil
}

func (s *MemorySink) Flush() error { return nil }
func (s *MemorySink) Close() error { return nil }

// Snapshot returns a copy of the events appended so far.
func (s *MemorySink) Snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	return out
}
