package telemetry

import (
	"regexp"
	"sync"
)

// RedactionLogEntry records that a pattern fired, and how many times, without
// retaining the matched value itself (manifests only ever store pattern
// names and counts, per the spec's redaction log contract).
type RedactionLogEntry struct {
	Pattern string
	Count   int
}

// Redactor scrubs known-secret values and regex patterns from event
// payloads before they reach the Sink or any subscriber. It is
// parameterized by the active safety policy.
type Redactor struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
	exact    map[string]struct{}
	counts   map[string]int
}

// NewRedactor builds a Redactor from named regex patterns and a set of
// known-secret exact values (for example, currently configured API keys).
func NewRedactor(patterns map[string]string, exactSecrets []string) (*Redactor, error) {
	r := &Redactor{
		patterns: make(map[string]*regexp.Regexp, len(patterns)),
		exact:    make(map[string]struct{}, len(exactSecrets)),
		counts:   make(map[string]int),
	}
	for name, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, err
		}
		r.patterns[name] = re
	}
	for _, s := range exactSecrets {
		if s != "" {
			r.exact[s] = struct{}{}
		}
	}
	return r, nil
}

// Redact returns a copy of p. If any string field matches, the whole payload
// is replaced by the marker Payload{Redacted: true, Kind: "secret"} and no
// Inline fields are kept. Inline payloads that contain no matches are passed
// through unchanged.
func (r *Redactor) Redact(p Payload) Payload {
	if p.Redacted || p.Inline == nil {
		return p
	}
	fired := false
	scrubbed := make(map[string]any, len(p.Inline))
	for k, v := range p.Inline {
		s, ok := v.(string)
		if !ok {
			scrubbed[k] = v
			continue
		}
		if name, hit := r.match(s); hit {
			fired = true
			r.recordHit(name)
			scrubbed[k] = nil
			continue
		}
		scrubbed[k] = v
	}
	if !fired {
		return Payload{Inline: scrubbed}
	}
	return Payload{Redacted: true, Kind: "secret"}
}

func (r *Redactor) match(s string) (string, bool) {
	if _, ok := r.exact[s]; ok {
		return "exact_secret", true
	}
	for name, re := range r.patterns {
		if re.MatchString(s) {
			return name, true
		}
	}
	return "", false
}

func (r *Redactor) recordHit(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[name]++
}

// Log returns the redaction log: pattern names and how many times each
// fired during the run, suitable for embedding in the Manifest.
func (r *Redactor) Log() []RedactionLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RedactionLogEntry, 0, len(r.counts))
	for name, count := range r.counts {
		out = append(out, RedactionLogEntry{Pattern: name, Count: count})
	}
	return out
}
