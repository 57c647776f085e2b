// Package policy implements the Safety Policy Manager: loading, validating,
// and exposing the single active Policy a process enforces. Policies are
// immutable once validated; updates always produce new records rather than
// mutating one in place, matching the "global active policy is a
// process-scoped immutable reference" redesign note.
package policy

import (
	"fmt"
	"sync"
	"time"
)

// Level names the built-in policy tiers, ordered from loosest to tightest.
type Level string

const (
	LevelDisabled   Level = "disabled"
	LevelPermissive Level = "permissive"
	LevelStandard   Level = "standard"
	LevelStrict     Level = "strict"
	LevelParanoid   Level = "paranoid"
)

// ExecutionPolicy bounds the sandbox's resource ceilings.
type ExecutionPolicy struct {
	CPULimitCores   float64
	MemoryLimitMB   int
	WallTimeout     time.Duration
	MaxOpenFDs      int
	// CancelGrace is how long a sandbox kill path waits for a cooperative
	// shutdown before a SIGKILL-equivalent, addressing open question 3 in
	// SPEC_FULL.md §9.
	CancelGrace time.Duration
}

// FilesystemPolicy bounds which paths adapter filesystem edges may touch.
type FilesystemPolicy struct {
	AllowedRoots  []string
	MaxWriteBytes int64
}

// NetworkPolicy bounds which domains and protocols adapter network edges
// may reach.
type NetworkPolicy struct {
	AllowedDomains     []string
	AllowedProtocols   []string
	PerDomainRateLimit float64 // requests per second
}

// InjectionPolicy configures prompt-injection screening severity handling.
type InjectionPolicy struct {
	BlockSeverities []string // for example "critical", "high"
	WarnSeverities  []string
	UseLLMJudge     bool
}

// Policy is an immutable, validated configuration record. Construct one
// through Manager.CreateCustom or a built-in Level; there is no exported
// mutator.
type Policy struct {
	name      string
	level     Level
	execution ExecutionPolicy
	filesys   FilesystemPolicy
	network   NetworkPolicy
	injection InjectionPolicy
	metadata  map[string]string
	createdAt time.Time
	digest    string
}

func (p Policy) Name() string                  { return p.name }
func (p Policy) Level() Level                   { return p.level }
func (p Policy) Execution() ExecutionPolicy     { return p.execution }
func (p Policy) Filesystem() FilesystemPolicy   { return p.filesys }
func (p Policy) Network() NetworkPolicy         { return p.network }
func (p Policy) Injection() InjectionPolicy      { return p.injection }
func (p Policy) Metadata() map[string]string    { return p.metadata }
func (p Policy) CreatedAt() time.Time           { return p.createdAt }

// Digest returns a stable content hash of the policy's fields, used for
// manifest provenance and for the policy-immutability property: two Policy
// values compare equal-by-digest for the life of a run even after new
// policies are created elsewhere in the process.
func (p Policy) Digest() string { return p.digest }

// Builtin constructs one of the five built-in levels described in
// spec.md §4.C3. It never fails: built-ins are constants, not user input.
func Builtin(level Level) Policy {
	var p Policy
	switch level {
	case LevelDisabled:
		p = Policy{name: "disabled", level: level, execution: ExecutionPolicy{CancelGrace: 5 * time.Second}}
	case LevelPermissive:
		p = Policy{
			name:  "permissive",
			level: level,
			execution: ExecutionPolicy{
				CPULimitCores: 2, MemoryLimitMB: 2048, WallTimeout: 5 * time.Minute, MaxOpenFDs: 256,
				CancelGrace: 5 * time.Second,
			},
			filesys: FilesystemPolicy{AllowedRoots: []string{"."}, MaxWriteBytes: 100 << 20},
			network: NetworkPolicy{AllowedProtocols: []string{"https"}, PerDomainRateLimit: 10},
			injection: InjectionPolicy{WarnSeverities: []string{"low", "medium", "high", "critical"}},
		}
	case LevelStandard:
		p = Policy{
			name:  "standard",
			level: level,
			execution: ExecutionPolicy{
				CPULimitCores: 1, MemoryLimitMB: 1024, WallTimeout: 2 * time.Minute, MaxOpenFDs: 128,
				CancelGrace: 5 * time.Second,
			},
			filesys: FilesystemPolicy{AllowedRoots: []string{"."}, MaxWriteBytes: 25 << 20},
			network: NetworkPolicy{AllowedProtocols: []string{"https"}, PerDomainRateLimit: 2},
			injection: InjectionPolicy{
				BlockSeverities: []string{"critical", "high"},
				WarnSeverities:  []string{"medium", "low"},
			},
		}
	case LevelStrict:
		p = Policy{
			name:  "strict",
			level: level,
			execution: ExecutionPolicy{
				CPULimitCores: 0.5, MemoryLimitMB: 512, WallTimeout: time.Minute, MaxOpenFDs: 64,
				CancelGrace: 2 * time.Second,
			},
			filesys: FilesystemPolicy{AllowedRoots: []string{"."}, MaxWriteBytes: 5 << 20},
			network: NetworkPolicy{AllowedProtocols: []string{"https"}, PerDomainRateLimit: 1},
			injection: InjectionPolicy{
				BlockSeverities: []string{"critical", "high", "medium"},
				WarnSeverities:  []string{"low"},
			},
		}
	case LevelParanoid:
		p = Policy{
			name:  "paranoid",
			level: level,
			execution: ExecutionPolicy{
				CPULimitCores: 0.25, MemoryLimitMB: 256, WallTimeout: 30 * time.Second, MaxOpenFDs: 32,
				CancelGrace: time.Second,
			},
			filesys:   FilesystemPolicy{AllowedRoots: []string{"."}, MaxWriteBytes: 1 << 20},
			network:   NetworkPolicy{},
			injection: InjectionPolicy{BlockSeverities: []string{"critical", "high", "medium", "low"}},
		}
	}
	p.createdAt = time.Now()
	p.digest = computeDigest(p)
	return p
}

// Manager loads, validates, and caches Policy records, and exposes the
// single active Policy for the process. Manager itself is safe for
// concurrent use.
type Manager struct {
	mu       sync.RWMutex
	byName   map[string]Policy
	active   *Policy
	violated []Violation
	maxRing  int
}

// NewManager constructs an empty Manager preloaded with the five built-in
// levels under their canonical names.
func NewManager() *Manager {
	m := &Manager{byName: make(map[string]Policy), maxRing: 1024}
	for _, lvl := range []Level{LevelDisabled, LevelPermissive, LevelStandard, LevelStrict, LevelParanoid} {
		p := Builtin(lvl)
		m.byName[p.name] = p
	}
	return m
}

// GetPolicy returns the named policy, or false if unknown.
func (m *Manager) GetPolicy(name string) (Policy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byName[name]
	return p, ok
}

// SetActive installs the named policy as the process-wide active policy.
// It fails closed: an unknown name leaves the previous active policy (or
// none) installed and returns false.
func (m *Manager) SetActive(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byName[name]
	if !ok {
		return false
	}
	m.active = &p
	return true
}

// Active returns the currently active policy, or false if none has been
// installed yet. Callers must refuse to start a run in that case.
func (m *Manager) Active() (Policy, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return Policy{}, false
	}
	return *m.active, true
}

// ValidationError reports why CreateCustom rejected a policy. Validation
// failures are never silently downgraded to a looser built-in.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("policy: invalid %s: %s", e.Field, e.Reason)
}

// CreateCustom validates and stores a new named policy derived from base
// with overrides applied. It never mutates base or any previously stored
// policy; a policy of the same name is simply replaced in the registry
// (existing Policy values already handed out remain valid, since Policy is
// an immutable struct copy).
func (m *Manager) CreateCustom(name string, base Policy, overrides func(*Policy)) (Policy, error) {
	if name == "" {
		return Policy{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	p := base
	p.name = name
	if overrides != nil {
		overrides(&p)
	}
	if err := validate(p); err != nil {
		return Policy{}, err
	}
	p.createdAt = time.Now()
	p.digest = computeDigest(p)

	m.mu.Lock()
	m.byName[name] = p
	m.mu.Unlock()
	return p, nil
}

func validate(p Policy) error {
	if p.execution.CPULimitCores < 0 {
		return &ValidationError{Field: "execution.cpu_limit_cores", Reason: "must be non-negative"}
	}
	if p.execution.MemoryLimitMB < 0 {
		return &ValidationError{Field: "execution.memory_limit_mb", Reason: "must be non-negative"}
	}
	if p.execution.CancelGrace < 0 {
		return &ValidationError{Field: "execution.cancel_grace", Reason: "must be non-negative"}
	}
	for _, proto := range p.network.AllowedProtocols {
		if proto != "https" && proto != "http" {
			return &ValidationError{Field: "network.allowed_protocols", Reason: "unsupported protocol " + proto}
		}
	}
	return nil
}

// RecordViolation appends v to the bounded in-memory ring, dropping the
// oldest entries beyond its capacity. It returns nothing; every call
// appends, including exact duplicates.
func (m *Manager) RecordViolation(v Violation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violated = append(m.violated, v)
	if len(m.violated) > m.maxRing {
		m.violated = m.violated[len(m.violated)-m.maxRing:]
	}
}

// Violations returns a snapshot of the bounded violation ring.
func (m *Manager) Violations() []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Violation, len(m.violated))
	copy(out, m.violated)
	return out
}

func computeDigest(p Policy) string {
	// The digest only needs to be stable within a process lifetime for the
	// immutability property; it is not a cryptographic commitment, so a
	// simple FNV-1a over the formatted fields is sufficient and avoids
	// pulling canon's full value model in for a handful of scalars.
	h := uint64(fnvOffset)
	for _, s := range []string{
		p.name, string(p.level),
		fmt.Sprint(p.execution), fmt.Sprint(p.filesys), fmt.Sprint(p.network), fmt.Sprint(p.injection),
	} {
		for i := 0; i < len(s); i++ {
			h ^= uint64(s[i])
			h *= fnvPrime
		}
	}
	return fmt.Sprintf("%016x", h)
}

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)
