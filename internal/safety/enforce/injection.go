package enforce

import (
	"regexp"
	"time"

	"github.com/detcore/detcore/internal/safety/policy"
)

// InjectionFinding is one pattern match against an LLM edge's input or
// output.
type InjectionFinding struct {
	Pattern  string
	Severity policy.Severity
	Excerpt  string
}

// InjectionScreener pattern-matches adapter inputs to LLM edges (and
// outputs before they reach callers) for prompt-injection attempts. Screen
// always scans live: it has no replay mode, and verdicts are neither
// recorded nor looked up from a recording.
type InjectionScreener struct {
	policies *policy.Manager
	patterns map[policy.Severity][]*regexp.Regexp
}

// NewInjectionScreener builds a screener from severity-bucketed regex
// patterns (typically loaded from the policy's injection-pattern files).
func NewInjectionScreener(policies *policy.Manager, patterns map[policy.Severity][]string) (*InjectionScreener, error) {
	s := &InjectionScreener{policies: policies, patterns: make(map[policy.Severity][]*regexp.Regexp)}
	for sev, pats := range patterns {
		for _, pat := range pats {
			re, err := regexp.Compile(pat)
			if err != nil {
				return nil, err
			}
			s.patterns[sev] = append(s.patterns[sev], re)
		}
	}
	return s, nil
}

// Screen scans text and returns every matching finding along with the
// policy's verdict (whether the worst finding blocks the call).
func (s *InjectionScreener) Screen(text string) (findings []InjectionFinding, blocked bool) {
	worst := policy.Severity("")
	for _, sev := range []policy.Severity{policy.SeverityCritical, policy.SeverityHigh, policy.SeverityMedium, policy.SeverityLow} {
		for _, re := range s.patterns[sev] {
			if loc := re.FindStringIndex(text); loc != nil {
				excerpt := text[loc[0]:loc[1]]
				findings = append(findings, InjectionFinding{Pattern: re.String(), Severity: sev, Excerpt: excerpt})
				if worst == "" {
					worst = sev
				}
			}
		}
	}
	if worst == "" {
		return findings, false
	}
	decision := s.policies.Decide(policy.Action{Domain: policy.DomainInjection, Severity: worst})
	if !decision.Allow {
		active, _ := s.policies.Active()
		s.policies.RecordViolation(policy.Violation{
			TS: time.Now(), Domain: policy.DomainInjection, PolicyName: active.Name(),
			ViolationType: "injection_blocked", Severity: worst,
			Description: "prompt injection pattern matched at blocking severity",
		})
	}
	return findings, !decision.Allow
}
