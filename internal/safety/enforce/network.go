package enforce

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/detcore/detcore/internal/safety/policy"
)

// NetworkController enforces default-deny egress: only domains in the
// active policy's allowlist may be reached, over an allowlisted protocol,
// subject to a per-domain rate limit. Denials are always fatal to the
// calling edge; the detcore replay command additionally disables this
// controller's Allow path entirely regardless of policy (DisableForReplay).
type NetworkController struct {
	policies *policy.Manager
	replay   bool

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewNetworkController builds a controller backed by policies.
func NewNetworkController(policies *policy.Manager) *NetworkController {
	return &NetworkController{policies: policies, limiters: make(map[string]*rate.Limiter)}
}

// DisableForReplay makes every subsequent Allow call fail regardless of the
// active policy's allowlist, the network-isolation rule the detcore replay
// command enables unconditionally for the life of a replayed run.
func (c *NetworkController) DisableForReplay() {
	c.mu.Lock()
	c.replay = true
	c.mu.Unlock()
}

// NetworkDeniedError reports a denied network action.
type NetworkDeniedError struct {
	Domain, Protocol, Reason string
}

func (e *NetworkDeniedError) Error() string {
	return fmt.Sprintf("network access denied for %s://%s: %s", e.Protocol, e.Domain, e.Reason)
}

// Allow checks whether a request to domain over protocol is permitted, and
// if so, reserves one unit of the domain's rate-limit budget. A blocked
// call (rate limited) is reported distinctly from a policy denial so
// callers can decide whether to wait or fail.
func (c *NetworkController) Allow(domain, protocol string) error {
	c.mu.Lock()
	replay := c.replay
	c.mu.Unlock()
	if replay {
		active, _ := c.policies.Active()
		c.policies.RecordViolation(policy.Violation{
			TS: time.Now(), Domain: policy.DomainNetwork, PolicyName: active.Name(),
			ViolationType: "network_denied", Severity: policy.SeverityHigh,
			Description: "network disabled under replay", Metadata: map[string]any{"domain": domain, "protocol": protocol},
		})
		return &NetworkDeniedError{Domain: domain, Protocol: protocol, Reason: "network disabled under replay"}
	}

	decision := c.policies.Decide(policy.Action{Domain: policy.DomainNetwork, Target: domain, Protocol: protocol})
	if !decision.Allow {
		active, _ := c.policies.Active()
		c.policies.RecordViolation(policy.Violation{
			TS: time.Now(), Domain: policy.DomainNetwork, PolicyName: active.Name(),
			ViolationType: "network_denied", Severity: policy.SeverityHigh,
			Description: decision.Reason, Metadata: map[string]any{"domain": domain, "protocol": protocol},
		})
		return &NetworkDeniedError{Domain: domain, Protocol: protocol, Reason: decision.Reason}
	}
	limiter := c.limiterFor(domain)
	if limiter != nil && !limiter.Allow() {
		return &NetworkDeniedError{Domain: domain, Protocol: protocol, Reason: "rate limit exceeded"}
	}
	return nil
}

func (c *NetworkController) limiterFor(domain string) *rate.Limiter {
	active, ok := c.policies.Active()
	if !ok || active.Network().PerDomainRateLimit <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[domain]
	if !ok {
		l = rate.NewLimiter(rate.Limit(active.Network().PerDomainRateLimit), 1)
		c.limiters[domain] = l
	}
	return l
}
