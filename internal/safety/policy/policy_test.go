package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/safety/policy"
)

func TestSetActiveFailsClosedOnUnknownName(t *testing.T) {
	m := policy.NewManager()
	ok := m.SetActive("does-not-exist")
	assert.False(t, ok)
	_, active := m.Active()
	assert.False(t, active)
}

func TestStandardPolicyDeniesEmptyNetworkAllowlist(t *testing.T) {
	m := policy.NewManager()
	require.True(t, m.SetActive("standard"))

	d := m.Decide(policy.Action{Domain: policy.DomainNetwork, Target: "example.com", Protocol: "https"})
	assert.False(t, d.Allow)
	assert.Equal(t, policy.SeverityHigh, d.Severity)
}

func TestStandardPolicyBlocksCriticalInjection(t *testing.T) {
	m := policy.NewManager()
	require.True(t, m.SetActive("standard"))

	d := m.Decide(policy.Action{Domain: policy.DomainInjection, Severity: policy.SeverityCritical})
	assert.False(t, d.Allow)

	d = m.Decide(policy.Action{Domain: policy.DomainInjection, Severity: policy.SeverityLow})
	assert.True(t, d.Allow)
}

func TestDisabledPolicyAllowsEverything(t *testing.T) {
	m := policy.NewManager()
	require.True(t, m.SetActive("disabled"))

	d := m.Decide(policy.Action{Domain: policy.DomainNetwork, Target: "anything.example", Protocol: "https"})
	assert.True(t, d.Allow)
}

func TestCreateCustomAcceptsValidBaseLimits(t *testing.T) {
	m := policy.NewManager()
	base := policy.Builtin(policy.LevelStandard)

	_, err := m.CreateCustom("bad", base, func(p *policy.Policy) {
		// Policy fields are unexported; exercised indirectly via Execution()
		// accessor round-trip is not mutable, so this custom policy keeps
		// base's valid limits and should validate successfully.
	})
	require.NoError(t, err)
}

func TestDigestStableAcrossNewPolicyCreation(t *testing.T) {
	m := policy.NewManager()
	require.True(t, m.SetActive("standard"))
	active, _ := m.Active()
	digestBefore := active.Digest()

	_, err := m.CreateCustom("another", policy.Builtin(policy.LevelStrict), nil)
	require.NoError(t, err)

	stillActive, ok := m.Active()
	require.True(t, ok)
	assert.Equal(t, digestBefore, stillActive.Digest())
}

func TestRecordViolationAppendsInOrder(t *testing.T) {
	m := policy.NewManager()
	m.RecordViolation(policy.Violation{Domain: policy.DomainNetwork, ViolationType: "egress_denied"})
	m.RecordViolation(policy.Violation{Domain: policy.DomainFilesystem, ViolationType: "path_escape"})

	v := m.Violations()
	require.Len(t, v, 2)
	assert.Equal(t, "egress_denied", v[0].ViolationType)
}
