package policy_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/detcore/detcore/internal/safety/policy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigFileRegistersCustomPolicyDerivedFromBase(t *testing.T) {
	path := writeConfig(t, `
name: custom-strict
level: strict
execution:
  cpu_limit_cores: 4
network:
  allowed_domains: ["api.example.com"]
  allowed_protocols: ["https"]
`)
	m := policy.NewManager()
	p, err := m.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom-strict", p.Name())
	assert.Equal(t, policy.LevelStrict, p.Level())
	assert.Equal(t, 4.0, p.Execution().CPULimitCores)
	assert.Equal(t, []string{"api.example.com"}, p.Network().AllowedDomains)

	got, ok := m.GetPolicy("custom-strict")
	require.True(t, ok)
	assert.Equal(t, p.Digest(), got.Digest())
}

func TestLoadConfigFileRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
execution:
  cpu_limit_cores: 1
`)
	m := policy.NewManager()
	_, err := m.LoadConfigFile(path)
	require.Error(t, err)
}

func TestLoadConfigFileRejectsUnknownLevel(t *testing.T) {
	path := writeConfig(t, `
name: bogus
level: extreme
`)
	m := policy.NewManager()
	_, err := m.LoadConfigFile(path)
	require.Error(t, err)
}

func TestLoadConfigFileRejectsUnsupportedProtocol(t *testing.T) {
	path := writeConfig(t, `
name: custom
level: standard
network:
  allowed_protocols: ["ftp"]
`)
	m := policy.NewManager()
	_, err := m.LoadConfigFile(path)
	require.Error(t, err)
}
