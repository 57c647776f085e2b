package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// configSchema is the JSON Schema a custom policy config file must satisfy
// before it is accepted, grounded on registry/service.go's
// validatePayloadJSONAgainstSchema compile-then-validate shape.
const configSchema = `{
  "type": "object",
  "required": ["name", "level"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "level": {"type": "string", "enum": ["disabled", "permissive", "standard", "strict", "paranoid"]},
    "execution": {
      "type": "object",
      "properties": {
        "cpu_limit_cores": {"type": "number", "minimum": 0},
        "memory_limit_mb": {"type": "integer", "minimum": 0},
        "wall_timeout_seconds": {"type": "number", "minimum": 0},
        "max_open_fds": {"type": "integer", "minimum": 0},
        "cancel_grace_seconds": {"type": "number", "minimum": 0}
      }
    },
    "filesystem": {
      "type": "object",
      "properties": {
        "allowed_roots": {"type": "array", "items": {"type": "string"}},
        "max_write_bytes": {"type": "integer", "minimum": 0}
      }
    },
    "network": {
      "type": "object",
      "properties": {
        "allowed_domains": {"type": "array", "items": {"type": "string"}},
        "allowed_protocols": {"type": "array", "items": {"type": "string", "enum": ["http", "https"]}},
        "per_domain_rate_limit": {"type": "number", "minimum": 0}
      }
    },
    "injection": {
      "type": "object",
      "properties": {
        "block_severities": {"type": "array", "items": {"type": "string"}},
        "warn_severities": {"type": "array", "items": {"type": "string"}},
        "use_llm_judge": {"type": "boolean"}
      }
    }
  }
}`

// fileConfig is the on-disk shape of a custom policy definition, per
// spec.md §4.C3's policy config file.
type fileConfig struct {
	Name      string `json:"name"`
	Level     string `json:"level"`
	Execution struct {
		CPULimitCores      float64 `json:"cpu_limit_cores"`
		MemoryLimitMB      int     `json:"memory_limit_mb"`
		WallTimeoutSeconds float64 `json:"wall_timeout_seconds"`
		MaxOpenFDs         int     `json:"max_open_fds"`
		CancelGraceSeconds float64 `json:"cancel_grace_seconds"`
	} `json:"execution"`
	Filesystem struct {
		AllowedRoots  []string `json:"allowed_roots"`
		MaxWriteBytes int64    `json:"max_write_bytes"`
	} `json:"filesystem"`
	Network struct {
		AllowedDomains     []string `json:"allowed_domains"`
		AllowedProtocols   []string `json:"allowed_protocols"`
		PerDomainRateLimit float64  `json:"per_domain_rate_limit"`
	} `json:"network"`
	Injection struct {
		BlockSeverities []string `json:"block_severities"`
		WarnSeverities  []string `json:"warn_severities"`
		UseLLMJudge     bool     `json:"use_llm_judge"`
	} `json:"injection"`
}

// LoadConfigFile reads a YAML custom-policy definition at path, validates it
// against configSchema, and registers it on m as a custom policy derived
// from the named base level. A schema violation is always fatal. The schema
// does not reject unknown keys, so they are ignored, and a zero or empty
// value keeps the base level's setting.
func (m *Manager) LoadConfigFile(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: read %s: %w", path, err)
	}

	var yamlDoc any
	if err := yaml.Unmarshal(raw, &yamlDoc); err != nil {
		return Policy{}, fmt.Errorf("policy: parse yaml %s: %w", path, err)
	}
	jsonBytes, err := json.Marshal(yamlDoc)
	if err != nil {
		return Policy{}, fmt.Errorf("policy: normalize %s: %w", path, err)
	}

	var schemaDoc any
	if err := json.Unmarshal([]byte(configSchema), &schemaDoc); err != nil {
		return Policy{}, fmt.Errorf("policy: internal schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("policy-config.json", schemaDoc); err != nil {
		return Policy{}, fmt.Errorf("policy: add schema resource: %w", err)
	}
	schema, err := c.Compile("policy-config.json")
	if err != nil {
		return Policy{}, fmt.Errorf("policy: compile schema: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(jsonBytes, &payloadDoc); err != nil {
		return Policy{}, fmt.Errorf("policy: unmarshal payload: %w", err)
	}
	if err := schema.Validate(payloadDoc); err != nil {
		return Policy{}, fmt.Errorf("policy: %s failed schema validation: %w", path, err)
	}

	var cfg fileConfig
	if err := json.Unmarshal(jsonBytes, &cfg); err != nil {
		return Policy{}, fmt.Errorf("policy: decode %s: %w", path, err)
	}

	base := Builtin(Level(cfg.Level))
	return m.CreateCustom(cfg.Name, base, func(p *Policy) {
		if cfg.Execution.CPULimitCores != 0 {
			p.execution.CPULimitCores = cfg.Execution.CPULimitCores
		}
		if cfg.Execution.MemoryLimitMB != 0 {
			p.execution.MemoryLimitMB = cfg.Execution.MemoryLimitMB
		}
		if cfg.Execution.WallTimeoutSeconds != 0 {
			p.execution.WallTimeout = time.Duration(cfg.Execution.WallTimeoutSeconds * float64(time.Second))
		}
		if cfg.Execution.MaxOpenFDs != 0 {
			p.execution.MaxOpenFDs = cfg.Execution.MaxOpenFDs
		}
		if cfg.Execution.CancelGraceSeconds != 0 {
			p.execution.CancelGrace = time.Duration(cfg.Execution.CancelGraceSeconds * float64(time.Second))
		}
		if len(cfg.Filesystem.AllowedRoots) > 0 {
			p.filesys.AllowedRoots = cfg.Filesystem.AllowedRoots
		}
		if cfg.Filesystem.MaxWriteBytes != 0 {
			p.filesys.MaxWriteBytes = cfg.Filesystem.MaxWriteBytes
		}
		if len(cfg.Network.AllowedDomains) > 0 {
			p.network.AllowedDomains = cfg.Network.AllowedDomains
		}
		if len(cfg.Network.AllowedProtocols) > 0 {
			p.network.AllowedProtocols = cfg.Network.AllowedProtocols
		}
		if cfg.Network.PerDomainRateLimit != 0 {
			p.network.PerDomainRateLimit = cfg.Network.PerDomainRateLimit
		}
		if len(cfg.Injection.BlockSeverities) > 0 {
			p.injection.BlockSeverities = cfg.Injection.BlockSeverities
		}
		if len(cfg.Injection.WarnSeverities) > 0 {
			p.injection.WarnSeverities = cfg.Injection.WarnSeverities
		}
		p.injection.UseLLMJudge = cfg.Injection.UseLLMJudge
	})
}
