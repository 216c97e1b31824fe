// Package config defines the typed configuration records threaded through the
// agent, replacing the free-form dictionaries the source implementation
// passes between layers. Process-level defaults are resolved once at startup
// (flags → env → optional TOML file → built-in defaults); per-task overrides
// arrive as an untyped map on the inbound task message and are decoded over a
// copy of those defaults with mapstructure, so an orchestrator sending unknown
// keys never breaks admission.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
)

// AgentConfig holds process-level defaults shared by both agent binaries.
type AgentConfig struct {
	SocketPath                string `toml:"socket_path"`
	MaxActiveTasks            int    `toml:"max_active_tasks"`
	DefaultTaskTimeoutSeconds int    `toml:"default_task_timeout_seconds"`
	MaxConsecutiveErrors      int    `toml:"max_consecutive_errors"`
	ErrorCooldownSeconds      int    `toml:"error_cooldown_seconds"`
	MaxFileSizeMB             int    `toml:"max_file_size_mb"`
}

// DefaultAgentConfig returns the built-in defaults named throughout the
// specification (max_active_tasks=10, default task timeout 300s, error
// threshold 10 with a 300s cooldown).
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		SocketPath:                "/tmp/pit-crew-orchestrator.sock",
		MaxActiveTasks:            10,
		DefaultTaskTimeoutSeconds: 300,
		MaxConsecutiveErrors:      10,
		ErrorCooldownSeconds:      300,
		MaxFileSizeMB:             10,
	}
}

// LoadAgentConfigFile overlays TOML keys from path onto the built-in defaults.
// A missing path is not an error — the caller only supplies one when
// AGENT_CONFIG_FILE is set.
func LoadAgentConfigFile(path string) (AgentConfig, error) {
	cfg := DefaultAgentConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, fmt.Errorf("config: file %s does not exist", path)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}
	return cfg, nil
}

// QualityConfig is the typed surface of the quality agent's per-task config.
type QualityConfig struct {
	TimeoutSeconds          int     `mapstructure:"timeout_seconds"`
	ComplexityThreshold     int     `mapstructure:"complexity_threshold"`
	DuplicationThreshold    float64 `mapstructure:"duplication_threshold"`
	ScanComplexity          bool    `mapstructure:"scan_complexity"`
	ScanDuplication         bool    `mapstructure:"scan_duplication"`
	RuffEnabled             bool    `mapstructure:"ruff_enabled"`
	ESLintEnabled           bool    `mapstructure:"eslint_enabled"`
	LizardEnabled           bool    `mapstructure:"lizard_enabled"`
	YAMLSyntaxEnabled       bool    `mapstructure:"yaml_syntax_enabled"`
	TypeScriptSyntaxEnabled bool    `mapstructure:"typescript_syntax_enabled"`
}

// DefaultQualityConfig returns the quality agent's built-in defaults.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		TimeoutSeconds:          45,
		ComplexityThreshold:     10,
		DuplicationThreshold:    0.8,
		ScanComplexity:          true,
		ScanDuplication:         true,
		RuffEnabled:             true,
		ESLintEnabled:           true,
		LizardEnabled:           true,
		YAMLSyntaxEnabled:       true,
		TypeScriptSyntaxEnabled: true,
	}
}

// ResolveQualityConfig decodes raw (the task's inbound "config" map, possibly
// nil) over a copy of defaults. Unknown keys in raw are ignored.
func ResolveQualityConfig(defaults QualityConfig, raw map[string]any) (QualityConfig, error) {
	cfg := defaults
	if len(raw) == 0 {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("config: failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("config: failed to decode quality task config: %w", err)
	}
	return cfg, nil
}

// SecurityConfig is the typed surface of the security agent's per-task config.
type SecurityConfig struct {
	TimeoutSeconds    int      `mapstructure:"timeout_seconds"`
	ScanSecrets       bool     `mapstructure:"scan_secrets"`
	ScanDependencies  bool     `mapstructure:"scan_dependencies"`
	SemgrepRules      []string `mapstructure:"semgrep_rules"`
	GitleaksEnabled   bool     `mapstructure:"gitleaks_enabled"`
	OSVScannerEnabled bool     `mapstructure:"osv_scanner_enabled"`
}

// DefaultSecurityConfig returns the security agent's built-in defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		TimeoutSeconds:    60,
		ScanSecrets:       true,
		ScanDependencies:  true,
		SemgrepRules:      []string{"p/security-audit", "p/owasp-top-ten", "p/cwe-top-25"},
		GitleaksEnabled:   true,
		OSVScannerEnabled: true,
	}
}

// ResolveSecurityConfig decodes raw over a copy of defaults.
func ResolveSecurityConfig(defaults SecurityConfig, raw map[string]any) (SecurityConfig, error) {
	cfg := defaults
	if len(raw) == 0 {
		return cfg, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("config: failed to build decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return cfg, fmt.Errorf("config: failed to decode security task config: %w", err)
	}
	return cfg, nil
}
