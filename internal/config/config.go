// Package config loads the orchestrator's YAML configuration: a
// yaml-tagged struct, loaded through viper for env binding, nested
// defaults and multi-source merge.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root of the recognized configuration schema.
type Config struct {
	BudgetLimitUSD  float64  `mapstructure:"budget_limit_usd" yaml:"budget_limit_usd"`
	AutonomousMode  bool     `mapstructure:"autonomous_mode" yaml:"autonomous_mode"`
	PlansDir        string   `mapstructure:"plans_dir" yaml:"plans_dir"`
	CopyFiles       []string `mapstructure:"copy_files" yaml:"copy_files"`

	Agent         AgentConfig                  `mapstructure:"agent" yaml:"agent"`
	Git           GitConfig                    `mapstructure:"git" yaml:"git"`
	Phases        map[string]PhaseConfig       `mapstructure:"phases" yaml:"phases"`
	Approvals     ApprovalsConfig              `mapstructure:"approvals" yaml:"approvals"`
	Fallback      FallbackConfig               `mapstructure:"fallback" yaml:"fallback"`
	Debate        DebateConfig                 `mapstructure:"debate" yaml:"debate"`
	Streaming     StreamingConfig              `mapstructure:"streaming" yaml:"streaming"`
	Rules         RulesConfig                  `mapstructure:"rules" yaml:"rules"`
	Notifications NotificationsConfig          `mapstructure:"notifications" yaml:"notifications"`
	Commands      map[string]string            `mapstructure:"commands" yaml:"commands"`
	HTTPAPI       HTTPAPIConfig                `mapstructure:"httpapi" yaml:"httpapi"`
	Metrics       MetricsConfig                `mapstructure:"metrics" yaml:"metrics"`
}

// AgentConfig wires the default executor.
type AgentConfig struct {
	Type             string `mapstructure:"type" yaml:"type"`
	Model            string `mapstructure:"model" yaml:"model"`
	DefaultTimeout   int    `mapstructure:"default_timeout" yaml:"default_timeout"`
	MaxTurnsDefault  int    `mapstructure:"max_turns_default" yaml:"max_turns_default"`
	DangerousMode    bool   `mapstructure:"dangerous_mode" yaml:"dangerous_mode"`
}

// GitConfig controls worktree and branch conventions, consumed by the
// external git driver.
type GitConfig struct {
	BaseBranch          string `mapstructure:"base_branch" yaml:"base_branch"`
	WorktreeDir         string `mapstructure:"worktree_dir" yaml:"worktree_dir"`
	BranchPrefix        string `mapstructure:"branch_prefix" yaml:"branch_prefix"`
	CleanupOnFail       bool   `mapstructure:"cleanup_on_fail" yaml:"cleanup_on_fail"`
	CleanupRemoteOnFail bool   `mapstructure:"cleanup_remote_on_fail" yaml:"cleanup_remote_on_fail"`
	AutoUpdate          bool   `mapstructure:"auto_update" yaml:"auto_update"`
}

// PhaseConfig holds the per-phase knobs.
type PhaseConfig struct {
	Enabled         *bool   `mapstructure:"enabled" yaml:"enabled"`
	TimeoutSeconds  int     `mapstructure:"timeout" yaml:"timeout"`
	MaxTurns        int     `mapstructure:"max_turns" yaml:"max_turns"`
	MaxIterations   int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	MaxRetries      int     `mapstructure:"max_retries" yaml:"max_retries"`
	EstimatedCost   float64 `mapstructure:"estimated_cost" yaml:"estimated_cost"`
	BaselineEnabled *bool   `mapstructure:"baseline_enabled" yaml:"baseline_enabled"`
	CommandTimeout  int     `mapstructure:"command_timeout" yaml:"command_timeout"`
	SoftFail        bool    `mapstructure:"soft_fail" yaml:"soft_fail"`
}

// IsEnabled defaults a phase to enabled when unconfigured.
func (p PhaseConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// BaselineOn defaults baseline diffing to enabled when unconfigured.
func (p PhaseConfig) BaselineOn() bool {
	return p.BaselineEnabled == nil || *p.BaselineEnabled
}

// ApprovalsConfig controls the file-based approval gate.
type ApprovalsConfig struct {
	Enabled      bool            `mapstructure:"enabled" yaml:"enabled"`
	TimeoutHours float64         `mapstructure:"timeout_hours" yaml:"timeout_hours"`
	Gates        map[string]bool `mapstructure:"gates" yaml:"gates"`
}

// GateEnabled reports whether phase requires approval.
func (a ApprovalsConfig) GateEnabled(phase string) bool {
	if !a.Enabled {
		return false
	}
	return a.Gates[phase]
}

// FallbackConfig controls cross-agent retry eligibility.
type FallbackConfig struct {
	FallbackAgent       string `mapstructure:"fallback_agent" yaml:"fallback_agent"`
	MaxFallbackAttempts int    `mapstructure:"max_fallback_attempts" yaml:"max_fallback_attempts"`
	Trigger             string `mapstructure:"trigger" yaml:"trigger"`
}

// DebateConfig wires the two-role deliberation engine.
type DebateConfig struct {
	Enabled               bool            `mapstructure:"enabled" yaml:"enabled"`
	PrimaryAgent          string          `mapstructure:"primary_agent" yaml:"primary_agent"`
	SecondaryAgent        string          `mapstructure:"secondary_agent" yaml:"secondary_agent"`
	Mode                  string          `mapstructure:"mode" yaml:"mode"`
	Intensity             string          `mapstructure:"intensity" yaml:"intensity"`
	Phases                map[string]bool `mapstructure:"phases" yaml:"phases"`
	ParallelTurn1         bool            `mapstructure:"parallel_turn_1" yaml:"parallel_turn_1"`
	TurnTimeoutSeconds    int             `mapstructure:"turn_timeout_seconds" yaml:"turn_timeout_seconds"`
	MessageTimeoutSeconds int             `mapstructure:"message_timeout_seconds" yaml:"message_timeout_seconds"`
}

// PhaseEnabled reports whether debate is wired in for the named phase.
func (d DebateConfig) PhaseEnabled(phase string) bool {
	return d.Enabled && d.Phases[phase]
}

// MaxExchangeMessages returns the Turn-2 exchange length: 1 in feedback
// mode, 3 (low) or 5 (high) in debate mode, always odd so the exchange
// starts and ends with the primary role.
func (d DebateConfig) MaxExchangeMessages() int {
	if d.Mode == "feedback" {
		return 1
	}
	if d.Intensity == "high" {
		return 5
	}
	return 3
}

// StreamingConfig controls streaming UX, not orchestrator semantics.
type StreamingConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	Verbose        bool `mapstructure:"verbose" yaml:"verbose"`
	Debug          bool `mapstructure:"debug" yaml:"debug"`
	ShowToolCalls  bool `mapstructure:"show_tool_calls" yaml:"show_tool_calls"`
	TruncateLength int  `mapstructure:"truncate_length" yaml:"truncate_length"`
}

// RulesConfig controls the content materialized into the worktree's rules file.
type RulesConfig struct {
	EnabledRules []string `mapstructure:"enabled_rules" yaml:"enabled_rules"`
	CustomRules  []string `mapstructure:"custom_rules" yaml:"custom_rules"`
}

// NotificationsConfig fans events out to console/webhook/Slack.
type NotificationsConfig struct {
	Console NotificationChannel `mapstructure:"console" yaml:"console"`
	Webhook NotificationChannel `mapstructure:"webhook" yaml:"webhook"`
	Slack   NotificationChannel `mapstructure:"slack" yaml:"slack"`
}

// NotificationChannel is one fan-out target.
type NotificationChannel struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	URL     string   `mapstructure:"url" yaml:"url"`
	Events  []string `mapstructure:"events" yaml:"events"`
	Colors  bool     `mapstructure:"colors" yaml:"colors"`
}

// HTTPAPIConfig toggles the local control-plane HTTP server (status,
// checkpoints, approval grants, metrics), off by default.
type HTTPAPIConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// MetricsConfig toggles the prometheus metrics registry.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// EnvPrefix is the viper environment-variable prefix for config overlay.
// FORGE_ALLOW_HOST_AUTONOMOUS and XDG_STATE_HOME are read directly, not
// through this overlay.
const EnvPrefix = "FORGE"

// Default returns a Config with every recognized option populated.
func Default() *Config {
	return &Config{
		BudgetLimitUSD: 15.0,
		AutonomousMode: false,
		PlansDir:       "plans",
		Agent: AgentConfig{
			Type:            "primary-conversational",
			DefaultTimeout:  600,
			MaxTurnsDefault: 50,
		},
		Git: GitConfig{
			BaseBranch:   "main",
			WorktreeDir:  "..",
			BranchPrefix: "forge",
			AutoUpdate:   true,
		},
		Phases: map[string]PhaseConfig{},
		Approvals: ApprovalsConfig{
			Enabled:      false,
			TimeoutHours: 24,
			Gates:        map[string]bool{},
		},
		Fallback: FallbackConfig{
			MaxFallbackAttempts: 1,
			Trigger:             "agent_errors",
		},
		Debate: DebateConfig{
			Mode:          "feedback",
			Intensity:     "low",
			ParallelTurn1: true,
			Phases:        map[string]bool{},
		},
		Streaming: StreamingConfig{
			Enabled:        true,
			TruncateLength: 2000,
		},
		Notifications: NotificationsConfig{
			Console: NotificationChannel{Enabled: true},
		},
		Commands: map[string]string{},
	}
}

// Load reads configuration from path (if non-empty and it exists), layers
// FORGE_-prefixed environment overrides on top via viper, and returns the
// merged Config. A missing path is not an error — defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !isNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func isNotExist(err error) bool {
	var cfgErr viper.ConfigFileNotFoundError
	return err != nil && (errorsAs(err, &cfgErr) || strings.Contains(err.Error(), "no such file"))
}

func errorsAs(err error, target *viper.ConfigFileNotFoundError) bool {
	if e, ok := err.(viper.ConfigFileNotFoundError); ok {
		*target = e
		return true
	}
	return false
}

// setDefaults seeds viper's own default layer from a Config so that
// AutomaticEnv + file overlay both merge onto the same baseline instead of
// silently dropping unset struct fields.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("budget_limit_usd", def.BudgetLimitUSD)
	v.SetDefault("autonomous_mode", def.AutonomousMode)
	v.SetDefault("plans_dir", def.PlansDir)
	v.SetDefault("agent.type", def.Agent.Type)
	v.SetDefault("agent.default_timeout", def.Agent.DefaultTimeout)
	v.SetDefault("agent.max_turns_default", def.Agent.MaxTurnsDefault)
	v.SetDefault("git.base_branch", def.Git.BaseBranch)
	v.SetDefault("git.worktree_dir", def.Git.WorktreeDir)
	v.SetDefault("git.branch_prefix", def.Git.BranchPrefix)
	v.SetDefault("git.auto_update", def.Git.AutoUpdate)
	v.SetDefault("approvals.timeout_hours", def.Approvals.TimeoutHours)
	v.SetDefault("fallback.max_fallback_attempts", def.Fallback.MaxFallbackAttempts)
	v.SetDefault("fallback.trigger", def.Fallback.Trigger)
	v.SetDefault("debate.mode", def.Debate.Mode)
	v.SetDefault("debate.intensity", def.Debate.Intensity)
	v.SetDefault("debate.parallel_turn_1", def.Debate.ParallelTurn1)
	v.SetDefault("streaming.enabled", def.Streaming.Enabled)
	v.SetDefault("streaming.truncate_length", def.Streaming.TruncateLength)
	v.SetDefault("notifications.console.enabled", def.Notifications.Console.Enabled)
}

// PhaseConfigFor resolves the configured knobs for a phase, filling
// zero-valued fields from the agent-level defaults.
func (c *Config) PhaseConfigFor(phase string) PhaseConfig {
	pc := c.Phases[phase]
	if pc.TimeoutSeconds == 0 {
		pc.TimeoutSeconds = c.Agent.DefaultTimeout
	}
	if pc.MaxTurns == 0 {
		pc.MaxTurns = c.Agent.MaxTurnsDefault
	}
	if pc.MaxIterations == 0 {
		pc.MaxIterations = 5
	}
	if pc.MaxRetries == 0 {
		pc.MaxRetries = 1
	}
	if pc.CommandTimeout == 0 {
		pc.CommandTimeout = 300
	}
	return pc
}
