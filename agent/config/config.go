// Package config loads the engine's recognized configuration surface (spec
// §6) from a YAML file plus environment overrides, using
// github.com/spf13/viper the way the example pack's CLI/gateway tools do
// (grounded on None9527-NGOClaw's gateway/internal/infrastructure/config
// package: viper.SetConfigFile + viper.AutomaticEnv + struct unmarshal).
// This package is an outer-surface concern — no core package under agent/
// imports it or viper directly.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the plain, serialization-friendly form of every recognized
// option in spec §6, decoded from YAML/env before being translated into the
// core's own typed Config structs (orchestrator.Config, prompt.Options,
// loopdetect.Detector fields, cot.Config, tot.Config).
type Config struct {
	MaxTurns                 int           `mapstructure:"max_turns"`
	LLMTimeout               time.Duration `mapstructure:"llm_timeout"`
	ToolTimeout               time.Duration `mapstructure:"tool_timeout"`
	UseFunctionCalling        bool          `mapstructure:"use_function_calling"`
	EmitPublicStatus          bool          `mapstructure:"emit_public_status"`
	MaxRecentTurns            int           `mapstructure:"max_recent_turns"`
	EnableHistorySummarization bool         `mapstructure:"enable_history_summarization"`
	MaxToolOutputSize         int           `mapstructure:"max_tool_output_size"`
	DedupeStalenessThreshold  time.Duration `mapstructure:"dedupe_staleness_threshold"`
	MaxToolCallHistory        int           `mapstructure:"max_tool_call_history"`
	ConsecutiveFailureThreshold int         `mapstructure:"consecutive_failure_threshold"`
	ReasoningType             string        `mapstructure:"reasoning_type"`
	MaxReasoningSteps         int           `mapstructure:"max_reasoning_steps"`
	EnableReasoningValidation bool          `mapstructure:"enable_reasoning_validation"`
	MinReasoningConfidence    float64       `mapstructure:"min_reasoning_confidence"`
	MaxTreeDepth              int           `mapstructure:"max_tree_depth"`
	MaxTreeNodes              int           `mapstructure:"max_tree_nodes"`
	TreeExplorationStrategy   string        `mapstructure:"tree_exploration_strategy"`
	UseCentralizedSchemas     bool          `mapstructure:"use_centralized_schemas"`

	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	StateDir string `mapstructure:"state_dir"`
}

// Defaults returns the documented defaults (orchestrator.DefaultConfig plus
// the rest of spec §6's recognized options), used to seed viper before any
// file or environment override is applied.
func Defaults() Config {
	return Config{
		MaxTurns:                    25,
		LLMTimeout:                  30 * time.Second,
		ToolTimeout:                 15 * time.Second,
		UseFunctionCalling:          true,
		EmitPublicStatus:            true,
		MaxRecentTurns:              10,
		EnableHistorySummarization:  true,
		MaxToolOutputSize:           4096,
		DedupeStalenessThreshold:    5 * time.Minute,
		MaxToolCallHistory:         50,
		ConsecutiveFailureThreshold: 3,
		ReasoningType:               "none",
		MaxReasoningSteps:           4,
		EnableReasoningValidation:   false,
		MinReasoningConfidence:      0.5,
		MaxTreeDepth:                3,
		MaxTreeNodes:                20,
		TreeExplorationStrategy:     "best_first",
		UseCentralizedSchemas:       false,
		Provider:                    "anthropic",
		Model:                       "claude-sonnet-4-5",
		StateDir:                    "./agentloopd-state",
	}
}

// Load reads path (if non-empty and present) over Defaults(), then applies
// AGENTLOOPD_-prefixed environment overrides (e.g. AGENTLOOPD_MAX_TURNS).
func Load(path string) (Config, error) {
	v := viper.New()
	def := Defaults()

	v.SetConfigType("yaml")
	v.SetEnvPrefix("agentloopd")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, def)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, def Config) {
	v.SetDefault("max_turns", def.MaxTurns)
	v.SetDefault("llm_timeout", def.LLMTimeout)
	v.SetDefault("tool_timeout", def.ToolTimeout)
	v.SetDefault("use_function_calling", def.UseFunctionCalling)
	v.SetDefault("emit_public_status", def.EmitPublicStatus)
	v.SetDefault("max_recent_turns", def.MaxRecentTurns)
	v.SetDefault("enable_history_summarization", def.EnableHistorySummarization)
	v.SetDefault("max_tool_output_size", def.MaxToolOutputSize)
	v.SetDefault("dedupe_staleness_threshold", def.DedupeStalenessThreshold)
	v.SetDefault("max_tool_call_history", def.MaxToolCallHistory)
	v.SetDefault("consecutive_failure_threshold", def.ConsecutiveFailureThreshold)
	v.SetDefault("reasoning_type", def.ReasoningType)
	v.SetDefault("max_reasoning_steps", def.MaxReasoningSteps)
	v.SetDefault("enable_reasoning_validation", def.EnableReasoningValidation)
	v.SetDefault("min_reasoning_confidence", def.MinReasoningConfidence)
	v.SetDefault("max_tree_depth", def.MaxTreeDepth)
	v.SetDefault("max_tree_nodes", def.MaxTreeNodes)
	v.SetDefault("tree_exploration_strategy", def.TreeExplorationStrategy)
	v.SetDefault("use_centralized_schemas", def.UseCentralizedSchemas)
	v.SetDefault("provider", def.Provider)
	v.SetDefault("model", def.Model)
	v.SetDefault("state_dir", def.StateDir)
}
