// Package config loads semgate settings from YAML files and SEMGATE_*
// environment variables, and validates them.
package config

import (
	"time"

	"github.com/zero-day-ai/semgate/gate"
	"github.com/zero-day-ai/semgate/mapper"
	"github.com/zero-day-ai/semgate/memory"
)

// Config is the full semgate configuration.
type Config struct {
	Mapper  MapperConfig  `mapstructure:"mapper" yaml:"mapper"`
	Gates   GatesConfig   `mapstructure:"gates" yaml:"gates"`
	Memory  MemoryConfig  `mapstructure:"memory" yaml:"memory"`
	Graphs  GraphsConfig  `mapstructure:"graphs" yaml:"graphs"`
	Rules   RulesConfig   `mapstructure:"rules" yaml:"rules"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Serve   ServeConfig   `mapstructure:"serve" yaml:"serve"`
}

// MapperConfig holds the translation thresholds.
type MapperConfig struct {
	FuzzyThreshold      float64 `mapstructure:"fuzzy_threshold" yaml:"fuzzy_threshold" validate:"gt=0,lt=1"`
	EscalationThreshold float64 `mapstructure:"escalation_confidence_threshold" yaml:"escalation_confidence_threshold" validate:"gte=0,lte=1"`
	ApprovalThreshold   float64 `mapstructure:"approval_confidence_threshold" yaml:"approval_confidence_threshold" validate:"gte=0,lte=1,gtefield=EscalationThreshold"`
}

// Policy returns the confidence policy described by the thresholds.
func (c MapperConfig) Policy() mapper.Policy {
	return mapper.Policy{Approval: c.ApprovalThreshold, Escalation: c.EscalationThreshold}
}

// GatesConfig tunes the gate engine.
type GatesConfig struct {
	HistoryLimit int           `mapstructure:"history_limit" yaml:"history_limit" validate:"min=1"`
	RuleTimeout  time.Duration `mapstructure:"rule_timeout" yaml:"rule_timeout" validate:"min=1ms"`
	ResultTTL    time.Duration `mapstructure:"result_ttl" yaml:"result_ttl" validate:"min=1s"`
	// Parallelism bounds concurrent validations in batch runs.
	Parallelism int `mapstructure:"parallelism" yaml:"parallelism" validate:"min=1,max=256"`
}

// MemoryConfig selects the memory collaborator.
type MemoryConfig struct {
	Backend   string        `mapstructure:"backend" yaml:"backend" validate:"oneof=local redis none"`
	RedisURL  string        `mapstructure:"redis_url" yaml:"redis_url" validate:"required_if=Backend redis"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=1ms"`
}

// GraphsConfig lists where knowledge graphs come from. The embedded graphs
// are loaded first when Builtin is set; Dir and etcd definitions replace
// them per framework.
type GraphsConfig struct {
	Builtin       bool          `mapstructure:"builtin" yaml:"builtin"`
	Dir           string        `mapstructure:"dir" yaml:"dir"`
	EtcdEndpoints []string      `mapstructure:"etcd_endpoints" yaml:"etcd_endpoints"`
	EtcdNamespace string        `mapstructure:"etcd_namespace" yaml:"etcd_namespace" validate:"required_with=EtcdEndpoints"`
	Debounce      time.Duration `mapstructure:"debounce" yaml:"debounce" validate:"min=0"`
}

// RulesConfig selects the rule set.
type RulesConfig struct {
	Defaults bool     `mapstructure:"defaults" yaml:"defaults"`
	Files    []string `mapstructure:"files" yaml:"files"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json text"`
}

// ServeConfig configures the serve command.
type ServeConfig struct {
	Port        int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
	MetricsPort int `mapstructure:"metrics_port" yaml:"metrics_port" validate:"min=0,max=65535"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Mapper: MapperConfig{
			FuzzyThreshold:      mapper.DefaultFuzzyThreshold,
			EscalationThreshold: mapper.DefaultEscalationThreshold,
			ApprovalThreshold:   mapper.DefaultApprovalThreshold,
		},
		Gates: GatesConfig{
			HistoryLimit: gate.DefaultHistoryLimit,
			RuleTimeout:  gate.DefaultRuleTimeout,
			ResultTTL:    gate.DefaultResultTTL,
			Parallelism:  8,
		},
		Memory: MemoryConfig{
			Backend: "local",
			Timeout: memory.DefaultTimeout,
		},
		Graphs: GraphsConfig{
			Builtin:       true,
			EtcdNamespace: "semgate",
			Debounce:      250 * time.Millisecond,
		},
		Rules: RulesConfig{
			Defaults: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Serve: ServeConfig{
			Port:        50051,
			MetricsPort: 9090,
		},
	}
}
