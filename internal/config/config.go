// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package config loads drover configuration with the standard precedence:
// flags > environment (DROVER_ prefix) > config file > defaults.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/drover-dev/drover/internal/ratelimit"
	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the top-level drover configuration.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Security  SecurityConfig  `mapstructure:"security"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// AnthropicConfig holds credentials and model selection for the agent client.
type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// AgentConfig controls the session driver loop.
type AgentConfig struct {
	MaxIterations        int `mapstructure:"max_iterations"`
	ContinueDelaySeconds int `mapstructure:"continue_delay_seconds"`
}

// ContinueDelay is the pause between back-to-back sessions.
func (c AgentConfig) ContinueDelay() time.Duration {
	return time.Duration(c.ContinueDelaySeconds) * time.Second
}

// SecurityConfig holds the command gate configuration. The allowlist is
// loaded once at startup and never mutated.
type SecurityConfig struct {
	Allowlist []string `mapstructure:"allowlist"`
}

// RateLimitConfig controls backoff scheduling after rate-limit errors.
type RateLimitConfig struct {
	DefaultWaitMinutes    int `mapstructure:"default_wait_minutes"`
	BufferSeconds         int `mapstructure:"buffer_seconds"`
	ResumeIntervalMinutes int `mapstructure:"resume_interval_minutes"`
	CountdownTickSeconds  int `mapstructure:"countdown_tick_seconds"`
}

// Policy converts the config into a backoff policy.
func (c RateLimitConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{
		DefaultWait:    time.Duration(c.DefaultWaitMinutes) * time.Minute,
		Buffer:         time.Duration(c.BufferSeconds) * time.Second,
		ResumeInterval: time.Duration(c.ResumeIntervalMinutes) * time.Minute,
	}
}

// CountdownTick is the countdown display update interval.
func (c RateLimitConfig) CountdownTick() time.Duration {
	return time.Duration(c.CountdownTickSeconds) * time.Second
}

// AuditConfig controls the SQLite audit log.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SetDefaults installs drover's default values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("agent.max_iterations", 0)
	v.SetDefault("agent.continue_delay_seconds", 3)
	v.SetDefault("rate_limit.default_wait_minutes", 30)
	v.SetDefault("rate_limit.buffer_seconds", 60)
	v.SetDefault("rate_limit.resume_interval_minutes", 30)
	v.SetDefault("rate_limit.countdown_tick_seconds", 30)
	v.SetDefault("audit.enabled", true)
}

// SetupEnv binds DROVER_-prefixed environment variables.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("DROVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads configuration from the given path (or defaults only when path
// is empty) with environment overrides applied.
func Load(path string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, droverr.Errorf(droverr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates a Config from an already-populated
// Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, droverr.Errorf(droverr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, droverr.Errorf(droverr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting all
// issues rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	if c.Anthropic.Model == "" {
		errs = append(errs, droverr.New(droverr.CodeConfigValidateInvalidValue,
			"config: anthropic.model must not be empty"))
	}
	if c.Anthropic.MaxTokens <= 0 {
		errs = append(errs, droverr.Errorf(droverr.CodeConfigValidateInvalidValue,
			"config: anthropic.max_tokens must be positive, got %d", c.Anthropic.MaxTokens))
	}

	if c.Agent.MaxIterations < 0 {
		errs = append(errs, droverr.Errorf(droverr.CodeConfigValidateInvalidValue,
			"config: agent.max_iterations must not be negative, got %d", c.Agent.MaxIterations))
	}
	if c.Agent.ContinueDelaySeconds < 0 {
		errs = append(errs, droverr.Errorf(droverr.CodeConfigValidateInvalidValue,
			"config: agent.continue_delay_seconds must not be negative, got %d", c.Agent.ContinueDelaySeconds))
	}

	for _, knob := range []struct {
		key   string
		value int
	}{
		{"rate_limit.default_wait_minutes", c.RateLimit.DefaultWaitMinutes},
		{"rate_limit.buffer_seconds", c.RateLimit.BufferSeconds},
		{"rate_limit.resume_interval_minutes", c.RateLimit.ResumeIntervalMinutes},
		{"rate_limit.countdown_tick_seconds", c.RateLimit.CountdownTickSeconds},
	} {
		if knob.value <= 0 {
			errs = append(errs, droverr.Errorf(droverr.CodeConfigValidateInvalidValue,
				"config: %s must be positive, got %d", knob.key, knob.value))
		}
	}

	for _, name := range c.Security.Allowlist {
		if name == "" || strings.ContainsRune(name, '/') {
			errs = append(errs, droverr.Errorf(droverr.CodeConfigValidateInvalidValue,
				"config: security.allowlist entries must be bare program names, got %q", name))
		}
	}

	return errs
}
