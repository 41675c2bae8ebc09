// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/drover-dev/drover/internal/agent"
	"github.com/drover-dev/drover/internal/client"
	"github.com/drover-dev/drover/internal/config"
	"github.com/drover-dev/drover/internal/progress"
	"github.com/drover-dev/drover/internal/secrets"
	"github.com/drover-dev/drover/internal/security"
	"github.com/drover-dev/drover/internal/store"
	droverr "github.com/drover-dev/drover/pkg/errors"
)

// systemPrompt frames every session; per-session task context rides in the
// user prompt, not here.
const systemPrompt = "You are an expert developer working on an existing codebase. " +
	"Your goal is to implement features, fix bugs, and improve code " +
	"while respecting the project's existing patterns and conventions."

// Runtime holds all wired subsystems for one drover run.
type Runtime struct {
	Driver   *agent.Driver
	Progress *progress.Store
	Audit    *store.AuditLog
}

// Close releases resources held by the runtime.
func (r *Runtime) Close() error {
	if r.Audit != nil {
		return r.Audit.Close()
	}
	return nil
}

// WireRuntime resolves credentials and constructs the session driver with
// all dependencies. A missing API key is fatal here, before the loop starts.
func WireRuntime(cfg *config.Config, repoDir string, out io.Writer) (*Runtime, error) {
	apiKey, err := secrets.ResolveAPIKey(cfg.Anthropic.APIKey)
	if err != nil {
		return nil, err
	}

	progressStore := progress.NewStore(repoDir)
	if err := os.MkdirAll(progressStore.Dir(), 0o755); err != nil {
		return nil, droverr.Errorf(droverr.CodeCLISetupFailure, "creating state directory: %w", err)
	}

	// An empty allowlist falls back to the built-in default set.
	gate := security.NewGate(security.Config{Allowlist: cfg.Security.Allowlist})

	var auditLog *store.AuditLog
	if cfg.Audit.Enabled {
		auditLog, err = store.OpenAuditLog(filepath.Join(progressStore.Dir(), "audit.db"))
		if err != nil {
			// The audit trail is supplementary; a broken database must not
			// keep the loop from running.
			slog.Warn("audit log unavailable", "error", err)
			auditLog = nil
		}
	}

	factory := client.NewFactory(client.AnthropicConfig{
		APIKey:       apiKey,
		BaseURL:      cfg.Anthropic.BaseURL,
		Model:        cfg.Anthropic.Model,
		SystemPrompt: systemPrompt,
		MaxTokens:    cfg.Anthropic.MaxTokens,
	})

	driver, err := agent.NewDriver(agent.Config{
		Factory:       factory,
		Gate:          gate,
		Progress:      progressStore,
		Audit:         auditLog,
		Backoff:       cfg.RateLimit.Policy(),
		CountdownTick: cfg.RateLimit.CountdownTick(),
		ContinueDelay: cfg.Agent.ContinueDelay(),
		MaxIterations: cfg.Agent.MaxIterations,
		Out:           out,
	})
	if err != nil {
		if auditLog != nil {
			_ = auditLog.Close()
		}
		return nil, err
	}

	return &Runtime{Driver: driver, Progress: progressStore, Audit: auditLog}, nil
}

// validateRepo checks the target repository directory. A missing directory
// is fatal; a missing .git is only a warning since the loop works on any
// directory tree.
func validateRepo(repoDir string, out io.Writer) error {
	info, err := os.Stat(repoDir)
	if err != nil || !info.IsDir() {
		return droverr.Errorf(droverr.CodeCLIInputInvalid, "repository directory %s does not exist", repoDir)
	}

	if _, err := os.Stat(filepath.Join(repoDir, ".git")); err != nil {
		_, _ = io.WriteString(out, warnStyle.Render("Warning: "+repoDir+" is not a git repository")+"\n")
	}

	return nil
}
