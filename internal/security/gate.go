// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package security implements the shell command gate: an allowlist plus
// per-command policy rules applied to every tool-use command string before
// the host is permitted to execute it.
package security

import (
	"fmt"
	"slices"

	"github.com/drover-dev/drover/internal/security/shellparse"
)

// Decision is the gate's verdict on one command string. A compound command
// is never partially allowed: one disallowed invocation blocks the whole
// string.
type Decision struct {
	Allow  bool
	Reason string
}

// Config holds the gate's immutable configuration. The allowlist is fixed
// for the process lifetime; changing it means redeploying configuration.
type Config struct {
	// Allowlist is the set of permitted program basenames. Empty means
	// DefaultAllowlist.
	Allowlist []string
}

// Gate decides whether a shell command string may be executed.
type Gate struct {
	allow    map[string]struct{}
	scrutiny map[string]PolicyFunc
}

// DefaultAllowlist returns the built-in set of permitted program basenames:
// file inspection, file operations, common dev toolchains, version control,
// process management, and test runners.
func DefaultAllowlist() []string {
	return []string{
		// File inspection
		"ls", "cat", "head", "tail", "wc", "grep", "find", "tree",
		// File operations
		"cp", "mv", "mkdir", "chmod", "touch",
		// Directory
		"pwd", "cd",
		// Node.js development
		"npm", "npx", "pnpm", "pnpx", "yarn", "node", "bun",
		// Python development
		"python", "python3", "pip", "pip3", "poetry", "uv", "uvx",
		// Version control
		"git",
		// Build tools
		"make", "cargo", "go", "dotnet",
		// Process management
		"ps", "lsof", "sleep", "pkill", "kill",
		// Testing
		"pytest", "jest", "vitest", "mocha",
		// Utilities
		"echo", "which", "env", "export", "source", "curl", "wget",
	}
}

// NewGate creates a Gate from immutable configuration.
func NewGate(cfg Config) *Gate {
	list := cfg.Allowlist
	if len(list) == 0 {
		list = DefaultAllowlist()
	}

	allow := make(map[string]struct{}, len(list))
	for _, name := range list {
		allow[name] = struct{}{}
	}

	return &Gate{
		allow:    allow,
		scrutiny: scrutinyPolicies(),
	}
}

// Decide evaluates a full command string. Parse failures and empty commands
// always block; they are never treated as vacuously allowed.
func (g *Gate) Decide(command string) Decision {
	invocations, err := shellparse.Invocations(command)
	if err != nil || len(invocations) == 0 {
		return Decision{
			Allow:  false,
			Reason: fmt.Sprintf("could not parse command for security validation: %s", command),
		}
	}

	segments := shellparse.Segments(command)

	for _, name := range invocations {
		if _, ok := g.allow[name]; !ok {
			return Decision{
				Allow:  false,
				Reason: fmt.Sprintf("command %q is not in the allowed commands list", name),
			}
		}

		policy, ok := g.scrutiny[name]
		if !ok {
			continue
		}

		segment := segmentContaining(name, segments)
		if segment == "" {
			segment = command
		}

		if allowed, reason := policy(segment); !allowed {
			return Decision{Allow: false, Reason: reason}
		}
	}

	return Decision{Allow: true}
}

// segmentContaining returns the first segment whose invocations include
// name, or "" if none does.
func segmentContaining(name string, segments []string) string {
	for _, segment := range segments {
		invocations, err := shellparse.Invocations(segment)
		if err != nil {
			continue
		}
		if slices.Contains(invocations, name) {
			return segment
		}
	}
	return ""
}
