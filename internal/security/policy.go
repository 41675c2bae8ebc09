// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package security

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/drover-dev/drover/internal/security/shellparse"
)

// PolicyFunc validates one command segment for an invocation that needs
// scrutiny beyond allowlist membership. It returns whether the segment is
// allowed and, if not, a user-facing reason.
type PolicyFunc func(segment string) (bool, string)

// allowedKillSignals are the graceful-or-expected termination signals kill
// may send, in flag form.
var allowedKillSignals = map[string]struct{}{
	"-TERM": {}, "-INT": {}, "-HUP": {},
	"-1": {}, "-2": {}, "-9": {}, "-15": {},
}

// allowedPkillTargets are development process names pkill may target.
var allowedPkillTargets = map[string]struct{}{
	"node": {}, "npm": {}, "npx": {}, "pnpm": {}, "yarn": {},
	"vite": {}, "next": {},
	"python": {}, "python3": {}, "pytest": {},
	"uvicorn": {}, "gunicorn": {},
}

// chmodModePattern permits only executable-bit additions: an optional subset
// of u/g/o/a followed by +x.
var chmodModePattern = regexp.MustCompile(`^[ugoa]*\+x$`)

// scrutinyPolicies maps invocation names that need extra validation to their
// policy. Looked up by the Gate after allowlist membership passes.
func scrutinyPolicies() map[string]PolicyFunc {
	return map[string]PolicyFunc{
		"kill":  validateKill,
		"pkill": validatePkill,
		"chmod": validateChmod,
	}
}

// validateKill permits kill only with signals from the allowed set. Flag
// tokens must be a recognized signal or a bare numeric (a negated PID is
// indistinguishable from a numeric signal here, so numerics pass).
func validateKill(segment string) (bool, string) {
	tokens, err := shellparse.Fields(segment)
	if err != nil {
		return false, "could not parse kill command"
	}
	if len(tokens) == 0 {
		return false, "empty kill command"
	}

	for _, tok := range tokens[1:] {
		if !strings.HasPrefix(tok, "-") {
			continue
		}
		if _, ok := allowedKillSignals[tok]; ok {
			continue
		}
		if !isAllDigits(strings.TrimLeft(tok, "-")) {
			return false, fmt.Sprintf("kill signal %s not allowed", tok)
		}
	}

	return true, ""
}

// validatePkill permits pkill only against a fixed set of development
// process names. The target is the final non-flag argument; for a quoted
// target with arguments ("node server.js") the first word is matched.
func validatePkill(segment string) (bool, string) {
	tokens, err := shellparse.Fields(segment)
	if err != nil {
		return false, "could not parse pkill command"
	}
	if len(tokens) == 0 {
		return false, "empty pkill command"
	}

	var args []string
	for _, tok := range tokens[1:] {
		if !strings.HasPrefix(tok, "-") {
			args = append(args, tok)
		}
	}
	if len(args) == 0 {
		return false, "pkill requires a process name"
	}

	target := args[len(args)-1]
	if idx := strings.IndexByte(target, ' '); idx >= 0 {
		target = target[:idx]
	}

	if _, ok := allowedPkillTargets[target]; ok {
		return true, ""
	}
	return false, fmt.Sprintf("pkill only allowed for dev processes: %s", formatNameSet(allowedPkillTargets))
}

// validateChmod permits chmod only in the form `chmod [ugoa]*+x file...`
// with no flags at all.
func validateChmod(segment string) (bool, string) {
	tokens, err := shellparse.Fields(segment)
	if err != nil {
		return false, "could not parse chmod command"
	}
	if len(tokens) == 0 || tokens[0] != "chmod" {
		return false, "not a chmod command"
	}

	var mode string
	var files []string
	for _, tok := range tokens[1:] {
		switch {
		case strings.HasPrefix(tok, "-"):
			return false, "chmod flags are not allowed"
		case mode == "":
			mode = tok
		default:
			files = append(files, tok)
		}
	}

	if mode == "" {
		return false, "chmod requires a mode"
	}
	if len(files) == 0 {
		return false, "chmod requires at least one file"
	}
	if !chmodModePattern.MatchString(mode) {
		return false, fmt.Sprintf("chmod only allowed with +x mode, got: %s", mode)
	}

	return true, ""
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func formatNameSet(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
