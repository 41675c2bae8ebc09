// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/drover-dev/drover/internal/client"
	"github.com/drover-dev/drover/internal/ratelimit"
	"github.com/drover-dev/drover/internal/store"
)

// bashToolName is the shell tool every command-gate check applies to. Other
// tool uses are echoed but never gated.
const bashToolName = "Bash"

const (
	toolInputPreviewLen   = 200
	toolErrorPreviewLen   = 500
	streamErrorPreviewLen = 500
)

// Outcome classifies how one session ended.
type Outcome string

const (
	// OutcomeContinue means the session finished normally with more work left.
	OutcomeContinue Outcome = "continue"
	// OutcomeComplete means the persisted progress record reports the task done.
	OutcomeComplete Outcome = "complete"
	// OutcomeRateLimit means a rate-limit error was detected in the stream.
	OutcomeRateLimit Outcome = "rate_limit"
	// OutcomeError means the session failed for an unclassified reason.
	OutcomeError Outcome = "error"
)

// SessionResult is the classified result of one agent session.
type SessionResult struct {
	Outcome  Outcome
	Response string
	// RawError holds the raw rate-limit or error text for backoff planning.
	RawError string
}

// runSession executes one agent session: fresh client, one prompt, full
// event-stream consumption with the rate-limit detector wrapped around the
// session's output writer. The interception scope is exactly this call; the
// detector is never shared across sessions.
func (d *Driver) runSession(ctx context.Context, sessionID, prompt string) SessionResult {
	detector := ratelimit.NewDetector()
	w := detector.Intercept(d.out)

	cli, err := d.factory()
	if err != nil {
		return d.classifyFailure(detector, err.Error())
	}
	defer func() {
		if cerr := cli.Close(); cerr != nil {
			d.logger.Warn("closing agent client", "error", cerr, "session_id", sessionID)
		}
	}()

	fmt.Fprintln(w, "Sending prompt to agent...")
	fmt.Fprintln(w)

	events, err := cli.Send(ctx, prompt)
	if err != nil {
		return d.classifyFailure(detector, err.Error())
	}

	var response strings.Builder
	var streamErr string

	for ev := range events {
		switch ev.Type {
		case client.EventTypeText:
			response.WriteString(ev.Text)
			fmt.Fprint(w, ev.Text)

		case client.EventTypeToolUse:
			d.handleToolUse(ctx, w, sessionID, ev.ToolUse)

		case client.EventTypeToolResult:
			d.handleToolResult(w, detector, ev.ToolResult)

		case client.EventTypeError:
			// Previews truncate, so scan the full text before printing.
			detector.Scan(ev.Error)
			streamErr = ev.Error
			fmt.Fprintf(w, "\n[Stream Error] %s\n", preview(ev.Error, streamErrorPreviewLen))

		case client.EventTypeDone:

		default:
			// Unrecognized event types are informational, never fatal.
			d.logger.Debug("ignoring unrecognized event type", "type", string(ev.Type))
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("-", 70))

	switch {
	case detector.Detected():
		return SessionResult{Outcome: OutcomeRateLimit, Response: response.String(), RawError: detector.Message()}
	case streamErr != "":
		return SessionResult{Outcome: OutcomeError, Response: response.String(), RawError: streamErr}
	case d.progress.TaskComplete():
		return SessionResult{Outcome: OutcomeComplete, Response: response.String()}
	default:
		return SessionResult{Outcome: OutcomeContinue, Response: response.String()}
	}
}

// classifyFailure maps a pre-stream or transport failure onto an outcome,
// preferring rate_limit when the text carries the structured error shape.
func (d *Driver) classifyFailure(detector *ratelimit.Detector, text string) SessionResult {
	detector.Scan(text)
	if detector.Detected() {
		return SessionResult{Outcome: OutcomeRateLimit, RawError: detector.Message()}
	}
	return SessionResult{Outcome: OutcomeError, RawError: text}
}

// handleToolUse echoes a tool invocation and, for the shell tool, consults
// the security gate and records any block in the audit log. The gate decides
// before anything executes; a blocked command is surfaced to the operator
// with the gate's reason.
func (d *Driver) handleToolUse(ctx context.Context, w io.Writer, sessionID string, tu *client.ToolUse) {
	if tu == nil {
		return
	}

	if tu.Name != bashToolName {
		fmt.Fprintf(w, "\n[Tool: %s]\n", tu.Name)
		fmt.Fprintf(w, "   Input: %s\n", preview(tu.Input, toolInputPreviewLen))
		return
	}

	command, _ := commandFromToolInput(tu.Input)
	decision := d.gate.Decide(command)
	if !decision.Allow {
		fmt.Fprintf(w, "\n[BLOCKED] %s\n", decision.Reason)
		d.auditGateBlock(ctx, sessionID, command, decision.Reason)
		return
	}

	fmt.Fprintf(w, "\n[Tool: %s]\n", tu.Name)
	fmt.Fprintf(w, "   Input: %s\n", preview(command, toolInputPreviewLen))
}

// handleToolResult renders a tool result line and feeds its full content to
// the detector, since rate-limit errors can surface inside results.
func (d *Driver) handleToolResult(w io.Writer, detector *ratelimit.Detector, tr *client.ToolResult) {
	if tr == nil {
		return
	}

	detector.Scan(tr.Content)

	switch {
	case strings.Contains(strings.ToLower(tr.Content), "blocked"):
		fmt.Fprintf(w, "   [BLOCKED] %s\n", tr.Content)
	case tr.IsError:
		fmt.Fprintf(w, "   [Error] %s\n", preview(tr.Content, toolErrorPreviewLen))
	default:
		fmt.Fprintln(w, "   [Done]")
	}
}

// commandFromToolInput extracts the command string from the shell tool's
// JSON input. Malformed input yields an empty command, which the gate
// blocks as a parse failure.
func commandFromToolInput(input string) (string, bool) {
	var payload struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return "", false
	}
	return payload.Command, payload.Command != ""
}

func (d *Driver) auditGateBlock(ctx context.Context, sessionID, command, reason string) {
	if d.audit == nil {
		return
	}

	err := d.audit.Append(ctx, &store.AuditEntry{
		Action:    store.ActionGateDecision,
		SessionID: sessionID,
		Details:   map[string]any{"command": command, "reason": reason},
		Result:    "block",
	})
	if err != nil {
		d.logger.Warn("recording gate decision", "error", err, "session_id", sessionID)
	}
}

func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
