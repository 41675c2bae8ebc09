// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package agent_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/drover-dev/drover/internal/client"
	"github.com/drover-dev/drover/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSingleSession drives one completing session over the given events and
// returns the rendered output.
func runSingleSession(t *testing.T, events []client.Event) string {
	t.Helper()

	store := progress.NewStore(t.TempDir())
	var out bytes.Buffer

	c := &scriptedClient{events: events, onSend: markCompleted(t, store)}
	d := newTestDriver(t, store, &out, scriptedFactory(t, c), 0)

	require.NoError(t, d.Run(context.Background(), "exercise the event loop"))
	return out.String()
}

func TestSession_RendersAssistantText(t *testing.T) {
	out := runSingleSession(t, []client.Event{
		{Type: client.EventTypeText, Text: "Reading the repo layout."},
		{Type: client.EventTypeText, Text: " Now editing."},
	})

	assert.Contains(t, out, "Reading the repo layout. Now editing.")
}

func TestSession_AllowedBashCommandIsEchoed(t *testing.T) {
	out := runSingleSession(t, []client.Event{
		{Type: client.EventTypeToolUse, ToolUse: &client.ToolUse{
			ID:    "tu-1",
			Name:  "Bash",
			Input: `{"command":"git status"}`,
		}},
	})

	assert.Contains(t, out, "[Tool: Bash]")
	assert.Contains(t, out, "git status")
	assert.NotContains(t, out, "[BLOCKED]")
}

func TestSession_DisallowedBashCommandIsBlocked(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{
			name:   "block/unlisted-command",
			input:  `{"command":"rm -rf build"}`,
			reason: `"rm" is not in the allowed commands list`,
		},
		{
			name:   "block/chained-unlisted-command",
			input:  `{"command":"ls && sudo reboot"}`,
			reason: `"sudo" is not in the allowed commands list`,
		},
		{
			name:   "block/disallowed-kill-signal",
			input:  `{"command":"kill -KILL 1234"}`,
			reason: "not allowed",
		},
		{
			name:   "block/malformed-tool-input",
			input:  `not json at all`,
			reason: "could not parse command for security validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runSingleSession(t, []client.Event{
				{Type: client.EventTypeToolUse, ToolUse: &client.ToolUse{
					ID:    "tu-1",
					Name:  "Bash",
					Input: tt.input,
				}},
			})

			assert.Contains(t, out, "[BLOCKED]")
			assert.Contains(t, out, tt.reason)
		})
	}
}

func TestSession_NonBashToolsAreNotGated(t *testing.T) {
	out := runSingleSession(t, []client.Event{
		{Type: client.EventTypeToolUse, ToolUse: &client.ToolUse{
			ID:    "tu-1",
			Name:  "Write",
			Input: `{"file_path":"main.go","content":"package main"}`,
		}},
	})

	assert.Contains(t, out, "[Tool: Write]")
	assert.NotContains(t, out, "[BLOCKED]")
}

func TestSession_LongToolInputIsTruncated(t *testing.T) {
	long := strings.Repeat("x", 400)
	out := runSingleSession(t, []client.Event{
		{Type: client.EventTypeToolUse, ToolUse: &client.ToolUse{
			ID:    "tu-1",
			Name:  "Bash",
			Input: `{"command":"echo ` + long + `"}`,
		}},
	})

	assert.Contains(t, out, "...")
	assert.NotContains(t, out, long)
}

func TestSession_ToolResultRendering(t *testing.T) {
	tests := []struct {
		name   string
		result client.ToolResult
		want   string
	}{
		{
			name:   "result/success",
			result: client.ToolResult{ToolUseID: "tu-1", Content: "ok"},
			want:   "[Done]",
		},
		{
			name:   "result/error",
			result: client.ToolResult{ToolUseID: "tu-1", Content: "exit status 1", IsError: true},
			want:   "[Error] exit status 1",
		},
		{
			name:   "result/blocked-by-host",
			result: client.ToolResult{ToolUseID: "tu-1", Content: "command blocked by policy", IsError: true},
			want:   "[BLOCKED] command blocked by policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runSingleSession(t, []client.Event{
				{Type: client.EventTypeToolResult, ToolResult: &tt.result},
			})
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestSession_UnrecognizedEventTypesAreIgnored(t *testing.T) {
	out := runSingleSession(t, []client.Event{
		{Type: client.EventType("telemetry"), Text: "ignored"},
		{Type: client.EventTypeText, Text: "still running"},
	})

	assert.Contains(t, out, "still running")
	assert.NotContains(t, out, "telemetry")
}

func TestSession_RateLimitInsideToolResultDetected(t *testing.T) {
	store := progress.NewStore(t.TempDir())
	var out bytes.Buffer

	limited := &scriptedClient{events: []client.Event{
		{Type: client.EventTypeToolResult, ToolResult: &client.ToolResult{
			ToolUseID: "tu-1",
			Content:   `{"type":"error","error":{"type":"1308","message":"reset at 2020-03-01 08:30:00"}`,
			IsError:   true,
		}},
	}}
	recovered := &scriptedClient{onSend: markCompleted(t, store)}
	d := newTestDriver(t, store, &out, scriptedFactory(t, limited, recovered), 0)

	require.NoError(t, d.Run(context.Background(), "watch for throttling"))

	assert.Contains(t, out.String(), "RATE LIMIT REACHED")
	assert.Equal(t, 1, store.Load().Sessions)
}
