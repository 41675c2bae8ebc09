// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package client defines the agent client interface the session driver
// consumes: send one prompt, receive an ordered stream of typed events.
// A client has no memory across sessions; the driver creates a fresh one
// per iteration via a Factory.
package client

import "context"

// EventType tags the variants of a streamed agent event.
type EventType string

const (
	// EventTypeText is an assistant text delta.
	EventTypeText EventType = "text"
	// EventTypeToolUse is a tool invocation request from the agent.
	EventTypeToolUse EventType = "tool_use"
	// EventTypeToolResult is the host's result for an earlier tool use.
	EventTypeToolResult EventType = "tool_result"
	// EventTypeError is a raw error surfaced by the stream.
	EventTypeError EventType = "error"
	// EventTypeDone marks the end of the session's stream.
	EventTypeDone EventType = "done"
)

// Event is one tagged message from the agent stream. Consumers must treat
// unrecognized types as informational, never fatal.
type Event struct {
	Type       EventType
	Text       string
	ToolUse    *ToolUse
	ToolResult *ToolResult
	Error      string
}

// ToolUse describes a tool invocation request.
type ToolUse struct {
	ID    string
	Name  string
	Input string // JSON
}

// ToolResult carries the outcome of a tool invocation.
type ToolResult struct {
	ToolUseID string
	Content   string
	IsError   bool
}

// Client is one agent session's connection. Send may be called once; the
// returned channel is closed when the stream ends.
type Client interface {
	Send(ctx context.Context, prompt string) (<-chan Event, error)
	Close() error
}

// Factory creates a fresh Client for one session.
type Factory func() (Client, error)
