// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package client

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	droverr "github.com/drover-dev/drover/pkg/errors"
)

// defaultMaxTokens bounds a single response when the config does not.
const defaultMaxTokens = 8192

// AnthropicConfig holds the Anthropic-backed client configuration.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string // optional, useful for testing against a mock server
	Model        string
	SystemPrompt string
	MaxTokens    int
}

// Anthropic implements Client over the Anthropic Messages API stream.
type Anthropic struct {
	client anthropicsdk.Client
	config AnthropicConfig
}

var _ Client = (*Anthropic)(nil)

// NewAnthropic creates an Anthropic-backed client. The API key and model
// must be set.
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, droverr.New(droverr.CodeClientConfigInvalid, "anthropic: missing API key")
	}
	if cfg.Model == "" {
		return nil, droverr.New(droverr.CodeClientConfigInvalid, "anthropic: missing model")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client: anthropicsdk.NewClient(opts...),
		config: cfg,
	}, nil
}

// NewFactory returns a Factory producing a fresh Anthropic client per
// session, so no conversation state leaks between iterations.
func NewFactory(cfg AnthropicConfig) Factory {
	return func() (Client, error) {
		return NewAnthropic(cfg)
	}
}

// Send starts a streaming message with the prompt as the sole user turn and
// converts SDK stream events into Event values on the returned channel.
func (a *Anthropic) Send(ctx context.Context, prompt string) (<-chan Event, error) {
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(a.config.Model),
		MaxTokens: int64(a.config.MaxTokens),
		Messages: []anthropicsdk.MessageParam{
			anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(prompt)),
		},
	}
	if a.config.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: a.config.SystemPrompt},
		}
	}

	events := make(chan Event, 100)

	go func() {
		defer close(events)
		a.stream(ctx, params, events)
	}()

	return events, nil
}

func (a *Anthropic) Close() error { return nil }

// stream runs the SDK streaming loop, accumulating tool-use blocks by index
// until their content_block_stop.
func (a *Anthropic) stream(ctx context.Context, params anthropicsdk.MessageNewParams, events chan<- Event) {
	stream := a.client.Messages.NewStreaming(ctx, params)

	type toolAccum struct {
		id          string
		name        string
		partialJSON string
	}
	toolBlocks := make(map[int64]*toolAccum)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "content_block_start":
			cb := event.ContentBlock
			if cb.Type == "tool_use" {
				toolBlocks[event.Index] = &toolAccum{
					id:   cb.ID,
					name: cb.Name,
				}
			}

		case "content_block_delta":
			delta := event.Delta
			switch delta.Type {
			case "text_delta":
				events <- Event{Type: EventTypeText, Text: delta.Text}
			case "input_json_delta":
				if acc, ok := toolBlocks[event.Index]; ok {
					acc.partialJSON += delta.PartialJSON
				}
			}

		case "content_block_stop":
			if acc, ok := toolBlocks[event.Index]; ok {
				events <- Event{
					Type: EventTypeToolUse,
					ToolUse: &ToolUse{
						ID:    acc.id,
						Name:  acc.name,
						Input: acc.partialJSON,
					},
				}
				delete(toolBlocks, event.Index)
			}

		case "message_stop":
			events <- Event{Type: EventTypeDone}
			return
		}
	}

	if err := stream.Err(); err != nil {
		events <- Event{Type: EventTypeError, Error: err.Error()}
		return
	}

	events <- Event{Type: EventTypeDone}
}
