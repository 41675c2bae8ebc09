// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package client_test

import (
	"testing"

	"github.com/drover-dev/drover/internal/client"
	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropic_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  client.AnthropicConfig
		ok   bool
	}{
		{
			name: "valid config",
			cfg:  client.AnthropicConfig{APIKey: "sk-test", Model: "claude-sonnet-4-5"},
			ok:   true,
		},
		{
			name: "missing api key",
			cfg:  client.AnthropicConfig{Model: "claude-sonnet-4-5"},
		},
		{
			name: "missing model",
			cfg:  client.AnthropicConfig{APIKey: "sk-test"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := client.NewAnthropic(tt.cfg)
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, c)
				return
			}
			require.Error(t, err)
			assert.True(t, droverr.HasCode(err, droverr.CodeClientConfigInvalid))
		})
	}
}

func TestNewFactory_FreshClientPerSession(t *testing.T) {
	factory := client.NewFactory(client.AnthropicConfig{APIKey: "sk-test", Model: "claude-sonnet-4-5"})

	first, err := factory()
	require.NoError(t, err)
	second, err := factory()
	require.NoError(t, err)

	assert.NotSame(t, first, second)
}
