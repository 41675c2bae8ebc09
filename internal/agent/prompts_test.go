// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrompts_SubstituteTask(t *testing.T) {
	first := FirstSessionPrompt("build the exporter")
	cont := ContinuationPrompt("build the exporter")

	assert.Contains(t, first, "build the exporter")
	assert.Contains(t, cont, "build the exporter")
	assert.NotContains(t, first, "{{TASK}}")
	assert.NotContains(t, cont, "{{TASK}}")

	// Both templates steer the agent to the same progress record.
	assert.Contains(t, first, ".drover/progress.json")
	assert.Contains(t, cont, ".drover/progress.json")
}
