// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package agent

import "strings"

// Prompt templates use {{NAME}} placeholders substituted at send time. The
// agent records its own progress in the state directory; the continuation
// template points it back there instead of restating prior work.

const firstSessionTemplate = `You are working on an existing codebase. Your task:

{{TASK}}

Before writing code, read the repository structure and existing conventions.
Break the task into concrete acceptance criteria and record them in
.drover/progress.json as a "criteria" list, then set "status" to
"in_progress" and start implementing.

As you complete each criterion, append its index to "completed_criteria".
When every criterion is done and verified, set "status" to "completed".
Keep changes consistent with the project's existing patterns.`

const continuationTemplate = `You are resuming work on an existing task:

{{TASK}}

Read .drover/progress.json to see which acceptance criteria are already
complete, then continue from where the previous session left off. Do not
redo completed work. Update "completed_criteria" as you finish each
criterion, and set "status" to "completed" only when everything is done
and verified.`

// renderTemplate substitutes {{NAME}} placeholders in a template.
func renderTemplate(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}

// FirstSessionPrompt builds the prompt for the first session of a task.
func FirstSessionPrompt(task string) string {
	return renderTemplate(firstSessionTemplate, map[string]string{"TASK": task})
}

// ContinuationPrompt builds the prompt for every session after the first.
func ContinuationPrompt(task string) string {
	return renderTemplate(continuationTemplate, map[string]string{"TASK": task})
}
