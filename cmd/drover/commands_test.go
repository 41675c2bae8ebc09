// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/drover-dev/drover/internal/progress"
	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "drover dev")
}

func TestRunCmd_RejectsBothTaskFlags(t *testing.T) {
	_, err := execute(t, "run",
		"--repo-dir", t.TempDir(),
		"--task", "do something",
		"--task-file", "task.md",
	)
	require.Error(t, err)
	assert.True(t, droverr.HasCode(err, droverr.CodeCLIInputInvalid))
}

func TestRunCmd_RejectsMissingRepoDir(t *testing.T) {
	_, err := execute(t, "run",
		"--repo-dir", filepath.Join(t.TempDir(), "missing"),
		"--task", "do something",
	)
	require.Error(t, err)
	assert.True(t, droverr.HasCode(err, droverr.CodeCLIInputInvalid))
}

func TestStatusCmd_NoTask(t *testing.T) {
	out, err := execute(t, "status", "--repo-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No task")
}

func TestStatusCmd_ShowsProgress(t *testing.T) {
	dir := t.TempDir()
	store := progress.NewStore(dir)
	require.NoError(t, store.SaveTask("refactor the widget pipeline"))
	require.NoError(t, store.Save(progress.Record{
		Status:            progress.StatusInProgress,
		Criteria:          []string{"a", "b", "c", "d"},
		CompletedCriteria: []int{0, 1},
		Sessions:          7,
	}))

	out, err := execute(t, "status", "--repo-dir", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "refactor the widget pipeline")
	assert.Contains(t, out, "in_progress")
	assert.Contains(t, out, "7")
	assert.Contains(t, out, "2/4 (50%)")
}

func TestResolveTask_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.md")
	require.NoError(t, os.WriteFile(path, []byte("implement the importer\n"), 0o644))

	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("task-file", path))

	task, err := resolveTask(cmd)
	require.NoError(t, err)
	assert.Equal(t, "implement the importer", task)
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"run", "status", "secret", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestSecretSetCmd_StoresTrimmedKey(t *testing.T) {
	var stored string
	orig := storeAPIKey
	storeAPIKey = func(value string) error {
		stored = value
		return nil
	}
	t.Cleanup(func() { storeAPIKey = orig })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(bytes.NewBufferString("sk-test-key\n"))
	root.SetArgs([]string{"secret", "set"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "sk-test-key", stored)
	assert.Contains(t, out.String(), "Stored API key")
}
