// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/drover-dev/drover/internal/config"
	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the coding agent against a repository",
		Long: "Start (or resume) the session loop for a task. With an existing task in " +
			".drover/, the loop continues it and any newly supplied task text is ignored.",
		RunE: runRun,
	}

	cmd.Flags().String("repo-dir", ".", "repository to work on")
	cmd.Flags().String("task", "", "task description")
	cmd.Flags().String("task-file", "", "file containing the task description")
	cmd.Flags().Int("max-iterations", 0, "maximum sessions before stopping (0 = unlimited)")
	cmd.Flags().String("model", "", "override the configured model")
	_ = viper.BindPFlag("agent.max_iterations", cmd.Flags().Lookup("max-iterations"))
	_ = viper.BindPFlag("anthropic.model", cmd.Flags().Lookup("model"))

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	repoDir, _ := cmd.Flags().GetString("repo-dir")
	if err := validateRepo(repoDir, out); err != nil {
		return err
	}

	task, err := resolveTask(cmd)
	if err != nil {
		return err
	}

	rt, err := WireRuntime(cfg, repoDir, out)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	banner := titleStyle.Render("DROVER") + "\n" +
		dimStyle.Render("Repository: ") + repoDir + "\n" +
		dimStyle.Render("Model:      ") + cfg.Anthropic.Model + "\n" +
		dimStyle.Render("Iterations: ") + iterationsLabel(cfg.Agent.MaxIterations)
	fmt.Fprintln(out, boxStyle.Render(banner))

	// SIGINT/SIGTERM cancel the context; the driver stops cleanly between
	// sessions and the persisted state resumes the task on the next run.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Driver.Run(ctx, task); err != nil {
		if droverr.HasCode(err, droverr.CodeSessionInterrupted) {
			fmt.Fprintln(out, warnStyle.Render("\nInterrupted. Run `drover run` again to resume this task."))
			return nil
		}
		return err
	}

	printProgressSummary(out, rt.Progress)
	return nil
}

// resolveTask reads the task text from --task or --task-file. Both set is an
// error; both empty is fine when a persisted task exists (the driver decides).
func resolveTask(cmd *cobra.Command) (string, error) {
	task, _ := cmd.Flags().GetString("task")
	taskFile, _ := cmd.Flags().GetString("task-file")

	if task != "" && taskFile != "" {
		return "", droverr.New(droverr.CodeCLIInputInvalid, "use either --task or --task-file, not both")
	}

	if taskFile != "" {
		data, err := os.ReadFile(taskFile)
		if err != nil {
			return "", droverr.Errorf(droverr.CodeCLIInputInvalid, "reading task file: %w", err)
		}
		task = string(data)
	}

	return strings.TrimSpace(task), nil
}

func iterationsLabel(max int) string {
	if max > 0 {
		return fmt.Sprintf("%d", max)
	}
	return "unlimited (runs until the task completes)"
}
