// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/drover-dev/drover/internal/progress"
	"github.com/drover-dev/drover/internal/store"
	"github.com/spf13/cobra"
)

const taskPreviewLen = 200

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task progress and recent audit entries",
		RunE:  runStatus,
	}

	cmd.Flags().String("repo-dir", ".", "repository to inspect")
	cmd.Flags().Int("audit-limit", 10, "number of recent audit entries to show")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	repoDir, _ := cmd.Flags().GetString("repo-dir")
	auditLimit, _ := cmd.Flags().GetInt("audit-limit")

	progressStore := progress.NewStore(repoDir)

	task, ok := progressStore.LoadTask()
	if !ok {
		fmt.Fprintln(out, dimStyle.Render("No task in "+progressStore.Dir()))
		return nil
	}

	preview := task
	if len(preview) > taskPreviewLen {
		preview = preview[:taskPreviewLen] + "..."
	}
	fmt.Fprintln(out, titleStyle.Render("Task")+"\n"+preview)

	printProgressSummary(out, progressStore)
	printRecentAudit(cmd, out, progressStore.Dir(), auditLimit)
	return nil
}

// printProgressSummary renders status, session count, and criteria progress.
func printProgressSummary(out io.Writer, progressStore *progress.Store) {
	rec := progressStore.Load()

	statusLine := string(rec.Status)
	if rec.Status == progress.StatusCompleted {
		statusLine = successStyle.Render(statusLine)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, dimStyle.Render("Status:   ")+statusLine)
	fmt.Fprintln(out, dimStyle.Render("Sessions: ")+fmt.Sprintf("%d", rec.Sessions))

	if len(rec.Criteria) == 0 {
		fmt.Fprintln(out, dimStyle.Render("Criteria: ")+"not yet defined")
		return
	}

	done := len(rec.CompletedCriteria)
	total := len(rec.Criteria)
	pct := float64(done) / float64(total) * 100
	fmt.Fprintln(out, dimStyle.Render("Criteria: ")+fmt.Sprintf("%d/%d (%.0f%%)", done, total, pct))
}

func printRecentAudit(cmd *cobra.Command, out io.Writer, stateDir string, limit int) {
	dbPath := filepath.Join(stateDir, "audit.db")
	if _, err := os.Stat(dbPath); err != nil {
		return
	}

	auditLog, err := store.OpenAuditLog(dbPath)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("audit log unavailable: "+err.Error()))
		return
	}
	defer func() { _ = auditLog.Close() }()

	entries, err := auditLog.Recent(cmd.Context(), limit)
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("reading audit log: "+err.Error()))
		return
	}
	if len(entries) == 0 {
		return
	}

	fmt.Fprintln(out, "\n"+titleStyle.Render("Recent activity"))
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-16s %s", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action, e.Result)
		if e.Result == "block" {
			line = errorStyle.Render(line)
		}
		fmt.Fprintln(out, line)
	}
}
