// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package progress persists the durable task and progress state the driver
// resumes from after interruption. All writes are whole-document replaces;
// reads of absent or corrupt documents yield defaults, never errors.
package progress

import (
	"encoding/json"
	"os"
	"path/filepath"

	droverr "github.com/drover-dev/drover/pkg/errors"
)

// DirName is the agent state directory created inside the target repository.
const DirName = ".drover"

const (
	taskFile     = "task.md"
	progressFile = "progress.json"
)

// Status is the task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Record is the persisted progress document. Criteria text is caller-defined
// and stored opaquely; the driver never interprets it.
type Record struct {
	Status            Status   `json:"status"`
	Criteria          []string `json:"criteria"`
	CompletedCriteria []int    `json:"completed_criteria"`
	Sessions          int      `json:"sessions"`
}

// DefaultRecord returns the pending-state record used for fresh starts and
// as the recovery value for corrupt documents.
func DefaultRecord() Record {
	return Record{
		Status:            StatusPending,
		Criteria:          []string{},
		CompletedCriteria: []int{},
		Sessions:          0,
	}
}

// Store reads and writes the task and progress documents under
// <repo>/.drover/. It is the only component that touches these files.
type Store struct {
	repoDir string
}

// NewStore returns a Store rooted at repoDir. The state directory is created
// lazily on first write.
func NewStore(repoDir string) *Store {
	return &Store{repoDir: repoDir}
}

// Dir returns the agent state directory path.
func (s *Store) Dir() string {
	return filepath.Join(s.repoDir, DirName)
}

// Load returns the current progress record. A missing or malformed document
// yields DefaultRecord; corruption never surfaces to the caller.
func (s *Store) Load() Record {
	data, err := os.ReadFile(filepath.Join(s.Dir(), progressFile))
	if err != nil {
		return DefaultRecord()
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return DefaultRecord()
	}

	if rec.Status != StatusPending && rec.Status != StatusInProgress && rec.Status != StatusCompleted {
		return DefaultRecord()
	}
	if rec.Criteria == nil {
		rec.Criteria = []string{}
	}
	if rec.CompletedCriteria == nil {
		rec.CompletedCriteria = []int{}
	}

	return rec
}

// Save atomically replaces the progress document. The record lands fully
// written or not at all, so an interrupt mid-save cannot corrupt state.
func (s *Store) Save(rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return droverr.Wrapf(err, droverr.CodeProgressSaveFailure, "encoding progress record")
	}

	return s.writeAtomic(progressFile, append(data, '\n'))
}

// LoadTask returns the persisted task text. The second return is false when
// no task has been saved.
func (s *Store) LoadTask() (string, bool) {
	data, err := os.ReadFile(filepath.Join(s.Dir(), taskFile))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

// SaveTask persists the task text. The task document is write-once: saving
// over an existing task is a conflict.
func (s *Store) SaveTask(task string) error {
	if _, exists := s.LoadTask(); exists {
		return droverr.New(droverr.CodeProgressTaskExists,
			"a task is already saved; remove "+s.Dir()+" to start over")
	}

	return s.writeAtomic(taskFile, []byte(task))
}

// TaskComplete reports whether the persisted progress document marks the
// task completed. The agent itself writes that status during a session; the
// driver only reads it back.
func (s *Store) TaskComplete() bool {
	return s.Load().Status == StatusCompleted
}

// writeAtomic writes data to name under the state directory via a temp file
// and rename, so readers never observe a partial document.
func (s *Store) writeAtomic(name string, data []byte) error {
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return droverr.Wrapf(err, droverr.CodeProgressSaveFailure, "creating state directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return droverr.Wrapf(err, droverr.CodeProgressSaveFailure, "creating temp file for %s", name)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return droverr.Wrapf(err, droverr.CodeProgressSaveFailure, "writing %s", name)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return droverr.Wrapf(err, droverr.CodeProgressSaveFailure, "closing %s", name)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return droverr.Wrapf(err, droverr.CodeProgressSaveFailure, "replacing %s", name)
	}

	return nil
}
