// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/drover-dev/drover/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *store.AuditLog {
	t.Helper()
	log, err := store.OpenAuditLog(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func TestAuditLog_AppendAndRecent(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	for i, result := range []string{"continue", "rate_limit", "complete"} {
		err := log.Append(ctx, &store.AuditEntry{
			ID:        uuid.New().String(),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Action:    store.ActionSessionOutcome,
			SessionID: "sess-1",
			Details:   map[string]any{"iteration": float64(i + 1)},
			Result:    result,
		})
		require.NoError(t, err)
	}

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Most recent first.
	assert.Equal(t, "complete", entries[0].Result)
	assert.Equal(t, "continue", entries[2].Result)
	assert.Equal(t, store.ActionSessionOutcome, entries[0].Action)
	assert.Equal(t, base.Add(2*time.Minute), entries[0].Timestamp)
	assert.Equal(t, float64(3), entries[0].Details["iteration"])
}

func TestAuditLog_RecentLimit(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(ctx, &store.AuditEntry{
			ID:        uuid.New().String(),
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
			Action:    store.ActionGateDecision,
			Result:    "block",
		}))
	}

	entries, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestAuditLog_EmptyLog(t *testing.T) {
	log := openTestLog(t)

	entries, err := log.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
