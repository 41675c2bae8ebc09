// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package errors_test

import (
	stderrors "errors"
	"testing"

	droverr "github.com/drover-dev/drover/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CarriesCodeAndFields(t *testing.T) {
	err := droverr.New(droverr.CodeGatePolicyViolation, "command blocked",
		droverr.FieldCommand("rm -rf /"),
		droverr.FieldSessionID("sess-1"),
	)
	require.Error(t, err)

	assert.Equal(t, droverr.CodeGatePolicyViolation, droverr.CodeOf(err))
	assert.True(t, droverr.HasCode(err, droverr.CodeGatePolicyViolation))

	fields := droverr.FieldsOf(err)
	assert.Equal(t, "rm -rf /", fields["command"])
	assert.Equal(t, "sess-1", fields["session_id"])
}

func TestWrap_NilPassthrough(t *testing.T) {
	assert.NoError(t, droverr.Wrap(nil, droverr.CodeProgressSaveFailure, "saving"))
	assert.NoError(t, droverr.Wrapf(nil, droverr.CodeProgressSaveFailure, "saving %s", "x"))
	assert.NoError(t, droverr.With(nil, droverr.Field("k", "v")))
}

func TestWrapf_PreservesChain(t *testing.T) {
	base := stderrors.New("disk full")
	err := droverr.Wrapf(base, droverr.CodeProgressSaveFailure, "saving progress")

	require.Error(t, err)
	assert.Equal(t, droverr.CodeProgressSaveFailure, droverr.CodeOf(err))
	assert.ErrorIs(t, err, base)
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, droverr.Code(""), droverr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, droverr.Code(""), droverr.CodeOf(nil))
}

func TestReasonClassifiers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want func(error) bool
	}{
		{
			name: "not_found/secret lookup",
			err:  droverr.Errorf(droverr.CodeSecretNotFound, "secret missing"),
			want: droverr.IsNotFound,
		},
		{
			name: "conflict/task already saved",
			err:  droverr.Errorf(droverr.CodeProgressTaskExists, "task exists"),
			want: droverr.IsConflict,
		},
		{
			name: "invalid_input/missing task",
			err:  droverr.Errorf(droverr.CodeSessionTaskMissing, "no task"),
			want: droverr.IsInvalidInput,
		},
		{
			name: "upstream_failure/stream error",
			err:  droverr.Errorf(droverr.CodeClientStreamFailure, "stream broke"),
			want: droverr.IsUpstreamFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want(tt.err))
		})
	}
}

func TestJoin_CollectsErrors(t *testing.T) {
	a := stderrors.New("first")
	b := stderrors.New("second")

	err := droverr.Join(a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, a)
	assert.ErrorIs(t, err, b)
}
