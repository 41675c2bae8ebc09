// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package errors provides structured, coded errors for drover built on
// samber/oops. Every error carries a machine-readable Code plus optional
// structured fields.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeSecretInvalidInput   Code = "secret.invalid_input"
	CodeSecretNotFound       Code = "secret.not_found"
	CodeSecretStoreFailure   Code = "secret.store.failure"
	CodeSecretResolveFailure Code = "secret.resolve.failure"

	CodeGateParseFailure    Code = "security.gate.parse.failure"
	CodeGatePolicyViolation Code = "security.gate.policy.denied"

	CodeClientConfigInvalid  Code = "client.config.invalid_value"
	CodeClientStreamFailure  Code = "client.stream.upstream_failure"
	CodeClientRequestFailure Code = "client.request.upstream_failure"

	CodeSessionTaskMissing   Code = "agent.session.task.invalid_input"
	CodeSessionTaskConflict  Code = "agent.session.task.conflict"
	CodeSessionClientFailure Code = "agent.session.client.failure"
	CodeSessionInterrupted   Code = "agent.session.interrupted"

	CodeProgressSaveFailure Code = "progress.store.save.failure"
	CodeProgressTaskExists  Code = "progress.store.task.conflict"

	CodeAuditOpenFailure   Code = "store.audit.open.failure"
	CodeAuditAppendFailure Code = "store.audit.append.failure"
	CodeAuditQueryFailure  Code = "store.audit.query.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid_input"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldSessionID(value string) Attr {
	return Field("session_id", value)
}

func FieldCommand(value string) Attr {
	return Field("command", value)
}

func FieldIteration(value int) Attr {
	return Field("iteration", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeCLISetupFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsConflict(err error) bool {
	return reason(CodeOf(err)) == "conflict"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsUpstreamFailure(err error) bool {
	return reason(CodeOf(err)) == "upstream_failure"
}

func Join(errs ...error) error {
	return oops.Code(CodeCLISetupFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
