// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package shellparse decomposes shell command strings into segments and
// invoked program names without executing anything. It understands quoting,
// chaining operators, and enough of shell token classification to answer one
// question: which programs would this command run?
package shellparse

import (
	"path/filepath"
	"strings"
	"unicode"

	droverr "github.com/drover-dev/drover/pkg/errors"
)

// reservedWords are shell keywords that never name an invoked program and are
// skipped during token classification.
var reservedWords = map[string]struct{}{
	"if": {}, "then": {}, "else": {}, "elif": {}, "fi": {},
	"for": {}, "while": {}, "until": {}, "do": {}, "done": {},
	"case": {}, "esac": {}, "in": {}, "!": {}, "{": {}, "}": {},
}

// Segments splits a compound command on top-level `;`, `&&`, and `||`.
// Boundary characters inside single- or double-quoted spans are not
// boundaries. Empty segments are dropped; an empty or whitespace-only
// command yields zero segments.
func Segments(command string) []string {
	var segments []string
	var cur strings.Builder

	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			segments = append(segments, s)
		}
		cur.Reset()
	}

	runes := []rune(command)
	inSingle, inDouble, escaped := false, false, false

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		if escaped {
			cur.WriteRune(c)
			escaped = false
			continue
		}

		switch {
		case c == '\\' && !inSingle:
			cur.WriteRune(c)
			escaped = true
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteRune(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteRune(c)
		case c == ';' && !inSingle && !inDouble:
			flush()
		case (c == '&' || c == '|') && !inSingle && !inDouble && i+1 < len(runes) && runes[i+1] == c:
			flush()
			i++
		default:
			cur.WriteRune(c)
		}
	}
	flush()

	return segments
}

// Fields splits one segment into shell words. Quoted substrings become single
// tokens with the quotes removed; unquoted `|`, `||`, `&`, and `&&` are
// emitted as their own operator tokens. An unterminated quote or trailing
// escape is a hard parse failure.
func Fields(segment string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	pending := false

	flush := func() {
		if pending {
			tokens = append(tokens, cur.String())
			cur.Reset()
			pending = false
		}
	}

	runes := []rune(segment)

	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch {
		case c == '\'':
			pending = true
			i++
			for i < len(runes) && runes[i] != '\'' {
				cur.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, droverr.New(droverr.CodeGateParseFailure, "unterminated single quote")
			}

		case c == '"':
			pending = true
			i++
			for i < len(runes) && runes[i] != '"' {
				if runes[i] == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\') {
					i++
				}
				cur.WriteRune(runes[i])
				i++
			}
			if i >= len(runes) {
				return nil, droverr.New(droverr.CodeGateParseFailure, "unterminated double quote")
			}

		case c == '\\':
			if i+1 >= len(runes) {
				return nil, droverr.New(droverr.CodeGateParseFailure, "trailing escape character")
			}
			i++
			cur.WriteRune(runes[i])
			pending = true

		case unicode.IsSpace(c):
			flush()

		case c == '|' || c == '&':
			flush()
			op := string(c)
			if i+1 < len(runes) && runes[i+1] == c {
				op += string(c)
				i++
			}
			tokens = append(tokens, op)

		default:
			cur.WriteRune(c)
			pending = true
		}
	}
	flush()

	return tokens, nil
}

// Invocations extracts the invoked program basenames from a full command
// string, in order. Operator tokens reset command position; reserved words,
// flag-like tokens, and environment assignments are skipped without consuming
// it. A parse failure in any segment fails the whole extraction.
func Invocations(command string) ([]string, error) {
	var invocations []string

	for _, segment := range Segments(command) {
		tokens, err := Fields(segment)
		if err != nil {
			return nil, err
		}

		expectCommand := true
		for _, tok := range tokens {
			switch {
			case isOperator(tok):
				expectCommand = true
			case isReservedWord(tok):
				// skipped; next real token is still a command name
			case strings.HasPrefix(tok, "-"):
				// flag
			case isAssignment(tok):
				// NAME=value prefix
			default:
				if expectCommand {
					invocations = append(invocations, filepath.Base(tok))
					expectCommand = false
				}
			}
		}
	}

	return invocations, nil
}

func isOperator(tok string) bool {
	switch tok {
	case "|", "||", "&", "&&":
		return true
	default:
		return false
	}
}

func isReservedWord(tok string) bool {
	_, ok := reservedWords[tok]
	return ok
}

// isAssignment reports whether tok is an environment assignment such as
// NAME=value. A token that itself starts with "=" is not an assignment.
func isAssignment(tok string) bool {
	return strings.Contains(tok, "=") && !strings.HasPrefix(tok, "=")
}
