// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package ratelimit detects API rate-limit errors in streamed agent output
// and plans the wait-and-retry schedule around their reset timestamps.
package ratelimit

import (
	"io"
	"regexp"
	"sync"
)

// apiErrorPattern matches the structured API error shape, for example:
//
//	{"type":"error","error":{"type":"1308","message":"Usage limit reached. Your limit will reset at 2025-12-11 18:18:44"}
//
// Only this shape counts. Plain mentions of "error" in agent commentary or
// command output must never match.
var apiErrorPattern = regexp.MustCompile(`"type"\s*:\s*"error".*"message"\s*:\s*"[^"]*reset at \d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)

// Buffer bounds: once the rolling buffer exceeds maxBufferLen it is trimmed
// to the most recent trimToLen characters. Trimming only affects future
// matching; a recorded match is sticky.
const (
	maxBufferLen = 2000
	trimToLen    = 1000
)

// Detector accumulates streamed text in a bounded rolling buffer and flags
// the structured rate-limit error shape, even when the shape is split across
// writes. One Detector serves exactly one session.
type Detector struct {
	mu       sync.Mutex
	buf      string
	detected bool
	raw      string
}

// NewDetector returns a Detector with an empty buffer.
func NewDetector() *Detector {
	return &Detector{}
}

// Scan appends chunk to the rolling buffer and checks for a match. Once a
// match fires it is sticky for the detector's lifetime and the matched raw
// text is retained for timestamp extraction.
func (d *Detector) Scan(chunk string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf += chunk

	if !d.detected && apiErrorPattern.MatchString(d.buf) {
		d.detected = true
		d.raw = d.buf
	}

	if len(d.buf) > maxBufferLen {
		d.buf = d.buf[len(d.buf)-trimToLen:]
	}
}

// Detected reports whether the rate-limit shape has been seen.
func (d *Detector) Detected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detected
}

// Message returns the raw buffered text at the moment of detection, or ""
// if nothing was detected.
func (d *Detector) Message() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.raw
}

// Intercept wraps w so that every chunk written through it is scanned before
// being passed along. The wrapper is scoped to the caller: dropping it
// restores direct writes, so a session can never leak a wrapped sink into
// the next one.
func (d *Detector) Intercept(w io.Writer) io.Writer {
	return &interceptWriter{detector: d, next: w}
}

type interceptWriter struct {
	detector *Detector
	next     io.Writer
}

func (w *interceptWriter) Write(p []byte) (int, error) {
	w.detector.Scan(string(p))
	return w.next.Write(p)
}

// IsRateLimitText reports whether text on its own contains the structured
// rate-limit error shape. Stateless companion to Detector for one-shot
// checks of raw error strings.
func IsRateLimitText(text string) bool {
	return apiErrorPattern.MatchString(text)
}
