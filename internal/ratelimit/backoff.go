// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package ratelimit

import (
	"regexp"
	"time"
)

// resetTimeLayout is the literal timestamp format embedded in rate-limit
// error messages.
const resetTimeLayout = "2006-01-02 15:04:05"

var resetTimePattern = regexp.MustCompile(`reset at (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)

// Policy holds the backoff scheduling knobs. The zero value is not usable;
// construct with DefaultPolicy and override as needed.
type Policy struct {
	// DefaultWait applies when no reset time can be parsed.
	DefaultWait time.Duration
	// Buffer is added after the reset time before retrying.
	Buffer time.Duration
	// ResumeInterval caps a single sleep; longer waits are split into
	// resume attempts.
	ResumeInterval time.Duration
}

// DefaultPolicy returns the standard backoff policy: 30 minute default wait,
// 60 second post-reset buffer, 30 minute resume interval.
func DefaultPolicy() Policy {
	return Policy{
		DefaultWait:    30 * time.Minute,
		Buffer:         time.Minute,
		ResumeInterval: 30 * time.Minute,
	}
}

// Wait is one sleep instruction produced by Plan.
type Wait struct {
	// Sleep is how long to sleep before retrying.
	Sleep time.Duration
	// Capped is true when Sleep was truncated to the resume interval; the
	// caller should retry after sleeping and re-plan if still limited.
	Capped bool
	// ResetTime is the parsed reset timestamp, zero if none was found.
	ResetTime time.Time
}

// ParseResetTime extracts the reset timestamp from a raw rate-limit error
// message. The second return is false when no parsable timestamp is present.
func ParseResetTime(raw string) (time.Time, bool) {
	m := resetTimePattern.FindStringSubmatch(raw)
	if m == nil {
		return time.Time{}, false
	}

	ts, err := time.ParseInLocation(resetTimeLayout, m[1], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Plan computes the next sleep instruction for a rate-limit error observed
// at now. When the computed wait exceeds the resume interval only the
// interval is slept; re-planning after it elapses naturally shrinks the
// remaining wait as now advances toward the reset time.
func (p Policy) Plan(raw string, now time.Time) Wait {
	reset, ok := ParseResetTime(raw)
	if !ok {
		return p.capped(p.DefaultWait, time.Time{})
	}

	wait := reset.Sub(now)
	if wait < 0 {
		wait = 0
	}
	wait += p.Buffer

	return p.capped(wait, reset)
}

func (p Policy) capped(wait time.Duration, reset time.Time) Wait {
	if wait > p.ResumeInterval {
		return Wait{Sleep: p.ResumeInterval, Capped: true, ResetTime: reset}
	}
	return Wait{Sleep: wait, ResetTime: reset}
}
