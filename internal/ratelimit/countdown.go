// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

package ratelimit

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultCountdownTick is how often the countdown display updates.
const DefaultCountdownTick = 30 * time.Second

// Countdown sleeps for d while rendering a coarse-tick countdown to w,
// updating the same line in place and clearing it on completion. It returns
// early with ctx.Err() if the context is cancelled, after clearing the line.
func Countdown(ctx context.Context, w io.Writer, message string, d, tick time.Duration) error {
	if tick <= 0 {
		tick = DefaultCountdownTick
	}

	remaining := d
	defer clearLine(w)

	for remaining > 0 {
		fmt.Fprintf(w, "\r%s: %s   ", message, formatDuration(remaining))

		step := tick
		if remaining < step {
			step = remaining
		}

		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		remaining -= step
	}

	return nil
}

func clearLine(w io.Writer) {
	fmt.Fprint(w, "\r"+strings.Repeat(" ", 60)+"\r")
}

// formatDuration renders d as HH:MM:SS, or MM:SS when under an hour.
func formatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
