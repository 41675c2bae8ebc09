// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Drover Contributors

// Package agent runs the resumable session loop: one agent session per
// iteration against a persisted task, with rate-limit backoff, gate-checked
// shell tool use, and progress carried across process restarts.
package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drover-dev/drover/internal/client"
	"github.com/drover-dev/drover/internal/progress"
	"github.com/drover-dev/drover/internal/ratelimit"
	"github.com/drover-dev/drover/internal/security"
	"github.com/drover-dev/drover/internal/store"
	droverr "github.com/drover-dev/drover/pkg/errors"
)

// defaultContinueDelay is the pause between back-to-back sessions.
const defaultContinueDelay = 3 * time.Second

// State is the driver's position in its lifecycle.
type State string

const (
	StateIdle          State = "idle"
	StateFreshStart    State = "fresh_start"
	StateContinuation  State = "continuation"
	StateRunning       State = "running"
	StateAwaitingRetry State = "awaiting_retry"
	StateError         State = "error"
	StateComplete      State = "complete"
	StateStopped       State = "stopped"
)

// Config holds dependencies for the Driver. Factory, Gate, and Progress are
// required; the rest default sensibly.
type Config struct {
	Factory  client.Factory
	Gate     *security.Gate
	Progress *progress.Store
	// Audit is optional; nil disables audit recording.
	Audit *store.AuditLog

	Backoff       ratelimit.Policy
	CountdownTick time.Duration
	ContinueDelay time.Duration
	// MaxIterations caps the loop; zero means unlimited.
	MaxIterations int

	// Out receives session output; the rate-limit detector wraps it for
	// the scope of each session. Defaults to os.Stdout.
	Out    io.Writer
	Logger *slog.Logger
}

// Driver is the top-level session state machine. It owns exactly one task's
// loop; iterations run strictly sequentially.
type Driver struct {
	factory       client.Factory
	gate          *security.Gate
	progress      *progress.Store
	audit         *store.AuditLog
	backoff       ratelimit.Policy
	countdownTick time.Duration
	continueDelay time.Duration
	maxIterations int
	out           io.Writer
	logger        *slog.Logger

	state State
}

// NewDriver validates cfg and constructs a Driver in the Idle state.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.Factory == nil {
		return nil, droverr.New(droverr.CodeSessionClientFailure, "agent: client factory is required")
	}
	if cfg.Gate == nil {
		return nil, droverr.New(droverr.CodeCLISetupFailure, "agent: security gate is required")
	}
	if cfg.Progress == nil {
		return nil, droverr.New(droverr.CodeCLISetupFailure, "agent: progress store is required")
	}

	if cfg.Backoff == (ratelimit.Policy{}) {
		cfg.Backoff = ratelimit.DefaultPolicy()
	}
	if cfg.CountdownTick <= 0 {
		cfg.CountdownTick = ratelimit.DefaultCountdownTick
	}
	if cfg.ContinueDelay <= 0 {
		cfg.ContinueDelay = defaultContinueDelay
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Driver{
		factory:       cfg.Factory,
		gate:          cfg.Gate,
		progress:      cfg.Progress,
		audit:         cfg.Audit,
		backoff:       cfg.Backoff,
		countdownTick: cfg.CountdownTick,
		continueDelay: cfg.ContinueDelay,
		maxIterations: cfg.MaxIterations,
		out:           cfg.Out,
		logger:        cfg.Logger,
		state:         StateIdle,
	}, nil
}

// State reports the driver's current lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Run executes the session loop for task until completion, the iteration
// cap, or context cancellation. When a persisted task exists the loop enters
// as a continuation and task is ignored; otherwise task must be non-empty
// and is persisted before the first session.
func (d *Driver) Run(ctx context.Context, task string) error {
	task, continuation, err := d.enter(task)
	if err != nil {
		return err
	}

	iteration := 0
	for {
		iteration++

		if d.maxIterations > 0 && iteration > d.maxIterations {
			fmt.Fprintf(d.out, "\nReached max iterations (%d). Run again to continue.\n", d.maxIterations)
			d.state = StateStopped
			return nil
		}

		d.printSessionHeader(iteration)

		prompt := ContinuationPrompt(task)
		if !continuation {
			prompt = FirstSessionPrompt(task)
		}
		continuation = true

		d.state = StateRunning
		sessionID := uuid.NewString()
		res := d.runSession(ctx, sessionID, prompt)

		if ctx.Err() != nil {
			d.state = StateStopped
			return droverr.Wrap(ctx.Err(), droverr.CodeSessionInterrupted, "session driver interrupted")
		}

		// A rate-limited attempt does not count as a session; every other
		// outcome consumes one.
		if res.Outcome != OutcomeRateLimit {
			d.bumpSessionCount()
		}
		d.auditOutcome(ctx, sessionID, iteration, res)

		switch res.Outcome {
		case OutcomeComplete:
			d.state = StateComplete
			fmt.Fprintln(d.out, "\n"+strings.Repeat("=", 70))
			fmt.Fprintln(d.out, "  TASK COMPLETE")
			fmt.Fprintln(d.out, strings.Repeat("=", 70))
			d.state = StateStopped
			return nil

		case OutcomeContinue:
			fmt.Fprintf(d.out, "\nContinuing in %s...\n", d.continueDelay)
			if err := d.sleep(ctx, d.continueDelay); err != nil {
				return err
			}

		case OutcomeRateLimit:
			if err := d.awaitRateLimitReset(ctx, res.RawError); err != nil {
				return err
			}
			// Retry the same iteration.
			iteration--

		case OutcomeError:
			d.state = StateError
			d.logger.Error("session failed", "error", res.RawError, "iteration", iteration)
			fmt.Fprintln(d.out, "\nSession encountered an error. Retrying with a fresh session...")
			if err := d.sleep(ctx, d.continueDelay); err != nil {
				return err
			}
		}
	}
}

// enter selects the loop's entry condition: continuation when a persisted
// task exists, fresh start otherwise.
func (d *Driver) enter(task string) (string, bool, error) {
	if existing, ok := d.progress.LoadTask(); ok {
		if strings.TrimSpace(task) != "" && task != existing {
			d.logger.Warn("ignoring new task text, continuing persisted task")
		}
		fmt.Fprintln(d.out, "Continuing existing task...")
		d.state = StateContinuation
		return existing, true, nil
	}

	if strings.TrimSpace(task) == "" {
		return "", false, droverr.New(droverr.CodeSessionTaskMissing,
			"agent: no persisted task and no task text supplied")
	}

	if err := d.progress.SaveTask(task); err != nil {
		return "", false, err
	}

	rec := progress.DefaultRecord()
	rec.Status = progress.StatusInProgress
	if err := d.progress.Save(rec); err != nil {
		return "", false, err
	}

	fmt.Fprintln(d.out, "Starting new task...")
	d.state = StateFreshStart
	return task, false, nil
}

// awaitRateLimitReset plans and performs the backoff for one rate-limit
// event, rendering a countdown while sleeping. Capped waits resume early so
// the next attempt re-plans against the advanced clock.
func (d *Driver) awaitRateLimitReset(ctx context.Context, raw string) error {
	d.state = StateAwaitingRetry

	fmt.Fprintln(d.out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(d.out, "  RATE LIMIT REACHED")
	fmt.Fprintln(d.out, strings.Repeat("=", 70))

	wait := d.backoff.Plan(raw, time.Now())

	message := "Time until retry"
	if !wait.ResetTime.IsZero() {
		retryAt := wait.ResetTime.Add(d.backoff.Buffer)
		fmt.Fprintf(d.out, "\nReset time: %s\n", wait.ResetTime.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(d.out, "Will retry at: %s\n", retryAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintf(d.out, "\nNo reset time found. Waiting %s...\n", wait.Sleep)
	}
	if wait.Capped {
		message = "Next retry window"
	}

	if err := ratelimit.Countdown(ctx, d.out, message, wait.Sleep, d.countdownTick); err != nil {
		d.state = StateStopped
		return droverr.Wrap(err, droverr.CodeSessionInterrupted, "interrupted during rate-limit wait")
	}

	fmt.Fprintln(d.out, strings.Repeat("=", 70))
	return nil
}

// bumpSessionCount increments the persisted session counter. Bookkeeping
// failures are logged, not fatal; the loop itself is the unit of recovery.
func (d *Driver) bumpSessionCount() {
	rec := d.progress.Load()
	rec.Sessions++
	if rec.Status == progress.StatusPending {
		rec.Status = progress.StatusInProgress
	}
	if err := d.progress.Save(rec); err != nil {
		d.logger.Warn("saving session count", "error", err)
	}
}

func (d *Driver) auditOutcome(ctx context.Context, sessionID string, iteration int, res SessionResult) {
	if d.audit == nil {
		return
	}

	err := d.audit.Append(ctx, &store.AuditEntry{
		Action:    store.ActionSessionOutcome,
		SessionID: sessionID,
		Details:   map[string]any{"iteration": iteration},
		Result:    string(res.Outcome),
	})
	if err != nil {
		d.logger.Warn("recording session outcome", "error", err, "session_id", sessionID)
	}
}

func (d *Driver) printSessionHeader(iteration int) {
	fmt.Fprintln(d.out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintf(d.out, "  SESSION %d\n", iteration)
	fmt.Fprintln(d.out, strings.Repeat("=", 70))
	fmt.Fprintln(d.out)
}

// sleep is a context-aware delay; cancellation stops the loop cleanly.
func (d *Driver) sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		d.state = StateStopped
		return droverr.Wrap(ctx.Err(), droverr.CodeSessionInterrupted, "session driver interrupted")
	case <-timer.C:
		return nil
	}
}
