// Package ux renders the scheduler's progress to the terminal. The
// scheduler reports its run narration through the Reporter interface below
// (spec.md treats the user-facing display as an external, swappable concern
// that merely receives events); a few warnings in the scheduler, and the
// init, diagnose and command-line output, are still printed directly.
//
// Grounded on the teacher's internal/ux package: the same ANSI palette and
// phrasing, generalized from a fixed phase-index/total model to the
// graph-based completed/remaining model this workflow uses.
package ux

import "time"

// Reporter receives the events the scheduler emits over one run. All
// implementations must treat every method as non-blocking best-effort: a
// slow terminal must never back-pressure the stream runner (spec.md §4.4).
type Reporter interface {
	// PhaseBanner announces the start of one iteration.
	PhaseBanner(phase string, subTaskNumber, totalSubTasks, retryCount, maxRetries int)
	// Text forwards a chunk of the child's assistant output.
	Text(chunk string)
	// ToolUse reports a one-line tool-call summary.
	ToolUse(summary string)
	// SessionID reports the child's session id once captured.
	SessionID(id string)
	// RateLimitWait reports a rate-limit countdown; called once per tick.
	RateLimitWait(remaining, attempt, maxAttempts int)
	// TransientWait reports a transient-error backoff wait.
	TransientWait(remaining, attempt int, reason string)
	// PhaseRetry reports that a phase is about to be retried.
	PhaseRetry(phase string, attempt, max int, summary string)
	// PhaseDone reports a completed phase and its duration.
	PhaseDone(phase string, duration time.Duration)
	// Halted reports that the scheduler is stopping without completing.
	Halted(reason string)
	// Completed reports a successful, full run.
	Completed(iterations int)
	// ResumeHint reports how to resume this run later.
	ResumeHint(workingDir string)
}
