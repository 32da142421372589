package scheduler

import (
	"context"
	"fmt"

	"github.com/Hawkynt/CloudForge/internal/agentstream"
	"github.com/Hawkynt/CloudForge/internal/ratelimit"
)

// maxRateLimitAttempts bounds how many times a single phase invocation will
// wait out a detected rate limit before the scheduler halts (spec.md §4.8).
const maxRateLimitAttempts = 5

// invokeWithRetries runs one phase's child invocation, transparently
// retrying through rate-limit and transient-error waits (spec.md §4.3's
// integration into the per-iteration sequence). The returned error is only
// set when the retry budget is exhausted, a single rate-limit wait would
// exceed RateLimitWaitMax, or the context is cancelled; a
// crashed or otherwise-failed child is returned as a normal Result for the
// caller to classify.
func (sc *Scheduler) invokeWithRetries(ctx context.Context, sessionID string, isFirst bool, promptText string) (agentstream.Result, string, error) {
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return agentstream.Result{}, sessionID, err
		}

		inv := agentstream.Invocation{
			CliPath:    sc.CliPath,
			Prompt:     promptText,
			SessionID:  sessionID,
			IsFirst:    isFirst,
			Model:      sc.Model,
			MaxTurns:   sc.MaxTurns,
			WorkingDir: sc.WorkingDir,
		}
		emit := agentstream.Emitter{
			OnText:      sc.Reporter.Text,
			OnToolUse:   sc.Reporter.ToolUse,
			OnSessionID: sc.Reporter.SessionID,
		}

		runChild := sc.RunChild
		if runChild == nil {
			runChild = agentstream.Run
		}
		result := runChild(ctx, inv, emit)
		isFirst = false
		if result.SessionID != "" {
			sessionID = result.SessionID
		}

		if rl := ratelimit.DetectRateLimit(result.ExitCode, result.Stderr, result.Stdout); rl.IsRateLimit {
			attempt++
			if attempt > maxRateLimitAttempts {
				return result, sessionID, fmt.Errorf("rate-limit wait exhausted after %d attempts", attempt-1)
			}
			wait := rl.RetryAfterSeconds
			if wait <= 0 {
				wait = ratelimit.ComputeBackoff(attempt-1, sc.RateLimitWaitMax)
			}
			if wait > sc.RateLimitWaitMax {
				return result, sessionID, fmt.Errorf("rate-limit wait of %ds exceeds maximum of %ds", wait, sc.RateLimitWaitMax)
			}
			if err := ratelimit.Countdown(ctx, wait, func(remaining int) {
				sc.Reporter.RateLimitWait(remaining, attempt, maxRateLimitAttempts)
			}); err != nil {
				return result, sessionID, err
			}
			continue
		}

		if tr := ratelimit.DetectTransient(result.ExitCode, result.Stderr, result.Stdout); tr != nil {
			attempt++
			wait := ratelimit.ComputeBackoff(attempt-1, sc.RateLimitWaitMax)
			if err := ratelimit.Countdown(ctx, wait, func(remaining int) {
				sc.Reporter.TransientWait(remaining, attempt, tr.Reason)
			}); err != nil {
				return result, sessionID, err
			}
			continue
		}

		return result, sessionID, nil
	}
}
