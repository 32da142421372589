// Package scheduler drives the phase state machine: the main loop that
// evaluates circuit breakers, builds per-iteration context, invokes the
// stream runner through the rate-limit retry loop, parses status, records
// history, and computes the next phase (spec.md §4.8, component H).
//
// Grounded on the teacher's internal/runner.Runner.Run: the same
// failAndHint-style persist-then-report-then-return shape and sequential,
// single-phase-at-a-time loop, generalized from a fixed phase-index array
// walk to the graph-based transition table in internal/workflow.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Hawkynt/CloudForge/internal/agentstream"
	"github.com/Hawkynt/CloudForge/internal/breaker"
	"github.com/Hawkynt/CloudForge/internal/prompt"
	"github.com/Hawkynt/CloudForge/internal/status"
	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
	"github.com/Hawkynt/CloudForge/internal/ux"
)

const defaultRateLimitWaitMax = 43200 // 12h, spec.md §6 --rate-limit-wait default

// Scheduler owns one run of the workflow state machine from a given State
// to completion or halt.
type Scheduler struct {
	Def              *workflow.Definition
	ArtifactsDir     string
	WorkingDir       string
	CliPath          string
	Model            string
	MaxTurns         int
	PlanningPhase    string // phase whose DONE output seeds TotalSubTasks from plan.md
	RateLimitWaitMax int    // seconds; 0 means defaultRateLimitWaitMax
	Prompts          prompt.Provider
	Reporter         ux.Reporter

	// RunChild overrides how the child is invoked; nil means
	// agentstream.Run. Tests substitute a fake here to avoid spawning a real
	// process (spec.md's "ownership of the child process" is held entirely
	// by this single seam).
	RunChild func(ctx context.Context, inv agentstream.Invocation, emit agentstream.Emitter) agentstream.Result
}

// Run executes the phase loop starting from s.CurrentPhase until the
// workflow terminates or a halt condition is reached. s is mutated and
// persisted in place; the caller owns its lifetime before and after Run.
func (sc *Scheduler) Run(ctx context.Context, s *workflowstate.State) error {
	if sc.RateLimitWaitMax <= 0 {
		sc.RateLimitWaitMax = defaultRateLimitWaitMax
	}

	phaseRetryCount := 0
	isFirstInvocation := s.Iteration == 0

	for {
		if r := breaker.Evaluate(s); r.Halt {
			return sc.halt(s, r.Reason)
		}
		if err := ctx.Err(); err != nil {
			return sc.halt(s, "interrupted")
		}

		if s.CurrentPhase == sc.Def.FirstTaskLoopPhase() && phaseRetryCount == 0 {
			s.CurrentSubTask++
		}

		pctx := prompt.Context{
			Task:          s.Task,
			Phase:         s.CurrentPhase,
			SubTaskNumber: s.CurrentSubTask,
			TotalSubTasks: s.TotalSubTasks,
			WorkingDir:    sc.WorkingDir,
			RetryCount:    phaseRetryCount,
			MaxRetries:    s.MaxPhaseRetries,
		}
		sc.Reporter.PhaseBanner(s.CurrentPhase, s.CurrentSubTask, s.TotalSubTasks, phaseRetryCount, s.MaxPhaseRetries)
		iterationStart := time.Now()

		promptText, err := sc.Prompts.PromptFor(s.CurrentPhase, pctx)
		if err != nil {
			return sc.halt(s, fmt.Sprintf("rendering prompt for %s: %v", s.CurrentPhase, err))
		}

		sessionID := ""
		if s.SessionID != nil {
			sessionID = *s.SessionID
		}
		if sessionID == "" {
			sessionID = uuid.New().String()
		}
		result, sessionID, err := sc.invokeWithRetries(ctx, sessionID, isFirstInvocation, promptText)
		isFirstInvocation = false
		if sessionID != "" {
			s.SessionID = &sessionID
		}
		if err != nil {
			return sc.halt(s, err.Error())
		}

		if !result.Success && len(result.Stdout) == 0 {
			return sc.halt(s, fmt.Sprintf("phase %q crashed: %s", s.CurrentPhase, result.Stderr))
		}

		st, found := status.Parse(result.Stdout)
		if !found {
			reason := "completed without CLOUDFORGE_STATUS block"
			if result.ExitCode != 0 {
				reason = "crashed without CLOUDFORGE_STATUS block"
			}
			fmt.Fprintf(os.Stderr, "warning: phase %q %s\n", s.CurrentPhase, reason)
			st = &status.Status{Phase: s.CurrentPhase, Result: status.ResultNeedsRetry, Summary: reason}
		}

		workflowstate.RecordIteration(s, s.CurrentPhase, st.Result, st.Summary, &workflowstate.Tokens{
			Input:  result.InputTokens,
			Output: result.OutputTokens,
		})

		if s.CurrentPhase == sc.PlanningPhase && st.Result == status.ResultDone {
			sc.seedSubTasksFromPlan(s)
		}

		if st.Result == status.ResultNeedsRetry {
			phaseRetryCount++
			workflowstate.TrackRetry(s, st.Summary)
			sc.Reporter.PhaseRetry(s.CurrentPhase, phaseRetryCount, s.MaxPhaseRetries, st.Summary)
		} else {
			phaseRetryCount = 0
			if st.Result == status.ResultDone {
				workflowstate.MarkPhaseCompleted(s, s.CurrentPhase)
			}
			sc.Reporter.PhaseDone(s.CurrentPhase, time.Since(iterationStart))
		}

		if err := workflowstate.Save(sc.ArtifactsDir, s); err != nil {
			return fmt.Errorf("saving state: %w", err)
		}

		next := nextPhase(sc.Def, s.CurrentPhase, st.Result, s.CurrentSubTask, s.TotalSubTasks, phaseRetryCount, s.MaxPhaseRetries)
		if next != s.CurrentPhase {
			phaseRetryCount = 0
			workflowstate.ResetPhaseTransition(s)
		}
		if next == "" {
			sc.Reporter.Completed(s.Iteration)
			return nil
		}
		s.CurrentPhase = next
	}
}

// halt persists state, reports the reason, and returns an error to the
// caller. Every halt path in the scheduler funnels through here so state is
// never lost on the way out (spec.md §7's error-handling table).
func (sc *Scheduler) halt(s *workflowstate.State, reason string) error {
	if err := workflowstate.Save(sc.ArtifactsDir, s); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save state: %v\n", err)
	}
	sc.Reporter.Halted(reason)
	sc.Reporter.ResumeHint(sc.WorkingDir)
	return fmt.Errorf("%s", reason)
}
