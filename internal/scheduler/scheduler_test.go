package scheduler

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Hawkynt/CloudForge/internal/agentstream"
	"github.com/Hawkynt/CloudForge/internal/prompt"
	"github.com/Hawkynt/CloudForge/internal/status"
	"github.com/Hawkynt/CloudForge/internal/workflow"
	"github.com/Hawkynt/CloudForge/internal/workflowstate"
)

// fakeReporter records every call it receives instead of printing anything,
// so tests can assert on the sequence of events a run produced.
type fakeReporter struct {
	banners  []string
	retries  []string
	dones    []string
	halted   string
	completed int
	haveHalted bool
	haveCompleted bool
}

func (f *fakeReporter) PhaseBanner(phase string, subTaskNumber, totalSubTasks, retryCount, maxRetries int) {
	f.banners = append(f.banners, phase)
}
func (f *fakeReporter) Text(chunk string)                                      {}
func (f *fakeReporter) ToolUse(summary string)                                 {}
func (f *fakeReporter) SessionID(id string)                                    {}
func (f *fakeReporter) RateLimitWait(remaining, attempt, maxAttempts int)      {}
func (f *fakeReporter) TransientWait(remaining, attempt int, reason string)    {}
func (f *fakeReporter) PhaseRetry(phase string, attempt, max int, summary string) {
	f.retries = append(f.retries, phase)
}
func (f *fakeReporter) PhaseDone(phase string, duration time.Duration) {
	f.dones = append(f.dones, phase)
}
func (f *fakeReporter) Halted(reason string) {
	f.halted = reason
	f.haveHalted = true
}
func (f *fakeReporter) Completed(iterations int) {
	f.completed = iterations
	f.haveCompleted = true
}
func (f *fakeReporter) ResumeHint(workingDir string) {}

// fixedPrompt returns a constant prompt regardless of phase or context.
type fixedPrompt struct{}

func (fixedPrompt) PromptFor(phase string, ctx prompt.Context) (string, error) {
	return "prompt for " + phase, nil
}

// scriptedRunner returns results one at a time, in the order scripted,
// regardless of which phase invoked it; tests script exactly as many
// results as the run is expected to consume.
type scriptedRunner struct {
	results []agentstream.Result
	calls   int
}

func (s *scriptedRunner) run(ctx context.Context, inv agentstream.Invocation, emit agentstream.Emitter) agentstream.Result {
	r := s.results[s.calls]
	s.calls++
	return r
}

func doneResult(phase string) agentstream.Result {
	return agentstream.Result{
		Success: true,
		ExitCode: 0,
		Stdout: status.Sentinel + "\n  phase: " + phase + "\n  result: DONE\n  summary: ok\n",
	}
}

func needsRetryResult(phase, summary string) agentstream.Result {
	return agentstream.Result{
		Success: true,
		ExitCode: 0,
		Stdout: status.Sentinel + "\n  phase: " + phase + "\n  result: NEEDS_RETRY\n  summary: " + summary + "\n",
	}
}

func newScheduler(t *testing.T, dot string, artifactsDir string, runner *scriptedRunner, rep *fakeReporter) *Scheduler {
	t.Helper()
	def, err := workflow.Parse(dot)
	if err != nil {
		t.Fatal(err)
	}
	return &Scheduler{
		Def:          def,
		ArtifactsDir: artifactsDir,
		WorkingDir:   artifactsDir,
		Prompts:      fixedPrompt{},
		Reporter:     rep,
		RunChild:     runner.run,
	}
}

func TestRun_HappyPathSingleSubtask(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		doneResult("DISCOVER"),
		doneResult("BUILD"),
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "DISCOVER -> BUILD [done]\nBUILD -> END [done]", dir, runner, rep)

	s := workflowstate.Create("do the thing", workflowstate.CreateOpts{FirstPhase: "DISCOVER", IterationCap: 10, MaxPhaseRetries: 3})
	if err := sc.Run(context.Background(), s); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !rep.haveCompleted {
		t.Fatal("expected Completed to be reported")
	}
	if len(rep.dones) != 2 || rep.dones[0] != "DISCOVER" || rep.dones[1] != "BUILD" {
		t.Fatalf("unexpected PhaseDone sequence: %v", rep.dones)
	}
}

func TestRun_RetryThenSucceed(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		needsRetryResult("BUILD", "first attempt failed"),
		doneResult("BUILD"),
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "BUILD -> BUILD [retry]\nBUILD -> END [done]", dir, runner, rep)

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "BUILD", IterationCap: 10, MaxPhaseRetries: 3})
	if err := sc.Run(context.Background(), s); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(rep.retries) != 1 {
		t.Fatalf("expected exactly one retry report, got %v", rep.retries)
	}
	if !rep.haveCompleted {
		t.Fatal("expected run to complete after the retry succeeds")
	}
}

func TestRun_CircuitBreakerHaltsOnConsecutiveRetries(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		needsRetryResult("BUILD", "boom 1"),
		needsRetryResult("BUILD", "boom 2"),
		needsRetryResult("BUILD", "boom 3"),
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "BUILD -> BUILD [retry]\nBUILD -> END [done]", dir, runner, rep)

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "BUILD", IterationCap: 10, MaxPhaseRetries: 10})
	err := sc.Run(context.Background(), s)
	if err == nil {
		t.Fatal("expected Run to return an error when the breaker trips")
	}
	if !rep.haveHalted {
		t.Fatal("expected Halted to be reported")
	}
	if !strings.Contains(rep.halted, "consecutive retries") {
		t.Fatalf("unexpected halt reason: %q", rep.halted)
	}
}

func TestRun_RetryExhaustedTakesAlternateBranch(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		needsRetryResult("BUILD", "e1"),
		needsRetryResult("BUILD", "e2"),
		doneResult("ESCALATE"),
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "BUILD -> BUILD [retry]\nBUILD -> ESCALATE [retry_exhausted]\nESCALATE -> END [done]", dir, runner, rep)

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "BUILD", IterationCap: 10, MaxPhaseRetries: 2})
	if err := sc.Run(context.Background(), s); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !rep.haveCompleted {
		t.Fatal("expected run to complete via the escalation branch")
	}
	last := rep.dones[len(rep.dones)-1]
	if last != "ESCALATE" {
		t.Fatalf("expected final PhaseDone for ESCALATE, got %q", last)
	}
}

func TestRun_MissingStatusBlockSynthesizesNeedsRetry(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		{Success: true, ExitCode: 0, Stdout: "no status block here\n"},
		doneResult("BUILD"),
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "BUILD -> BUILD [retry]\nBUILD -> END [done]", dir, runner, rep)

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "BUILD", IterationCap: 10, MaxPhaseRetries: 3})
	if err := sc.Run(context.Background(), s); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(rep.retries) != 1 {
		t.Fatalf("expected the missing status block to be treated as a retry, got %v", rep.retries)
	}
}

func TestRun_CrashedChildHalts(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		{Success: false, ExitCode: 1, Stdout: "", Stderr: "panic: something broke"},
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "BUILD -> END [done]", dir, runner, rep)

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "BUILD", IterationCap: 10, MaxPhaseRetries: 3})
	err := sc.Run(context.Background(), s)
	if err == nil {
		t.Fatal("expected an error on crash")
	}
	if !rep.haveHalted || !strings.Contains(rep.halted, "crashed") {
		t.Fatalf("expected a crash halt, got %q", rep.halted)
	}
}

func TestRun_TaskLoopAdvancesThroughAllSubtasks(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{
		doneResult("IMPLEMENT"),
		doneResult("IMPLEMENT"),
		doneResult("IMPLEMENT"),
	}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "*IMPLEMENT -> IMPLEMENT [done_next_subtask]\nIMPLEMENT -> END [done]", dir, runner, rep)

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "IMPLEMENT", IterationCap: 10, MaxPhaseRetries: 3})
	s.TotalSubTasks = 3
	if err := sc.Run(context.Background(), s); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !rep.haveCompleted {
		t.Fatal("expected run to complete after all sub-tasks finish")
	}
	if len(rep.banners) != 3 {
		t.Fatalf("expected 3 iterations (one per sub-task), got %d", len(rep.banners))
	}
	if s.CurrentSubTask != 3 {
		t.Fatalf("expected CurrentSubTask to reach 3, got %d", s.CurrentSubTask)
	}
}

func TestRun_ContextCancellationHalts(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{results: []agentstream.Result{}}
	rep := &fakeReporter{}
	sc := newScheduler(t, "BUILD -> END [done]", dir, runner, rep)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := workflowstate.Create("task", workflowstate.CreateOpts{FirstPhase: "BUILD", IterationCap: 10, MaxPhaseRetries: 3})
	err := sc.Run(ctx, s)
	if err == nil {
		t.Fatal("expected an error when the context is already cancelled")
	}
	if !rep.haveHalted {
		t.Fatal("expected Halted to be reported on cancellation")
	}
}
